package cache

import (
	"context"

	"semcache/configs"
	"semcache/internal/domain/services"
	"semcache/pkg/logger"
)

// CachedAgent 透明缓存装饰器
// 包装一个RuntimeAgent，在调用前查询语义缓存、调用后按策略回填。
// 缓存层的任何失败都不会影响被包装Agent的执行结果：
// 查询失败按未命中处理，写入失败只记录日志。
type CachedAgent struct {
	delegate services.RuntimeAgent
	cache    services.CacheService
	config   *configs.CacheConfig
	logger   logger.Logger
}

// NewCachedAgent 创建透明缓存装饰器
func NewCachedAgent(delegate services.RuntimeAgent, cache services.CacheService, config *configs.CacheConfig, log logger.Logger) *CachedAgent {
	if log == nil {
		log = logger.GetDefault()
	}

	return &CachedAgent{
		delegate: delegate,
		cache:    cache,
		config:   config,
		logger:   log,
	}
}

var _ services.RuntimeAgent = (*CachedAgent)(nil)

// ID 返回被包装Agent的ID
func (c *CachedAgent) ID() string {
	return c.delegate.ID()
}

// Name 返回被包装Agent的名称
func (c *CachedAgent) Name() string {
	return c.delegate.Name()
}

// Run 执行Agent调用，优先返回语义缓存命中的响应
// 缓存禁用时完全绕过缓存层。未命中或缓存出错时执行真实调用，
// Agent自身的错误原样向上传播且不会被缓存。
func (c *CachedAgent) Run(ctx context.Context, message string) (string, error) {
	if !c.config.Enabled {
		return c.delegate.Run(ctx, message)
	}

	metadata := map[string]string{
		"agent_id": c.delegate.ID(),
	}

	if result := c.cache.GetCachedResponse(ctx, message, metadata); result.Hit() {
		c.logger.InfoContext(ctx, "返回缓存响应",
			"agent_id", c.delegate.ID(),
			"similarity", result.Similarity)
		return result.Entry.Response, nil
	}

	response, err := c.delegate.Run(ctx, message)
	if err != nil {
		return "", err
	}

	// 回填失败不影响本次调用结果
	if !c.cache.CacheResponse(ctx, message, response, metadata) {
		c.logger.DebugContext(ctx, "响应未写入缓存", "agent_id", c.delegate.ID())
	}

	return response, nil
}
