// Package cache 实现语义缓存服务与透明缓存装饰器
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"semcache/configs"
	"semcache/internal/domain/models"
	"semcache/internal/domain/repositories"
	"semcache/internal/domain/services"
	"semcache/pkg/logger"
)

// cacheKeyLength 缓存键长度（SHA-256十六进制摘要的前缀）
const cacheKeyLength = 16

// errEmptyEmbedding 嵌入服务返回空向量
var errEmptyEmbedding = errors.New("embedding service returned an empty vector")

// SemanticCacheService 语义缓存服务
// 负责向量生成与阈值判定，物理存储委托给注入的后端。
// 所有失败路径都被吸收为MISS/ERROR/false，不向调用方抛出错误。
type SemanticCacheService struct {
	backend  repositories.CacheBackend
	embedder embedding.Embedder
	config   *configs.CacheConfig
	logger   logger.Logger

	// 统计计数器
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
	stores atomic.Int64

	// now 时间源，测试时可替换
	now func() time.Time
}

// NewSemanticCacheService 创建语义缓存服务
func NewSemanticCacheService(backend repositories.CacheBackend, embedder embedding.Embedder, config *configs.CacheConfig, log logger.Logger) *SemanticCacheService {
	if log == nil {
		log = logger.GetDefault()
	}

	return &SemanticCacheService{
		backend:  backend,
		embedder: embedder,
		config:   config,
		logger:   log,
		now:      time.Now,
	}
}

var _ services.CacheService = (*SemanticCacheService)(nil)

// GetCachedResponse 查询语义缓存
// 服务禁用时直接返回MISS，不调用嵌入服务。
// 查询顺带触发一次过期清理，保证过期条目不会被命中。
func (s *SemanticCacheService) GetCachedResponse(ctx context.Context, query string, metadata map[string]string) *models.CacheSearchResult {
	if !s.config.Enabled {
		return &models.CacheSearchResult{Result: models.ResultMiss}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		s.misses.Add(1)
		return &models.CacheSearchResult{Result: models.ResultMiss}
	}

	s.backend.CleanupExpired(ctx)

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		s.errors.Add(1)
		s.logger.ErrorContext(ctx, "查询向量生成失败", "error", err)
		return &models.CacheSearchResult{Result: models.ResultError, Err: err.Error()}
	}

	matches := s.backend.SearchSimilar(ctx, vector, s.config.SimilarityThreshold, s.config.TopK)
	if len(matches) == 0 {
		s.misses.Add(1)
		s.logger.DebugContext(ctx, "语义缓存未命中", "threshold", s.config.SimilarityThreshold)
		return &models.CacheSearchResult{Result: models.ResultMiss}
	}

	best := matches[0]
	s.hits.Add(1)
	s.logger.InfoContext(ctx, "语义缓存命中",
		"key", best.Entry.Key,
		"similarity", best.Score)

	return &models.CacheSearchResult{
		Result:     models.ResultHit,
		Entry:      best.Entry,
		Similarity: best.Score,
	}
}

// CacheResponse 按写入策略缓存响应
// 策略不通过或任一环节失败时返回false，不产生错误。
func (s *SemanticCacheService) CacheResponse(ctx context.Context, query, response string, metadata map[string]string) bool {
	if !s.config.Enabled {
		return false
	}

	if !s.shouldCache(ctx, query, response, metadata) {
		return false
	}

	query = strings.TrimSpace(query)

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "写入时向量生成失败", "error", err)
		return false
	}

	key := s.cacheKey(query, metadata)
	entry := &models.CacheEntry{
		Key:        key,
		Response:   response,
		Embedding:  vector,
		Metadata:   metadata,
		TTLSeconds: int(s.config.DefaultTTL.Seconds()),
		CreatedAt:  s.now(),
	}

	if !s.backend.StoreEntry(ctx, key, entry) {
		s.logger.WarnContext(ctx, "缓存条目写入失败", "key", key)
		return false
	}

	s.stores.Add(1)
	s.logger.DebugContext(ctx, "缓存响应成功", "key", key, "ttl", s.config.DefaultTTL)
	return true
}

// Invalidate 删除指定缓存条目
func (s *SemanticCacheService) Invalidate(ctx context.Context, key string) bool {
	return s.backend.Invalidate(ctx, key)
}

// ClearCache 清空全部缓存
func (s *SemanticCacheService) ClearCache(ctx context.Context) bool {
	return s.backend.ClearAll(ctx)
}

// GetStats 获取缓存统计信息
func (s *SemanticCacheService) GetStats(ctx context.Context) map[string]interface{} {
	hits := s.hits.Load()
	misses := s.misses.Load()

	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return map[string]interface{}{
		"enabled":              s.config.Enabled,
		"similarity_threshold": s.config.SimilarityThreshold,
		"hits":                 hits,
		"misses":               misses,
		"errors":               s.errors.Load(),
		"stores":               s.stores.Load(),
		"hit_rate":             hitRate,
	}
}

// HealthCheck 获取缓存服务健康状态
func (s *SemanticCacheService) HealthCheck(ctx context.Context) map[string]interface{} {
	health := s.backend.HealthCheck(ctx)
	health["cache_enabled"] = s.config.Enabled
	return health
}

// CleanupExpired 主动触发一轮过期清理，返回清理的条目数
// 供后台清理任务周期性调用。
func (s *SemanticCacheService) CleanupExpired(ctx context.Context) int {
	return s.backend.CleanupExpired(ctx)
}

// embedQuery 生成查询文本的向量表示
func (s *SemanticCacheService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errEmptyEmbedding
	}

	return models.Float64sToFloat32s(vectors[0]), nil
}

// shouldCache 评估写入策略
// 查询和响应太短、响应疑似失败、或元数据明确选择退出时拒绝缓存。
func (s *SemanticCacheService) shouldCache(ctx context.Context, query, response string, metadata map[string]string) bool {
	if metadata["no_cache"] == "true" {
		s.logger.DebugContext(ctx, "元数据要求跳过缓存")
		return false
	}

	query = strings.TrimSpace(query)
	response = strings.TrimSpace(response)

	if response == "" {
		return false
	}

	if len(query) < s.config.MinQueryLength {
		s.logger.DebugContext(ctx, "查询文本过短，跳过缓存", "length", len(query))
		return false
	}

	if len(response) < s.config.MinResponseLength {
		s.logger.DebugContext(ctx, "响应文本过短，跳过缓存", "length", len(response))
		return false
	}

	lowered := strings.ToLower(response)
	for _, indicator := range s.config.FailureIndicators {
		if strings.Contains(lowered, strings.ToLower(indicator)) {
			s.logger.DebugContext(ctx, "响应疑似失败，跳过缓存", "indicator", indicator)
			return false
		}
	}

	return true
}

// cacheKey 生成确定性缓存键
// 由归一化查询文本和关键元数据哈希得出，同样的查询总是映射到同一个键。
func (s *SemanticCacheService) cacheKey(query string, metadata map[string]string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	h.Write([]byte{0})
	h.Write([]byte(metadata["agent_id"]))
	h.Write([]byte{0})
	h.Write([]byte(metadata["model"]))

	return hex.EncodeToString(h.Sum(nil))[:cacheKeyLength]
}

// SetClock 替换时间源，仅用于测试
func (s *SemanticCacheService) SetClock(now func() time.Time) {
	s.now = now
}
