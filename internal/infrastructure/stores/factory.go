package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"semcache/configs"
	"semcache/internal/domain/repositories"
	"semcache/internal/infrastructure/stores/memory"
	qdrantstore "semcache/internal/infrastructure/stores/qdrant"
	"semcache/internal/infrastructure/stores/redisearch"
	"semcache/pkg/logger"
)

// probeTimeout 后端连通性探测的超时时间
const probeTimeout = 3 * time.Second

// 支持的后端名称
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendQdrant = "qdrant"
)

// BackendDeps 构建缓存后端所需的外部依赖
type BackendDeps struct {
	RedisClient *redis.Client
	Config      *configs.Config
	Logger      logger.Logger
}

// NewCacheBackend 按名称构建缓存后端
// 外部后端不可达时降级为内存后端并记录警告，保证缓存层总是可用；
// 只有后端名称本身无法识别时才返回错误。
func NewCacheBackend(ctx context.Context, name string, deps BackendDeps) (repositories.CacheBackend, error) {
	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	switch name {
	case BackendMemory:
		log.InfoContext(ctx, "使用内存缓存后端")
		return memory.New(log), nil

	case BackendRedis:
		backend := newRedisBackend(ctx, deps, log)
		if backend == nil {
			log.WarnContext(ctx, "Redis后端不可用，降级为内存后端")
			return memory.New(log), nil
		}
		return backend, nil

	case BackendQdrant:
		backend := newQdrantBackend(ctx, deps, log)
		if backend == nil {
			log.WarnContext(ctx, "Qdrant后端不可用，降级为内存后端")
			return memory.New(log), nil
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %s", name)
	}
}

// newRedisBackend 构建Redis向量后端，失败时返回nil
func newRedisBackend(ctx context.Context, deps BackendDeps, log logger.Logger) repositories.CacheBackend {
	if deps.RedisClient == nil || deps.Config == nil {
		log.WarnContext(ctx, "缺少Redis客户端或配置")
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := deps.RedisClient.Ping(probeCtx).Err(); err != nil {
		log.WarnContext(ctx, "Redis连通性探测失败",
			"addr", deps.Config.Redis.Addr,
			"error", err)
		return nil
	}

	log.InfoContext(ctx, "使用Redis缓存后端",
		"addr", deps.Config.Redis.Addr,
		"index", deps.Config.Redis.IndexName)
	return redisearch.New(deps.RedisClient, &deps.Config.Redis, log)
}

// newQdrantBackend 构建Qdrant向量后端，失败时返回nil
func newQdrantBackend(ctx context.Context, deps BackendDeps, log logger.Logger) repositories.CacheBackend {
	if deps.Config == nil {
		log.WarnContext(ctx, "缺少Qdrant配置")
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client, err := qdrantstore.NewClient(probeCtx, &deps.Config.Qdrant, log)
	if err != nil {
		log.WarnContext(ctx, "Qdrant连接失败",
			"host", deps.Config.Qdrant.Host,
			"port", deps.Config.Qdrant.Port,
			"error", err)
		return nil
	}

	log.InfoContext(ctx, "使用Qdrant缓存后端",
		"host", deps.Config.Qdrant.Host,
		"collection", deps.Config.Qdrant.CollectionName)
	return qdrantstore.NewBackend(client, log)
}
