package stores

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"semcache/configs"
	"semcache/internal/infrastructure/stores/memory"
	"semcache/internal/infrastructure/stores/redisearch"
)

func TestNewCacheBackend_Memory(t *testing.T) {
	backend, err := NewCacheBackend(context.Background(), BackendMemory, BackendDeps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := backend.(*memory.MemoryBackend); !ok {
		t.Errorf("expected memory backend, got %T", backend)
	}
}

func TestNewCacheBackend_UnknownName(t *testing.T) {
	if _, err := NewCacheBackend(context.Background(), "cassandra", BackendDeps{}); err == nil {
		t.Error("expected error for unknown backend name")
	}
}

func TestNewCacheBackend_RedisFallsBackWithoutClient(t *testing.T) {
	backend, err := NewCacheBackend(context.Background(), BackendRedis, BackendDeps{
		Config: configs.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := backend.(*memory.MemoryBackend); !ok {
		t.Errorf("expected fallback to memory backend, got %T", backend)
	}
}

func TestNewCacheBackend_RedisFallsBackWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// 连接断开后必须降级而不是返回错误
	mr.Close()

	backend, err := NewCacheBackend(context.Background(), BackendRedis, BackendDeps{
		RedisClient: client,
		Config:      configs.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := backend.(*memory.MemoryBackend); !ok {
		t.Errorf("expected fallback to memory backend, got %T", backend)
	}
}

func TestNewCacheBackend_RedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	config := configs.DefaultConfig()
	config.Redis.Addr = mr.Addr()

	backend, err := NewCacheBackend(context.Background(), BackendRedis, BackendDeps{
		RedisClient: client,
		Config:      config,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := backend.(*redisearch.RedisearchBackend); !ok {
		t.Errorf("expected redis backend, got %T", backend)
	}
}

func TestNewCacheBackend_QdrantFallsBackWithoutConfig(t *testing.T) {
	backend, err := NewCacheBackend(context.Background(), BackendQdrant, BackendDeps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := backend.(*memory.MemoryBackend); !ok {
		t.Errorf("expected fallback to memory backend, got %T", backend)
	}
}
