package configs

import (
	"testing"
	"time"
)

func TestDefaultConfigValidation(t *testing.T) {
	// 测试 DefaultConfig 可以通过完整验证
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig validation failed: %v", err)
	}
}

func TestCacheConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  CacheConfig
		wantErr bool
	}{
		{
			name: "memory backend passes",
			config: CacheConfig{
				Backend:             "memory",
				SimilarityThreshold: 0.85,
				TopK:                5,
			},
			wantErr: false,
		},
		{
			name: "redis backend passes",
			config: CacheConfig{
				Backend:             "redis",
				SimilarityThreshold: 0.8,
				TopK:                1,
			},
			wantErr: false,
		},
		{
			name: "unknown backend fails",
			config: CacheConfig{
				Backend:             "dynamodb",
				SimilarityThreshold: 0.8,
				TopK:                5,
			},
			wantErr: true,
		},
		{
			name: "threshold above one fails",
			config: CacheConfig{
				Backend:             "memory",
				SimilarityThreshold: 1.5,
				TopK:                5,
			},
			wantErr: true,
		},
		{
			name: "negative threshold fails",
			config: CacheConfig{
				Backend:             "memory",
				SimilarityThreshold: -0.1,
				TopK:                5,
			},
			wantErr: true,
		},
		{
			name: "zero top_k fails",
			config: CacheConfig{
				Backend:             "memory",
				SimilarityThreshold: 0.8,
				TopK:                0,
			},
			wantErr: true,
		},
		{
			name: "negative ttl fails",
			config: CacheConfig{
				Backend:             "memory",
				SimilarityThreshold: 0.8,
				TopK:                5,
				DefaultTTL:          -time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CacheConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedisConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  RedisConfig
		wantErr bool
	}{
		{
			name: "valid config passes",
			config: RedisConfig{
				Addr:       "localhost:6379",
				IndexName:  "idx",
				KeyPrefix:  "prefix:",
				VectorDims: 1536,
				Algorithm:  "HNSW",
			},
			wantErr: false,
		},
		{
			name: "empty addr fails",
			config: RedisConfig{
				IndexName:  "idx",
				KeyPrefix:  "prefix:",
				VectorDims: 1536,
				Algorithm:  "HNSW",
			},
			wantErr: true,
		},
		{
			name: "zero dims fails",
			config: RedisConfig{
				Addr:      "localhost:6379",
				IndexName: "idx",
				KeyPrefix: "prefix:",
				Algorithm: "HNSW",
			},
			wantErr: true,
		},
		{
			name: "unknown algorithm fails",
			config: RedisConfig{
				Addr:       "localhost:6379",
				IndexName:  "idx",
				KeyPrefix:  "prefix:",
				VectorDims: 1536,
				Algorithm:  "IVF",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("RedisConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SEMCACHE_BACKEND", "redis")
	t.Setenv("SEMCACHE_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")

	config := DefaultConfig()
	loadFromEnv(config)

	if config.Cache.Backend != "redis" {
		t.Errorf("expected backend redis, got %s", config.Cache.Backend)
	}

	if config.Cache.SimilarityThreshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %f", config.Cache.SimilarityThreshold)
	}

	if config.Redis.Addr != "redis.internal:6380" {
		t.Errorf("expected redis addr override, got %s", config.Redis.Addr)
	}
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("SEMCACHE_PORT", "not-a-port")
	t.Setenv("SEMCACHE_SIMILARITY_THRESHOLD", "2.0")

	config := DefaultConfig()
	loadFromEnv(config)

	if config.Server.Port != 8080 {
		t.Errorf("expected default port to survive invalid override, got %d", config.Server.Port)
	}

	if config.Cache.SimilarityThreshold != 0.85 {
		t.Errorf("expected default threshold to survive out-of-range override, got %f", config.Cache.SimilarityThreshold)
	}
}
