package configs

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load 加载并验证应用程序配置。
// 它按照以下优先级顺序加载配置：
// 1. 默认配置
// 2. 配置文件（config.yaml，支持多个搜索路径）
// 3. 环境变量（覆盖配置文件中的值）
//
// 参数 ctx: 上下文对象。
// 返回加载并验证后的 Config 指针，如果出错则返回 error。
func Load(ctx context.Context) (*Config, error) {
	// 加载 .env 文件（如果存在）
	// 忽略错误，因为 .env 文件是可选的
	_ = godotenv.Load()

	config := DefaultConfig()

	// 尝试加载配置文件
	configPaths := []string{
		"configs/config.yaml",
		"config.yaml",
		"/etc/semcache/config.yaml",
	}

	for _, path := range configPaths {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, err
			}
			break
		}
	}

	// 从环境变量覆盖配置
	loadFromEnv(config)

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig 创建并返回一个包含默认值的 Config 对象。
// 默认值覆盖了服务器、缓存、嵌入模型、存储后端和日志的常用配置。
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                    "0.0.0.0",
			Port:                    8080,
			ReadTimeout:             30 * time.Second,
			WriteTimeout:            30 * time.Second,
			IdleTimeout:             60 * time.Second,
			GracefulShutdownTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:             true,
			Backend:             "memory",
			SimilarityThreshold: 0.85,
			DefaultTTL:          time.Hour,
			TopK:                5,
			MinQueryLength:      10,
			MinResponseLength:   10,
			FailureIndicators:   []string{"error", "failed", "exception", "sorry, i"},
			CleanupInterval:     0,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
			Timeout:  30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			Timeout:        5 * time.Second,
			IndexName:      "semcache_idx",
			KeyPrefix:      "semcache:",
			VectorDims:     1536,
			Algorithm:      "HNSW",
			DistanceMetric: "COSINE",
		},
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			CollectionName: "semcache",
			VectorSize:     1536,
			Distance:       "cosine",
			Timeout:        30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			Format: "text",
		},
	}
}

// loadFromEnv 从环境变量中读取配置并覆盖 Config 中的值。
// 支持 SEMCACHE_PORT, SEMCACHE_BACKEND, REDIS_ADDR, OPENAI_API_KEY 等环境变量。
func loadFromEnv(config *Config) {
	// Server 配置
	if port := os.Getenv("SEMCACHE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p <= 65535 {
			config.Server.Port = p
		}
	}

	// Cache 配置
	if enabled := os.Getenv("SEMCACHE_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Cache.Enabled = b
		}
	}

	if backend := os.Getenv("SEMCACHE_BACKEND"); backend != "" {
		config.Cache.Backend = backend
	}

	if threshold := os.Getenv("SEMCACHE_SIMILARITY_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil && t >= 0 && t <= 1 {
			config.Cache.SimilarityThreshold = t
		}
	}

	if ttl := os.Getenv("SEMCACHE_DEFAULT_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d >= 0 {
			config.Cache.DefaultTTL = d
		}
	}

	// Embedding 配置
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}

	if model := os.Getenv("SEMCACHE_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}

	// Redis 配置
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	// Qdrant 配置
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Qdrant.Host = host
	}

	if port := os.Getenv("QDRANT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p <= 65535 {
			config.Qdrant.Port = p
		}
	}

	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		config.Qdrant.APIKey = apiKey
	}

	// Logging 配置
	if level := os.Getenv("SEMCACHE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
