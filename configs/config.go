package configs

import (
	"fmt"
	"time"
)

// Config 主配置结构体，定义了应用程序的所有配置项。
// 包含服务器、缓存、嵌入模型、存储后端和日志等模块的配置信息。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Redis     RedisConfig     `yaml:"redis"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig 定义服务器相关的配置参数。
// 包含监听地址、端口、超时设置等。
type ServerConfig struct {
	Host                    string        `yaml:"host"`
	Port                    int           `yaml:"port"`
	ReadTimeout             time.Duration `yaml:"read_timeout"`
	WriteTimeout            time.Duration `yaml:"write_timeout"`
	IdleTimeout             time.Duration `yaml:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// CacheConfig 定义语义缓存的核心配置参数。
// 包含开关、后端选择、相似度阈值、TTL和写入策略参数等。
type CacheConfig struct {
	// Enabled 缓存总开关，关闭后查询直接返回未命中且不调用嵌入服务
	Enabled bool `yaml:"enabled"`

	// Backend 存储后端名称：memory、redis、qdrant
	Backend string `yaml:"backend"`

	// SimilarityThreshold 相似度阈值，0.0-1.0
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// DefaultTTL 缓存条目默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// TopK 相似度搜索返回的候选数量
	TopK int `yaml:"top_k"`

	// MinQueryLength 写入策略：查询文本最小长度
	MinQueryLength int `yaml:"min_query_length"`

	// MinResponseLength 写入策略：响应文本最小长度
	MinResponseLength int `yaml:"min_response_length"`

	// FailureIndicators 写入策略：响应中出现这些子串（不区分大小写）时拒绝缓存
	FailureIndicators []string `yaml:"failure_indicators"`

	// CleanupInterval 后台过期清理周期，0 表示不启动后台清理
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// EmbeddingConfig 定义嵌入模型服务的配置。
// 基于 OpenAI Format API，支持 Azure OpenAI。
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // 目前支持 openai
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	Dimensions *int          `yaml:"dimensions"` // 向量维度（可选）

	// OpenAI/Azure 专用
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
}

// RedisConfig 定义 Redis 向量索引后端的配置。
// 依赖 RediSearch 模块提供的向量索引能力。
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Timeout  time.Duration `yaml:"timeout"`

	// IndexName 向量索引名称
	IndexName string `yaml:"index_name"`

	// KeyPrefix 缓存条目的键前缀
	KeyPrefix string `yaml:"key_prefix"`

	// VectorDims 向量维度
	VectorDims int `yaml:"vector_dims"`

	// Algorithm 向量索引算法：HNSW 或 FLAT
	Algorithm string `yaml:"algorithm"`

	// DistanceMetric 距离度量：COSINE、L2、IP
	DistanceMetric string `yaml:"distance_metric"`
}

// QdrantConfig 定义 Qdrant 向量数据库后端的配置。
type QdrantConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	APIKey         string        `yaml:"api_key"`
	CollectionName string        `yaml:"collection_name"`
	VectorSize     int           `yaml:"vector_size"`
	Distance       string        `yaml:"distance"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LoggingConfig 定义日志系统的配置参数。
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Output   string `yaml:"output"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Validate 检查 Config 配置结构体的有效性。
// 依次调用各个子配置项的 Validate 方法，如果发现无效配置，返回相应的错误。
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config validation failed: %w", err)
	}

	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding config validation failed: %w", err)
	}

	switch c.Cache.Backend {
	case "redis":
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config validation failed: %w", err)
		}
	case "qdrant":
		if err := c.Qdrant.Validate(); err != nil {
			return fmt.Errorf("qdrant config validation failed: %w", err)
		}
	}

	return nil
}

// Validate 检查服务器配置的有效性
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	return nil
}

// Validate 检查缓存配置的有效性
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "memory", "redis", "qdrant":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Backend)
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0.0, 1.0], got %f", c.SimilarityThreshold)
	}

	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}

	if c.DefaultTTL < 0 {
		return fmt.Errorf("default_ttl cannot be negative")
	}

	return nil
}

// Validate 检查嵌入配置的有效性
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding provider cannot be empty")
	}

	if c.Model == "" {
		return fmt.Errorf("embedding model cannot be empty")
	}

	if c.Dimensions != nil && *c.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	return nil
}

// Validate 检查 Redis 配置的有效性
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty")
	}

	if c.IndexName == "" {
		return fmt.Errorf("redis index_name cannot be empty")
	}

	if c.KeyPrefix == "" {
		return fmt.Errorf("redis key_prefix cannot be empty")
	}

	if c.VectorDims <= 0 {
		return fmt.Errorf("redis vector_dims must be positive, got %d", c.VectorDims)
	}

	switch c.Algorithm {
	case "HNSW", "FLAT":
	default:
		return fmt.Errorf("unsupported vector algorithm: %s", c.Algorithm)
	}

	return nil
}

// Validate 检查 Qdrant 配置的有效性
func (c *QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("qdrant host cannot be empty")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Port)
	}

	if c.CollectionName == "" {
		return fmt.Errorf("qdrant collection_name cannot be empty")
	}

	if c.VectorSize <= 0 {
		return fmt.Errorf("qdrant vector_size must be positive, got %d", c.VectorSize)
	}

	return nil
}
