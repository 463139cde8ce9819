// Package remote 提供远程嵌入模型的工厂函数
package remote

import (
	"context"
	"fmt"
	"time"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"semcache/configs"
	"semcache/pkg/logger"
)

// NewEmbedder 根据配置创建并返回一个 Eino Embedder 实例。
// 参数 ctx: 上下文对象。
// 参数 config: 嵌入模型配置，包含提供商类型、API 密钥、模型名称等。
// 返回: 初始化后的 Embedder 实例，如果提供商不支持或初始化失败则返回错误。
func NewEmbedder(ctx context.Context, config *configs.EmbeddingConfig, log logger.Logger) (embedding.Embedder, error) {
	if config == nil {
		return nil, fmt.Errorf("embedding config is required")
	}

	if log == nil {
		log = logger.GetDefault()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding config: %w", err)
	}

	switch config.Provider {
	case "openai":
		embedder, err := newOpenAIEmbedder(ctx, config, config.Timeout)
		if err != nil {
			return nil, err
		}

		log.InfoContext(ctx, "远程嵌入模型初始化成功",
			"provider", config.Provider,
			"model", config.Model)
		return embedder, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}
}

// newOpenAIEmbedder 创建 OpenAI Embedder
func newOpenAIEmbedder(ctx context.Context, config *configs.EmbeddingConfig, timeout time.Duration) (embedding.Embedder, error) {
	embedCfg := &openaiembed.EmbeddingConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		Timeout: timeout,
	}

	// 设置 BaseURL（如果提供）
	if config.BaseURL != "" {
		embedCfg.BaseURL = config.BaseURL
	}

	// Azure OpenAI 配置
	if config.ByAzure {
		embedCfg.ByAzure = true
		embedCfg.APIVersion = config.APIVersion
	}

	// 设置维度（如果提供）
	if config.Dimensions != nil {
		embedCfg.Dimensions = config.Dimensions
	}

	return openaiembed.NewEmbedder(ctx, embedCfg)
}
