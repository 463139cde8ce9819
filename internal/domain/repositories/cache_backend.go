package repositories

import (
	"context"

	"semcache/internal/domain/models"
)

// CacheBackend 缓存存储后端接口
// 所有存储实现必须满足的契约。存储层遵循"永不让调用方崩溃"的
// 策略：操作内部捕获并记录错误，失败以布尔值或空结果的形式返回，
// 不向上传播异常。
type CacheBackend interface {
	// StoreEntry 持久化缓存条目
	// 按key存储条目并记录TTL相关信息。失败返回false，不报错。
	StoreEntry(ctx context.Context, key string, entry *models.CacheEntry) bool

	// SearchSimilar 按向量相似度搜索条目
	// 返回相似度 >= threshold 的条目，按分数降序排列，
	// 最多返回limit条。没有任何条目时返回空列表，永不报错。
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) []models.SimilarityMatch

	// Invalidate 删除单个条目
	// 返回该条目此前是否存在。
	Invalidate(ctx context.Context, key string) bool

	// ClearAll 清空全部缓存条目
	ClearAll(ctx context.Context) bool

	// CleanupExpired 清理已超过TTL的过期条目
	// 返回被清理的条目数量。
	CleanupExpired(ctx context.Context) int

	// HealthCheck 报告后端健康状态
	// 包含存储可达性、当前条目数量和后端标识，用于运维诊断，
	// 永不报错。
	HealthCheck(ctx context.Context) map[string]interface{}
}
