package services

import (
	"context"

	"semcache/internal/domain/models"
)

// CacheService 语义缓存服务接口
// 负责向量生成、相似度阈值判定、缓存写入策略评估，
// 并将物理存储操作委托给注入的存储后端。
type CacheService interface {
	// GetCachedResponse 查询语义缓存
	// 服务禁用时直接返回MISS且不调用嵌入服务（避免无谓开销）。
	// 嵌入生成失败被捕获并转换为ERROR结果，永不向上传播。
	GetCachedResponse(ctx context.Context, query string, metadata map[string]string) *models.CacheSearchResult

	// CacheResponse 按写入策略缓存响应
	// 策略不通过时为无操作，返回false而非错误。
	CacheResponse(ctx context.Context, query, response string, metadata map[string]string) bool

	// Invalidate 删除指定缓存条目
	Invalidate(ctx context.Context, key string) bool

	// ClearCache 清空全部缓存
	ClearCache(ctx context.Context) bool

	// GetStats 获取缓存统计信息
	GetStats(ctx context.Context) map[string]interface{}

	// HealthCheck 获取缓存服务健康状态
	HealthCheck(ctx context.Context) map[string]interface{}
}
