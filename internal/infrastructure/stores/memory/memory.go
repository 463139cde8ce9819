package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"semcache/internal/domain/models"
	"semcache/internal/domain/repositories"
	"semcache/pkg/logger"
)

// MemoryBackend 进程内缓存后端
// 基于map的实现，相似度搜索为全量暴力扫描，每次查询O(n)。
// 适用于小规模、有界的缓存场景，不适合超过几千条目的规模。
// 互斥锁仅保证map本身不被并发破坏，不提供跨操作的一致性；
// 需要严格一致性的调用方应在外层自行加锁。
type MemoryBackend struct {
	mu         sync.RWMutex
	storage    map[string]*models.CacheEntry
	timestamps map[string]time.Time
	logger     logger.Logger

	// now 时间源，测试时可替换
	now func() time.Time
}

// New 创建进程内缓存后端
func New(log logger.Logger) *MemoryBackend {
	if log == nil {
		log = logger.GetDefault()
	}

	return &MemoryBackend{
		storage:    make(map[string]*models.CacheEntry),
		timestamps: make(map[string]time.Time),
		logger:     log,
		now:        time.Now,
	}
}

var _ repositories.CacheBackend = (*MemoryBackend)(nil)

// StoreEntry 存储缓存条目并记录存储时间
func (m *MemoryBackend) StoreEntry(ctx context.Context, key string, entry *models.CacheEntry) bool {
	if key == "" || entry == nil {
		m.logger.WarnContext(ctx, "拒绝存储非法缓存条目", "key", key)
		return false
	}

	m.mu.Lock()
	m.storage[key] = entry
	m.timestamps[key] = m.now()
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "内存后端存储条目成功", "key", key)
	return true
}

// SearchSimilar 按余弦相似度全量扫描搜索
// 对每个存储条目计算与查询向量的余弦相似度，按阈值过滤后
// 降序排列，截断到limit条。维度不一致的条目属于契约违规，
// 记录错误日志后跳过，保持存储接口"永不报错"的约定。
func (m *MemoryBackend) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) []models.SimilarityMatch {
	if len(embedding) == 0 || limit <= 0 {
		return nil
	}

	m.mu.RLock()
	candidates := make([]models.SimilarityMatch, 0)
	for key, entry := range m.storage {
		score, err := models.CosineSimilarity(embedding, entry.Embedding)
		if err != nil {
			if errors.Is(err, models.ErrDimensionMismatch) {
				m.logger.ErrorContext(ctx, "缓存条目向量维度与查询不一致",
					"key", key,
					"entry_dims", len(entry.Embedding),
					"query_dims", len(embedding))
			}
			continue
		}

		if score >= threshold {
			candidates = append(candidates, models.SimilarityMatch{Entry: entry, Score: score})
		}
	}
	m.mu.RUnlock()

	// 按相似度降序，相同分数保持存储遍历的稳定顺序
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates
}

// Invalidate 删除单个条目，返回该条目此前是否存在
func (m *MemoryBackend) Invalidate(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.storage[key]; !ok {
		return false
	}

	delete(m.storage, key)
	delete(m.timestamps, key)

	m.logger.DebugContext(ctx, "内存后端删除条目成功", "key", key)
	return true
}

// ClearAll 清空全部缓存条目
func (m *MemoryBackend) ClearAll(ctx context.Context) bool {
	m.mu.Lock()
	m.storage = make(map[string]*models.CacheEntry)
	m.timestamps = make(map[string]time.Time)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "内存后端已清空全部条目")
	return true
}

// CleanupExpired 清理已超过TTL的过期条目
// 按存储时间计算条目年龄，没有TTL的条目永不过期。
func (m *MemoryBackend) CleanupExpired(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	expiredKeys := make([]string, 0)
	for key, entry := range m.storage {
		if entry.TTLSeconds <= 0 {
			continue
		}

		storedAt, ok := m.timestamps[key]
		if !ok {
			storedAt = now
		}

		if now.Sub(storedAt) > time.Duration(entry.TTLSeconds)*time.Second {
			expiredKeys = append(expiredKeys, key)
		}
	}

	for _, key := range expiredKeys {
		delete(m.storage, key)
		delete(m.timestamps, key)
	}
	m.mu.Unlock()

	if len(expiredKeys) > 0 {
		m.logger.DebugContext(ctx, "内存后端清理过期条目完成", "count", len(expiredKeys))
	}

	return len(expiredKeys)
}

// HealthCheck 报告后端健康状态
func (m *MemoryBackend) HealthCheck(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	entryCount := len(m.storage)
	timestampCount := len(m.timestamps)
	m.mu.RUnlock()

	return map[string]interface{}{
		"storage_healthy": true,
		"entry_count":     entryCount,
		"backend_type":    "memory",
		"timestamp_count": timestampCount,
	}
}

// SetClock 替换时间源，仅用于测试
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.now = now
}
