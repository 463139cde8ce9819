package qdrant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	qdrantpb "github.com/qdrant/go-client/qdrant"

	"semcache/internal/domain/models"
	"semcache/internal/domain/repositories"
	"semcache/pkg/logger"
)

// payload字段名
const (
	payloadKey       = "cache_key"
	payloadResponse  = "response"
	payloadMetadata  = "metadata"
	payloadTTL       = "ttl_seconds"
	payloadCreatedAt = "created_at"
)

// scrollPageSize 过期清理时分页遍历的页大小
const scrollPageSize = 256

// QdrantBackend Qdrant向量数据库缓存后端
// 缓存键通过UUIDv5映射为确定性的点ID，同一个键重复存储时覆盖旧点。
// 所有方法遵循存储接口"永不报错"的约定，失败时记录日志并返回降级结果。
type QdrantBackend struct {
	client *Client
	logger logger.Logger

	// now 时间源，测试时可替换
	now func() time.Time
}

// NewBackend 创建Qdrant缓存后端
func NewBackend(client *Client, log logger.Logger) *QdrantBackend {
	if log == nil {
		log = logger.GetDefault()
	}

	return &QdrantBackend{
		client: client,
		logger: log,
		now:    time.Now,
	}
}

var _ repositories.CacheBackend = (*QdrantBackend)(nil)

// pointID 将缓存键映射为确定性的UUID点ID
// Qdrant只接受UUID或整数作为点ID，用UUIDv5保证同键同ID。
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("semcache:"+key)).String()
}

// StoreEntry 将缓存条目写入Qdrant集合
func (q *QdrantBackend) StoreEntry(ctx context.Context, key string, entry *models.CacheEntry) bool {
	if key == "" || entry == nil {
		q.logger.WarnContext(ctx, "拒绝存储非法缓存条目", "key", key)
		return false
	}

	metadataJSON := "{}"
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			q.logger.WarnContext(ctx, "序列化条目元数据失败，将以空元数据存储",
				"key", key, "error", err)
		} else {
			metadataJSON = string(raw)
		}
	}

	payload := map[string]interface{}{
		payloadKey:       key,
		payloadResponse:  entry.Response,
		payloadMetadata:  metadataJSON,
		payloadTTL:       int64(entry.TTLSeconds),
		payloadCreatedAt: entry.CreatedAt.Unix(),
	}

	if err := q.client.UpsertPoint(ctx, pointID(key), entry.Embedding, payload); err != nil {
		q.logger.ErrorContext(ctx, "Qdrant后端存储条目失败", "key", key, "error", err)
		return false
	}

	q.logger.DebugContext(ctx, "Qdrant后端存储条目成功", "key", key)
	return true
}

// SearchSimilar 基于余弦相似度搜索近似条目
// Qdrant的cosine得分即相似度，直接用阈值做ScoreThreshold下推。
// 查询向量会被复用为返回条目的向量，原始存储向量不回读。
func (q *QdrantBackend) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) []models.SimilarityMatch {
	if len(embedding) == 0 || limit <= 0 {
		return nil
	}

	scoreThreshold := float32(threshold)
	points, err := q.client.SearchPoints(ctx, embedding, uint64(limit), &scoreThreshold)
	if err != nil {
		q.logger.ErrorContext(ctx, "Qdrant后端相似度搜索失败", "error", err)
		return nil
	}

	matches := make([]models.SimilarityMatch, 0, len(points))
	for _, point := range points {
		entry := q.entryFromPayload(ctx, point.Payload, embedding)
		if entry == nil {
			continue
		}

		matches = append(matches, models.SimilarityMatch{
			Entry: entry,
			Score: float64(point.Score),
		})
	}

	return matches
}

// Invalidate 删除单个条目，返回该条目此前是否存在
func (q *QdrantBackend) Invalidate(ctx context.Context, key string) bool {
	id := pointID(key)

	exists, err := q.client.PointExists(ctx, id)
	if err != nil {
		q.logger.ErrorContext(ctx, "Qdrant后端查询条目失败", "key", key, "error", err)
		return false
	}

	if !exists {
		return false
	}

	if err := q.client.DeleteBatch(ctx, []string{id}); err != nil {
		q.logger.ErrorContext(ctx, "Qdrant后端删除条目失败", "key", key, "error", err)
		return false
	}

	q.logger.DebugContext(ctx, "Qdrant后端删除条目成功", "key", key)
	return true
}

// ClearAll 清空集合中的全部条目
func (q *QdrantBackend) ClearAll(ctx context.Context) bool {
	if err := q.client.DeleteAll(ctx); err != nil {
		q.logger.ErrorContext(ctx, "Qdrant后端清空缓存失败", "error", err)
		return false
	}

	q.logger.DebugContext(ctx, "Qdrant后端已清空全部条目")
	return true
}

// CleanupExpired 分页遍历集合并删除超过TTL的条目
// 没有TTL的条目永不过期。遍历中途出错时返回已删除的数量。
func (q *QdrantBackend) CleanupExpired(ctx context.Context) int {
	now := q.now().Unix()
	removed := 0

	var offset *qdrantpb.PointId
	for {
		points, next, err := q.client.ScrollPoints(ctx, scrollPageSize, offset)
		if err != nil {
			q.logger.ErrorContext(ctx, "Qdrant后端遍历条目失败", "error", err)
			return removed
		}

		expiredIDs := make([]string, 0)
		for _, point := range points {
			ttl := payloadInt64(point.Payload, payloadTTL)
			if ttl <= 0 {
				continue
			}

			createdAt := payloadInt64(point.Payload, payloadCreatedAt)
			if now-createdAt > ttl {
				expiredIDs = append(expiredIDs, pointIDString(point.Id))
			}
		}

		if len(expiredIDs) > 0 {
			if err := q.client.DeleteBatch(ctx, expiredIDs); err != nil {
				q.logger.ErrorContext(ctx, "Qdrant后端删除过期条目失败", "error", err)
				return removed
			}
			removed += len(expiredIDs)
		}

		if next == nil {
			break
		}
		offset = next
	}

	if removed > 0 {
		q.logger.DebugContext(ctx, "Qdrant后端清理过期条目完成", "count", removed)
	}

	return removed
}

// HealthCheck 报告后端健康状态
func (q *QdrantBackend) HealthCheck(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"storage_healthy": false,
		"entry_count":     0,
		"backend_type":    "qdrant",
		"collection":      q.client.collection,
	}

	if err := q.client.HealthCheck(ctx); err != nil {
		q.logger.WarnContext(ctx, "Qdrant后端健康检查失败", "error", err)
		return health
	}
	health["storage_healthy"] = true

	count, err := q.client.CountPoints(ctx)
	if err != nil {
		q.logger.WarnContext(ctx, "Qdrant后端统计条目数量失败", "error", err)
		return health
	}
	health["entry_count"] = int(count)

	return health
}

// entryFromPayload 从点payload还原缓存条目
// 向量不从Qdrant回读，直接复用调用方的查询向量。
func (q *QdrantBackend) entryFromPayload(ctx context.Context, payload map[string]*qdrantpb.Value, queryEmbedding []float32) *models.CacheEntry {
	key := payloadString(payload, payloadKey)
	response := payloadString(payload, payloadResponse)
	if key == "" || response == "" {
		q.logger.WarnContext(ctx, "跳过缺少必要字段的Qdrant记录", "key", key)
		return nil
	}

	var metadata map[string]string
	if raw := payloadString(payload, payloadMetadata); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			q.logger.WarnContext(ctx, "解析条目元数据失败", "key", key, "error", err)
			metadata = nil
		}
	}

	return &models.CacheEntry{
		Key:        key,
		Response:   response,
		Embedding:  queryEmbedding,
		Metadata:   metadata,
		TTLSeconds: int(payloadInt64(payload, payloadTTL)),
		CreatedAt:  time.Unix(payloadInt64(payload, payloadCreatedAt), 0),
	}
}

// SetClock 替换时间源，仅用于测试
func (q *QdrantBackend) SetClock(now func() time.Time) {
	q.now = now
}

func payloadString(payload map[string]*qdrantpb.Value, field string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[field]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt64(payload map[string]*qdrantpb.Value, field string) int64 {
	if payload == nil {
		return 0
	}
	if v, ok := payload[field]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
