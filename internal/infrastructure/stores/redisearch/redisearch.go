package redisearch

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"semcache/configs"
	"semcache/internal/domain/models"
	"semcache/internal/domain/repositories"
	"semcache/pkg/logger"
)

// 索引字段名
const (
	fieldKey       = "key"
	fieldResponse  = "response"
	fieldMetadata  = "metadata"
	fieldEmbedding = "embedding"
	fieldTTL       = "ttl_seconds"
	fieldCreatedAt = "created_at"

	distanceAlias = "vector_distance"
)

// RedisearchBackend Redis向量索引缓存后端
// 基于 RediSearch 的近似最近邻索引（HNSW）实现相似度搜索。
// 条目以Hash形式存储在可配置的键前缀下，TTL通过Redis原生过期
// 机制落实。所有操作捕获Redis错误并降级为空结果/失败返回，
// 不向调用方传播。
type RedisearchBackend struct {
	client *redis.Client
	config *configs.RedisConfig
	logger logger.Logger

	// 索引延迟创建，首次使用时建立
	indexMu    sync.Mutex
	indexReady bool
}

// New 创建Redis向量索引后端
func New(client *redis.Client, config *configs.RedisConfig, log logger.Logger) *RedisearchBackend {
	if log == nil {
		log = logger.GetDefault()
	}

	return &RedisearchBackend{
		client: client,
		config: config,
		logger: log,
	}
}

var _ repositories.CacheBackend = (*RedisearchBackend)(nil)

// StoreEntry 以Hash形式写入条目并建立向量索引
// TTL通过Redis原生EXPIRE设置；created_at与ttl_seconds同时落库，
// 供一致性清扫使用。
func (r *RedisearchBackend) StoreEntry(ctx context.Context, key string, entry *models.CacheEntry) bool {
	if key == "" || entry == nil {
		r.logger.WarnContext(ctx, "拒绝存储非法缓存条目", "key", key)
		return false
	}

	if err := r.ensureIndex(ctx); err != nil {
		r.logger.ErrorContext(ctx, "向量索引不可用，存储失败", "key", key, "error", err)
		return false
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		r.logger.ErrorContext(ctx, "序列化元数据失败", "key", key, "error", err)
		return false
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	redisKey := r.config.KeyPrefix + key
	data := map[string]interface{}{
		fieldKey:       key,
		fieldResponse:  entry.Response,
		fieldMetadata:  string(metadataJSON),
		fieldEmbedding: floatsToBytes(entry.Embedding),
		fieldTTL:       entry.TTLSeconds,
		fieldCreatedAt: createdAt.Unix(),
	}

	if err := r.client.HSet(ctx, redisKey, data).Err(); err != nil {
		r.logger.ErrorContext(ctx, "Redis后端存储条目失败", "key", key, "error", err)
		return false
	}

	if entry.TTLSeconds > 0 {
		ttl := time.Duration(entry.TTLSeconds) * time.Second
		if err := r.client.Expire(ctx, redisKey, ttl).Err(); err != nil {
			r.logger.WarnContext(ctx, "设置条目过期时间失败", "key", key, "error", err)
		}
	}

	r.logger.DebugContext(ctx, "Redis后端存储条目成功", "key", key)
	return true
}

// SearchSimilar 执行KNN向量查询
// 将存储返回的余弦距离转换为相似度（similarity = 1 - distance），
// 按阈值过滤后降序返回。重建的条目复用查询向量而非原始存储向量，
// 因为索引查询不回传原始向量数据。
func (r *RedisearchBackend) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) []models.SimilarityMatch {
	if len(embedding) == 0 || limit <= 0 {
		return nil
	}

	if err := r.ensureIndex(ctx); err != nil {
		r.logger.ErrorContext(ctx, "向量索引不可用，搜索降级为空结果", "error", err)
		return nil
	}

	knnQuery := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", limit, fieldEmbedding, distanceAlias)

	result, err := r.client.FTSearchWithArgs(ctx,
		r.config.IndexName,
		knnQuery,
		&redis.FTSearchOptions{
			Return: []redis.FTSearchReturn{
				{FieldName: fieldKey},
				{FieldName: fieldResponse},
				{FieldName: fieldMetadata},
				{FieldName: fieldTTL},
				{FieldName: fieldCreatedAt},
				{FieldName: distanceAlias},
			},
			SortBy: []redis.FTSearchSortBy{
				{FieldName: distanceAlias, Asc: true},
			},
			DialectVersion: 2,
			LimitOffset:    0,
			Limit:          limit,
			Params: map[string]interface{}{
				"vec": floatsToBytes(embedding),
			},
		},
	).Result()
	if err != nil {
		r.logger.ErrorContext(ctx, "Redis向量搜索失败，降级为空结果", "error", err)
		return nil
	}

	candidates := make([]models.SimilarityMatch, 0, len(result.Docs))
	for _, doc := range result.Docs {
		distanceStr, ok := doc.Fields[distanceAlias]
		if !ok {
			continue
		}

		distance, err := strconv.ParseFloat(distanceStr, 64)
		if err != nil {
			r.logger.WarnContext(ctx, "解析向量距离失败", "doc_id", doc.ID, "value", distanceStr)
			continue
		}

		// 归一化余弦距离转相似度
		similarity := 1.0 - distance
		if similarity < threshold {
			continue
		}

		entry := r.reconstructEntry(ctx, doc.Fields, embedding)
		candidates = append(candidates, models.SimilarityMatch{Entry: entry, Score: similarity})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	r.logger.DebugContext(ctx, "Redis向量搜索完成",
		"total", result.Total,
		"above_threshold", len(candidates),
		"threshold", threshold)

	return candidates
}

// Invalidate 删除单个条目，返回该条目此前是否存在
func (r *RedisearchBackend) Invalidate(ctx context.Context, key string) bool {
	removed, err := r.client.Del(ctx, r.config.KeyPrefix+key).Result()
	if err != nil {
		r.logger.ErrorContext(ctx, "Redis后端删除条目失败", "key", key, "error", err)
		return false
	}

	return removed > 0
}

// ClearAll 删除键前缀下的全部条目
func (r *RedisearchBackend) ClearAll(ctx context.Context) bool {
	keys, err := r.client.Keys(ctx, r.config.KeyPrefix+"*").Result()
	if err != nil {
		r.logger.ErrorContext(ctx, "Redis后端枚举条目失败", "error", err)
		return false
	}

	if len(keys) == 0 {
		return true
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.ErrorContext(ctx, "Redis后端清空条目失败", "count", len(keys), "error", err)
		return false
	}

	r.logger.DebugContext(ctx, "Redis后端已清空条目", "count", len(keys))
	return true
}

// CleanupExpired 一致性清扫
// Redis原生过期机制是TTL的主要执行者，这里额外按created_at与
// ttl_seconds做一次校验清理，兜底原生过期未覆盖的情况。
func (r *RedisearchBackend) CleanupExpired(ctx context.Context) int {
	keys, err := r.client.Keys(ctx, r.config.KeyPrefix+"*").Result()
	if err != nil {
		r.logger.ErrorContext(ctx, "Redis后端枚举条目失败", "error", err)
		return 0
	}

	now := time.Now().Unix()
	expired := 0

	for _, redisKey := range keys {
		data, err := r.client.HGetAll(ctx, redisKey).Result()
		if err != nil || len(data) == 0 {
			continue
		}

		ttlSeconds, err := strconv.Atoi(data[fieldTTL])
		if err != nil || ttlSeconds <= 0 {
			continue
		}

		createdAt, err := strconv.ParseInt(data[fieldCreatedAt], 10, 64)
		if err != nil {
			continue
		}

		if now-createdAt > int64(ttlSeconds) {
			if err := r.client.Del(ctx, redisKey).Err(); err == nil {
				expired++
			}
		}
	}

	if expired > 0 {
		r.logger.DebugContext(ctx, "Redis后端清理过期条目完成", "count", expired)
	}

	return expired
}

// HealthCheck 报告后端健康状态
func (r *RedisearchBackend) HealthCheck(ctx context.Context) map[string]interface{} {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return map[string]interface{}{
			"storage_healthy": false,
			"entry_count":     0,
			"backend_type":    "redis",
			"index_healthy":   false,
			"error":           err.Error(),
		}
	}

	entryCount := 0
	if keys, err := r.client.Keys(ctx, r.config.KeyPrefix+"*").Result(); err == nil {
		entryCount = len(keys)
	}

	indexHealthy := false
	if _, err := r.client.FTInfo(ctx, r.config.IndexName).Result(); err == nil {
		indexHealthy = true
	}

	return map[string]interface{}{
		"storage_healthy": true,
		"entry_count":     entryCount,
		"backend_type":    "redis",
		"index_healthy":   indexHealthy,
		"index_name":      r.config.IndexName,
		"vector_dims":     r.config.VectorDims,
	}
}

// ensureIndex 确保向量索引存在
// 首次使用时创建索引结构，"Index already exists" 视为成功。
func (r *RedisearchBackend) ensureIndex(ctx context.Context) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	if r.indexReady {
		return nil
	}

	vectorArgs := r.buildVectorArgs()

	_, err := r.client.FTCreate(ctx,
		r.config.IndexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{r.config.KeyPrefix},
		},
		&redis.FieldSchema{
			FieldName: fieldKey,
			FieldType: redis.SearchFieldTypeText,
		},
		&redis.FieldSchema{
			FieldName: fieldResponse,
			FieldType: redis.SearchFieldTypeText,
			NoIndex:   true,
		},
		&redis.FieldSchema{
			FieldName: fieldMetadata,
			FieldType: redis.SearchFieldTypeText,
			NoIndex:   true,
		},
		&redis.FieldSchema{
			FieldName:  fieldEmbedding,
			FieldType:  redis.SearchFieldTypeVector,
			VectorArgs: vectorArgs,
		},
		&redis.FieldSchema{
			FieldName: fieldTTL,
			FieldType: redis.SearchFieldTypeNumeric,
		},
		&redis.FieldSchema{
			FieldName: fieldCreatedAt,
			FieldType: redis.SearchFieldTypeNumeric,
		},
	).Result()
	if err != nil {
		if strings.Contains(err.Error(), "Index already exists") {
			r.indexReady = true
			r.logger.DebugContext(ctx, "复用已存在的向量索引", "index", r.config.IndexName)
			return nil
		}
		return fmt.Errorf("failed to create vector index %s: %w", r.config.IndexName, err)
	}

	r.indexReady = true
	r.logger.InfoContext(ctx, "向量索引创建成功",
		"index", r.config.IndexName,
		"algorithm", r.config.Algorithm,
		"dims", r.config.VectorDims)
	return nil
}

// buildVectorArgs 根据配置构造向量字段参数
func (r *RedisearchBackend) buildVectorArgs() *redis.FTVectorArgs {
	metric := r.config.DistanceMetric
	if metric == "" {
		metric = "COSINE"
	}

	if r.config.Algorithm == "FLAT" {
		return &redis.FTVectorArgs{
			FlatOptions: &redis.FTFlatOptions{
				Type:           "FLOAT32",
				Dim:            r.config.VectorDims,
				DistanceMetric: metric,
			},
		}
	}

	return &redis.FTVectorArgs{
		HNSWOptions: &redis.FTHNSWOptions{
			Type:           "FLOAT32",
			Dim:            r.config.VectorDims,
			DistanceMetric: metric,
		},
	}
}

// reconstructEntry 从查询返回的字段重建缓存条目
// 索引查询不回传原始向量，条目复用查询向量。
func (r *RedisearchBackend) reconstructEntry(ctx context.Context, fields map[string]string, queryEmbedding []float32) *models.CacheEntry {
	entry := &models.CacheEntry{
		Key:       fields[fieldKey],
		Response:  fields[fieldResponse],
		Embedding: queryEmbedding,
	}

	if metadataJSON := fields[fieldMetadata]; metadataJSON != "" {
		metadata := make(map[string]string)
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			r.logger.WarnContext(ctx, "解析条目元数据失败", "key", entry.Key, "error", err)
		} else {
			entry.Metadata = metadata
		}
	}

	if ttlSeconds, err := strconv.Atoi(fields[fieldTTL]); err == nil {
		entry.TTLSeconds = ttlSeconds
	}

	if createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); err == nil {
		entry.CreatedAt = time.Unix(createdAt, 0)
	}

	return entry
}

// floatsToBytes 将float32向量编码为RediSearch要求的小端字节序
func floatsToBytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
