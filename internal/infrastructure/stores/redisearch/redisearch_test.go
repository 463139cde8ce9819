package redisearch

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"semcache/configs"
	"semcache/internal/domain/models"
)

func newTestBackend(t *testing.T) (*RedisearchBackend, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	config := &configs.RedisConfig{
		Addr:           mr.Addr(),
		IndexName:      "test_idx",
		KeyPrefix:      "semcache:",
		VectorDims:     3,
		Algorithm:      "HNSW",
		DistanceMetric: "COSINE",
	}

	return New(client, config, nil), mr, client
}

// seedEntry 直接写入Hash记录，绕过需要RediSearch模块的索引创建
func seedEntry(t *testing.T, client *redis.Client, prefix, key string, createdAt int64, ttlSeconds int) {
	t.Helper()

	err := client.HSet(context.Background(), prefix+key, map[string]interface{}{
		fieldKey:       key,
		fieldResponse:  "stored response for " + key,
		fieldMetadata:  `{"agent_id":"agent-1"}`,
		fieldEmbedding: floatsToBytes([]float32{1, 0, 0}),
		fieldTTL:       ttlSeconds,
		fieldCreatedAt: createdAt,
	}).Err()
	if err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
}

func TestRedisearchBackend_SearchDegradesWithoutIndex(t *testing.T) {
	// miniredis不支持FT命令，搜索必须降级为空结果而不是报错
	backend, _, _ := newTestBackend(t)

	matches := backend.SearchSimilar(context.Background(), []float32{1, 0, 0}, 0.8, 5)
	if matches != nil {
		t.Errorf("expected nil result when vector index is unavailable, got %d matches", len(matches))
	}
}

func TestRedisearchBackend_StoreFailsWithoutIndex(t *testing.T) {
	// 索引创建失败时存储必须降级为false，绝不panic
	backend, _, _ := newTestBackend(t)

	entry := &models.CacheEntry{
		Key:       "k1",
		Response:  "some cached response",
		Embedding: []float32{1, 0, 0},
		CreatedAt: time.Now(),
	}

	if backend.StoreEntry(context.Background(), "k1", entry) {
		t.Error("expected store to fail when index cannot be created")
	}
}

func TestRedisearchBackend_Invalidate(t *testing.T) {
	backend, _, client := newTestBackend(t)
	ctx := context.Background()

	seedEntry(t, client, backend.config.KeyPrefix, "k1", time.Now().Unix(), 0)

	if !backend.Invalidate(ctx, "k1") {
		t.Error("expected invalidate to report entry existed")
	}

	if backend.Invalidate(ctx, "k1") {
		t.Error("expected second invalidate to report entry missing")
	}
}

func TestRedisearchBackend_ClearAll(t *testing.T) {
	backend, _, client := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedEntry(t, client, backend.config.KeyPrefix, fmt.Sprintf("k%d", i), time.Now().Unix(), 0)
	}

	// 前缀之外的键不受影响
	if err := client.Set(ctx, "other:key", "value", 0).Err(); err != nil {
		t.Fatalf("failed to set unrelated key: %v", err)
	}

	if !backend.ClearAll(ctx) {
		t.Fatal("expected clear to succeed")
	}

	keys, err := client.Keys(ctx, backend.config.KeyPrefix+"*").Result()
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected all prefixed keys removed, found %d", len(keys))
	}

	if exists, _ := client.Exists(ctx, "other:key").Result(); exists != 1 {
		t.Error("expected unrelated key to survive clear")
	}
}

func TestRedisearchBackend_CleanupExpired(t *testing.T) {
	backend, _, client := newTestBackend(t)
	ctx := context.Background()

	now := time.Now().Unix()
	seedEntry(t, client, backend.config.KeyPrefix, "expired", now-10, 1)
	seedEntry(t, client, backend.config.KeyPrefix, "fresh", now, 3600)
	seedEntry(t, client, backend.config.KeyPrefix, "no-ttl", now-100000, 0)

	removed := backend.CleanupExpired(ctx)
	if removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}

	if exists, _ := client.Exists(ctx, backend.config.KeyPrefix+"expired").Result(); exists != 0 {
		t.Error("expected expired entry to be deleted")
	}

	if exists, _ := client.Exists(ctx, backend.config.KeyPrefix+"fresh").Result(); exists != 1 {
		t.Error("expected fresh entry to survive cleanup")
	}

	if exists, _ := client.Exists(ctx, backend.config.KeyPrefix+"no-ttl").Result(); exists != 1 {
		t.Error("expected entry without ttl to survive cleanup")
	}
}

func TestRedisearchBackend_HealthCheck(t *testing.T) {
	backend, mr, client := newTestBackend(t)
	ctx := context.Background()

	seedEntry(t, client, backend.config.KeyPrefix, "k1", time.Now().Unix(), 0)

	health := backend.HealthCheck(ctx)
	if health["storage_healthy"] != true {
		t.Error("expected storage_healthy true while redis is reachable")
	}

	if health["backend_type"] != "redis" {
		t.Errorf("expected backend_type redis, got %v", health["backend_type"])
	}

	if health["entry_count"] != 1 {
		t.Errorf("expected entry_count 1, got %v", health["entry_count"])
	}

	// miniredis没有RediSearch模块，索引不可用
	if health["index_healthy"] != false {
		t.Error("expected index_healthy false without RediSearch module")
	}

	// 连接断开后健康检查必须报告不可用而不是panic
	mr.Close()

	health = backend.HealthCheck(ctx)
	if health["storage_healthy"] != false {
		t.Error("expected storage_healthy false after connection loss")
	}
}

func TestFloatsToBytes(t *testing.T) {
	values := []float32{1.0, -0.5, 0.25}
	buf := floatsToBytes(values)

	if len(buf) != len(values)*4 {
		t.Fatalf("expected %d bytes, got %d", len(values)*4, len(buf))
	}

	for i, want := range values {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		if got != want {
			t.Errorf("value %d: expected %f, got %f", i, want, got)
		}
	}
}
