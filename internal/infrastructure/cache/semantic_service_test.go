package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"semcache/configs"
	"semcache/internal/domain/models"
	"semcache/internal/infrastructure/stores/memory"
)

// fakeEmbedder 按预设词表返回向量的嵌入服务
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	result := make([][]float64, 0, len(texts))
	for _, text := range texts {
		if vec, ok := f.vectors[text]; ok {
			result = append(result, vec)
		} else {
			result = append(result, []float64{1, 0, 0})
		}
	}
	return result, nil
}

func testCacheConfig() *configs.CacheConfig {
	return &configs.CacheConfig{
		Enabled:             true,
		Backend:             "memory",
		SimilarityThreshold: 0.8,
		DefaultTTL:          time.Hour,
		TopK:                5,
		MinQueryLength:      10,
		MinResponseLength:   10,
		FailureIndicators:   []string{"error", "failed", "exception", "sorry, i"},
	}
}

func newTestService(config *configs.CacheConfig, embedder *fakeEmbedder) *SemanticCacheService {
	return NewSemanticCacheService(memory.New(nil), embedder, config, nil)
}

func TestSemanticCacheService_DisabledSkipsEmbedding(t *testing.T) {
	config := testCacheConfig()
	config.Enabled = false
	embedder := &fakeEmbedder{}
	service := newTestService(config, embedder)

	result := service.GetCachedResponse(context.Background(), "what is the capital of france", nil)
	if result.Result != models.ResultMiss {
		t.Errorf("expected miss when disabled, got %s", result.Result)
	}

	if service.CacheResponse(context.Background(), "what is the capital of france", "Paris is the capital of France.", nil) {
		t.Error("expected cache write to be refused when disabled")
	}

	if embedder.calls != 0 {
		t.Errorf("expected embedder never called when disabled, got %d calls", embedder.calls)
	}
}

func TestSemanticCacheService_HitAboveThreshold(t *testing.T) {
	// 两个查询的向量余弦相似度约0.92，超过0.8阈值应命中
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"what is the capital of france":   {1, 0, 0},
		"tell me the capital of france !": {0.92, 0.3919, 0},
	}}
	service := newTestService(testCacheConfig(), embedder)
	ctx := context.Background()

	if !service.CacheResponse(ctx, "what is the capital of france", "Paris is the capital of France.", nil) {
		t.Fatal("expected cache write to succeed")
	}

	result := service.GetCachedResponse(ctx, "tell me the capital of france !", nil)
	if !result.Hit() {
		t.Fatalf("expected hit, got %s", result.Result)
	}

	if result.Entry.Response != "Paris is the capital of France." {
		t.Errorf("unexpected cached response: %s", result.Entry.Response)
	}

	if result.Similarity < 0.8 {
		t.Errorf("expected similarity above threshold, got %f", result.Similarity)
	}
}

func TestSemanticCacheService_MissBelowThreshold(t *testing.T) {
	// 相似度约0.5，低于0.8阈值应未命中
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"what is the capital of france": {1, 0, 0},
		"how do i bake sourdough bread": {0.5, 0.866, 0},
	}}
	service := newTestService(testCacheConfig(), embedder)
	ctx := context.Background()

	service.CacheResponse(ctx, "what is the capital of france", "Paris is the capital of France.", nil)

	result := service.GetCachedResponse(ctx, "how do i bake sourdough bread", nil)
	if result.Result != models.ResultMiss {
		t.Errorf("expected miss for dissimilar query, got %s", result.Result)
	}
}

func TestSemanticCacheService_EmbeddingFailureBecomesError(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("upstream unavailable")}
	service := newTestService(testCacheConfig(), embedder)

	result := service.GetCachedResponse(context.Background(), "what is the capital of france", nil)
	if result.Result != models.ResultError {
		t.Fatalf("expected error result, got %s", result.Result)
	}

	if result.Err == "" {
		t.Error("expected error description to be populated")
	}

	// 写入路径同样吸收错误
	if service.CacheResponse(context.Background(), "what is the capital of france", "Paris is the capital of France.", nil) {
		t.Error("expected cache write to fail when embedding fails")
	}
}

func TestSemanticCacheService_ShouldCachePolicy(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		response string
		metadata map[string]string
		want     bool
	}{
		{
			name:     "well formed response accepted",
			query:    "what is the capital of france",
			response: "Paris is the capital of France.",
			want:     true,
		},
		{
			name:     "empty response rejected",
			query:    "what is the capital of france",
			response: "   ",
			want:     false,
		},
		{
			name:     "short response rejected",
			query:    "what is the capital of france",
			response: "Paris",
			want:     false,
		},
		{
			name:     "short query rejected",
			query:    "hi",
			response: "Hello! How can I help you today?",
			want:     false,
		},
		{
			name:     "failure indicator rejected",
			query:    "what is the capital of france",
			response: "An ERROR occurred while processing your request.",
			want:     false,
		},
		{
			name:     "apology rejected",
			query:    "what is the capital of france",
			response: "Sorry, I cannot answer that question right now.",
			want:     false,
		},
		{
			name:     "metadata opt out rejected",
			query:    "what is the capital of france",
			response: "Paris is the capital of France.",
			metadata: map[string]string{"no_cache": "true"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(testCacheConfig(), &fakeEmbedder{})

			got := service.CacheResponse(context.Background(), tt.query, tt.response, tt.metadata)
			if got != tt.want {
				t.Errorf("CacheResponse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSemanticCacheService_CacheKeyDeterministic(t *testing.T) {
	service := newTestService(testCacheConfig(), &fakeEmbedder{})

	metadata := map[string]string{"agent_id": "agent-1", "model": "gpt-4o"}
	a := service.cacheKey("What is the capital of France", metadata)
	b := service.cacheKey("  what is the capital of france  ", metadata)
	c := service.cacheKey("What is the capital of France", map[string]string{"agent_id": "agent-2"})

	if a != b {
		t.Errorf("expected normalized queries to share a key, got %s and %s", a, b)
	}

	if a == c {
		t.Error("expected different agents to get different keys")
	}

	if len(a) != cacheKeyLength {
		t.Errorf("expected key length %d, got %d", cacheKeyLength, len(a))
	}
}

func TestSemanticCacheService_InvalidateAndClear(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"what is the capital of france": {1, 0, 0},
	}}
	service := newTestService(testCacheConfig(), embedder)
	ctx := context.Background()

	service.CacheResponse(ctx, "what is the capital of france", "Paris is the capital of France.", nil)

	key := service.cacheKey("what is the capital of france", nil)
	if !service.Invalidate(ctx, key) {
		t.Error("expected invalidate to find the stored entry")
	}

	service.CacheResponse(ctx, "what is the capital of france", "Paris is the capital of France.", nil)
	if !service.ClearCache(ctx) {
		t.Error("expected clear to succeed")
	}

	result := service.GetCachedResponse(ctx, "what is the capital of france", nil)
	if result.Result != models.ResultMiss {
		t.Errorf("expected miss after clear, got %s", result.Result)
	}
}

func TestSemanticCacheService_Stats(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"what is the capital of france": {1, 0, 0},
	}}
	service := newTestService(testCacheConfig(), embedder)
	ctx := context.Background()

	service.GetCachedResponse(ctx, "what is the capital of france", nil) // miss
	service.CacheResponse(ctx, "what is the capital of france", "Paris is the capital of France.", nil)
	service.GetCachedResponse(ctx, "what is the capital of france", nil) // hit

	stats := service.GetStats(ctx)
	if stats["hits"] != int64(1) {
		t.Errorf("expected 1 hit, got %v", stats["hits"])
	}

	if stats["misses"] != int64(1) {
		t.Errorf("expected 1 miss, got %v", stats["misses"])
	}

	if stats["stores"] != int64(1) {
		t.Errorf("expected 1 store, got %v", stats["stores"])
	}

	if stats["hit_rate"] != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", stats["hit_rate"])
	}
}

func TestSemanticCacheService_ExpiredEntryNotServed(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"what is the capital of france": {1, 0, 0},
	}}

	config := testCacheConfig()
	config.DefaultTTL = time.Second

	backend := memory.New(nil)
	service := NewSemanticCacheService(backend, embedder, config, nil)
	ctx := context.Background()

	current := time.Now()
	backend.SetClock(func() time.Time { return current })
	service.SetClock(func() time.Time { return current })

	service.CacheResponse(ctx, "what is the capital of france", "Paris is the capital of France.", nil)

	// TTL之内命中
	if result := service.GetCachedResponse(ctx, "what is the capital of france", nil); !result.Hit() {
		t.Fatalf("expected hit before expiry, got %s", result.Result)
	}

	// 时间前进越过TTL，查询触发清理后必须未命中
	current = current.Add(2 * time.Second)

	result := service.GetCachedResponse(ctx, "what is the capital of france", nil)
	if result.Result != models.ResultMiss {
		t.Errorf("expected miss after expiry, got %s", result.Result)
	}
}
