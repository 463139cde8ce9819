package qdrant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	qdrantpb "github.com/qdrant/go-client/qdrant"
)

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("cache-key-1")
	b := pointID("cache-key-1")
	c := pointID("cache-key-2")

	if a != b {
		t.Errorf("expected identical keys to map to the same point id, got %s and %s", a, b)
	}

	if a == c {
		t.Error("expected different keys to map to different point ids")
	}

	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected point id to be a valid uuid, got %s: %v", a, err)
	}
}

func TestEntryFromPayload(t *testing.T) {
	backend := NewBackend(nil, nil)
	createdAt := time.Now().Truncate(time.Second)

	payload := qdrantpb.NewValueMap(map[string]interface{}{
		payloadKey:       "k1",
		payloadResponse:  "stored response text",
		payloadMetadata:  `{"agent_id":"agent-1","model":"gpt-4o"}`,
		payloadTTL:       int64(3600),
		payloadCreatedAt: createdAt.Unix(),
	})

	queryVec := []float32{0.1, 0.2, 0.3}
	entry := backend.entryFromPayload(context.Background(), payload, queryVec)
	if entry == nil {
		t.Fatal("expected entry to be reconstructed")
	}

	if entry.Key != "k1" {
		t.Errorf("expected key k1, got %s", entry.Key)
	}

	if entry.Response != "stored response text" {
		t.Errorf("unexpected response: %s", entry.Response)
	}

	if entry.Metadata["agent_id"] != "agent-1" || entry.Metadata["model"] != "gpt-4o" {
		t.Errorf("unexpected metadata: %v", entry.Metadata)
	}

	if entry.TTLSeconds != 3600 {
		t.Errorf("expected ttl 3600, got %d", entry.TTLSeconds)
	}

	if !entry.CreatedAt.Equal(createdAt) {
		t.Errorf("expected created_at %v, got %v", createdAt, entry.CreatedAt)
	}

	// 条目向量复用查询向量
	if len(entry.Embedding) != len(queryVec) {
		t.Errorf("expected query embedding to be reused, got %d dims", len(entry.Embedding))
	}
}

func TestEntryFromPayload_MissingFields(t *testing.T) {
	backend := NewBackend(nil, nil)

	payload := qdrantpb.NewValueMap(map[string]interface{}{
		payloadKey: "k1",
	})

	if entry := backend.entryFromPayload(context.Background(), payload, nil); entry != nil {
		t.Error("expected entry without response to be rejected")
	}

	if entry := backend.entryFromPayload(context.Background(), nil, nil); entry != nil {
		t.Error("expected nil payload to be rejected")
	}
}

func TestEntryFromPayload_BadMetadata(t *testing.T) {
	backend := NewBackend(nil, nil)

	payload := qdrantpb.NewValueMap(map[string]interface{}{
		payloadKey:       "k1",
		payloadResponse:  "stored response text",
		payloadMetadata:  "not json at all",
		payloadTTL:       int64(0),
		payloadCreatedAt: time.Now().Unix(),
	})

	entry := backend.entryFromPayload(context.Background(), payload, nil)
	if entry == nil {
		t.Fatal("expected entry with broken metadata to still be usable")
	}

	if entry.Metadata != nil {
		t.Errorf("expected metadata to be dropped when unparseable, got %v", entry.Metadata)
	}
}
