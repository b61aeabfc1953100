package infrastructure

import (
	"context"
	"testing"
)

type cachedSnapshot struct {
	Total int `json:"total"`
}

func TestMemoryCacheMissReturnsNotOK(t *testing.T) {
	cache := NewMemoryCache()

	var dest cachedSnapshot
	_, ok, err := cache.Read(context.Background(), "missing", &dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected cache miss")
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Save(ctx, "fp-1", cachedSnapshot{Total: 42}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var dest cachedSnapshot
	cutoff, ok, err := cache.Read(ctx, "fp-1", &dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if dest.Total != 42 {
		t.Fatalf("expected total 42, got %d", dest.Total)
	}
	if cutoff.IsZero() {
		t.Fatalf("expected non-zero cutoff stamped at write")
	}
}

func TestMemoryCacheSaveOverwritesPreviousEntry(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Save(ctx, "fp-1", cachedSnapshot{Total: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cache.Save(ctx, "fp-1", cachedSnapshot{Total: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var dest cachedSnapshot
	_, ok, err := cache.Read(ctx, "fp-1", &dest)
	if err != nil || !ok {
		t.Fatalf("expected successful read, got ok=%v err=%v", ok, err)
	}
	if dest.Total != 2 {
		t.Fatalf("expected overwritten total 2, got %d", dest.Total)
	}
}
