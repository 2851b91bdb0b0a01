package embedding

import (
	"context"
	"testing"
	"time"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Name() string   { return "counting" }
func (c *countingEmbedder) Dimension() int { return 2 }
func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2}
	}
	return out, nil
}

func TestCache_HitAvoidsRecompute(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner, 10, time.Hour)
	ctx := context.Background()

	if _, err := cache.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", inner.calls)
	}

	if _, err := cache.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected cache hit to avoid a second backend call, got %d calls", inner.calls)
	}
}

func TestCache_PartialHitOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner, 10, time.Hour)
	ctx := context.Background()

	if _, err := cache.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := cache.EmbedBatch(ctx, []string{"a", "c"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 backend calls (1 initial + 1 for the miss), got %d", inner.calls)
	}
}

func TestCache_EvictsLRUBeyondMaxEntries(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner, 2, time.Hour)
	ctx := context.Background()

	if _, err := cache.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.EmbedBatch(ctx, []string{"b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.EmbedBatch(ctx, []string{"c"}); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", cache.Len())
	}
}

func TestCache_SweepExpiredRemovesStaleEntries(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner, 10, time.Millisecond)
	ctx := context.Background()

	if _, err := cache.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries before sweep, got %d", cache.Len())
	}

	removed := cache.SweepExpired(time.Now().Add(time.Second))
	if removed != 2 {
		t.Fatalf("expected 2 entries swept, got %d", removed)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected 0 entries after sweep, got %d", cache.Len())
	}
}

func TestCache_SweepExpiredIsNoopWithoutTTL(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner, 10, 0)
	ctx := context.Background()

	if _, err := cache.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if removed := cache.SweepExpired(time.Now().Add(time.Hour)); removed != 0 {
		t.Fatalf("expected no-ttl cache to never sweep, got %d removed", removed)
	}
}

func TestCache_ExpiresByTTL(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner, 10, time.Millisecond)
	ctx := context.Background()

	if _, err := cache.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected expired entry to trigger recompute, got %d calls", inner.calls)
	}
}
