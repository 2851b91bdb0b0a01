package vectorstore

import (
	"context"
	"testing"
)

func TestMemory_SimilaritySearch_OrdersByScore(t *testing.T) {
	s := NewMemory(2)
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"project": "p1"})
	_ = s.Upsert(ctx, "b", []float32{0, 1}, map[string]string{"project": "p1"})
	_ = s.Upsert(ctx, "c", []float32{0.9, 0.1}, map[string]string{"project": "p1"})

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Fatalf("expected exact match 'a' first, got %q", results[0].ID)
	}
}

func TestMemory_SimilaritySearch_FiltersByMetadata(t *testing.T) {
	s := NewMemory(2)
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"project": "p1"})
	_ = s.Upsert(ctx, "b", []float32{1, 0}, map[string]string{"project": "p2"})

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, map[string]string{"project": "p2"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Fatalf("expected only tenant p2's vector, got %+v", results)
	}
}

func TestMemory_Delete(t *testing.T) {
	s := NewMemory(2)
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, nil)
	_ = s.Delete(ctx, "a")

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after delete, got %+v", results)
	}
}
