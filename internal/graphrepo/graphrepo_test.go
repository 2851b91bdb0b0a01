package graphrepo

import (
	"context"
	"testing"
)

func TestMemoryRepo_UpsertAndNeighbors(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()

	_ = r.UpsertNode(ctx, "doc:a", []string{LabelDocument}, nil)
	_ = r.UpsertNode(ctx, "concept:foo", []string{LabelConcept}, nil)
	_ = r.UpsertEdge(ctx, "doc:a", RelMentions, "concept:foo", nil)
	_ = r.UpsertEdge(ctx, "doc:a", RelMentions, "concept:foo", nil) // idempotent

	neighbors, err := r.Neighbors(ctx, "doc:a", RelMentions)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0] != "concept:foo" {
		t.Fatalf("expected single deduped neighbor, got %+v", neighbors)
	}
}

func TestMemoryRepo_GetNode(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	_ = r.UpsertNode(ctx, "doc:a", []string{LabelDocument}, map[string]any{"title": "A"})

	n, ok := r.GetNode(ctx, "doc:a")
	if !ok {
		t.Fatalf("expected node to exist")
	}
	if n.Props["title"] != "A" {
		t.Fatalf("expected props to round-trip, got %+v", n.Props)
	}

	if _, ok := r.GetNode(ctx, "missing"); ok {
		t.Fatalf("expected missing node to report not found")
	}
}

func TestMemoryRepo_DeleteDocumentCascadesButKeepsConcepts(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()

	_ = r.UpsertNode(ctx, "doc:a", []string{LabelDocument}, nil)
	_ = r.UpsertNode(ctx, "sec:a#1", []string{LabelSection}, nil)
	_ = r.UpsertNode(ctx, "chunk:a#1", []string{LabelChunk}, nil)
	_ = r.UpsertNode(ctx, "concept:foo", []string{LabelConcept}, nil)

	_ = r.UpsertEdge(ctx, "doc:a", RelHasSection, "sec:a#1", nil)
	_ = r.UpsertEdge(ctx, "sec:a#1", RelHasChunk, "chunk:a#1", nil)
	_ = r.UpsertEdge(ctx, "chunk:a#1", RelMentions, "concept:foo", nil)

	if err := r.DeleteDocument(ctx, "doc:a"); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	if _, ok := r.GetNode(ctx, "doc:a"); ok {
		t.Fatalf("expected document node removed")
	}
	if _, ok := r.GetNode(ctx, "sec:a#1"); ok {
		t.Fatalf("expected section node removed")
	}
	if _, ok := r.GetNode(ctx, "chunk:a#1"); ok {
		t.Fatalf("expected chunk node removed")
	}
	if _, ok := r.GetNode(ctx, "concept:foo"); !ok {
		t.Fatalf("expected concept node to survive cascade delete")
	}

	neighbors, err := r.Neighbors(ctx, "doc:a", RelHasSection)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(neighbors) != 0 {
		t.Fatalf("expected no dangling edges from deleted document, got %+v", neighbors)
	}
}

func TestExpand_BoundedHops(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()

	chain := []string{"concept:a", "concept:b", "concept:c", "concept:d"}
	for _, id := range chain {
		_ = r.UpsertNode(ctx, id, []string{LabelConcept}, nil)
	}
	for i := 0; i < len(chain)-1; i++ {
		_ = r.UpsertEdge(ctx, chain[i], RelRelatesTo, chain[i+1], nil)
	}

	reached, err := Expand(ctx, r, []string{"concept:a"}, RelRelatesTo, 2)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(reached) != 2 {
		t.Fatalf("expected exactly 2 hops reached, got %+v", reached)
	}
	want := map[string]bool{"concept:b": true, "concept:c": true}
	for _, id := range reached {
		if !want[id] {
			t.Fatalf("unexpected node reached: %s", id)
		}
	}
}

func TestExpand_DeduplicatesDiamond(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"concept:a", "concept:b", "concept:c", "concept:d"} {
		_ = r.UpsertNode(ctx, id, []string{LabelConcept}, nil)
	}
	_ = r.UpsertEdge(ctx, "concept:a", RelRelatesTo, "concept:b", nil)
	_ = r.UpsertEdge(ctx, "concept:a", RelRelatesTo, "concept:c", nil)
	_ = r.UpsertEdge(ctx, "concept:b", RelRelatesTo, "concept:d", nil)
	_ = r.UpsertEdge(ctx, "concept:c", RelRelatesTo, "concept:d", nil)

	reached, err := Expand(ctx, r, []string{"concept:a"}, RelRelatesTo, 3)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	count := 0
	for _, id := range reached {
		if id == "concept:d" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected concept:d reached exactly once, got %d", count)
	}
}

func TestGetChunksByConcept_OneHopViaMentions(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	_ = r.UpsertNode(ctx, "concept:foo", []string{LabelConcept}, nil)
	_ = r.UpsertNode(ctx, "chunk:1", []string{LabelChunk}, nil)
	_ = r.UpsertNode(ctx, "chunk:2", []string{LabelChunk}, nil)
	_ = r.UpsertEdge(ctx, "chunk:1", RelMentions, "concept:foo", nil)
	_ = r.UpsertEdge(ctx, "chunk:2", RelMentions, "concept:foo", nil)

	chunks, err := GetChunksByConcept(ctx, r, "concept:foo")
	if err != nil {
		t.Fatalf("get chunks by concept: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 mentioning chunks, got %+v", chunks)
	}
}

func TestSyncState_RoundTrips(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	if _, ok := r.GetSyncState(ctx, "repo-a"); ok {
		t.Fatalf("expected no sync state before first set")
	}
	if err := r.SetSyncState(ctx, "repo-a", "abc123"); err != nil {
		t.Fatalf("set sync state: %v", err)
	}
	head, ok := r.GetSyncState(ctx, "repo-a")
	if !ok || head != "abc123" {
		t.Fatalf("expected head abc123, got %q (ok=%v)", head, ok)
	}
	_ = r.SetSyncState(ctx, "repo-a", "def456")
	head, _ = r.GetSyncState(ctx, "repo-a")
	if head != "def456" {
		t.Fatalf("expected updated head def456, got %q", head)
	}
}

func TestExpand_ZeroHopsReturnsNothing(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	_ = r.UpsertNode(ctx, "concept:a", []string{LabelConcept}, nil)
	reached, err := Expand(ctx, r, []string{"concept:a"}, RelRelatesTo, 0)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(reached) != 0 {
		t.Fatalf("expected no expansion at zero hops, got %+v", reached)
	}
}
