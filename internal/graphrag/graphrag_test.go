package graphrag

import (
	"context"
	"testing"

	"compendium/internal/graphrepo"
	"compendium/internal/repository"
	"compendium/internal/tenant"
	"compendium/internal/vectorstore"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

type fakeGenerator struct{ calls int }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return "synthesized answer", nil
}

func testTenant() tenant.Key {
	return tenant.Key{Project: "p", Branch: "main", PathHash: "h"}
}

// newFixture wires a store/vectors/graph with two single-chunk documents:
// doc1's chunk has a vector hit and mentions concept "Alpha"; doc2's chunk
// has no vector hit but is reachable only via a RELATES_TO hop from Alpha
// to concept "Beta", which doc2's chunk mentions.
func newFixture(t *testing.T, promotion repository.PromotionLevel) (*Engine, repository.Store) {
	t.Helper()
	ctx := context.Background()
	tk := testTenant()

	store, err := repository.New(ctx, repository.Config{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Documents.Upsert(ctx, repository.CompoundDocument{
		ID: "doc1", TenantKey: tk, FilePath: "a.md", Title: "A", DocType: "doc", PromotionLevel: promotion,
	}); err != nil {
		t.Fatalf("upsert doc1: %v", err)
	}
	if _, err := store.Documents.Upsert(ctx, repository.CompoundDocument{
		ID: "doc2", TenantKey: tk, FilePath: "b.md", Title: "B", DocType: "doc", PromotionLevel: promotion,
	}); err != nil {
		t.Fatalf("upsert doc2: %v", err)
	}
	if _, err := store.Chunks.Upsert(ctx, repository.DocumentChunk{ID: "doc1#0", DocumentID: "doc1", Content: "Alpha concept content."}); err != nil {
		t.Fatalf("upsert chunk1: %v", err)
	}
	if _, err := store.Chunks.Upsert(ctx, repository.DocumentChunk{ID: "doc2#0", DocumentID: "doc2", Content: "Beta concept content."}); err != nil {
		t.Fatalf("upsert chunk2: %v", err)
	}

	vectors := vectorstore.NewMemory(4)
	if err := vectors.Upsert(ctx, "doc1#0", []float32{1, 0, 0, 0}, map[string]string{
		"project_name": tk.Project, "branch_name": tk.Branch, "path_hash": tk.PathHash,
		"document_id": "doc1", "chunk_id": "doc1#0",
	}); err != nil {
		t.Fatalf("upsert vector: %v", err)
	}

	graph := graphrepo.NewMemory()
	for _, call := range []struct {
		id     string
		labels []string
		props  map[string]any
	}{
		{"doc1#0", []string{graphrepo.LabelChunk}, nil},
		{"doc2#0", []string{graphrepo.LabelChunk}, nil},
		{"concept:a", []string{graphrepo.LabelConcept}, map[string]any{"name": "Alpha"}},
		{"concept:b", []string{graphrepo.LabelConcept}, map[string]any{"name": "Beta"}},
	} {
		if err := graph.UpsertNode(ctx, call.id, call.labels, call.props); err != nil {
			t.Fatalf("upsert node %s: %v", call.id, err)
		}
	}
	edges := [][3]string{
		{"doc1#0", graphrepo.RelMentions, "concept:a"},
		{"doc2#0", graphrepo.RelMentions, "concept:b"},
		{"concept:a", graphrepo.RelRelatesTo, "concept:b"},
	}
	for _, e := range edges {
		if err := graph.UpsertEdge(ctx, e[0], e[1], e[2], nil); err != nil {
			t.Fatalf("upsert edge %v: %v", e, err)
		}
	}

	engine := New(Config{
		Embedder:  fakeEmbedder{},
		Vectors:   vectors,
		Store:     store,
		Graph:     graph,
		Generator: &fakeGenerator{},
	})
	return engine, store
}

func TestQuery_ExpandsThroughGraphToSecondDocument(t *testing.T) {
	engine, _ := newFixture(t, repository.PromotionStandard)
	tk := testTenant()

	result, err := engine.Query(context.Background(), tk, "what is alpha", Options{MaxChunks: 2, GraphHops: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 sources (one vector seed, one graph-expanded), got %d: %+v", len(result.Sources), result.Sources)
	}
	if result.Answer == "" {
		t.Fatal("expected a synthesized answer")
	}
	found := false
	for _, c := range result.RelatedConcepts {
		if c == "Beta" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected related_concepts to include the graph-expanded concept, got %v", result.RelatedConcepts)
	}
}

func TestQuery_EmptyRetrievalIsNotAnError(t *testing.T) {
	ctx := context.Background()
	tk := testTenant()
	store, err := repository.New(ctx, repository.Config{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	engine := New(Config{
		Embedder:  fakeEmbedder{},
		Vectors:   vectorstore.NewMemory(4),
		Store:     store,
		Graph:     graphrepo.NewMemory(),
		Generator: &fakeGenerator{},
	})

	result, err := engine.Query(ctx, tk, "anything", Options{})
	if err != nil {
		t.Fatalf("expected no error on empty retrieval, got %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", result.Sources)
	}
	if result.Answer == "" {
		t.Fatal("expected an insufficient-evidence answer, got empty string")
	}
}

func TestQuery_RejectsPartialTenantKey(t *testing.T) {
	engine, _ := newFixture(t, repository.PromotionStandard)
	_, err := engine.Query(context.Background(), tenant.Key{Project: "only"}, "q", Options{})
	if err == nil {
		t.Fatal("expected an error for an incomplete tenant key")
	}
}

func TestQuery_PromotionFloorFiltersOutStandardDocuments(t *testing.T) {
	engine, _ := newFixture(t, repository.PromotionStandard)
	tk := testTenant()

	result, err := engine.Query(context.Background(), tk, "what is alpha", Options{
		MaxChunks: 2, GraphHops: 1, PromotionFloor: repository.PromotionImportant,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected standard-promotion documents to be filtered by the floor, got %v", result.Sources)
	}
}
