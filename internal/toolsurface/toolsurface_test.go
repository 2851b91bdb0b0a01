package toolsurface

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"compendium/internal/doctype"
	"compendium/internal/errs"
	"compendium/internal/eventbus"
	"compendium/internal/graphrag"
	"compendium/internal/graphrepo"
	"compendium/internal/indexer"
	"compendium/internal/linkgraph"
	"compendium/internal/repository"
	"compendium/internal/session"
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
func (fakeEmbedder) Name() string   { return "fake" }
func (fakeEmbedder) Dimension() int { return 4 }

type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "synthesized answer", nil
}

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	ctx := context.Background()

	store, err := repository.New(ctx, repository.Config{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	registry := doctype.NewRegistry()
	if err := registry.Register(doctype.Definition{ID: "doc", DefaultPromotion: "standard"}); err != nil {
		t.Fatalf("register doc type: %v", err)
	}
	bus := eventbus.New(nil)
	t.Cleanup(bus.Close)

	vectors := vectorstore.NewMemory(4)
	graph := graphrepo.NewMemory()

	ix := indexer.New(indexer.Config{
		DocTypes:       registry,
		Embedder:       fakeEmbedder{},
		Store:          store,
		Vectors:        vectors,
		Graph:          graph,
		Links:          linkgraph.NewGraph(),
		Bus:            bus,
		LenientDocType: true,
	})

	engine := graphrag.New(graphrag.Config{
		Embedder:  fakeEmbedder{},
		Vectors:   vectors,
		Store:     store,
		Graph:     graph,
		Generator: fakeGenerator{},
	})

	return New(Surface{
		Session:  session.NewManager(store),
		Indexer:  ix,
		Store:    store,
		Vectors:  vectors,
		Embedder: fakeEmbedder{},
		DocTypes: registry,
		Engine:   engine,
	})
}

func activateTestProject(t *testing.T, s *Surface) ActivateProjectResult {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "compendium.yaml")
	body := "project: proj1\nroot_path: " + dir + "\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	res, err := s.ActivateProject(context.Background(), configPath, "main")
	if err != nil {
		t.Fatalf("ActivateProject: %v", err)
	}
	return res
}

func TestActivateThenIndex(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()

	sc := activateTestProject(t, s)
	if !sc.IsActive || sc.ProjectName != "proj1" || sc.ActiveBranch != "main" {
		t.Fatalf("unexpected activation result: %+v", sc)
	}

	indexResult, err := s.IndexDocument(ctx, "docs/a.md", "---\ntitle: Hello\ndoc_type: doc\n---\n# Hello\n\nworld")
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if !indexResult.Success || indexResult.ChunkCount != 1 {
		t.Fatalf("unexpected index result: %+v", indexResult)
	}

	dt, err := s.ListDocTypes(ctx)
	if err != nil {
		t.Fatalf("ListDocTypes: %v", err)
	}
	found := false
	for _, d := range dt.DocTypes {
		if d.ID == "doc" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'doc' in doc type list, got %+v", dt.DocTypes)
	}

	metrics, err := s.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if metrics.DocumentCount != 1 || metrics.ChunkCount != 1 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestIndexDocument_FailsWithoutActiveSession(t *testing.T) {
	s := newTestSurface(t)
	_, err := s.IndexDocument(context.Background(), "a.md", "# A\n\nbody")
	if err == nil || errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected KindInvalidArgument, got %v", err)
	}
}

func TestSemanticSearch_FindsIndexedChunk(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	if _, err := s.IndexDocument(ctx, "docs/a.md", "# Hello\n\nworld content here."); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	result, err := s.SemanticSearch(ctx, "world", 5, nil)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(result.Hits) != 1 || result.Hits[0].FilePath != "docs/a.md" {
		t.Fatalf("unexpected search result: %+v", result.Hits)
	}
}

func TestRagQuery_AnswersFromIndexedCorpus(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	if _, err := s.IndexDocument(ctx, "docs/a.md", "# Hello\n\nworld content here."); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	result, err := s.RagQuery(ctx, "tell me about the world", 0, 0)
	if err != nil {
		t.Fatalf("RagQuery: %v", err)
	}
	if result.Answer != "synthesized answer" || len(result.Sources) == 0 {
		t.Fatalf("unexpected rag result: %+v", result)
	}
}

func TestRagQuery_EmptyCorpusReturnsInsufficientEvidence(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	result, err := s.RagQuery(ctx, "anything", 0, 0)
	if err != nil {
		t.Fatalf("RagQuery: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources for empty corpus, got %+v", result.Sources)
	}
}

func TestDeleteDocuments_DryRunThenReal(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	if _, err := s.IndexDocument(ctx, "docs/a.md", "# Hello\n\nworld"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	dry, err := s.DeleteDocuments(ctx, true)
	if err != nil {
		t.Fatalf("DeleteDocuments dry run: %v", err)
	}
	if dry.Matched != 1 || dry.Deleted != 0 {
		t.Fatalf("unexpected dry-run result: %+v", dry)
	}

	real, err := s.DeleteDocuments(ctx, false)
	if err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if real.Deleted != 1 {
		t.Fatalf("expected 1 document deleted, got %+v", real)
	}

	metrics, err := s.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if metrics.DocumentCount != 0 {
		t.Fatalf("expected 0 documents after delete, got %+v", metrics)
	}
}

func TestUpdatePromotionLevel_ChangesStoredLevel(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	if _, err := s.IndexDocument(ctx, "docs/a.md", "# Hello\n\nworld"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	result, err := s.UpdatePromotionLevel(ctx, "docs/a.md", "critical")
	if err != nil {
		t.Fatalf("UpdatePromotionLevel: %v", err)
	}
	if result.New != repository.PromotionCritical {
		t.Fatalf("expected new level critical, got %+v", result)
	}
}

func TestUpdatePromotionLevel_RewritesOnDiskFrontmatter(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	docPath := filepath.Join(s.Session.Current().RootPath, "docs", "a.md")
	if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := "---\ntitle: Hello\ndoc_type: doc\n---\n# Hello\n\nworld"
	if err := os.WriteFile(docPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	if _, err := s.IndexDocument(ctx, "docs/a.md", body); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	if _, err := s.UpdatePromotionLevel(ctx, "docs/a.md", "critical"); err != nil {
		t.Fatalf("UpdatePromotionLevel: %v", err)
	}

	rewritten, err := os.ReadFile(docPath)
	if err != nil {
		t.Fatalf("read rewritten doc: %v", err)
	}
	if !strings.Contains(string(rewritten), "promotion_level: critical") {
		t.Fatalf("expected rewritten frontmatter to contain promotion_level: critical, got:\n%s", rewritten)
	}
}

func TestUpdatePromotionLevel_RejectsUnknownLevel(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	activateTestProject(t, s)

	if _, err := s.IndexDocument(ctx, "docs/a.md", "# Hello\n\nworld"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	_, err := s.UpdatePromotionLevel(ctx, "docs/a.md", "urgent")
	if err == nil || errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected KindInvalidArgument, got %v", err)
	}
}

func TestRegisterDocType_RejectsDuplicate(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()

	def := doctype.Definition{ID: "runbook", RequiredFields: []string{"title"}}
	if _, err := s.RegisterDocType(ctx, def); err != nil {
		t.Fatalf("RegisterDocType: %v", err)
	}

	_, err := s.RegisterDocType(ctx, def)
	if err == nil || errs.KindOf(err) != errs.KindDuplicateDocType {
		t.Fatalf("expected KindDuplicateDocType, got %v", err)
	}
}

func TestGetHealthAndStatus(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()

	health, err := s.GetHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)

	before, err := s.GetStatus(ctx)
	require.NoError(t, err)
	require.False(t, before.Session.IsActive)

	activateTestProject(t, s)
	after, err := s.GetStatus(ctx)
	require.NoError(t, err)
	require.True(t, after.Session.IsActive)
	require.Equal(t, "proj1", after.Session.ProjectName)
	require.Equal(t, "main", after.Session.ActiveBranch)
	require.GreaterOrEqual(t, after.UptimeMS, int64(0))
}
