package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"compendium/internal/doctype"
	"compendium/internal/eventbus"
	"compendium/internal/graphrepo"
	"compendium/internal/indexer"
	"compendium/internal/linkgraph"
	"compendium/internal/repository"
	"compendium/internal/tenant"
	"compendium/internal/vectorstore"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0, 0, 0}
	}
	return out, nil
}
func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return 4 }

func testTenant() tenant.Key {
	return tenant.Key{Project: "repo1", Branch: "main", PathHash: "abc123"}
}

func newFixtureIndexer(t *testing.T) (*indexer.Indexer, repository.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := repository.New(ctx, repository.Config{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	registry := doctype.NewRegistry()
	if err := doctype.RegisterBuiltins(registry); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	bus := eventbus.New(nil)
	t.Cleanup(bus.Close)

	ix := indexer.New(indexer.Config{
		DocTypes:       registry,
		Embedder:       &fakeEmbedder{},
		Store:          store,
		Vectors:        vectorstore.NewMemory(4),
		Graph:          graphrepo.NewMemory(),
		Links:          linkgraph.NewGraph(),
		Bus:            bus,
		LenientDocType: true,
	})
	return ix, store
}

// seedOrigin builds a bare repository at a fresh temp path and returns both
// its path and a non-bare "author" clone that pushes into it, so tests can
// commit files and publish them upstream without a network remote.
func seedOrigin(t *testing.T) (bareDir string, author *git.Repository, authorDir string) {
	t.Helper()
	bareDir = filepath.Join(t.TempDir(), "origin.git")
	if _, err := git.PlainInit(bareDir, true); err != nil {
		t.Fatalf("init bare: %v", err)
	}
	authorDir = filepath.Join(t.TempDir(), "author")
	author, err := git.PlainInit(authorDir, false)
	if err != nil {
		t.Fatalf("init author: %v", err)
	}
	if _, err := author.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{bareDir}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	return bareDir, author, authorDir
}

// publish writes files into the author clone, commits them, and pushes the
// result to the shared bare origin.
func publish(t *testing.T, author *git.Repository, authorDir string, files map[string]string, msg string) *object.Commit {
	t.Helper()
	wt, err := author.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for relPath, content := range files {
		full := filepath.Join(authorDir, relPath)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		if _, err := wt.Add(relPath); err != nil {
			t.Fatalf("add %s: %v", relPath, err)
		}
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := author.Push(&git.PushOptions{RemoteName: "origin"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	commit, err := author.CommitObject(hash)
	if err != nil {
		t.Fatalf("commit object: %v", err)
	}
	return commit
}

func removeAndPublish(t *testing.T, author *git.Repository, authorDir, relPath, msg string) *object.Commit {
	t.Helper()
	wt, err := author.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Remove(relPath); err != nil {
		t.Fatalf("remove %s: %v", relPath, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := author.Push(&git.PushOptions{RemoteName: "origin"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	commit, err := author.CommitObject(hash)
	if err != nil {
		t.Fatalf("commit object: %v", err)
	}
	return commit
}

func TestDiffCommits_NilFromReturnsFullTree(t *testing.T) {
	_, author, authorDir := seedOrigin(t)
	commit := publish(t, author, authorDir, map[string]string{
		"a.md":     "alpha",
		"sub/b.md": "beta",
	}, "initial")

	changes, err := diffCommits(nil, commit)
	if err != nil {
		t.Fatalf("diffCommits: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(changes), changes)
	}
	seen := map[string]bool{}
	for _, c := range changes {
		if c.Deleted {
			t.Fatalf("unexpected delete in full-tree result: %+v", c)
		}
		seen[c.Path] = true
	}
	if !seen["a.md"] || !seen["sub/b.md"] {
		t.Fatalf("missing expected paths: %+v", changes)
	}
}

func TestDiffCommits_DetectsModifyInsertAndDelete(t *testing.T) {
	_, author, authorDir := seedOrigin(t)
	first := publish(t, author, authorDir, map[string]string{
		"a.md": "alpha v1",
		"b.md": "beta",
	}, "initial")
	publish(t, author, authorDir, map[string]string{
		"a.md": "alpha v2",
		"c.md": "charlie",
	}, "update a, add c")
	last := removeAndPublish(t, author, authorDir, "b.md", "remove b")

	changes, err := diffCommits(first, last)
	if err != nil {
		t.Fatalf("diffCommits: %v", err)
	}
	byPath := map[string]fileChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}
	if c, ok := byPath["a.md"]; !ok || c.Deleted {
		t.Fatalf("expected a.md modified, not deleted: %+v", byPath)
	}
	if c, ok := byPath["c.md"]; !ok || c.Deleted {
		t.Fatalf("expected c.md inserted: %+v", byPath)
	}
	if c, ok := byPath["b.md"]; !ok || !c.Deleted {
		t.Fatalf("expected b.md deleted: %+v", byPath)
	}
}

func TestRepoConfig_Monitors(t *testing.T) {
	cfg := RepoConfig{MonitoredPaths: []string{"docs", "notes/readme.md"}}
	cases := map[string]bool{
		"docs/a.md":          true,
		"docs":               true,
		"notes/readme.md":    true,
		"notes/readme.md.bk": false,
		"other/a.md":         false,
	}
	for path, want := range cases {
		if got := cfg.monitors(path); got != want {
			t.Errorf("monitors(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRepoConfig_MonitorsEverythingWhenUnset(t *testing.T) {
	cfg := RepoConfig{}
	if !cfg.monitors("anything/at/all.md") {
		t.Fatal("expected empty MonitoredPaths to match everything")
	}
}

func TestSyncRepo_FirstSyncClonesAndIndexesWholeTree(t *testing.T) {
	bareDir, author, authorDir := seedOrigin(t)
	commit := publish(t, author, authorDir, map[string]string{
		"doc.md":      "# Doc One\n\nbody text.",
		"sub/note.md": "# Note\n\nmore text.",
	}, "initial")

	ix, store := newFixtureIndexer(t)
	graph := graphrepo.NewMemory()
	cfg := RepoConfig{
		Name:      "repo1",
		URL:       bareDir,
		LocalPath: filepath.Join(t.TempDir(), "work"),
		Tenant:    testTenant(),
	}
	ctx := context.Background()

	if err := syncRepo(ctx, cfg, ix, graph); err != nil {
		t.Fatalf("syncRepo: %v", err)
	}

	docs, err := store.Documents.GetAllForTenant(ctx, tenant.FilterFor(cfg.Tenant))
	if err != nil {
		t.Fatalf("GetAllForTenant: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 indexed documents, got %d", len(docs))
	}

	head, ok := graph.GetSyncState(ctx, cfg.Name)
	if !ok || head != commit.Hash.String() {
		t.Fatalf("expected sync state %s, got %q (ok=%v)", commit.Hash, head, ok)
	}

	// Re-running with no new upstream commits is a no-op.
	if err := syncRepo(ctx, cfg, ix, graph); err != nil {
		t.Fatalf("second syncRepo: %v", err)
	}
}

func TestSyncRepo_IncrementalSyncHandlesAddAndDelete(t *testing.T) {
	bareDir, author, authorDir := seedOrigin(t)
	publish(t, author, authorDir, map[string]string{
		"keep.md":   "# Keep\n\nstays around.",
		"remove.md": "# Remove\n\ngoes away.",
	}, "initial")

	ix, store := newFixtureIndexer(t)
	graph := graphrepo.NewMemory()
	cfg := RepoConfig{
		Name:      "repo1",
		URL:       bareDir,
		LocalPath: filepath.Join(t.TempDir(), "work"),
		Tenant:    testTenant(),
	}
	ctx := context.Background()

	if err := syncRepo(ctx, cfg, ix, graph); err != nil {
		t.Fatalf("first syncRepo: %v", err)
	}

	publish(t, author, authorDir, map[string]string{"added.md": "# Added\n\nnew content."}, "add file")
	removeAndPublish(t, author, authorDir, "remove.md", "remove file")

	if err := syncRepo(ctx, cfg, ix, graph); err != nil {
		t.Fatalf("second syncRepo: %v", err)
	}

	docs, err := store.Documents.GetAllForTenant(ctx, tenant.FilterFor(cfg.Tenant))
	if err != nil {
		t.Fatalf("GetAllForTenant: %v", err)
	}
	byPath := map[string]bool{}
	for _, d := range docs {
		byPath[d.FilePath] = true
	}
	if !byPath["keep.md"] || !byPath["added.md"] {
		t.Fatalf("expected keep.md and added.md present, got %+v", byPath)
	}
	if byPath["remove.md"] {
		t.Fatalf("expected remove.md to be gone, got %+v", byPath)
	}
}

func TestSyncRepo_MonitoredPathsSkipsUnrelatedFiles(t *testing.T) {
	bareDir, author, authorDir := seedOrigin(t)
	publish(t, author, authorDir, map[string]string{
		"docs/a.md":    "# A\n\ncovered.",
		"scratch/b.md": "# B\n\nnot covered.",
	}, "initial")

	ix, store := newFixtureIndexer(t)
	graph := graphrepo.NewMemory()
	cfg := RepoConfig{
		Name:           "repo1",
		URL:            bareDir,
		LocalPath:      filepath.Join(t.TempDir(), "work"),
		Tenant:         testTenant(),
		MonitoredPaths: []string{"docs"},
	}
	ctx := context.Background()

	if err := syncRepo(ctx, cfg, ix, graph); err != nil {
		t.Fatalf("syncRepo: %v", err)
	}

	docs, err := store.Documents.GetAllForTenant(ctx, tenant.FilterFor(cfg.Tenant))
	if err != nil {
		t.Fatalf("GetAllForTenant: %v", err)
	}
	if len(docs) != 1 || docs[0].FilePath != "docs/a.md" {
		t.Fatalf("expected only docs/a.md indexed, got %+v", docs)
	}
}

func TestSyncRepo_HonorsGitignore(t *testing.T) {
	bareDir, author, authorDir := seedOrigin(t)
	publish(t, author, authorDir, map[string]string{
		".gitignore":  "ignored/\n",
		"docs/a.md":   "# A\n\ntracked.",
		"ignored/b.md": "# B\n\nshould be skipped.",
	}, "initial")

	ix, store := newFixtureIndexer(t)
	graph := graphrepo.NewMemory()
	cfg := RepoConfig{
		Name:           "repo1",
		URL:            bareDir,
		LocalPath:      filepath.Join(t.TempDir(), "work"),
		Tenant:         testTenant(),
		MonitoredPaths: []string{"docs", "ignored"},
	}
	ctx := context.Background()

	if err := syncRepo(ctx, cfg, ix, graph); err != nil {
		t.Fatalf("syncRepo: %v", err)
	}

	docs, err := store.Documents.GetAllForTenant(ctx, tenant.FilterFor(cfg.Tenant))
	if err != nil {
		t.Fatalf("GetAllForTenant: %v", err)
	}
	if len(docs) != 1 || docs[0].FilePath != "docs/a.md" {
		t.Fatalf("expected only docs/a.md indexed, got %+v", docs)
	}
}

func TestScheduler_RunAsyncRejectsUnknownRepo(t *testing.T) {
	ix, _ := newFixtureIndexer(t)
	s := NewScheduler(time.Minute, nil, ix, graphrepo.NewMemory())

	if err := s.RunAsync(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown repo")
	}
	if s.LastRunFailed("nope") {
		t.Fatal("unknown repo should never be recorded as a failed run")
	}
}

func TestScheduler_RunAsyncIsCaseInsensitive(t *testing.T) {
	bareDir, author, authorDir := seedOrigin(t)
	publish(t, author, authorDir, map[string]string{"doc.md": "# Doc\n\nbody."}, "initial")

	ix, _ := newFixtureIndexer(t)
	cfg := RepoConfig{
		Name:      "RepoOne",
		URL:       bareDir,
		LocalPath: filepath.Join(t.TempDir(), "work"),
		Tenant:    testTenant(),
	}
	s := NewScheduler(time.Minute, []RepoConfig{cfg}, ix, graphrepo.NewMemory())

	if err := s.RunAsync(context.Background(), "repoone"); err != nil {
		t.Fatalf("RunAsync: %v", err)
	}
	if s.LastRunFailed("RepoOne") {
		t.Fatal("expected successful run")
	}
}
