package repository

import (
	"context"
	"testing"
	"time"

	"compendium/internal/tenant"
)

func testFilter() tenant.Filter {
	return tenant.Filter{Project: "proj", Branch: "main", PathHash: "abc123"}
}

func mustStore(t *testing.T) Store {
	t.Helper()
	s, err := New(context.Background(), Config{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestDocumentRepo_UpsertIsCompareAndSetOnTenantAndPath(t *testing.T) {
	s := mustStore(t)
	ctx := context.Background()
	filter := testFilter()
	tk := tenant.Key{Project: filter.Project, Branch: filter.Branch, PathHash: filter.PathHash}

	doc := CompoundDocument{TenantKey: tk, FilePath: "a.md", Title: "A", BodyHash: "h1", UpdatedAt: time.Now().UTC()}
	created, err := s.Documents.Upsert(ctx, doc)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	doc2 := created
	doc2.BodyHash = "h2"
	doc2.UpdatedAt = time.Now().UTC()
	updated, err := s.Documents.Upsert(ctx, doc2)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected same id on update, got %q vs %q", updated.ID, created.ID)
	}

	all, err := s.Documents.GetAllForTenant(ctx, filter)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one document after update, got %d", len(all))
	}
}

func TestDocumentRepo_RejectsPartialFilter(t *testing.T) {
	s := mustStore(t)
	ctx := context.Background()
	_, err := s.Documents.GetAllForTenant(ctx, tenant.Filter{Project: "proj"})
	if err == nil {
		t.Fatalf("expected error for partial filter")
	}
}

func TestDocumentRepo_GetStale(t *testing.T) {
	s := mustStore(t)
	ctx := context.Background()
	filter := testFilter()
	tk := tenant.Key{Project: filter.Project, Branch: filter.Branch, PathHash: filter.PathHash}

	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()
	_, _ = s.Documents.Upsert(ctx, CompoundDocument{TenantKey: tk, FilePath: "old.md", UpdatedAt: old})
	_, _ = s.Documents.Upsert(ctx, CompoundDocument{TenantKey: tk, FilePath: "fresh.md", UpdatedAt: fresh})

	stale, err := s.Documents.GetStale(ctx, filter, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if len(stale) != 1 || stale[0].FilePath != "old.md" {
		t.Fatalf("expected only old.md stale, got %+v", stale)
	}
}

func TestChunkRepo_UpsertAndDeleteByDocument(t *testing.T) {
	s := mustStore(t)
	ctx := context.Background()

	c1, err := s.Chunks.Upsert(ctx, DocumentChunk{DocumentID: "doc:1", Index: 0, Content: "hello"})
	if err != nil {
		t.Fatalf("upsert chunk: %v", err)
	}
	_, err = s.Chunks.Upsert(ctx, DocumentChunk{DocumentID: "doc:1", Index: 1, Content: "world"})
	if err != nil {
		t.Fatalf("upsert chunk 2: %v", err)
	}

	chunks, err := s.Chunks.GetByTenantKey(ctx, "doc:1")
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	if err := s.Chunks.Delete(ctx, "doc:1"); err != nil {
		t.Fatalf("delete chunks: %v", err)
	}
	chunks, _ = s.Chunks.GetByTenantKey(ctx, "doc:1")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks after delete, got %+v", chunks)
	}
	_ = c1
}

func TestRepoPathRepo_GetOrCreateRefreshesLastAccessed(t *testing.T) {
	s := mustStore(t)
	ctx := context.Background()
	filter := testFilter()

	first, err := s.RepoPaths.GetOrCreate(ctx, filter, "/repos/a")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	time.Sleep(time.Millisecond)
	second, err := s.RepoPaths.GetOrCreate(ctx, filter, "/repos/a")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same repo path id, got %q vs %q", second.ID, first.ID)
	}
	if !second.LastAccessedAt.After(first.LastAccessedAt) {
		t.Fatalf("expected refreshed last_accessed_at")
	}
}

func TestBranchRepo_GetOrCreateIsIdempotent(t *testing.T) {
	s := mustStore(t)
	ctx := context.Background()
	filter := testFilter()

	b1, err := s.Branches.GetOrCreate(ctx, filter, "main")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	b2, err := s.Branches.GetOrCreate(ctx, filter, "main")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if b1.ID != b2.ID {
		t.Fatalf("expected same branch id across calls")
	}

	all, err := s.Branches.GetAllForTenant(ctx, filter)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one branch row, got %d", len(all))
	}
}

func TestPromotionLevel_Meets(t *testing.T) {
	if !PromotionCritical.Meets(PromotionImportant) {
		t.Fatalf("expected critical to meet important floor")
	}
	if PromotionStandard.Meets(PromotionImportant) {
		t.Fatalf("expected standard to not meet important floor")
	}
	if !PromotionStandard.Meets(PromotionStandard) {
		t.Fatalf("expected standard to meet its own floor")
	}
}
