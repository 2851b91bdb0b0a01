package repository

import (
	"context"
	"time"

	"compendium/internal/errs"
	"compendium/internal/tenant"
)

// DocumentRepo is the tenant-scoped CRUD surface over CompoundDocument rows.
// GetByTenantKey/Upsert/Delete/GetAllForTenant/GetStale all reject a Filter
// (or tenant key) with fewer than three populated components at the
// boundary. DocumentRepo has no GetOrCreate; Upsert creates a missing row.
type DocumentRepo interface {
	GetByTenantKey(ctx context.Context, filter tenant.Filter, filePath string) (CompoundDocument, bool, error)
	// GetByID looks up a document directly by its stable id, for callers
	// (GraphRAG synthesis) that only hold a document_id recovered from a
	// chunk or vector hit and have no file path to key off of.
	GetByID(ctx context.Context, id string) (CompoundDocument, bool, error)
	// Upsert is compare-and-set on (tenant_key, file_path): a document with
	// no existing row is created; one with an existing row is replaced.
	Upsert(ctx context.Context, doc CompoundDocument) (CompoundDocument, error)
	Delete(ctx context.Context, filter tenant.Filter, filePath string) (bool, error)
	GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]CompoundDocument, error)
	GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]CompoundDocument, error)
}

type memoryDocumentRepo struct {
	store *memoryStore
}

func (r *memoryDocumentRepo) GetByTenantKey(ctx context.Context, filter tenant.Filter, filePath string) (CompoundDocument, bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return CompoundDocument{}, false, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, doc := range r.store.documents {
		if filter.Matches(doc.TenantKey) && doc.FilePath == filePath {
			return doc, true, nil
		}
	}
	return CompoundDocument{}, false, nil
}

func (r *memoryDocumentRepo) GetByID(ctx context.Context, id string) (CompoundDocument, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	doc, ok := r.store.documents[id]
	return doc, ok, nil
}

func (r *memoryDocumentRepo) Upsert(ctx context.Context, doc CompoundDocument) (CompoundDocument, error) {
	if err := tenant.RequireFull(tenant.FilterFor(doc.TenantKey)); err != nil {
		return CompoundDocument{}, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := doc.UpdatedAt
	for id, existing := range r.store.documents {
		if existing.TenantKey == doc.TenantKey && existing.FilePath == doc.FilePath {
			doc.ID = existing.ID
			doc.CreatedAt = existing.CreatedAt
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
			r.store.documents[id] = doc
			return doc, nil
		}
	}
	if doc.ID == "" {
		doc.ID = newID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	r.store.documents[doc.ID] = doc
	return doc, nil
}

func (r *memoryDocumentRepo) Delete(ctx context.Context, filter tenant.Filter, filePath string) (bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, doc := range r.store.documents {
		if filter.Matches(doc.TenantKey) && doc.FilePath == filePath {
			delete(r.store.documents, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryDocumentRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]CompoundDocument, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []CompoundDocument
	for _, doc := range r.store.documents {
		if filter.Matches(doc.TenantKey) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memoryDocumentRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]CompoundDocument, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []CompoundDocument
	for _, doc := range r.store.documents {
		if filter.Matches(doc.TenantKey) && doc.UpdatedAt.Before(before) {
			out = append(out, doc)
		}
	}
	return out, nil
}

type pgDocumentRepo struct {
	pool pgExecutor
}

func (r *pgDocumentRepo) GetByTenantKey(ctx context.Context, filter tenant.Filter, filePath string) (CompoundDocument, bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return CompoundDocument{}, false, err
	}
	row := r.pool.QueryRow(ctx, `
SELECT id, project, branch, path_hash, file_path, title, doc_type, promotion_level,
       frontmatter, body_hash, created_at, updated_at, commit_hash
FROM compendium_documents
WHERE project = $1 AND branch = $2 AND path_hash = $3 AND file_path = $4
`, filter.Project, filter.Branch, filter.PathHash, filePath)

	doc, err := scanDocument(row)
	if err != nil {
		return CompoundDocument{}, false, nil
	}
	return doc, true, nil
}

func (r *pgDocumentRepo) GetByID(ctx context.Context, id string) (CompoundDocument, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, project, branch, path_hash, file_path, title, doc_type, promotion_level,
       frontmatter, body_hash, created_at, updated_at, commit_hash
FROM compendium_documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		return CompoundDocument{}, false, nil
	}
	return doc, true, nil
}

func (r *pgDocumentRepo) Upsert(ctx context.Context, doc CompoundDocument) (CompoundDocument, error) {
	if err := tenant.RequireFull(tenant.FilterFor(doc.TenantKey)); err != nil {
		return CompoundDocument{}, err
	}
	if doc.ID == "" {
		doc.ID = newID()
	}
	frontmatterJSON, err := marshalJSON(doc.Frontmatter)
	if err != nil {
		return CompoundDocument{}, errs.Wrap(errs.KindInternal, "marshal frontmatter", err)
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO compendium_documents
  (id, project, branch, path_hash, file_path, title, doc_type, promotion_level,
   frontmatter, body_hash, created_at, updated_at, commit_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (project, branch, path_hash, file_path) DO UPDATE SET
  id = compendium_documents.id,
  title = EXCLUDED.title,
  doc_type = EXCLUDED.doc_type,
  promotion_level = EXCLUDED.promotion_level,
  frontmatter = EXCLUDED.frontmatter,
  body_hash = EXCLUDED.body_hash,
  updated_at = EXCLUDED.updated_at,
  commit_hash = EXCLUDED.commit_hash
RETURNING id, created_at
`, doc.ID, doc.TenantKey.Project, doc.TenantKey.Branch, doc.TenantKey.PathHash, doc.FilePath,
		doc.Title, doc.DocType, doc.PromotionLevel, frontmatterJSON, doc.BodyHash,
		doc.CreatedAt, doc.UpdatedAt, doc.CommitHash)
	if err != nil {
		return CompoundDocument{}, errs.Wrap(errs.KindStorageFailed, "upsert document", err)
	}
	return doc, nil
}

func (r *pgDocumentRepo) Delete(ctx context.Context, filter tenant.Filter, filePath string) (bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM compendium_documents WHERE project = $1 AND branch = $2 AND path_hash = $3 AND file_path = $4
`, filter.Project, filter.Branch, filter.PathHash, filePath)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageFailed, "delete document", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgDocumentRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]CompoundDocument, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, project, branch, path_hash, file_path, title, doc_type, promotion_level,
       frontmatter, body_hash, created_at, updated_at, commit_hash
FROM compendium_documents WHERE project = $1 AND branch = $2 AND path_hash = $3
`, filter.Project, filter.Branch, filter.PathHash)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list documents", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (r *pgDocumentRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]CompoundDocument, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, project, branch, path_hash, file_path, title, doc_type, promotion_level,
       frontmatter, body_hash, created_at, updated_at, commit_hash
FROM compendium_documents
WHERE project = $1 AND branch = $2 AND path_hash = $3 AND updated_at < $4
`, filter.Project, filter.Branch, filter.PathHash, before)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list stale documents", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}
