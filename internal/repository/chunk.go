package repository

import (
	"context"
	"time"

	"compendium/internal/errs"
	"compendium/internal/tenant"
)

// ChunkRepo is the tenant-scoped CRUD surface over DocumentChunk rows.
// Chunks are addressed by document_id rather than tenant filter directly,
// since a chunk's owning document has already been tenant-checked by the
// time the indexer reaches this layer; GetStale still accepts a filter so
// a cache-sweep pass can scope itself.
type ChunkRepo interface {
	GetByTenantKey(ctx context.Context, documentID string) ([]DocumentChunk, error)
	// GetByID looks up a single chunk directly by its id, for resolving a
	// vector-search hit back to its content and header path.
	GetByID(ctx context.Context, id string) (DocumentChunk, bool, error)
	Upsert(ctx context.Context, chunk DocumentChunk) (DocumentChunk, error)
	Delete(ctx context.Context, documentID string) error
	GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]DocumentChunk, error)
	GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]DocumentChunk, error)
}

type memoryChunkRepo struct {
	store *memoryStore
}

func (r *memoryChunkRepo) GetByTenantKey(ctx context.Context, documentID string) ([]DocumentChunk, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []DocumentChunk
	for _, c := range r.store.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryChunkRepo) GetByID(ctx context.Context, id string) (DocumentChunk, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.chunks[id]
	return c, ok, nil
}

func (r *memoryChunkRepo) Upsert(ctx context.Context, chunk DocumentChunk) (DocumentChunk, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if chunk.ID == "" {
		chunk.ID = newID()
	}
	r.store.chunks[chunk.ID] = chunk
	return chunk, nil
}

func (r *memoryChunkRepo) Delete(ctx context.Context, documentID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.chunks {
		if c.DocumentID == documentID {
			delete(r.store.chunks, id)
		}
	}
	return nil
}

func (r *memoryChunkRepo) documentTenant(documentID string) (tenant.Key, bool) {
	for _, doc := range r.store.documents {
		if doc.ID == documentID {
			return doc.TenantKey, true
		}
	}
	return tenant.Key{}, false
}

func (r *memoryChunkRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]DocumentChunk, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []DocumentChunk
	for _, c := range r.store.chunks {
		if tk, ok := r.documentTenant(c.DocumentID); ok && filter.Matches(tk) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryChunkRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]DocumentChunk, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []DocumentChunk
	for docID, doc := range r.store.documents {
		if !filter.Matches(doc.TenantKey) || !doc.UpdatedAt.Before(before) {
			continue
		}
		for _, c := range r.store.chunks {
			if c.DocumentID == docID {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type pgChunkRepo struct {
	pool pgExecutor
}

func (r *pgChunkRepo) GetByTenantKey(ctx context.Context, documentID string) ([]DocumentChunk, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, document_id, index, header_path, start_line, end_line, content, content_hash
FROM compendium_chunks WHERE document_id = $1 ORDER BY index
`, documentID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list chunks", err)
	}
	defer rows.Close()

	var out []DocumentChunk
	for rows.Next() {
		var c DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.HeaderPath, &c.StartLine, &c.EndLine, &c.Content, &c.ContentHash); err != nil {
			return nil, errs.Wrap(errs.KindStorageFailed, "scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgChunkRepo) GetByID(ctx context.Context, id string) (DocumentChunk, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, document_id, index, header_path, start_line, end_line, content, content_hash
FROM compendium_chunks WHERE id = $1
`, id)
	var c DocumentChunk
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Index, &c.HeaderPath, &c.StartLine, &c.EndLine, &c.Content, &c.ContentHash); err != nil {
		return DocumentChunk{}, false, nil
	}
	return c, true, nil
}

func (r *pgChunkRepo) Upsert(ctx context.Context, chunk DocumentChunk) (DocumentChunk, error) {
	if chunk.ID == "" {
		chunk.ID = newID()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO compendium_chunks (id, document_id, index, header_path, start_line, end_line, content, content_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  index = EXCLUDED.index, header_path = EXCLUDED.header_path,
  start_line = EXCLUDED.start_line, end_line = EXCLUDED.end_line,
  content = EXCLUDED.content, content_hash = EXCLUDED.content_hash
`, chunk.ID, chunk.DocumentID, chunk.Index, chunk.HeaderPath, chunk.StartLine, chunk.EndLine, chunk.Content, chunk.ContentHash)
	if err != nil {
		return DocumentChunk{}, errs.Wrap(errs.KindStorageFailed, "upsert chunk", err)
	}
	return chunk, nil
}

func (r *pgChunkRepo) Delete(ctx context.Context, documentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM compendium_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return errs.Wrap(errs.KindStorageFailed, "delete chunks", err)
	}
	return nil
}

func (r *pgChunkRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]DocumentChunk, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.document_id, c.index, c.header_path, c.start_line, c.end_line, c.content, c.content_hash
FROM compendium_chunks c
JOIN compendium_documents d ON d.id = c.document_id
WHERE d.project = $1 AND d.branch = $2 AND d.path_hash = $3
`, filter.Project, filter.Branch, filter.PathHash)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list tenant chunks", err)
	}
	defer rows.Close()

	var out []DocumentChunk
	for rows.Next() {
		var c DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.HeaderPath, &c.StartLine, &c.EndLine, &c.Content, &c.ContentHash); err != nil {
			return nil, errs.Wrap(errs.KindStorageFailed, "scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgChunkRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]DocumentChunk, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.document_id, c.index, c.header_path, c.start_line, c.end_line, c.content, c.content_hash
FROM compendium_chunks c
JOIN compendium_documents d ON d.id = c.document_id
WHERE d.project = $1 AND d.branch = $2 AND d.path_hash = $3 AND d.updated_at < $4
`, filter.Project, filter.Branch, filter.PathHash, before)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list stale chunks", err)
	}
	defer rows.Close()

	var out []DocumentChunk
	for rows.Next() {
		var c DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.HeaderPath, &c.StartLine, &c.EndLine, &c.Content, &c.ContentHash); err != nil {
			return nil, errs.Wrap(errs.KindStorageFailed, "scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
