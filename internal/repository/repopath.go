package repository

import (
	"context"
	"time"

	"compendium/internal/errs"
	"compendium/internal/tenant"
)

// RepoPathRepo tracks the absolute filesystem roots observed for a tenant.
// GetOrCreate refreshes LastAccessedAt on every call, per spec.
type RepoPathRepo interface {
	GetOrCreate(ctx context.Context, filter tenant.Filter, absolutePath string) (RepoPath, error)
	GetByTenantKey(ctx context.Context, filter tenant.Filter, absolutePath string) (RepoPath, bool, error)
	Upsert(ctx context.Context, rp RepoPath) (RepoPath, error)
	Delete(ctx context.Context, filter tenant.Filter, absolutePath string) (bool, error)
	GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]RepoPath, error)
	GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]RepoPath, error)
}

type memoryRepoPathRepo struct {
	store *memoryStore
}

func (r *memoryRepoPathRepo) GetByTenantKey(ctx context.Context, filter tenant.Filter, absolutePath string) (RepoPath, bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return RepoPath{}, false, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, rp := range r.store.repoPaths {
		if filter.Matches(rp.TenantKey) && rp.AbsolutePath == absolutePath {
			return rp, true, nil
		}
	}
	return RepoPath{}, false, nil
}

func (r *memoryRepoPathRepo) GetOrCreate(ctx context.Context, filter tenant.Filter, absolutePath string) (RepoPath, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return RepoPath{}, err
	}
	now := time.Now().UTC()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, rp := range r.store.repoPaths {
		if filter.Matches(rp.TenantKey) && rp.AbsolutePath == absolutePath {
			rp.LastAccessedAt = now
			r.store.repoPaths[id] = rp
			return rp, nil
		}
	}
	rp := RepoPath{
		ID:             newID(),
		TenantKey:      tenant.Key{Project: filter.Project, Branch: filter.Branch, PathHash: filter.PathHash},
		AbsolutePath:   absolutePath,
		LastAccessedAt: now,
	}
	r.store.repoPaths[rp.ID] = rp
	return rp, nil
}

func (r *memoryRepoPathRepo) Upsert(ctx context.Context, rp RepoPath) (RepoPath, error) {
	if err := tenant.RequireFull(tenant.FilterFor(rp.TenantKey)); err != nil {
		return RepoPath{}, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, existing := range r.store.repoPaths {
		if existing.TenantKey == rp.TenantKey && existing.AbsolutePath == rp.AbsolutePath {
			rp.ID = existing.ID
			r.store.repoPaths[id] = rp
			return rp, nil
		}
	}
	if rp.ID == "" {
		rp.ID = newID()
	}
	r.store.repoPaths[rp.ID] = rp
	return rp, nil
}

func (r *memoryRepoPathRepo) Delete(ctx context.Context, filter tenant.Filter, absolutePath string) (bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, rp := range r.store.repoPaths {
		if filter.Matches(rp.TenantKey) && rp.AbsolutePath == absolutePath {
			delete(r.store.repoPaths, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepoPathRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]RepoPath, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []RepoPath
	for _, rp := range r.store.repoPaths {
		if filter.Matches(rp.TenantKey) {
			out = append(out, rp)
		}
	}
	return out, nil
}

func (r *memoryRepoPathRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]RepoPath, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []RepoPath
	for _, rp := range r.store.repoPaths {
		if filter.Matches(rp.TenantKey) && rp.LastAccessedAt.Before(before) {
			out = append(out, rp)
		}
	}
	return out, nil
}

type pgRepoPathRepo struct {
	pool pgExecutor
}

func (r *pgRepoPathRepo) GetByTenantKey(ctx context.Context, filter tenant.Filter, absolutePath string) (RepoPath, bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return RepoPath{}, false, err
	}
	row := r.pool.QueryRow(ctx, `
SELECT id, project, branch, path_hash, absolute_path, last_accessed_at
FROM compendium_repo_paths WHERE project=$1 AND branch=$2 AND path_hash=$3 AND absolute_path=$4
`, filter.Project, filter.Branch, filter.PathHash, absolutePath)
	rp, err := scanRepoPath(row)
	if err != nil {
		return RepoPath{}, false, nil
	}
	return rp, true, nil
}

func (r *pgRepoPathRepo) GetOrCreate(ctx context.Context, filter tenant.Filter, absolutePath string) (RepoPath, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return RepoPath{}, err
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
INSERT INTO compendium_repo_paths (id, project, branch, path_hash, absolute_path, last_accessed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (project, branch, path_hash, absolute_path) DO UPDATE SET last_accessed_at = EXCLUDED.last_accessed_at
RETURNING id, project, branch, path_hash, absolute_path, last_accessed_at
`, newID(), filter.Project, filter.Branch, filter.PathHash, absolutePath, now)
	rp, err := scanRepoPath(row)
	if err != nil {
		return RepoPath{}, errs.Wrap(errs.KindStorageFailed, "get or create repo path", err)
	}
	return rp, nil
}

func (r *pgRepoPathRepo) Upsert(ctx context.Context, rp RepoPath) (RepoPath, error) {
	if err := tenant.RequireFull(tenant.FilterFor(rp.TenantKey)); err != nil {
		return RepoPath{}, err
	}
	if rp.ID == "" {
		rp.ID = newID()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO compendium_repo_paths (id, project, branch, path_hash, absolute_path, last_accessed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (project, branch, path_hash, absolute_path) DO UPDATE SET last_accessed_at = EXCLUDED.last_accessed_at
`, rp.ID, rp.TenantKey.Project, rp.TenantKey.Branch, rp.TenantKey.PathHash, rp.AbsolutePath, rp.LastAccessedAt)
	if err != nil {
		return RepoPath{}, errs.Wrap(errs.KindStorageFailed, "upsert repo path", err)
	}
	return rp, nil
}

func (r *pgRepoPathRepo) Delete(ctx context.Context, filter tenant.Filter, absolutePath string) (bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM compendium_repo_paths WHERE project=$1 AND branch=$2 AND path_hash=$3 AND absolute_path=$4
`, filter.Project, filter.Branch, filter.PathHash, absolutePath)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageFailed, "delete repo path", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgRepoPathRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]RepoPath, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, project, branch, path_hash, absolute_path, last_accessed_at
FROM compendium_repo_paths WHERE project=$1 AND branch=$2 AND path_hash=$3
`, filter.Project, filter.Branch, filter.PathHash)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list repo paths", err)
	}
	defer rows.Close()
	return scanRepoPaths(rows)
}

func (r *pgRepoPathRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]RepoPath, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, project, branch, path_hash, absolute_path, last_accessed_at
FROM compendium_repo_paths WHERE project=$1 AND branch=$2 AND path_hash=$3 AND last_accessed_at < $4
`, filter.Project, filter.Branch, filter.PathHash, before)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list stale repo paths", err)
	}
	defer rows.Close()
	return scanRepoPaths(rows)
}
