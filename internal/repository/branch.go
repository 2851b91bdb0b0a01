package repository

import (
	"context"
	"time"

	"compendium/internal/errs"
	"compendium/internal/tenant"
)

// BranchRepo tracks branch names observed for a tenant.
type BranchRepo interface {
	GetOrCreate(ctx context.Context, filter tenant.Filter, name string) (Branch, error)
	GetByTenantKey(ctx context.Context, filter tenant.Filter, name string) (Branch, bool, error)
	Upsert(ctx context.Context, b Branch) (Branch, error)
	Delete(ctx context.Context, filter tenant.Filter, name string) (bool, error)
	GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]Branch, error)
	GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]Branch, error)
}

type memoryBranchRepo struct {
	store *memoryStore
}

func (r *memoryBranchRepo) GetByTenantKey(ctx context.Context, filter tenant.Filter, name string) (Branch, bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return Branch{}, false, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, b := range r.store.branches {
		if filter.Matches(b.TenantKey) && b.Name == name {
			return b, true, nil
		}
	}
	return Branch{}, false, nil
}

func (r *memoryBranchRepo) GetOrCreate(ctx context.Context, filter tenant.Filter, name string) (Branch, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return Branch{}, err
	}
	now := time.Now().UTC()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, b := range r.store.branches {
		if filter.Matches(b.TenantKey) && b.Name == name {
			b.LastAccessedAt = now
			r.store.branches[id] = b
			return b, nil
		}
	}
	b := Branch{
		ID:             newID(),
		TenantKey:      tenant.Key{Project: filter.Project, Branch: filter.Branch, PathHash: filter.PathHash},
		Name:           name,
		LastAccessedAt: now,
	}
	r.store.branches[b.ID] = b
	return b, nil
}

func (r *memoryBranchRepo) Upsert(ctx context.Context, b Branch) (Branch, error) {
	if err := tenant.RequireFull(tenant.FilterFor(b.TenantKey)); err != nil {
		return Branch{}, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, existing := range r.store.branches {
		if existing.TenantKey == b.TenantKey && existing.Name == b.Name {
			b.ID = existing.ID
			r.store.branches[id] = b
			return b, nil
		}
	}
	if b.ID == "" {
		b.ID = newID()
	}
	r.store.branches[b.ID] = b
	return b, nil
}

func (r *memoryBranchRepo) Delete(ctx context.Context, filter tenant.Filter, name string) (bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, b := range r.store.branches {
		if filter.Matches(b.TenantKey) && b.Name == name {
			delete(r.store.branches, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryBranchRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]Branch, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []Branch
	for _, b := range r.store.branches {
		if filter.Matches(b.TenantKey) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryBranchRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]Branch, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []Branch
	for _, b := range r.store.branches {
		if filter.Matches(b.TenantKey) && b.LastAccessedAt.Before(before) {
			out = append(out, b)
		}
	}
	return out, nil
}

type pgBranchRepo struct {
	pool pgExecutor
}

func (r *pgBranchRepo) GetByTenantKey(ctx context.Context, filter tenant.Filter, name string) (Branch, bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return Branch{}, false, err
	}
	row := r.pool.QueryRow(ctx, `
SELECT id, project, branch, path_hash, name, last_accessed_at
FROM compendium_branches WHERE project=$1 AND branch=$2 AND path_hash=$3 AND name=$4
`, filter.Project, filter.Branch, filter.PathHash, name)
	b, err := scanBranch(row)
	if err != nil {
		return Branch{}, false, nil
	}
	return b, true, nil
}

func (r *pgBranchRepo) GetOrCreate(ctx context.Context, filter tenant.Filter, name string) (Branch, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return Branch{}, err
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
INSERT INTO compendium_branches (id, project, branch, path_hash, name, last_accessed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (project, branch, path_hash, name) DO UPDATE SET last_accessed_at = EXCLUDED.last_accessed_at
RETURNING id, project, branch, path_hash, name, last_accessed_at
`, newID(), filter.Project, filter.Branch, filter.PathHash, name, now)
	b, err := scanBranch(row)
	if err != nil {
		return Branch{}, errs.Wrap(errs.KindStorageFailed, "get or create branch", err)
	}
	return b, nil
}

func (r *pgBranchRepo) Upsert(ctx context.Context, b Branch) (Branch, error) {
	if err := tenant.RequireFull(tenant.FilterFor(b.TenantKey)); err != nil {
		return Branch{}, err
	}
	if b.ID == "" {
		b.ID = newID()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO compendium_branches (id, project, branch, path_hash, name, last_accessed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (project, branch, path_hash, name) DO UPDATE SET last_accessed_at = EXCLUDED.last_accessed_at
`, b.ID, b.TenantKey.Project, b.TenantKey.Branch, b.TenantKey.PathHash, b.Name, b.LastAccessedAt)
	if err != nil {
		return Branch{}, errs.Wrap(errs.KindStorageFailed, "upsert branch", err)
	}
	return b, nil
}

func (r *pgBranchRepo) Delete(ctx context.Context, filter tenant.Filter, name string) (bool, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM compendium_branches WHERE project=$1 AND branch=$2 AND path_hash=$3 AND name=$4
`, filter.Project, filter.Branch, filter.PathHash, name)
	if err != nil {
		return false, errs.Wrap(errs.KindStorageFailed, "delete branch", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgBranchRepo) GetAllForTenant(ctx context.Context, filter tenant.Filter) ([]Branch, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, project, branch, path_hash, name, last_accessed_at
FROM compendium_branches WHERE project=$1 AND branch=$2 AND path_hash=$3
`, filter.Project, filter.Branch, filter.PathHash)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list branches", err)
	}
	defer rows.Close()
	return scanBranches(rows)
}

func (r *pgBranchRepo) GetStale(ctx context.Context, filter tenant.Filter, before time.Time) ([]Branch, error) {
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, project, branch, path_hash, name, last_accessed_at
FROM compendium_branches WHERE project=$1 AND branch=$2 AND path_hash=$3 AND last_accessed_at < $4
`, filter.Project, filter.Branch, filter.PathHash, before)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageFailed, "list stale branches", err)
	}
	defer rows.Close()
	return scanBranches(rows)
}
