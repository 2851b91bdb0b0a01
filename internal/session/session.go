// Package session resolves a tool invocation's active tenant. Activation
// reads a project config off disk, registers the project's branch and
// working-tree root in the relational store, and caches the resulting
// tenant key so every subsequent tool call derives its filter from the
// same session rather than recomputing it.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"compendium/internal/errs"
	"compendium/internal/repository"
	"compendium/internal/tenant"
)

// Context is the tool-surface projection of the active session.
type Context struct {
	ProjectName    string   `json:"project_name"`
	ActiveBranch   string   `json:"active_branch"`
	PathHash       string   `json:"path_hash"`
	IsActive       bool     `json:"is_active"`
	RootPath       string   `json:"root_path,omitempty"`
	MonitoredPaths []string `json:"monitored_paths,omitempty"`
}

// Manager holds the single active session for this server process. A
// fresh Manager starts with no active project; RequireTenant fails cleanly
// until one has been activated.
type Manager struct {
	store repository.Store

	mu      sync.RWMutex
	current Context
	tenant  tenant.Key
}

// NewManager returns a Manager with no active session.
func NewManager(store repository.Store) *Manager {
	return &Manager{store: store}
}

// Activate reads the project config at configPath, computes the tenant
// triple for (project, branch, root_path), registers the branch and repo
// path in the relational store, and records the result as the active
// session.
func (m *Manager) Activate(ctx context.Context, configPath, branch string) (Context, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return Context{}, errs.New(errs.KindInvalidArgument, "branch name is required")
	}

	cfg, err := loadProjectConfig(configPath)
	if err != nil {
		return Context{}, err
	}

	tk := tenant.NewKey(cfg.Project, branch, cfg.RootPath)
	filter := tenant.FilterFor(tk)

	if _, err := m.store.Branches.GetOrCreate(ctx, filter, branch); err != nil {
		return Context{}, errs.Wrap(errs.KindStorageFailed, "register branch", err)
	}
	if _, err := m.store.RepoPaths.GetOrCreate(ctx, filter, cfg.RootPath); err != nil {
		return Context{}, errs.Wrap(errs.KindStorageFailed, "register repo path", err)
	}

	sc := Context{
		ProjectName:    cfg.Project,
		ActiveBranch:   branch,
		PathHash:       tk.PathHash,
		IsActive:       true,
		RootPath:       cfg.RootPath,
		MonitoredPaths: cfg.MonitoredPaths,
	}

	m.mu.Lock()
	m.current = sc
	m.tenant = tk
	m.mu.Unlock()

	log.Info().
		Str("project", sc.ProjectName).
		Str("branch", sc.ActiveBranch).
		Str("path_hash", sc.PathHash).
		Msg("session: project activated")

	return sc, nil
}

// Current returns the active session context, or the zero value
// (IsActive=false) if nothing has been activated yet.
func (m *Manager) Current() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RequireTenant resolves the active tenant filter. The tenant-scoped tools
// call this before touching any repository; it fails with
// KindInvalidArgument when no project has been activated. Tools that are
// not tenant-scoped (doc-type listing and registration, health, status,
// the external-index tools) do not call it.
func (m *Manager) RequireTenant() (tenant.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.IsActive {
		return tenant.Key{}, errs.New(errs.KindInvalidArgument, "no project activated: call activate_project first")
	}
	return m.tenant, nil
}
