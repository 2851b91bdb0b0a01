package toolsurface

import (
	"context"

	"compendium/internal/session"
)

// ActivateProjectResult is the tenant triple + status returned by
// activate_project.
type ActivateProjectResult struct {
	ProjectName  string `json:"project_name"`
	ActiveBranch string `json:"active_branch"`
	PathHash     string `json:"path_hash"`
	IsActive     bool   `json:"is_active"`
}

// ActivateProject binds this server's active session to the project
// described by configPath at branch, registering the branch and working
// tree root in the relational store.
func (s *Surface) ActivateProject(ctx context.Context, configPath, branch string) (ActivateProjectResult, error) {
	sc, err := s.Session.Activate(ctx, configPath, branch)
	if err != nil {
		return ActivateProjectResult{}, err
	}
	return ActivateProjectResult{
		ProjectName:  sc.ProjectName,
		ActiveBranch: sc.ActiveBranch,
		PathHash:     sc.PathHash,
		IsActive:     sc.IsActive,
	}, nil
}

// ListDocTypesResult wraps the registered doc-type summaries.
type ListDocTypesResult struct {
	DocTypes []session.DocTypeSummary `json:"doc_types"`
}

// ListDocTypes returns every registered doc type. Doc types are global to
// the registry, so this does not require an active session.
func (s *Surface) ListDocTypes(ctx context.Context) (ListDocTypesResult, error) {
	return ListDocTypesResult{DocTypes: session.ListDocTypes(s.DocTypes)}, nil
}
