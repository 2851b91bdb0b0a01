package toolsurface

import (
	"context"
	"time"

	"compendium/internal/session"
	"compendium/internal/tenant"
)

// HealthResult is the outcome of get_health: a lightweight liveness check
// that never touches the repositories.
type HealthResult struct {
	Status string `json:"status"`
}

// GetHealth reports liveness only. It never fails: an unactivated session
// is a normal, healthy state.
func (s *Surface) GetHealth(ctx context.Context) (HealthResult, error) {
	return HealthResult{Status: "ok"}, nil
}

// MetricsResult summarizes the active tenant's indexed corpus size. All
// counts are zero when no project has been activated yet.
type MetricsResult struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
	DocTypeCount  int `json:"doc_type_count"`
}

// GetMetrics reports basic corpus-size diagnostics for the active tenant.
func (s *Surface) GetMetrics(ctx context.Context) (MetricsResult, error) {
	result := MetricsResult{DocTypeCount: len(s.DocTypes.List())}

	tk, err := s.Session.RequireTenant()
	if err != nil {
		return result, nil
	}
	filter := tenant.FilterFor(tk)

	docs, err := s.Store.Documents.GetAllForTenant(ctx, filter)
	if err == nil {
		result.DocumentCount = len(docs)
	}
	chunks, err := s.Store.Chunks.GetAllForTenant(ctx, filter)
	if err == nil {
		result.ChunkCount = len(chunks)
	}
	return result, nil
}

// StatusResult is the server's current operational state.
type StatusResult struct {
	Session  session.Context `json:"session"`
	UptimeMS int64           `json:"uptime_ms"`
}

// GetStatus reports the active session and process uptime.
func (s *Surface) GetStatus(ctx context.Context) (StatusResult, error) {
	return StatusResult{
		Session:  s.Session.Current(),
		UptimeMS: time.Since(s.startedAt).Milliseconds(),
	}, nil
}
