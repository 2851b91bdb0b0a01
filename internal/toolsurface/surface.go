// Package toolsurface implements the tool-call surface compendium exposes
// over MCP: one method per operation in the spec's external-interfaces
// table. Tenant-scoped methods resolve the session's tenant before touching
// any repository; the external-index methods use the fixed tenant.External
// scope and need no session. cmd/compendium-mcp wires these methods
// to registered MCP tools; nothing in this package depends on MCP types,
// so it can be exercised directly in tests.
package toolsurface

import (
	"time"

	"compendium/internal/doctype"
	"compendium/internal/embedding"
	"compendium/internal/errs"
	"compendium/internal/graphrag"
	"compendium/internal/indexer"
	"compendium/internal/repository"
	"compendium/internal/resilience"
	"compendium/internal/session"
	"compendium/internal/vectorstore"
)

// Surface aggregates every dependency a tool handler needs. All fields are
// required except where noted.
type Surface struct {
	Session  *session.Manager
	Indexer  *indexer.Indexer
	Store    repository.Store
	Vectors  vectorstore.Store
	Embedder embedding.Embedder
	DocTypes *doctype.Registry
	Engine   *graphrag.Engine

	// ExternalVectors and ExternalEngine back search_external_docs and
	// rag_query_external against the shared, tenant-independent external
	// index (tenant.External). Both are optional: a server with no
	// external corpus configured leaves them nil and those two tools
	// report an empty/insufficient-evidence result rather than erroring.
	ExternalVectors vectorstore.Store
	ExternalEngine  *graphrag.Engine

	// Limiter gates tool invocations with a per-(tool, client) token
	// bucket. Optional: a nil Limiter disables rate limiting entirely,
	// which is what every existing test builds against.
	Limiter *resilience.Limiter

	startedAt time.Time
}

// New builds a Surface. Call this once at server startup with every
// dependency already constructed.
func New(s Surface) *Surface {
	s.startedAt = time.Now().UTC()
	return &s
}

// checkRateLimit enforces the token bucket for tool, scoped to the active
// session's tenant as the client id so separate projects never share
// capacity. A nil Limiter (no rate limiting configured) always allows.
func (s *Surface) checkRateLimit(tool string) error {
	if s.Limiter == nil {
		return nil
	}
	client := s.Session.Current().PathHash
	v := s.Limiter.Allow(tool, client)
	if v.Allowed {
		return nil
	}
	return errs.New(errs.KindRateLimited, "rate limit exceeded for "+tool+": "+v.Reason)
}
