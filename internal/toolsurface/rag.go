package toolsurface

import (
	"context"

	"compendium/internal/graphrag"
	"compendium/internal/tenant"
)

// RagQuery answers a natural-language question over the active tenant's
// indexed documents.
func (s *Surface) RagQuery(ctx context.Context, query string, maxChunks, graphHops int) (graphrag.Result, error) {
	tk, err := s.Session.RequireTenant()
	if err != nil {
		return graphrag.Result{}, err
	}
	if err := s.checkRateLimit("rag_query"); err != nil {
		return graphrag.Result{}, err
	}
	return s.Engine.Query(ctx, tk, query, graphrag.Options{MaxChunks: maxChunks, GraphHops: graphHops})
}

// RagQueryExternal answers a question over the shared external index. It
// never requires an active session. A server with no external engine
// configured reports insufficient evidence rather than erroring.
func (s *Surface) RagQueryExternal(ctx context.Context, query string) (graphrag.Result, error) {
	if s.ExternalEngine == nil {
		return graphrag.Result{
			Answer:  "I don't have enough indexed material to answer this confidently.",
			Sources: []graphrag.Source{},
		}, nil
	}
	return s.ExternalEngine.Query(ctx, tenant.External, query, graphrag.Options{})
}
