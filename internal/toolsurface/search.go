package toolsurface

import (
	"context"

	"compendium/internal/tenant"
	"compendium/internal/vectorstore"
)

// SearchHit is one ranked result from semantic_search or
// search_external_docs, with the chunk's content and position hydrated
// from the relational store.
type SearchHit struct {
	DocumentID string   `json:"document_id"`
	ChunkID    string   `json:"chunk_id"`
	FilePath   string   `json:"file_path"`
	Score      float64  `json:"score"`
	Content    string   `json:"content"`
	HeaderPath []string `json:"header_path,omitempty"`
}

// SemanticSearchResult is the ranked hit list semantic_search returns.
type SemanticSearchResult struct {
	Hits []SearchHit `json:"hits"`
}

func defaultTopK(topK int) int {
	if topK <= 0 {
		return 10
	}
	return topK
}

// SemanticSearch embeds query and ranks the active tenant's indexed chunks
// by cosine similarity, merging any caller-supplied metadata filters on
// top of the tenant scope (a caller filter can never widen past the
// active tenant).
func (s *Surface) SemanticSearch(ctx context.Context, query string, topK int, filters map[string]string) (SemanticSearchResult, error) {
	tk, err := s.Session.RequireTenant()
	if err != nil {
		return SemanticSearchResult{}, err
	}
	if err := s.checkRateLimit("semantic_search"); err != nil {
		return SemanticSearchResult{}, err
	}
	filter := map[string]string{"project_name": tk.Project, "branch_name": tk.Branch, "path_hash": tk.PathHash}
	for k, v := range filters {
		filter[k] = v
	}
	return s.search(ctx, s.Vectors, query, topK, filter)
}

// SearchExternalDocs ranks the shared, read-only external index. It never
// requires an active session: the external corpus is not tenant-scoped.
func (s *Surface) SearchExternalDocs(ctx context.Context, query string, topK int) (SemanticSearchResult, error) {
	if s.ExternalVectors == nil {
		return SemanticSearchResult{Hits: []SearchHit{}}, nil
	}
	filter := map[string]string{
		"project_name": tenant.External.Project, "branch_name": tenant.External.Branch, "path_hash": tenant.External.PathHash,
	}
	return s.search(ctx, s.ExternalVectors, query, topK, filter)
}

func (s *Surface) search(ctx context.Context, store vectorstore.Store, query string, topK int, filter map[string]string) (SemanticSearchResult, error) {
	vecs, err := s.Embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return SemanticSearchResult{}, err
	}
	results, err := store.SimilaritySearch(ctx, vecs[0], defaultTopK(topK), filter)
	if err != nil {
		return SemanticSearchResult{}, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hit := SearchHit{
			ChunkID:    r.ID,
			Score:      r.Score,
			DocumentID: r.Metadata["document_id"],
		}
		if chunk, ok, err := s.Store.Chunks.GetByID(ctx, r.ID); err == nil && ok {
			hit.DocumentID = chunk.DocumentID
			hit.Content = chunk.Content
			hit.HeaderPath = chunk.HeaderPath
			if doc, ok, err := s.Store.Documents.GetByID(ctx, chunk.DocumentID); err == nil && ok {
				hit.FilePath = doc.FilePath
			}
		}
		hits = append(hits, hit)
	}
	return SemanticSearchResult{Hits: hits}, nil
}
