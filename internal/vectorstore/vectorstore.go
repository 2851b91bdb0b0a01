// Package vectorstore defines the pluggable vector search backend: Qdrant
// (primary), pgvector-backed Postgres, or an in-memory adapter for tests.
package vectorstore

import "context"

// Result is one nearest-neighbor hit, carrying the tenant-scoped metadata
// that was stored alongside the vector.
type Result struct {
	ID       string
	Score    float64 // higher is closer
	Metadata map[string]string
}

// Store is the portable interface every backend implements. Metadata always
// carries the tenant triple (project_name, branch_name, path_hash) plus chunk
// identity, so filters can scope a search to a tenant.
type Store interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error)
	Dimension() int
}

// Config selects and configures a Store backend.
type Config struct {
	Backend    string // "qdrant", "postgres", or "memory"
	DSN        string
	Collection string
	Dimensions int
	Metric     string // cosine|l2|ip
}
