// Package graphrepo stores the concept/section/chunk graph and provides
// hop-bounded traversal for GraphRAG expansion.
package graphrepo

import "context"

// Node labels used across the graph.
const (
	LabelDocument = "Document"
	LabelSection  = "Section"
	LabelChunk    = "Chunk"
	LabelConcept  = "Concept"
)

// Edge relationship types used across the graph.
const (
	RelHasSection = "HAS_SECTION"
	RelHasChunk   = "HAS_CHUNK"
	RelMentions   = "MENTIONS"
	RelRelatesTo  = "RELATES_TO"
	RelLinksTo    = "LINKS_TO"
	RelSupersedes = "SUPERSEDES"
)

// Node is one graph vertex.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// Repo is the portable graph storage interface backing both Postgres and
// an in-memory adapter.
type Repo interface {
	UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error
	UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error
	Neighbors(ctx context.Context, id, rel string) ([]string, error)
	// ReverseNeighbors returns the ids of nodes with an edge of rel pointing
	// at id (i.e. the sources of edges whose target is id).
	ReverseNeighbors(ctx context.Context, id, rel string) ([]string, error)
	GetNode(ctx context.Context, id string) (Node, bool)
	// DeleteDocument removes a Document node, its Section/Chunk descendants,
	// and their MENTIONS edges, but leaves Concept nodes in place since
	// other documents may still mention them.
	DeleteDocument(ctx context.Context, documentID string) error
	// GetSyncState returns the last-processed HEAD commit recorded for repo.
	GetSyncState(ctx context.Context, repo string) (string, bool)
	// SetSyncState records the last-processed HEAD commit for repo.
	SetSyncState(ctx context.Context, repo, head string) error
}

// GetRelatedConcepts performs breadth-first traversal over RELATES_TO edges
// from conceptID up to hops, deduplicated and order-stable by discovery.
func GetRelatedConcepts(ctx context.Context, repo Repo, conceptID string, hops int) ([]string, error) {
	return Expand(ctx, repo, []string{conceptID}, RelRelatesTo, hops)
}

// GetChunksByConcept returns the chunks connected to conceptID via a
// one-hop MENTIONS edge.
func GetChunksByConcept(ctx context.Context, repo Repo, conceptID string) ([]string, error) {
	return repo.ReverseNeighbors(ctx, conceptID, RelMentions)
}

// Expand performs a hop-bounded breadth-first traversal from seed nodes
// along rel, returning every node reached within maxHops, deduplicated.
func Expand(ctx context.Context, repo Repo, seeds []string, rel string, maxHops int) ([]string, error) {
	if maxHops <= 0 {
		return nil, nil
	}

	visited := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		visited[s] = true
	}

	frontier := append([]string{}, seeds...)
	var reached []string

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			neighbors, err := repo.Neighbors(ctx, id, rel)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if visited[n] {
					continue
				}
				visited[n] = true
				reached = append(reached, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return reached, nil
}
