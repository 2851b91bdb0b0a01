package graphrepo

import (
	"context"
	"sync"
)

type edgeKey struct {
	src string
	rel string
}

type memoryRepo struct {
	mu        sync.RWMutex
	nodes     map[string]Node
	edges     map[edgeKey][]string
	syncState map[string]string
}

// NewMemory returns an in-process Repo backed by plain maps, useful for
// tests and single-process deployments.
func NewMemory() Repo {
	return &memoryRepo{
		nodes:     make(map[string]Node),
		edges:     make(map[edgeKey][]string),
		syncState: make(map[string]string),
	}
}

func (m *memoryRepo) UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[id] = Node{ID: id, Labels: labels, Props: props}
	return nil
}

func (m *memoryRepo) UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := edgeKey{src: srcID, rel: rel}
	for _, existing := range m.edges[key] {
		if existing == dstID {
			return nil
		}
	}
	m.edges[key] = append(m.edges[key], dstID)
	return nil
}

func (m *memoryRepo) Neighbors(ctx context.Context, id, rel string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.edges[edgeKey{src: id, rel: rel}]))
	copy(out, m.edges[edgeKey{src: id, rel: rel}])
	return out, nil
}

func (m *memoryRepo) ReverseNeighbors(ctx context.Context, id, rel string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for key, targets := range m.edges {
		if key.rel != rel {
			continue
		}
		for _, t := range targets {
			if t == id {
				out = append(out, key.src)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) GetNode(ctx context.Context, id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

func (m *memoryRepo) GetSyncState(ctx context.Context, repo string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	head, ok := m.syncState[repo]
	return head, ok
}

func (m *memoryRepo) SetSyncState(ctx context.Context, repo, head string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncState[repo] = head
	return nil
}

// relKinds enumerates every edge relationship label in use.
var relKinds = []string{RelHasSection, RelHasChunk, RelMentions, RelRelatesTo, RelLinksTo, RelSupersedes}

func (m *memoryRepo) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	descendants := m.descendantsLocked(documentID)
	toDelete := append([]string{documentID}, descendants...)
	doomed := make(map[string]bool, len(toDelete))
	for _, id := range toDelete {
		doomed[id] = true
	}

	// Concept nodes reached only via MENTIONS must survive, so only the
	// Document/Section/Chunk nodes and their outgoing/incoming edges are
	// removed.
	for id := range doomed {
		delete(m.nodes, id)
	}
	for key, targets := range m.edges {
		if doomed[key.src] {
			delete(m.edges, key)
			continue
		}
		kept := targets[:0:0]
		for _, t := range targets {
			if !doomed[t] {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(m.edges, key)
		} else {
			m.edges[key] = kept
		}
	}
	return nil
}

func (m *memoryRepo) descendantsLocked(documentID string) []string {
	var out []string
	sections := m.edges[edgeKey{src: documentID, rel: RelHasSection}]
	out = append(out, sections...)
	for _, sec := range sections {
		chunks := m.edges[edgeKey{src: sec, rel: RelHasChunk}]
		out = append(out, chunks...)
	}
	out = append(out, m.edges[edgeKey{src: documentID, rel: RelHasChunk}]...)
	return out
}
