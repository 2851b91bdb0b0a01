package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	vectors map[string]entry
	dim     int
}

type entry struct {
	v        []float32
	metadata map[string]string
}

// NewMemory returns an in-memory Store suitable for local development and
// tests: exact cosine-similarity scan with no persistence.
func NewMemory(dim int) Store {
	return &memoryStore{vectors: make(map[string]entry), dim: dim}
}

func (m *memoryStore) Dimension() int { return m.dim }

func (m *memoryStore) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vector))
	copy(cp, vector)
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	m.vectors[id] = entry{v: cp, metadata: md}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

func (m *memoryStore) SimilaritySearch(_ context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	qnorm := norm(vector)
	results := make([]Result, 0, len(m.vectors))
	for id, e := range m.vectors {
		if !matchesFilter(e.metadata, filter) {
			continue
		}
		md := make(map[string]string, len(e.metadata))
		for k, v := range e.metadata {
			md[k] = v
		}
		results = append(results, Result{ID: id, Score: cosine(vector, e.v, qnorm), Metadata: md})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func matchesFilter(md, filter map[string]string) bool {
	for k, v := range filter {
		if md[k] != v {
			return false
		}
	}
	return true
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
