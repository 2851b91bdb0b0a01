// Package linkgraph resolves markdown links extracted by docparse into
// LINKS_TO edges between documents within the same tenant, and maintains an
// in-memory forward/reverse adjacency so broken links can be detected
// without a round trip to the graph repository.
package linkgraph

import (
	"path"
	"strings"
	"sync"

	"compendium/internal/docparse"
	"compendium/internal/tenant"
)

// Edge is a directed LINKS_TO relationship from one document to another,
// scoped to a tenant.
type Edge struct {
	Tenant tenant.Key
	From   string // source document_id
	To     string // target document_id
	Text   string // link anchor text
}

// Resolve turns the links found in a parsed document into Edges, resolving
// relative targets against the document's own path and dropping external
// (http/https/mailto) links, which carry no in-tenant document_id.
func Resolve(t tenant.Key, repo, docRelPath string, links []docparse.Link) []Edge {
	var edges []Edge
	fromID := tenant.DocumentID(repo, docRelPath)
	baseDir := path.Dir(docRelPath)

	for _, l := range links {
		target := strings.TrimSpace(l.Target)
		if target == "" || isExternal(target) {
			continue
		}
		target = strings.SplitN(target, "#", 2)[0]
		if target == "" {
			continue
		}

		resolved := path.Clean(path.Join(baseDir, target))
		resolved = strings.TrimPrefix(resolved, "./")

		edges = append(edges, Edge{
			Tenant: t,
			From:   fromID,
			To:     tenant.DocumentID(repo, resolved),
			Text:   l.Text,
		})
	}
	return edges
}

func isExternal(target string) bool {
	for _, scheme := range []string{"http://", "https://", "mailto:", "//"} {
		if strings.HasPrefix(target, scheme) {
			return true
		}
	}
	return false
}

// Graph holds the in-memory forward/reverse adjacency between known
// document paths within one tenant, used to answer broken-link queries
// without a graph store round trip. Safe for concurrent readers with
// writer exclusion.
type Graph struct {
	mu      sync.RWMutex
	known   map[string]bool
	forward map[string]map[string]bool
	reverse map[string]map[string]bool
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		known:   make(map[string]bool),
		forward: make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

// AddDocument registers path as a known document.
func (g *Graph) AddDocument(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.known[path] = true
}

// RemoveDocument removes path and every edge incident to it, in either
// direction.
func (g *Graph) RemoveDocument(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.known, path)

	for target := range g.forward[path] {
		delete(g.reverse[target], path)
	}
	delete(g.forward, path)

	for source := range g.reverse[path] {
		delete(g.forward[source], path)
	}
	delete(g.reverse, path)
}

// AddLink records a directed edge from source to target.
func (g *Graph) AddLink(source, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.forward[source] == nil {
		g.forward[source] = make(map[string]bool)
	}
	g.forward[source][target] = true
	if g.reverse[target] == nil {
		g.reverse[target] = make(map[string]bool)
	}
	g.reverse[target][source] = true
}

// Resolve normalizes a relative link target against the path of the
// document it was found in.
func (g *Graph) Resolve(sourcePath, linkURL string) string {
	if linkURL == "" || isExternal(linkURL) {
		return ""
	}
	target := strings.SplitN(linkURL, "#", 2)[0]
	if target == "" {
		return ""
	}
	resolved := path.Clean(path.Join(path.Dir(sourcePath), target))
	return strings.TrimPrefix(resolved, "./")
}

// BrokenLink is a forward edge whose target is not a known document.
type BrokenLink struct {
	Source string
	Target string
}

// BrokenLinks returns every forward edge whose target is not among the
// known documents.
func (g *Graph) BrokenLinks() []BrokenLink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []BrokenLink
	for source, targets := range g.forward {
		for target := range targets {
			if !g.known[target] {
				out = append(out, BrokenLink{Source: source, Target: target})
			}
		}
	}
	return out
}
