// Package tenant implements the tenant key and filter that scope every
// document, chunk, vector, and graph node to a (project, branch, path-hash)
// triple.
package tenant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"compendium/internal/errs"
)

// Key identifies the owning scope of a document within compendium. Project
// and Branch are caller-supplied; PathHash is derived from the repository
// root path, so two clones of the same repo at different filesystem
// locations are different tenants.
type Key struct {
	Project  string `json:"project"`
	Branch   string `json:"branch"`
	PathHash string `json:"path_hash"`
}

// String renders the key as "project:branch:pathHash". Document ids are
// derived by DocumentID, which does not use this form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Project, k.Branch, k.PathHash)
}

// IsZero reports whether the key carries no identifying fields.
func (k Key) IsZero() bool {
	return k.Project == "" && k.Branch == "" && k.PathHash == ""
}

// External is the fixed, shared tenant scope used by search_external_docs
// and rag_query_external. It is intentionally not the caller's active
// filter: the external index is read-only and shared across all tenants.
// Branch and PathHash are fixed placeholders (not derived from any real
// checkout) so External still satisfies RequireFull at the storage
// boundary like every other tenant key.
var External = Key{Project: "__external__", Branch: "external", PathHash: "external"}

// HashPath derives the PathHash component of a Key from a repository's
// absolute root path, so the same root path resolves to the same tenant
// regardless of letter casing or a trailing slash.
func HashPath(rootPath string) string {
	clean := strings.TrimRight(strings.ToLower(rootPath), "/")
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])[:16]
}

// NewKey builds a Key from a project, branch, and repository root path.
func NewKey(project, branch, rootPath string) Key {
	return Key{Project: project, Branch: branch, PathHash: HashPath(rootPath)}
}

// Filter narrows a query or scan to a subset of the tenant space. A zero
// value field means "match any" for that component, allowing a caller to
// scope by project alone, or by project+branch, or by the exact triple.
type Filter struct {
	Project  string
	Branch   string
	PathHash string
}

// FilterFor builds an exact-match Filter from a fully specified Key.
func FilterFor(k Key) Filter {
	return Filter{Project: k.Project, Branch: k.Branch, PathHash: k.PathHash}
}

// Matches reports whether k satisfies f, treating empty Filter fields as
// wildcards.
func (f Filter) Matches(k Key) bool {
	if f.Project != "" && f.Project != k.Project {
		return false
	}
	if f.Branch != "" && f.Branch != k.Branch {
		return false
	}
	if f.PathHash != "" && f.PathHash != k.PathHash {
		return false
	}
	return true
}

// RequireFull rejects a Filter with fewer than three populated components.
// Every storage operation in the repository, vector store, and graph
// repository packages must call this at its boundary: a caller passing a
// partial filter is a programmer error, not a query that matches broadly.
func RequireFull(f Filter) error {
	if f.Project == "" || f.Branch == "" || f.PathHash == "" {
		return errs.New(errs.KindInvalidArgument, "tenant filter must specify project, branch, and path_hash")
	}
	return nil
}

// DocumentID derives the stable, lowercase document identifier for a file at
// relPath (POSIX-separated, relative to the repo root) within the given
// tenant's repository.
func DocumentID(repo, relPath string) string {
	return strings.ToLower(fmt.Sprintf("%s:%s", repo, relPath))
}
