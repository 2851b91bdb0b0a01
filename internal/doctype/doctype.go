// Package doctype maintains the registry of document types compendium
// accepts, and validates a parsed document's frontmatter against a type's
// required fields and JSON Schema.
package doctype

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"compendium/internal/errs"
)

// Definition describes one registered document type: its identifying name,
// the frontmatter fields that must be present, an optional JSON Schema
// (Draft 2020-12) the frontmatter must additionally satisfy, and the
// promotion level a document of this type gets when none is declared.
type Definition struct {
	ID               string         `json:"id"`
	RequiredFields   []string       `json:"required_fields"`
	Schema           map[string]any `json:"schema,omitempty"`
	TriggerPhrases   []string       `json:"trigger_phrases,omitempty"`
	DefaultPromotion string         `json:"default_promotion,omitempty"`
}

func normalizeID(id string) string { return strings.ToLower(id) }

// Registry holds the set of known document types, keyed by Definition.ID.
// It compiles and caches each type's JSON Schema on registration so
// validation never recompiles a schema per document.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]Definition
	schemas sync.Map // id -> *jsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def to the registry. Re-registering an existing ID is a
// conflict; Replace is the way to overwrite an existing registration.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return errs.New(errs.KindInvalidDocType, "doc type id must not be empty")
	}

	key := normalizeID(def.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[key]; exists {
		return errs.New(errs.KindDuplicateDocType, fmt.Sprintf("doc type %q already registered", def.ID))
	}

	if len(def.Schema) > 0 {
		compiled, err := compileSchema(key, def.Schema)
		if err != nil {
			return errs.Wrap(errs.KindInvalidDocType, fmt.Sprintf("compile schema for %q", def.ID), err)
		}
		r.schemas.Store(key, compiled)
	}

	r.defs[key] = def
	return nil
}

// Replace overwrites an existing registration for def.ID (or creates it if
// absent), recompiling and re-caching its schema. Unlike Register, this
// never conflicts — it is the explicit "I mean to update this" entry point.
func (r *Registry) Replace(def Definition) error {
	if def.ID == "" {
		return errs.New(errs.KindInvalidDocType, "doc type id must not be empty")
	}

	key := normalizeID(def.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas.Delete(key)
	if len(def.Schema) > 0 {
		compiled, err := compileSchema(key, def.Schema)
		if err != nil {
			return errs.Wrap(errs.KindInvalidDocType, fmt.Sprintf("compile schema for %q", def.ID), err)
		}
		r.schemas.Store(key, compiled)
	}
	r.defs[key] = def
	return nil
}

// Get returns the Definition for id, or an error of kind KindNotFound.
// Lookup is case-insensitive.
func (r *Registry) Get(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[normalizeID(id)]
	if !ok {
		return Definition{}, errs.New(errs.KindNotFound, fmt.Sprintf("doc type %q not registered", id))
	}
	return def, nil
}

// List returns all registered Definitions.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// Validate checks frontmatter against the required fields and, if present,
// the compiled JSON Schema of the named doc type.
func (r *Registry) Validate(ctx context.Context, docTypeID string, frontmatter map[string]any) error {
	def, err := r.Get(docTypeID)
	if err != nil {
		return err
	}

	for _, field := range def.RequiredFields {
		if _, ok := frontmatter[field]; !ok {
			return errs.New(errs.KindValidationFailed, fmt.Sprintf("missing required field %q for doc type %q", field, docTypeID))
		}
	}

	v, ok := r.schemas.Load(normalizeID(docTypeID))
	if !ok {
		return nil
	}
	schema := v.(*jsonschema.Schema)

	// jsonschema validates against plain Go values produced by
	// encoding/json, so frontmatter (decoded from YAML) is round-tripped
	// through JSON to normalize map[any]any and numeric types.
	normalized, err := normalizeForSchema(frontmatter)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "normalize frontmatter for schema validation", err)
	}

	if err := schema.Validate(normalized); err != nil {
		return errs.Wrap(errs.KindValidationFailed, fmt.Sprintf("schema validation failed for doc type %q", docTypeID), err)
	}
	return nil
}

func compileSchema(id string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	resourceName := "compendium://doctype/" + id + ".json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resourceName)
}

func normalizeForSchema(v map[string]any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
