package doctype

import (
	"context"
	"testing"

	"compendium/internal/errs"
)

func TestRegister_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	def := Definition{ID: "adr", RequiredFields: []string{"title"}}
	if err := r.Register(def); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(def); !errs.Is(err, errs.KindDuplicateDocType) {
		t.Fatalf("expected duplicate doc type error, got %v", err)
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{ID: "adr", RequiredFields: []string{"title", "status"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Validate(context.Background(), "adr", map[string]any{"title": "x"})
	if !errs.Is(err, errs.KindValidationFailed) {
		t.Fatalf("expected validation failed, got %v", err)
	}
}

func TestValidate_JSONSchema(t *testing.T) {
	r := NewRegistry()
	schema := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"status": map[string]any{"enum": []any{"draft", "accepted", "superseded"}},
		},
		"required": []any{"status"},
	}
	if err := r.Register(Definition{ID: "adr", Schema: schema}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := r.Validate(context.Background(), "adr", map[string]any{"status": "bogus"}); !errs.Is(err, errs.KindValidationFailed) {
		t.Fatalf("expected schema validation failure, got %v", err)
	}
	if err := r.Validate(context.Background(), "adr", map[string]any{"status": "accepted"}); err != nil {
		t.Fatalf("expected valid frontmatter to pass, got %v", err)
	}
}

func TestValidate_UnknownDocType(t *testing.T) {
	r := NewRegistry()
	err := r.Validate(context.Background(), "missing", nil)
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReplace_InvalidatesSchemaCache(t *testing.T) {
	r := NewRegistry()
	loose := map[string]any{"type": "object"}
	strict := map[string]any{
		"type":     "object",
		"required": []any{"status"},
	}
	if err := r.Register(Definition{ID: "adr", Schema: loose}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Validate(context.Background(), "adr", map[string]any{}); err != nil {
		t.Fatalf("expected loose schema to pass, got %v", err)
	}
	if err := r.Replace(Definition{ID: "adr", Schema: strict}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := r.Validate(context.Background(), "adr", map[string]any{}); err == nil {
		t.Fatalf("expected stricter schema to reject empty frontmatter after replace")
	}
}
