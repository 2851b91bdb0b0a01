package entityextract

import (
	"context"
	"errors"
	"testing"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestExtract_ParsesWellFormedJSON(t *testing.T) {
	gen := &fakeGenerator{response: `{"concepts":[{"name":"tenant isolation","category":"architecture"}],"relationships":[{"source":"tenant isolation","target":"path hash","label":"RELATES_TO"}]}`}
	ex := New(gen)

	result, err := ex.Extract(context.Background(), "some chunk text about tenant isolation")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Concepts) != 1 || result.Concepts[0].Name != "tenant isolation" {
		t.Fatalf("unexpected concepts: %+v", result.Concepts)
	}
	if len(result.Relationships) != 1 || result.Relationships[0].Target != "path hash" {
		t.Fatalf("unexpected relationships: %+v", result.Relationships)
	}
}

func TestExtract_StripsFencedCodeBlock(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"concepts\":[],\"relationships\":[]}\n```"}
	ex := New(gen)

	result, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Concepts) != 0 || len(result.Relationships) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestExtract_EmptyChunkSkipsGeneratorCall(t *testing.T) {
	gen := &fakeGenerator{response: `{"concepts":[]}`}
	ex := New(gen)

	if _, err := ex.Extract(context.Background(), "   "); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no generator call for blank input, got %d calls", gen.calls)
	}
}

func TestExtract_GeneratorFailureIsBestEffort(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider unavailable")}
	ex := New(gen)

	result, err := ex.Extract(context.Background(), "some text")
	if err != nil {
		t.Fatalf("expected best-effort nil error, got %v", err)
	}
	if len(result.Concepts) != 0 || len(result.Relationships) != 0 {
		t.Fatalf("expected zero-value result on failure, got %+v", result)
	}
}

func TestExtract_MalformedJSONIsBestEffort(t *testing.T) {
	gen := &fakeGenerator{response: "not json at all"}
	ex := New(gen)

	result, err := ex.Extract(context.Background(), "some text")
	if err != nil {
		t.Fatalf("expected best-effort nil error, got %v", err)
	}
	if len(result.Concepts) != 0 {
		t.Fatalf("expected empty result for malformed response, got %+v", result)
	}
}
