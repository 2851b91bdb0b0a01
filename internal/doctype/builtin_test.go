package doctype

import "testing"

func TestRegisterBuiltins_AllNineRegisterWithoutConflict(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if len(r.List()) != len(builtinDefinitions) {
		t.Fatalf("expected %d types, got %d", len(builtinDefinitions), len(r.List()))
	}
	adr, err := r.Get("ADR")
	if err != nil {
		t.Fatalf("case-insensitive lookup: %v", err)
	}
	if adr.DefaultPromotion != "important" {
		t.Fatalf("unexpected default promotion for adr: %s", adr.DefaultPromotion)
	}
}
