package doctype

// RegisterBuiltins populates r with the built-in document types compendium
// ships with. Called once at startup; attempting to register a duplicate id
// afterwards is the caller's error to handle via Register's conflict check.
func RegisterBuiltins(r *Registry) error {
	for _, def := range builtinDefinitions {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

var builtinDefinitions = []Definition{
	{
		ID:               "problem",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"bug", "issue", "incident", "root cause"},
		DefaultPromotion: "standard",
	},
	{
		ID:               "insight",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"learned", "realized", "takeaway"},
		DefaultPromotion: "important",
	},
	{
		ID:               "codebase",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"architecture", "module layout", "package"},
		DefaultPromotion: "standard",
	},
	{
		ID:               "tool",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"usage", "cli", "flags"},
		DefaultPromotion: "standard",
	},
	{
		ID:               "style",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"convention", "style guide", "formatting"},
		DefaultPromotion: "standard",
	},
	{
		ID:               "spec",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"requirements", "specification"},
		DefaultPromotion: "important",
	},
	{
		ID:               "adr",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"decision", "accepted", "superseded"},
		DefaultPromotion: "important",
	},
	{
		ID:               "research",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   []string{"findings", "experiment", "benchmark"},
		DefaultPromotion: "standard",
	},
	{
		ID:               "doc",
		RequiredFields:   []string{"title", "doc_type"},
		TriggerPhrases:   nil,
		DefaultPromotion: "standard",
	},
}
