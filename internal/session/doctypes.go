package session

import "compendium/internal/doctype"

// DocTypeSummary is the tool-surface projection of a registered doc type.
type DocTypeSummary struct {
	ID               string   `json:"id"`
	RequiredFields   []string `json:"required_fields,omitempty"`
	TriggerPhrases   []string `json:"trigger_phrases,omitempty"`
	DefaultPromotion string   `json:"default_promotion,omitempty"`
}

// ListDocTypes summarizes every registered doc type. Doc types are global
// to the registry, not scoped per tenant, so this does not require an
// active session.
func ListDocTypes(registry *doctype.Registry) []DocTypeSummary {
	defs := registry.List()
	out := make([]DocTypeSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, DocTypeSummary{
			ID:               d.ID,
			RequiredFields:   d.RequiredFields,
			TriggerPhrases:   d.TriggerPhrases,
			DefaultPromotion: d.DefaultPromotion,
		})
	}
	return out
}
