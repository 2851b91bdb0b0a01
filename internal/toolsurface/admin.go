package toolsurface

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"compendium/internal/docparse"
	"compendium/internal/doctype"
	"compendium/internal/errs"
	"compendium/internal/repository"
	"compendium/internal/tenant"
)

// DeleteResult reports the outcome of delete_documents. Matched is always
// populated; Deleted is populated only when dryRun is false.
type DeleteResult struct {
	Matched int  `json:"matched"`
	Deleted int  `json:"deleted"`
	DryRun  bool `json:"dry_run"`
}

// DeleteDocuments removes every document indexed under the active tenant.
// With dryRun true it reports the count that would be deleted without
// touching any store, per the spec's requirement that counts are returned
// before destructive operations.
func (s *Surface) DeleteDocuments(ctx context.Context, dryRun bool) (DeleteResult, error) {
	tk, err := s.Session.RequireTenant()
	if err != nil {
		return DeleteResult{}, err
	}
	filter := tenant.FilterFor(tk)
	docs, err := s.Store.Documents.GetAllForTenant(ctx, filter)
	if err != nil {
		return DeleteResult{}, err
	}

	result := DeleteResult{Matched: len(docs), DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	for _, doc := range docs {
		deleted, err := s.Indexer.Delete(ctx, tk, doc.FilePath)
		if err != nil {
			return result, err
		}
		if deleted {
			result.Deleted++
		}
	}
	return result, nil
}

// PromotionLevelResult reports a document's promotion level before and
// after update_promotion_level.
type PromotionLevelResult struct {
	DocumentPath string                    `json:"document_path"`
	Previous     repository.PromotionLevel `json:"previous"`
	New          repository.PromotionLevel `json:"new"`
}

// UpdatePromotionLevel reassigns a document's promotion level, used to
// raise or lower its floor weight in graphrag retrieval.
func (s *Surface) UpdatePromotionLevel(ctx context.Context, documentPath, level string) (PromotionLevelResult, error) {
	tk, err := s.Session.RequireTenant()
	if err != nil {
		return PromotionLevelResult{}, err
	}

	newLevel, err := parsePromotionLevel(level)
	if err != nil {
		return PromotionLevelResult{}, err
	}

	filter := tenant.FilterFor(tk)
	doc, found, err := s.Store.Documents.GetByTenantKey(ctx, filter, documentPath)
	if err != nil {
		return PromotionLevelResult{}, err
	}
	if !found {
		return PromotionLevelResult{}, errs.New(errs.KindNotFound, "document not found: "+documentPath)
	}

	previous := doc.PromotionLevel
	doc.PromotionLevel = newLevel
	if _, err := s.Store.Documents.Upsert(ctx, doc); err != nil {
		return PromotionLevelResult{}, err
	}

	s.writePromotionFrontmatter(documentPath, newLevel)

	return PromotionLevelResult{DocumentPath: documentPath, Previous: previous, New: newLevel}, nil
}

// writePromotionFrontmatter best-effort rewrites the document's on-disk
// promotion_level frontmatter field to match the database row just updated.
// Promotion level is persisted in both places; a failure here (missing
// file, unwritable path) is logged and never fails the tool call, since the
// database row is already the source of truth for retrieval.
func (s *Surface) writePromotionFrontmatter(documentPath string, level repository.PromotionLevel) {
	root := s.Session.Current().RootPath
	if root == "" {
		return
	}
	fullPath := filepath.Join(root, documentPath)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		log.Warn().Err(err).Str("file_path", documentPath).Msg("toolsurface: frontmatter rewrite skipped, could not read file")
		return
	}
	updated, err := docparse.SetFrontmatterField(string(raw), "promotion_level", string(level))
	if err != nil {
		log.Warn().Err(err).Str("file_path", documentPath).Msg("toolsurface: frontmatter rewrite failed")
		return
	}
	if err := os.WriteFile(fullPath, []byte(updated), 0o644); err != nil {
		log.Warn().Err(err).Str("file_path", documentPath).Msg("toolsurface: frontmatter write-back failed")
	}
}

func parsePromotionLevel(level string) (repository.PromotionLevel, error) {
	switch repository.PromotionLevel(strings.ToLower(strings.TrimSpace(level))) {
	case repository.PromotionStandard:
		return repository.PromotionStandard, nil
	case repository.PromotionImportant:
		return repository.PromotionImportant, nil
	case repository.PromotionCritical:
		return repository.PromotionCritical, nil
	default:
		return "", errs.New(errs.KindInvalidArgument, "promotion level must be one of standard, important, critical")
	}
}

// RegisterDocTypeResult is the id of the newly registered doc type.
type RegisterDocTypeResult struct {
	ID string `json:"id"`
}

// RegisterDocType adds a new doc type definition to the global registry.
// Re-registering an existing id is rejected with KindDuplicateDocType.
func (s *Surface) RegisterDocType(ctx context.Context, def doctype.Definition) (RegisterDocTypeResult, error) {
	if err := s.DocTypes.Register(def); err != nil {
		return RegisterDocTypeResult{}, err
	}
	return RegisterDocTypeResult{ID: def.ID}, nil
}
