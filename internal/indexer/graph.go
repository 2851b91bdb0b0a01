package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"compendium/internal/entityextract"
	"compendium/internal/graphrepo"
)

// conceptID derives a stable graph node id for a concept name, so the same
// concept mentioned in two different chunks (or documents) upserts to one
// node instead of duplicating.
func conceptID(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return "concept:" + hex.EncodeToString(sum[:])[:16]
}

// sectionID derives a stable node id for a header path within a document.
func sectionID(documentID string, headerPath []string) string {
	if len(headerPath) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(documentID + "\x00" + strings.Join(headerPath, "\x00")))
	return documentID + "#section:" + hex.EncodeToString(sum[:])[:12]
}

// mirrorDocumentGraph upserts the Document/Section/Chunk nodes and
// HAS_SECTION/HAS_CHUNK edges for one freshly (re)indexed document.
func mirrorDocumentGraph(ctx context.Context, repo graphrepo.Repo, documentID, filePath, title, docType string, spans []chunkSpan, chunkIDs []string) error {
	if err := repo.UpsertNode(ctx, documentID, []string{graphrepo.LabelDocument}, map[string]any{
		"file_path": filePath, "title": title, "doc_type": docType,
	}); err != nil {
		return err
	}

	for i, span := range spans {
		chunkID := chunkIDs[i]
		if err := repo.UpsertNode(ctx, chunkID, []string{graphrepo.LabelChunk}, map[string]any{
			"document_id": documentID, "index": span.Index,
		}); err != nil {
			return err
		}

		parentID := documentID
		if sid := sectionID(documentID, span.HeaderPath); sid != "" {
			if err := repo.UpsertNode(ctx, sid, []string{graphrepo.LabelSection}, map[string]any{
				"document_id": documentID, "title": span.HeaderPath[len(span.HeaderPath)-1],
			}); err != nil {
				return err
			}
			if err := repo.UpsertEdge(ctx, documentID, graphrepo.RelHasSection, sid, nil); err != nil {
				return err
			}
			parentID = sid
		}
		if err := repo.UpsertEdge(ctx, parentID, graphrepo.RelHasChunk, chunkID, nil); err != nil {
			return err
		}
	}
	return nil
}

// mirrorEntityExtraction upserts Concept nodes and MENTIONS/RELATES_TO
// edges discovered by the entity extractor for one chunk. Failures here are
// never fatal to indexing; callers log and continue.
func mirrorEntityExtraction(ctx context.Context, repo graphrepo.Repo, chunkID string, result entityextract.Result) error {
	ids := make(map[string]string, len(result.Concepts))
	for _, c := range result.Concepts {
		id := conceptID(c.Name)
		ids[c.Name] = id
		if err := repo.UpsertNode(ctx, id, []string{graphrepo.LabelConcept}, map[string]any{
			"name": c.Name, "category": c.Category, "description": c.Description,
		}); err != nil {
			return err
		}
		if err := repo.UpsertEdge(ctx, chunkID, graphrepo.RelMentions, id, nil); err != nil {
			return err
		}
	}
	for _, rel := range result.Relationships {
		srcID, ok := ids[rel.Source]
		if !ok {
			srcID = conceptID(rel.Source)
		}
		dstID, ok := ids[rel.Target]
		if !ok {
			dstID = conceptID(rel.Target)
		}
		if err := repo.UpsertEdge(ctx, srcID, graphrepo.RelRelatesTo, dstID, map[string]any{"label": rel.Label}); err != nil {
			return err
		}
	}
	return nil
}
