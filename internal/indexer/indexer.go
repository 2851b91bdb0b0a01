// Package indexer orchestrates the parse -> validate -> chunk -> embed ->
// store -> publish pipeline that turns one markdown file into its indexed
// representation across the relational, vector, and graph stores.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"compendium/internal/chunker"
	"compendium/internal/docparse"
	"compendium/internal/doctype"
	"compendium/internal/embedding"
	"compendium/internal/entityextract"
	"compendium/internal/eventbus"
	"compendium/internal/graphrepo"
	"compendium/internal/linkgraph"
	"compendium/internal/repository"
	"compendium/internal/resilience"
	"compendium/internal/tenant"
	"compendium/internal/vectorstore"
)

// Config wires the Indexer's dependencies. Extractor, Links, and Bus are
// optional: a nil Extractor skips entity extraction, a nil Links skips
// in-memory broken-link tracking, and a nil Bus skips event publication.
type Config struct {
	DocTypes       *doctype.Registry
	Embedder       embedding.Embedder
	Store          repository.Store
	Vectors        vectorstore.Store
	Graph          graphrepo.Repo
	Extractor      entityextract.Extractor
	Links          *linkgraph.Graph
	Bus            *eventbus.Bus
	ChunkOptions   chunker.Options
	LenientDocType bool
}

// Indexer is the central orchestrator described by the document lifecycle:
// Absent -> Indexed -> (Updated|Promoted|Superseded)* -> Deleted.
type Indexer struct {
	cfg             Config
	embedPipeline   *resilience.Pipeline
	storagePipeline *resilience.Pipeline
}

// New builds an Indexer from cfg, defaulting ChunkOptions when unset.
func New(cfg Config) *Indexer {
	if cfg.ChunkOptions.MaxChars <= 0 {
		cfg.ChunkOptions = chunker.DefaultOptions()
	}
	return &Indexer{
		cfg:             cfg,
		embedPipeline:   resilience.New(resilience.EmbeddingPipeline()),
		storagePipeline: resilience.New(resilience.StoragePipeline()),
	}
}

// FileInput is one file to index as part of a batch.
type FileInput struct {
	FilePath string
	Content  string
}

// BatchIndex indexes each file independently: one file's failure is
// captured in its own IndexResult and never aborts the rest of the batch.
func (ix *Indexer) BatchIndex(ctx context.Context, tk tenant.Key, files []FileInput) ([]IndexResult, error) {
	filter := tenant.FilterFor(tk)
	if err := tenant.RequireFull(filter); err != nil {
		return nil, err
	}
	results := make([]IndexResult, len(files))
	for i, f := range files {
		result, err := ix.Index(ctx, tk, f.FilePath, f.Content)
		if err != nil {
			result = fail(f.FilePath, err.Error())
		}
		results[i] = result
	}
	return results, nil
}

// Index runs the full parse -> validate -> chunk -> embed -> store ->
// publish pipeline for one file. A non-nil error is returned only for
// boundary/programmer errors (an incomplete tenant filter); every other
// failure is reported inside the returned IndexResult with Success=false.
func (ix *Indexer) Index(ctx context.Context, tk tenant.Key, filePath, content string) (IndexResult, error) {
	start := time.Now()
	filter := tenant.FilterFor(tk)
	if err := tenant.RequireFull(filter); err != nil {
		return IndexResult{}, err
	}

	parsed, err := docparse.Parse(content)
	if err != nil {
		return fail(filePath, "parse: "+err.Error()), nil
	}

	title := resolveTitle(parsed, filePath)
	docType := resolveDocType(parsed.Frontmatter)

	var warnings []string
	if ix.cfg.DocTypes != nil {
		if _, getErr := ix.cfg.DocTypes.Get(docType); getErr != nil {
			if ix.cfg.LenientDocType {
				warnings = append(warnings, fmt.Sprintf("unknown doc_type %q, validation skipped", docType))
			} else {
				return fail(filePath, fmt.Sprintf("unknown doc_type %q", docType)), nil
			}
		} else if valErr := ix.cfg.DocTypes.Validate(ctx, docType, parsed.Frontmatter); valErr != nil {
			return fail(filePath, "validate: "+valErr.Error()), nil
		}
	}

	bodyHash := hashBody(parsed.Body)
	existing, found, err := ix.cfg.Store.Documents.GetByTenantKey(ctx, filter, filePath)
	if err != nil {
		return fail(filePath, "lookup document: "+err.Error()), nil
	}

	promotion := repository.PromotionLevel(promotionFromFrontmatter(parsed.Frontmatter))
	if promotion == "" {
		promotion = defaultPromotion(ix.cfg.DocTypes, docType)
	}

	doc := repository.CompoundDocument{
		TenantKey:      tk,
		FilePath:       filePath,
		Title:          title,
		DocType:        docType,
		PromotionLevel: promotion,
		Frontmatter:    parsed.Frontmatter,
		BodyHash:       bodyHash,
		UpdatedAt:      time.Now(),
	}

	if found && existing.BodyHash == bodyHash {
		// Metadata-only path: promotion/frontmatter may have changed but the
		// body didn't, so chunking, embedding, and entity extraction are
		// skipped entirely.
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		doc.Vector = existing.Vector
		saved, err := ix.cfg.Store.Documents.Upsert(ctx, doc)
		if err != nil {
			return fail(filePath, "upsert document: "+err.Error()), nil
		}
		ix.publish(eventbus.Updated, filePath, tk, map[string]any{"content_changed": false})
		return IndexResult{
			Success: true, DocumentID: saved.ID, FilePath: filePath,
			ChunkCount: 0, ProcessingMS: ms(time.Since(start)),
			Warnings: warnings, DocType: docType, Title: title, ContentChanged: false,
		}, nil
	}

	documentID := existing.ID
	if !found {
		documentID = tenant.DocumentID(tk.Project, filePath)
	} else {
		// Content changed: the old chunk set is fully replaced.
		if oldChunks, err := ix.cfg.Store.Chunks.GetByTenantKey(ctx, existing.ID); err == nil && ix.cfg.Vectors != nil {
			for _, c := range oldChunks {
				_ = ix.cfg.Vectors.Delete(ctx, c.ID)
			}
		}
		if err := ix.cfg.Store.Chunks.Delete(ctx, existing.ID); err != nil {
			return fail(filePath, "delete stale chunks: "+err.Error()), nil
		}
	}
	doc.ID = documentID

	spans := buildChunkSpans(parsed.Body, parsed.Headers, ix.cfg.ChunkOptions)

	embedStart := time.Now()
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	var vectors [][]float32
	if len(texts) > 0 {
		out, err := ix.embedPipeline.Do(ctx, func(ctx context.Context) (any, error) {
			return ix.cfg.Embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return fail(filePath, "embed: "+err.Error()), nil
		}
		vectors = out.([][]float32)
	}
	embeddingMS := ms(time.Since(embedStart))

	if len(spans) == 1 {
		doc.Vector = vectors[0]
	}

	chunkIDs := make([]string, len(spans))
	for i, span := range spans {
		chunkID := fmt.Sprintf("%s#%d", documentID, span.Index)
		chunkIDs[i] = chunkID
		var embVec []float32
		if i < len(vectors) {
			embVec = vectors[i]
		}
		chunk := repository.DocumentChunk{
			ID: chunkID, DocumentID: documentID, Index: span.Index,
			HeaderPath: span.HeaderPath, StartLine: span.StartLine, EndLine: span.EndLine,
			Content: span.Text, ContentHash: hashBody(span.Text), Embedding: embVec,
		}
		if _, err := ix.cfg.Store.Chunks.Upsert(ctx, chunk); err != nil {
			return fail(filePath, "upsert chunk: "+err.Error()), nil
		}
		if embVec != nil && ix.cfg.Vectors != nil {
			meta := map[string]string{
				"project_name": tk.Project, "branch_name": tk.Branch, "path_hash": tk.PathHash,
				"promotion_level": string(doc.PromotionLevel),
				"document_id":     documentID, "chunk_id": chunkID,
			}
			if _, err := ix.storagePipeline.Do(ctx, func(ctx context.Context) (any, error) {
				return nil, ix.cfg.Vectors.Upsert(ctx, chunkID, embVec, meta)
			}); err != nil {
				return fail(filePath, "upsert vector: "+err.Error()), nil
			}
		}
	}

	saved, err := ix.cfg.Store.Documents.Upsert(ctx, doc)
	if err != nil {
		return fail(filePath, "upsert document: "+err.Error()), nil
	}

	if ix.cfg.Graph != nil {
		if err := mirrorDocumentGraph(ctx, ix.cfg.Graph, documentID, filePath, title, docType, spans, chunkIDs); err != nil {
			log.Warn().Err(err).Str("file_path", filePath).Msg("indexer: graph mirror failed")
		}
		if ix.cfg.Extractor != nil {
			for i, span := range spans {
				result, err := ix.cfg.Extractor.Extract(ctx, span.Text)
				if err != nil {
					continue
				}
				if err := mirrorEntityExtraction(ctx, ix.cfg.Graph, chunkIDs[i], result); err != nil {
					log.Warn().Err(err).Str("file_path", filePath).Msg("indexer: entity mirror failed")
				}
			}
		}
	}

	if ix.cfg.Links != nil {
		ix.cfg.Links.AddDocument(filePath)
		for _, link := range parsed.Links {
			if target := ix.cfg.Links.Resolve(filePath, link.Target); target != "" {
				ix.cfg.Links.AddLink(filePath, target)
			}
		}
	}
	if ix.cfg.Graph != nil {
		for _, edge := range linkgraph.Resolve(tk, tk.Project, filePath, parsed.Links) {
			if err := ix.cfg.Graph.UpsertEdge(ctx, edge.From, graphrepo.RelLinksTo, edge.To, map[string]any{"text": edge.Text}); err != nil {
				log.Warn().Err(err).Str("file_path", filePath).Msg("indexer: link edge upsert failed")
			}
		}
	}

	if found {
		ix.publish(eventbus.Updated, filePath, tk, map[string]any{"content_changed": true})
	} else {
		ix.publish(eventbus.Created, filePath, tk, map[string]any{"content_changed": true})
	}

	return IndexResult{
		Success: true, DocumentID: saved.ID, FilePath: filePath,
		ChunkCount: len(spans), ProcessingMS: ms(time.Since(start)), EmbeddingMS: embeddingMS,
		Warnings: warnings, DocType: docType, Title: title, ContentChanged: true,
	}, nil
}

// Delete removes a document, its chunks, its vectors, and its link-graph
// membership. Idempotent: deleting an unknown document returns false
// without error.
func (ix *Indexer) Delete(ctx context.Context, tk tenant.Key, filePath string) (bool, error) {
	filter := tenant.FilterFor(tk)
	if err := tenant.RequireFull(filter); err != nil {
		return false, err
	}

	doc, found, err := ix.cfg.Store.Documents.GetByTenantKey(ctx, filter, filePath)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if chunks, err := ix.cfg.Store.Chunks.GetByTenantKey(ctx, doc.ID); err == nil {
		for _, c := range chunks {
			if ix.cfg.Vectors != nil {
				_ = ix.cfg.Vectors.Delete(ctx, c.ID)
			}
		}
	}
	if err := ix.cfg.Store.Chunks.Delete(ctx, doc.ID); err != nil {
		return false, err
	}
	if _, err := ix.cfg.Store.Documents.Delete(ctx, filter, filePath); err != nil {
		return false, err
	}
	if ix.cfg.Graph != nil {
		if err := ix.cfg.Graph.DeleteDocument(ctx, doc.ID); err != nil {
			log.Warn().Err(err).Str("file_path", filePath).Msg("indexer: graph cascade delete failed")
		}
	}
	if ix.cfg.Links != nil {
		ix.cfg.Links.RemoveDocument(filePath)
	}

	ix.publish(eventbus.Deleted, filePath, tk, nil)
	return true, nil
}

func (ix *Indexer) publish(t eventbus.Type, filePath string, tk tenant.Key, payload map[string]any) {
	if ix.cfg.Bus == nil {
		return
	}
	ix.cfg.Bus.Publish(eventbus.Event{
		Type: t, FilePath: filePath, TenantKey: tk, Timestamp: time.Now(), Payload: payload,
	})
}

// resolveTitle follows the frontmatter -> first H1 -> file stem order.
func resolveTitle(parsed docparse.Parsed, filePath string) string {
	if t, ok := parsed.Frontmatter["title"].(string); ok && strings.TrimSpace(t) != "" {
		return t
	}
	for _, h := range parsed.Headers {
		if h.Level == 1 {
			return h.Text
		}
	}
	stem := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	stem = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, stem)
	return stem
}

func resolveDocType(frontmatter map[string]any) string {
	if dt, ok := frontmatter["doc_type"].(string); ok && strings.TrimSpace(dt) != "" {
		return dt
	}
	return "doc"
}

func promotionFromFrontmatter(frontmatter map[string]any) string {
	if p, ok := frontmatter["promotion_level"].(string); ok {
		return p
	}
	return ""
}

func defaultPromotion(registry *doctype.Registry, docType string) repository.PromotionLevel {
	if registry != nil {
		if def, err := registry.Get(docType); err == nil && def.DefaultPromotion != "" {
			return repository.PromotionLevel(def.DefaultPromotion)
		}
	}
	return repository.PromotionStandard
}

func hashBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func ms(d time.Duration) int64 { return int64(d / time.Millisecond) }
