// Package graphrag answers natural-language questions over an indexed
// tenant's documents by combining vector similarity search with
// concept-graph expansion, then synthesizing a cited answer from the
// resulting chunk set.
package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"compendium/internal/entityextract"
	"compendium/internal/graphrepo"
	"compendium/internal/repository"
	"compendium/internal/resilience"
	"compendium/internal/tenant"
	"compendium/internal/vectorstore"
)

// FusionWeights controls how a chunk's vector score and its graph
// proximity (1/(1+hops) from a directly retrieved seed) are blended into a
// single ranking score. Defaults to the reference 0.7/0.3 split.
type FusionWeights struct {
	Vector         float64
	GraphProximity float64
}

// DefaultFusionWeights is the reference blend: mostly vector relevance,
// with a graph-proximity tiebreaker toward concept-adjacent material.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Vector: 0.7, GraphProximity: 0.3}
}

// Embedder is the minimal embedding surface graphrag needs to vectorize a
// query; embedding.Embedder satisfies this directly.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config wires the stores and models an Engine queries over.
type Config struct {
	Embedder      Embedder
	Vectors       vectorstore.Store
	Store         repository.Store
	Graph         graphrepo.Repo
	Generator     entityextract.Generator
	FusionWeights FusionWeights
}

// Engine runs the GraphRAG query pipeline for one configured backend set.
type Engine struct {
	cfg             Config
	embedPipeline   *resilience.Pipeline
	storagePipeline *resilience.Pipeline
}

// New builds an Engine from cfg, defaulting unset fusion weights.
func New(cfg Config) *Engine {
	if cfg.FusionWeights == (FusionWeights{}) {
		cfg.FusionWeights = DefaultFusionWeights()
	}
	return &Engine{
		cfg:             cfg,
		embedPipeline:   resilience.New(resilience.EmbeddingPipeline()),
		storagePipeline: resilience.New(resilience.StoragePipeline()),
	}
}

// Options configures one Query call.
type Options struct {
	MaxChunks      int
	GraphHops      int
	MinScore       float64
	PromotionFloor repository.PromotionLevel
}

func (o Options) withDefaults() Options {
	if o.MaxChunks <= 0 {
		o.MaxChunks = 10
	}
	if o.GraphHops <= 0 {
		o.GraphHops = 1
	}
	return o
}

// candidate is one chunk under consideration for the final answer, carrying
// enough to compute its blended score and, once selected, its citation.
type candidate struct {
	chunkID     string
	vectorScore float64
	hops        int
	blended     float64
}

func (c candidate) proximity() float64 {
	return 1.0 / float64(1+c.hops)
}

// Query runs the embed -> vector search -> graph expand -> fuse ->
// synthesize pipeline described for compendium's retrieval surface. Empty
// retrieval is not an error: it returns an answer noting insufficient
// evidence with no sources.
func (e *Engine) Query(ctx context.Context, tk tenant.Key, text string, opt Options) (Result, error) {
	filter := tenant.FilterFor(tk)
	if err := tenant.RequireFull(filter); err != nil {
		return Result{}, err
	}
	opt = opt.withDefaults()

	queryVec, err := e.embed(ctx, text)
	if err != nil {
		return Result{}, err
	}

	vecFilter := map[string]string{"project_name": tk.Project, "branch_name": tk.Branch, "path_hash": tk.PathHash}
	hits, err := e.cfg.Vectors.SimilaritySearch(ctx, queryVec, opt.MaxChunks, vecFilter)
	if err != nil {
		return Result{}, err
	}

	candidates := make(map[string]*candidate, len(hits))
	for _, h := range hits {
		if h.Score < opt.MinScore {
			continue
		}
		candidates[h.ID] = &candidate{chunkID: h.ID, vectorScore: h.Score, hops: 0}
	}

	// Collect the concepts mentioned by the seed chunks, then expand the
	// concept network by opt.GraphHops hops of RELATES_TO edges.
	conceptHops := map[string]int{}
	if e.cfg.Graph != nil {
		for id := range candidates {
			concepts, err := e.cfg.Graph.Neighbors(ctx, id, graphrepo.RelMentions)
			if err != nil {
				log.Warn().Err(err).Str("chunk_id", id).Msg("graphrag: concept lookup failed")
				continue
			}
			for _, c := range concepts {
				if _, seen := conceptHops[c]; !seen {
					conceptHops[c] = 0
				}
			}
		}
		expandConcepts(ctx, e.cfg.Graph, conceptHops, opt.GraphHops)

		// Budget-capped retrieval of additional chunks via MENTIONS from the
		// expanded concept set, per the max_chunks x 2 ceiling.
		budget := opt.MaxChunks * 2
		for conceptID, hop := range conceptHops {
			if len(candidates) >= budget {
				break
			}
			chunkIDs, err := graphrepo.GetChunksByConcept(ctx, e.cfg.Graph, conceptID)
			if err != nil {
				log.Warn().Err(err).Str("concept_id", conceptID).Msg("graphrag: related-chunk lookup failed")
				continue
			}
			for _, cid := range chunkIDs {
				if len(candidates) >= budget {
					break
				}
				if existing, ok := candidates[cid]; ok {
					if hop < existing.hops {
						existing.hops = hop
					}
					continue
				}
				candidates[cid] = &candidate{chunkID: cid, hops: hop}
			}
		}
	}

	kept, sources, chunkTexts := e.resolveAndRank(ctx, tk, opt, candidates)
	if len(kept) == 0 {
		return insufficientEvidence(), nil
	}

	related := relatedConceptNames(ctx, e.cfg.Graph, conceptHops)

	answer, err := e.synthesize(ctx, text, chunkTexts)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Answer:          answer,
		Sources:         sources,
		RelatedConcepts: related,
		Confidence:      confidenceFrom(kept),
	}, nil
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embedPipeline.Do(ctx, func(ctx context.Context) (any, error) {
		return e.cfg.Embedder.EmbedBatch(ctx, []string{text})
	})
	if err != nil {
		return nil, err
	}
	vectors := out.([][]float32)
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

// resolveAndRank fetches each candidate's chunk and owning document,
// drops anything below the promotion floor, blends vector score and graph
// proximity, sorts descending, and prunes to opt.MaxChunks.
func (e *Engine) resolveAndRank(ctx context.Context, tk tenant.Key, opt Options, candidates map[string]*candidate) ([]*candidate, []Source, []string) {
	type resolved struct {
		cand     *candidate
		chunk    repository.DocumentChunk
		document repository.CompoundDocument
		blended  float64
	}

	w := e.cfg.FusionWeights
	resolvedList := make([]resolved, 0, len(candidates))
	for _, c := range candidates {
		chunk, ok, err := e.cfg.Store.Chunks.GetByID(ctx, c.chunkID)
		if err != nil || !ok {
			continue
		}
		doc, ok, err := e.cfg.Store.Documents.GetByID(ctx, chunk.DocumentID)
		if err != nil || !ok || doc.TenantKey != tk {
			continue
		}
		if opt.PromotionFloor != "" && !doc.PromotionLevel.Meets(opt.PromotionFloor) {
			continue
		}
		blended := w.Vector*c.vectorScore + w.GraphProximity*c.proximity()
		resolvedList = append(resolvedList, resolved{cand: c, chunk: chunk, document: doc, blended: blended})
	}

	sort.Slice(resolvedList, func(i, j int) bool {
		if resolvedList[i].blended != resolvedList[j].blended {
			return resolvedList[i].blended > resolvedList[j].blended
		}
		return resolvedList[i].chunk.ID < resolvedList[j].chunk.ID
	})
	if len(resolvedList) > opt.MaxChunks {
		resolvedList = resolvedList[:opt.MaxChunks]
	}

	kept := make([]*candidate, 0, len(resolvedList))
	sources := make([]Source, 0, len(resolvedList))
	texts := make([]string, 0, len(resolvedList))
	for _, r := range resolvedList {
		r.cand.blended = r.blended
		kept = append(kept, r.cand)
		sources = append(sources, Source{
			DocumentID: r.document.ID, ChunkID: r.chunk.ID, FilePath: r.document.FilePath, Score: r.blended,
		})
		texts = append(texts, r.chunk.Content)
	}
	return kept, sources, texts
}

// expandConcepts runs a level-by-level BFS over RELATES_TO edges starting
// from the seed concepts already present in hops (at distance 0), recording
// the first-discovered hop distance for every newly reached concept up to
// maxHops.
func expandConcepts(ctx context.Context, repo graphrepo.Repo, hops map[string]int, maxHops int) {
	frontier := make([]string, 0, len(hops))
	for id := range hops {
		frontier = append(frontier, id)
	}
	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			neighbors, err := repo.Neighbors(ctx, id, graphrepo.RelRelatesTo)
			if err != nil {
				continue
			}
			for _, n := range neighbors {
				if _, seen := hops[n]; seen {
					continue
				}
				hops[n] = hop
				next = append(next, n)
			}
		}
		frontier = next
	}
}

func relatedConceptNames(ctx context.Context, repo graphrepo.Repo, conceptHops map[string]int) []string {
	if repo == nil {
		return nil
	}
	names := make([]string, 0, len(conceptHops))
	for id, hop := range conceptHops {
		if hop == 0 {
			continue // a directly mentioned concept, not a graph-expansion discovery
		}
		if node, ok := repo.GetNode(ctx, id); ok {
			if name, ok := node.Props["name"].(string); ok && name != "" {
				names = append(names, name)
				continue
			}
		}
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// confidenceFrom estimates answer confidence from the blended-score
// distribution of the chunks actually used, averaging the top three (or
// fewer) and clamping to [0,1].
func confidenceFrom(kept []*candidate) float64 {
	n := len(kept)
	if n == 0 {
		return 0
	}
	top := n
	if top > 3 {
		top = 3
	}
	var sum float64
	for i := 0; i < top; i++ {
		sum += kept[i].blended
	}
	avg := sum / float64(top)
	if avg < 0 {
		return 0
	}
	if avg > 1 {
		return 1
	}
	return avg
}

const synthesisPrompt = `Answer the question using only the numbered excerpts below. Cite sources inline using their [N] marker. If the excerpts do not contain enough information, say so plainly.

Question: %s

Excerpts:
%s`

func (e *Engine) synthesize(ctx context.Context, query string, chunkTexts []string) (string, error) {
	var b strings.Builder
	for i, text := range chunkTexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, text)
	}
	prompt := fmt.Sprintf(synthesisPrompt, query, b.String())

	out, err := e.storagePipeline.Do(ctx, func(ctx context.Context) (any, error) {
		return e.cfg.Generator.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
