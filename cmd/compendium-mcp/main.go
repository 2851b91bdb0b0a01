// Command compendium-mcp runs the long-lived compendium server: it loads
// configuration, wires the indexing and GraphRAG pipelines to their
// configured storage backends, and serves the tool-calling surface over
// MCP on stdio until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"compendium/internal/config"
	"compendium/internal/doctype"
	"compendium/internal/embedding"
	"compendium/internal/entityextract"
	"compendium/internal/eventbus"
	"compendium/internal/gitsync"
	"compendium/internal/graphrag"
	"compendium/internal/graphrepo"
	"compendium/internal/indexer"
	"compendium/internal/linkgraph"
	"compendium/internal/repository"
	"compendium/internal/resilience"
	"compendium/internal/session"
	"compendium/internal/tenant"
	"compendium/internal/toolsurface"
	"compendium/internal/vectorstore"
	"compendium/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("COMPENDIUM_CONFIG"), "path to compendium.yaml (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("compendium-mcp: fatal")
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	srv, err := buildServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.close()

	group, gctx := errgroup.WithContext(ctx)

	if len(cfg.GitSync.Repos) > 0 {
		group.Go(func() error {
			log.Info().Int("repos", len(cfg.GitSync.Repos)).Msg("compendium-mcp: starting git sync scheduler")
			return srv.scheduler.Run(gctx)
		})
	}

	group.Go(func() error {
		log.Info().Str("version", version.Version).Msg("compendium-mcp: serving MCP tools on stdio")
		return srv.serveMCP(gctx)
	})

	group.Go(func() error {
		return runSweeper(gctx, 2*time.Minute, func(now time.Time) {
			if n := srv.limiter.SweepStale(now); n > 0 {
				log.Debug().Int("removed", n).Msg("compendium-mcp: swept stale rate-limit buckets")
			}
		})
	})

	group.Go(func() error {
		return runSweeper(gctx, 10*time.Minute, func(now time.Time) {
			if n := srv.embedCache.SweepExpired(now); n > 0 {
				log.Debug().Int("removed", n).Msg("compendium-mcp: swept expired embedding cache entries")
			}
		})
	})

	if err := group.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	log.Info().Msg("compendium-mcp: shutdown complete")
	return nil
}

// runSweeper calls sweep once per tick until ctx is cancelled, the way the
// rate limiter's stale buckets and the embedding cache's expired entries are
// reclaimed in the background rather than only on the lazy read path.
func runSweeper(ctx context.Context, interval time.Duration, sweep func(now time.Time)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			sweep(now)
		}
	}
}

// server bundles every long-lived dependency the MCP tool handlers and
// background workers share.
type server struct {
	surface    *toolsurface.Surface
	scheduler  *gitsync.Scheduler
	watch      *watchSupervisor
	limiter    *resilience.Limiter
	embedCache *embedding.Cache
	pool       *pgxpool.Pool
}

func (s *server) close() {
	s.watch.stopAll()
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildServer(ctx context.Context, cfg config.Config) (*server, error) {
	var pool *pgxpool.Pool
	if cfg.Repository.Backend == "postgres" || cfg.Vectors.Backend == "postgres" || cfg.ExternalVectors.Backend == "postgres" {
		p, err := pgxpool.New(ctx, cfg.Repository.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pool = p
	}

	store, err := repository.New(ctx, repository.Config{Backend: cfg.Repository.Backend}, pool)
	if err != nil {
		return nil, fmt.Errorf("build repository store: %w", err)
	}

	vectors, err := vectorstore.New(ctx, vectorstore.Config{
		Backend: cfg.Vectors.Backend, DSN: cfg.Vectors.DSN, Collection: cfg.Vectors.Collection,
		Dimensions: cfg.Vectors.Dimensions, Metric: cfg.Vectors.Metric,
	}, pool)
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}

	graph, err := graphrepo.New(ctx, graphrepo.Config{Backend: cfg.Repository.Backend}, pool)
	if err != nil {
		return nil, fmt.Errorf("build graph repository: %w", err)
	}

	registry := doctype.NewRegistry()
	if err := doctype.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("register builtin doc types: %w", err)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider: cfg.Embedding.Provider, BaseURL: cfg.Embedding.BaseURL, APIKey: cfg.Embedding.APIKey,
		Model: cfg.Embedding.Model, Path: cfg.Embedding.Path, Dim: cfg.Embedding.Dim,
	})
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	embedCache := embedding.NewCache(embedder, 10_000, time.Hour)
	embedder = embedCache

	generator, err := entityextract.NewGenerator(entityextract.Config{
		Provider: cfg.EntityExtract.Provider, APIKey: cfg.EntityExtract.APIKey,
		Model: cfg.EntityExtract.Model, BaseURL: cfg.EntityExtract.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build entity extraction generator: %w", err)
	}
	extractor := entityextract.New(generator)

	var sink eventbus.Sink
	if cfg.Kafka.Enabled {
		kafkaSink, err := eventbus.NewKafkaSink(eventbus.KafkaConfig{
			Enabled: cfg.Kafka.Enabled, Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("build kafka sink: %w", err)
		}
		sink = kafkaSink
	}
	bus := eventbus.New(sink)

	links := linkgraph.NewGraph()

	ix := indexer.New(indexer.Config{
		DocTypes:  registry,
		Embedder:  embedder,
		Store:     store,
		Vectors:   vectors,
		Graph:     graph,
		Extractor: extractor,
		Links:     links,
		Bus:       bus,
	})

	engine := graphrag.New(graphrag.Config{
		Embedder:  embedder,
		Vectors:   vectors,
		Store:     store,
		Graph:     graph,
		Generator: generator,
	})

	sessionMgr := session.NewManager(store)
	limiter := resilience.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour)

	surfaceCfg := toolsurface.Surface{
		Session:  sessionMgr,
		Indexer:  ix,
		Store:    store,
		Vectors:  vectors,
		Embedder: embedder,
		DocTypes: registry,
		Engine:   engine,
		Limiter:  limiter,
	}

	if cfg.ExternalVectors.Backend != "" {
		extVectors, err := vectorstore.New(ctx, vectorstore.Config{
			Backend: cfg.ExternalVectors.Backend, DSN: cfg.ExternalVectors.DSN,
			Collection: cfg.ExternalVectors.Collection, Dimensions: cfg.ExternalVectors.Dimensions,
			Metric: cfg.ExternalVectors.Metric,
		}, pool)
		if err != nil {
			return nil, fmt.Errorf("build external vector store: %w", err)
		}
		surfaceCfg.ExternalVectors = extVectors
		surfaceCfg.ExternalEngine = graphrag.New(graphrag.Config{
			Embedder: embedder, Vectors: extVectors, Store: store, Graph: graph, Generator: generator,
		})
	}

	surface := toolsurface.New(surfaceCfg)

	var repos []gitsync.RepoConfig
	for _, r := range cfg.GitSync.Repos {
		repos = append(repos, gitsync.RepoConfig{
			Name: r.Name, URL: r.URL, LocalPath: r.LocalPath, Branch: r.Branch,
			MonitoredPaths: r.MonitoredPaths,
			Tenant:         tenant.NewKey(r.Project, r.Branch, r.LocalPath),
		})
	}
	scheduler := gitsync.NewScheduler(cfg.GitSyncInterval(), repos, ix, graph)

	return &server{
		surface:    surface,
		scheduler:  scheduler,
		watch:      newWatchSupervisor(ix, store, cfg.WatchDebounce()),
		limiter:    limiter,
		embedCache: embedCache,
		pool:       pool,
	}, nil
}
