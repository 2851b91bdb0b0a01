/*
compendium-sync runs one git sync cycle for a single configured repository
and exits, for use from cron or a CI pipeline rather than the long-lived
server's own scheduler.

Usage:

	go run cmd/compendium-sync/main.go [flags]

Flags:

	-config string
	    path to compendium.yaml (COMPENDIUM_CONFIG env)
	-repo string
	    name of the repo to sync, as configured under git_sync.repos (COMPENDIUM_SYNC_REPO env)

Exit codes:

	0  sync completed (including "nothing changed")
	1  unknown repo name or configuration error
	2  transient sync failure (clone/fetch/storage error)

Example:

	go run cmd/compendium-sync/main.go -config compendium.yaml -repo docs-site
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"compendium/internal/config"
	"compendium/internal/doctype"
	"compendium/internal/embedding"
	"compendium/internal/errs"
	"compendium/internal/gitsync"
	"compendium/internal/graphrepo"
	"compendium/internal/indexer"
	"compendium/internal/repository"
	"compendium/internal/tenant"
	"compendium/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", os.Getenv("COMPENDIUM_CONFIG"), "path to compendium.yaml")
	repoName := flag.String("repo", os.Getenv("COMPENDIUM_SYNC_REPO"), "name of the repo to sync")
	flag.Parse()

	if *repoName == "" {
		fmt.Fprintln(os.Stderr, "error: -repo or COMPENDIUM_SYNC_REPO env required")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, *configPath, *repoName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errs.KindOf(err) == errs.KindNotFound || errs.KindOf(err) == errs.KindInvalidArgument {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func run(ctx context.Context, configPath, repoName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errs.Wrap(errs.KindInvalidArgument, "load config", err)
	}

	var pool *pgxpool.Pool
	if cfg.Repository.Backend == "postgres" {
		p, err := pgxpool.New(ctx, cfg.Repository.ConnectionString)
		if err != nil {
			return errs.Wrap(errs.KindStorageFailed, "connect postgres", err)
		}
		defer p.Close()
		pool = p
	}

	store, err := repository.New(ctx, repository.Config{Backend: cfg.Repository.Backend}, pool)
	if err != nil {
		return errs.Wrap(errs.KindStorageFailed, "build repository store", err)
	}
	vectors, err := vectorstore.New(ctx, vectorstore.Config{
		Backend: cfg.Vectors.Backend, DSN: cfg.Vectors.DSN, Collection: cfg.Vectors.Collection,
		Dimensions: cfg.Vectors.Dimensions, Metric: cfg.Vectors.Metric,
	}, pool)
	if err != nil {
		return errs.Wrap(errs.KindStorageFailed, "build vector store", err)
	}
	graph, err := graphrepo.New(ctx, graphrepo.Config{Backend: cfg.Repository.Backend}, pool)
	if err != nil {
		return errs.Wrap(errs.KindStorageFailed, "build graph repository", err)
	}

	registry := doctype.NewRegistry()
	if err := doctype.RegisterBuiltins(registry); err != nil {
		return errs.Wrap(errs.KindInternal, "register builtin doc types", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	ix := indexer.New(indexer.Config{
		DocTypes: registry,
		Embedder: embedder,
		Store:    store,
		Vectors:  vectors,
		Graph:    graph,
	})

	var repos []gitsync.RepoConfig
	for _, r := range cfg.GitSync.Repos {
		repos = append(repos, gitsync.RepoConfig{
			Name: r.Name, URL: r.URL, LocalPath: r.LocalPath, Branch: r.Branch,
			MonitoredPaths: r.MonitoredPaths,
			Tenant:         tenant.NewKey(r.Project, r.Branch, r.LocalPath),
		})
	}
	if len(repos) == 0 {
		return errs.New(errs.KindInvalidArgument, "no repositories configured under git_sync.repos")
	}

	scheduler := gitsync.NewScheduler(cfg.GitSyncInterval(), repos, ix, graph)
	if err := scheduler.RunAsync(ctx, repoName); err != nil {
		return err
	}

	log.Info().Str("repo", repoName).Msg("compendium-sync: sync cycle completed")
	return nil
}

func buildEmbedder(cfg config.Config) (embedding.Embedder, error) {
	embedder, err := embedding.New(embedding.Config{
		Provider: cfg.Embedding.Provider, BaseURL: cfg.Embedding.BaseURL, APIKey: cfg.Embedding.APIKey,
		Model: cfg.Embedding.Model, Path: cfg.Embedding.Path, Dim: cfg.Embedding.Dim,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "build embedder", err)
	}
	return embedding.NewCache(embedder, 1_000, 0), nil
}
