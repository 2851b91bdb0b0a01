// Package gitsync clones, fetches, and diffs configured repositories on a
// schedule, feeding changed files into the document indexer.
package gitsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"compendium/internal/errs"
	"compendium/internal/graphrepo"
	"compendium/internal/indexer"
)

// Scheduler ticks every interval and runs syncRepo for each configured
// repository concurrently, with mutual exclusion per repo.
type Scheduler struct {
	interval time.Duration
	indexer  *indexer.Indexer
	graph    graphrepo.Repo
	repos    map[string]RepoConfig // keyed by lowercase name

	mu            sync.Mutex
	repoLocks     map[string]*sync.Mutex
	lastRunFailed map[string]bool
}

// NewScheduler builds a Scheduler for repos, ticking every interval.
func NewScheduler(interval time.Duration, repos []RepoConfig, ix *indexer.Indexer, graph graphrepo.Repo) *Scheduler {
	s := &Scheduler{
		interval:      interval,
		indexer:       ix,
		graph:         graph,
		repos:         make(map[string]RepoConfig, len(repos)),
		repoLocks:     make(map[string]*sync.Mutex, len(repos)),
		lastRunFailed: make(map[string]bool, len(repos)),
	}
	for _, r := range repos {
		key := strings.ToLower(r.Name)
		s.repos[key] = r
		s.repoLocks[key] = &sync.Mutex{}
	}
	return s
}

// LastRunFailed reports whether name's most recent sync cycle failed.
func (s *Scheduler) LastRunFailed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunFailed[strings.ToLower(name)]
}

// Run ticks every s.interval until ctx is cancelled, running RunAsync for
// every configured repo each tick. One repo's failure never prevents the
// others from running in the same cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for name := range s.repos {
		name := name
		g.Go(func() error {
			if err := s.RunAsync(gctx, name); err != nil {
				log.Warn().Err(err).Str("repo", name).Msg("gitsync: cycle failed for repo")
			}
			return nil // failure isolation: never fail the group for one repo
		})
	}
	_ = g.Wait()
}

// RunAsync runs one sync cycle for the named repo (case-insensitive
// lookup), serialized against any other sync already running for the same
// repo. An unknown repo name returns an error without making any git call.
func (s *Scheduler) RunAsync(ctx context.Context, name string) error {
	key := strings.ToLower(name)
	s.mu.Lock()
	cfg, ok := s.repos[key]
	lock := s.repoLocks[key]
	s.mu.Unlock()
	if !ok {
		return errs.New(errs.KindNotFound, "gitsync: unknown repository: "+name)
	}

	lock.Lock()
	defer lock.Unlock()

	err := syncRepo(ctx, cfg, s.indexer, s.graph)

	s.mu.Lock()
	s.lastRunFailed[key] = err != nil
	s.mu.Unlock()

	return err
}
