package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"compendium/internal/filewatcher"
	"compendium/internal/indexer"
	"compendium/internal/repository"
	"compendium/internal/tenant"
)

// watchSupervisor keeps exactly one filewatcher.Watcher running, over
// whichever project was most recently activated. activate_project retargets
// it rather than leaving a stale watcher running over an abandoned root.
type watchSupervisor struct {
	ix    *indexer.Indexer
	store repository.Store
	delay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newWatchSupervisor(ix *indexer.Indexer, store repository.Store, delay time.Duration) *watchSupervisor {
	return &watchSupervisor{ix: ix, store: store, delay: delay}
}

// retarget stops any previously running watcher and starts a new one over
// root for tk, in the background. A watcher construction failure is logged
// and does not fail the activation that triggered it: file watching is a
// convenience on top of explicit index_document calls, not a precondition
// for them.
func (w *watchSupervisor) retarget(root string, tk tenant.Key) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if root == "" {
		return
	}

	watcher, err := filewatcher.New(filewatcher.Config{
		Root: root, Tenant: tk, DebounceDelay: w.delay,
	}, w.ix, w.store)
	if err != nil {
		log.Error().Err(err).Str("root", root).Msg("watch: failed to start file watcher")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("root", root).Msg("watch: watcher exited")
		}
	}()
}

func (w *watchSupervisor) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
