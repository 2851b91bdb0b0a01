// Package filewatcher watches a tenant's local working tree for filesystem
// changes and keeps the indexer's view of it current: a debounced fsnotify
// consumer handles the common case, and a periodic reconciliation pass
// catches anything missed (events dropped, watcher restarted mid-edit).
package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"compendium/internal/indexer"
	"compendium/internal/repository"
	"compendium/internal/tenant"
)

const (
	defaultDebounceDelay     = 500 * time.Millisecond
	defaultReconcileInterval = 5 * time.Minute
)

// Config describes one working tree to watch.
type Config struct {
	// Root is the tree's absolute filesystem path.
	Root string
	// Tenant scopes every document this tree produces.
	Tenant tenant.Key
	// DebounceDelay coalesces bursts of events for the same file. Defaults
	// to 500ms.
	DebounceDelay time.Duration
	// ReconcileInterval is how often the full-tree reconciliation pass
	// runs. Defaults to 5 minutes.
	ReconcileInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = defaultDebounceDelay
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = defaultReconcileInterval
	}
	return c
}

// Watcher watches Config.Root for changes and routes them into an Indexer,
// with a single-consumer processing queue so concurrent events never race
// on the same document.
type Watcher struct {
	cfg       Config
	indexer   *indexer.Indexer
	store     repository.Store
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	queue     chan string
}

// New builds a Watcher over cfg.Root. The returned Watcher does not watch
// anything until Run is called.
func New(cfg Config, ix *indexer.Indexer, store repository.Store) (*Watcher, error) {
	cfg = cfg.withDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:     cfg,
		indexer: ix,
		store:   store,
		fsw:     fsw,
		queue:   make(chan string, 256),
	}
	w.debouncer = newDebouncer(cfg.DebounceDelay, func(path string) {
		w.queue <- path
	})

	if err := w.addTreeRecursive(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run watches for filesystem events and runs periodic reconciliation until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consume(ctx)
	}()

	go w.watchEvents(ctx)

	ticker := time.NewTicker(w.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.debouncer.stop()
			w.fsw.Close()
			close(w.queue)
			<-done
			return ctx.Err()
		case <-ticker.C:
			if err := w.reconcile(ctx); err != nil {
				log.Warn().Err(err).Str("root", w.cfg.Root).Msg("filewatcher: reconciliation pass failed")
			}
		}
	}
}

func (w *Watcher) watchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("root", w.cfg.Root).Msg("filewatcher: watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTreeRecursive(event.Name); err != nil {
				log.Warn().Err(err).Str("path", event.Name).Msg("filewatcher: failed to watch new directory")
			}
			return
		}
	}

	if !isMarkdownFile(event.Name) || isTemporaryFile(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.debouncer.trigger(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.debouncer.trigger(event.Name)
	}
}

// consume is the queue's single consumer: it processes one changed path at
// a time, so two rapid edits to the same document never race.
func (w *Watcher) consume(ctx context.Context) {
	for path := range w.queue {
		w.processPath(ctx, path)
	}
}

func (w *Watcher) processPath(ctx context.Context, absPath string) {
	relPath, err := filepath.Rel(w.cfg.Root, absPath)
	if err != nil {
		log.Warn().Err(err).Str("path", absPath).Msg("filewatcher: failed to resolve relative path")
		return
	}
	relPath = filepath.ToSlash(relPath)

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		if _, err := w.indexer.Delete(ctx, w.cfg.Tenant, relPath); err != nil {
			log.Warn().Err(err).Str("file_path", relPath).Msg("filewatcher: delete failed")
		}
		return
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		log.Warn().Err(err).Str("file_path", relPath).Msg("filewatcher: read failed")
		return
	}
	result, err := w.indexer.Index(ctx, w.cfg.Tenant, relPath, string(content))
	if err != nil || !result.Success {
		log.Warn().Err(err).Strs("errors", result.Errors).Str("file_path", relPath).Msg("filewatcher: index failed")
	}
}

func (w *Watcher) addTreeRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if info.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("filewatcher: failed to watch directory")
		}
		return nil
	})
}

func isMarkdownFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

func isTemporaryFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp")
}
