package filewatcher

import (
	"context"
	"os"
	"path/filepath"

	"compendium/internal/tenant"
)

// reconcile enumerates the working tree and the indexed document set for
// the tenant, and corrects any drift an fsnotify event was missed for:
// documents indexed for a file no longer on disk are deleted, and markdown
// files on disk with no indexed document are indexed.
func (w *Watcher) reconcile(ctx context.Context) error {
	onDisk, err := w.scanTree()
	if err != nil {
		return err
	}

	filter := tenant.FilterFor(w.cfg.Tenant)
	indexed, err := w.store.Documents.GetAllForTenant(ctx, filter)
	if err != nil {
		return err
	}

	indexedPaths := make(map[string]bool, len(indexed))
	for _, doc := range indexed {
		indexedPaths[doc.FilePath] = true
		if !onDisk[doc.FilePath] {
			if _, err := w.indexer.Delete(ctx, w.cfg.Tenant, doc.FilePath); err != nil {
				return err
			}
		}
	}

	for relPath := range onDisk {
		if indexedPaths[relPath] {
			continue
		}
		absPath := filepath.Join(w.cfg.Root, filepath.FromSlash(relPath))
		w.processPath(ctx, absPath)
	}
	return nil
}

// scanTree walks the working tree and returns the set of monitored markdown
// files present on disk, keyed by POSIX-separated path relative to Root.
func (w *Watcher) scanTree() (map[string]bool, error) {
	found := make(map[string]bool)
	err := filepath.Walk(w.cfg.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if isTemporaryFile(path) || !isMarkdownFile(path) {
			return nil
		}
		rel, err := filepath.Rel(w.cfg.Root, path)
		if err != nil {
			return err
		}
		found[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
