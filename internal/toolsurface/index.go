package toolsurface

import (
	"context"

	"compendium/internal/indexer"
)

// IndexDocument indexes one file's content under the active tenant.
func (s *Surface) IndexDocument(ctx context.Context, filePath, content string) (indexer.IndexResult, error) {
	tk, err := s.Session.RequireTenant()
	if err != nil {
		return indexer.IndexResult{}, err
	}
	return s.Indexer.Index(ctx, tk, filePath, content)
}
