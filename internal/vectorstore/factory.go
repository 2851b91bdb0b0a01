package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New builds the Store named by cfg.Backend. A pgxpool.Pool is required for
// the "postgres" backend and ignored otherwise.
func New(ctx context.Context, cfg Config, pool *pgxpool.Pool) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Dimensions), nil
	case "qdrant":
		return NewQdrant(ctx, cfg.DSN, cfg.Collection, cfg.Dimensions, cfg.Metric)
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres vector backend requires a connection pool")
		}
		return NewPostgres(ctx, pool, cfg.Dimensions, cfg.Metric)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %q", cfg.Backend)
	}
}
