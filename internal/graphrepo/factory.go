package graphrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config selects and configures a Repo backend.
type Config struct {
	Backend string // "memory" (default) or "postgres"
}

// New builds the Repo named by cfg.Backend. A pgxpool.Pool is required for
// the "postgres" backend and ignored otherwise.
func New(ctx context.Context, cfg Config, pool *pgxpool.Pool) (Repo, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres graph backend requires a connection pool")
		}
		return NewPostgres(ctx, pool)
	default:
		return nil, fmt.Errorf("unknown graph store backend: %q", cfg.Backend)
	}
}
