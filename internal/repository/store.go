package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"compendium/internal/errs"
)

// Store aggregates the four tenant-scoped repositories backing the
// indexer and sync runner.
type Store struct {
	Documents DocumentRepo
	Chunks    ChunkRepo
	RepoPaths RepoPathRepo
	Branches  BranchRepo
}

// Config selects and configures the Store backend.
type Config struct {
	Backend string // "memory" (default) or "postgres"
}

// New builds a Store backed by cfg.Backend. A pgxpool.Pool is required for
// the "postgres" backend and ignored otherwise.
func New(ctx context.Context, cfg Config, pool *pgxpool.Pool) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		ms := newMemoryStore()
		return Store{
			Documents: &memoryDocumentRepo{store: ms},
			Chunks:    &memoryChunkRepo{store: ms},
			RepoPaths: &memoryRepoPathRepo{store: ms},
			Branches:  &memoryBranchRepo{store: ms},
		}, nil
	case "postgres":
		if pool == nil {
			return Store{}, errs.New(errs.KindInvalidArgument, "postgres repository backend requires a connection pool")
		}
		if err := ensureSchema(ctx, pool); err != nil {
			return Store{}, err
		}
		return Store{
			Documents: &pgDocumentRepo{pool: pool},
			Chunks:    &pgChunkRepo{pool: pool},
			RepoPaths: &pgRepoPathRepo{pool: pool},
			Branches:  &pgBranchRepo{pool: pool},
		}, nil
	default:
		return Store{}, errs.New(errs.KindInvalidArgument, fmt.Sprintf("unknown repository backend: %q", cfg.Backend))
	}
}

// memoryStore holds the shared in-process state for every memory-backed
// repository, mirroring the way the four Postgres tables share one pool.
type memoryStore struct {
	mu        sync.RWMutex
	documents map[string]CompoundDocument
	chunks    map[string]DocumentChunk
	repoPaths map[string]RepoPath
	branches  map[string]Branch
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		documents: make(map[string]CompoundDocument),
		chunks:    make(map[string]DocumentChunk),
		repoPaths: make(map[string]RepoPath),
		branches:  make(map[string]Branch),
	}
}

func newID() string {
	return uuid.NewString()
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// pgExecutor is the subset of *pgxpool.Pool (or a transaction) the
// repositories need, so a caller can substitute a pgx.Tx when composing a
// transactional upsert across document and chunk rows.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS compendium_documents (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			branch TEXT NOT NULL,
			path_hash TEXT NOT NULL,
			file_path TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			doc_type TEXT NOT NULL DEFAULT '',
			promotion_level TEXT NOT NULL DEFAULT 'standard',
			frontmatter JSONB NOT NULL DEFAULT '{}'::jsonb,
			body_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			commit_hash TEXT NOT NULL DEFAULT '',
			UNIQUE (project, branch, path_hash, file_path)
		)`,
		`CREATE TABLE IF NOT EXISTS compendium_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			index INT NOT NULL,
			header_path TEXT[] NOT NULL DEFAULT '{}',
			start_line INT NOT NULL,
			end_line INT NOT NULL,
			content TEXT NOT NULL,
			content_hash TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS compendium_chunks_document_id_idx ON compendium_chunks (document_id)`,
		`CREATE TABLE IF NOT EXISTS compendium_repo_paths (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			branch TEXT NOT NULL,
			path_hash TEXT NOT NULL,
			absolute_path TEXT NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL,
			UNIQUE (project, branch, path_hash, absolute_path)
		)`,
		`CREATE TABLE IF NOT EXISTS compendium_branches (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			branch TEXT NOT NULL,
			path_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL,
			UNIQUE (project, branch, path_hash, name)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errs.Wrap(errs.KindStorageFailed, "create repository schema", err)
		}
	}
	return nil
}
