package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool   *pgxpool.Pool
	dim    int
	metric string
}

// NewPostgres returns a pgvector-backed Store using pool. The embeddings
// table and the vector extension are created if absent.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, dimensions int, metric string) (Store, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	vecType := "vector"
	if dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimensions)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS compendium_embeddings (
  id TEXT PRIMARY KEY,
  vec %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`, vecType)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create embeddings table: %w", err)
	}
	return &pgStore{pool: pool, dim: dimensions, metric: strings.ToLower(strings.TrimSpace(metric))}, nil
}

func (p *pgStore) Dimension() int { return p.dim }

func (p *pgStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO compendium_embeddings(id, vec, metadata) VALUES ($1, $2::vector, $3)
ON CONFLICT (id) DO UPDATE SET vec = EXCLUDED.vec, metadata = EXCLUDED.metadata
`, id, toVectorLiteral(vector), metadata)
	return err
}

func (p *pgStore) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM compendium_embeddings WHERE id = $1`, id)
	return err
}

func (p *pgStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	op, scoreExpr := "<=>", "1 - (vec <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op, scoreExpr = "<->", "-(vec <-> $1::vector)"
	case "ip", "dot":
		op, scoreExpr = "<#>", "-(vec <#> $1::vector)"
	}

	args := []any{toVectorLiteral(vector), k}
	where := ""
	if len(filter) > 0 {
		where = "WHERE metadata @> $3"
		args = append(args, filter)
	}

	query := fmt.Sprintf(`SELECT id, %s AS score, metadata FROM compendium_embeddings %s ORDER BY vec %s $1::vector LIMIT $2`, scoreExpr, where, op)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		var md map[string]string
		if err := rows.Scan(&r.ID, &r.Score, &md); err != nil {
			return nil, err
		}
		r.Metadata = md
		out = append(out, r)
	}
	return out, rows.Err()
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
