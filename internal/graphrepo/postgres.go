package graphrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Postgres-backed Repo using pool. The node/edge
// tables are created if absent.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Repo, error) {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS compendium_graph_nodes (
			id TEXT PRIMARY KEY,
			labels TEXT[] NOT NULL DEFAULT '{}',
			props JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS compendium_graph_edges (
			src_id TEXT NOT NULL,
			rel TEXT NOT NULL,
			dst_id TEXT NOT NULL,
			props JSONB NOT NULL DEFAULT '{}'::jsonb,
			PRIMARY KEY (src_id, rel, dst_id)
		)`,
		`CREATE INDEX IF NOT EXISTS compendium_graph_edges_src_rel_idx
			ON compendium_graph_edges (src_id, rel)`,
		`CREATE INDEX IF NOT EXISTS compendium_graph_edges_dst_rel_idx
			ON compendium_graph_edges (dst_id, rel)`,
		`CREATE TABLE IF NOT EXISTS compendium_sync_state (
			repo TEXT PRIMARY KEY,
			head_commit TEXT NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create graph schema: %w", err)
		}
	}
	return &pgRepo{pool: pool}, nil
}

func (p *pgRepo) UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal node props: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO compendium_graph_nodes (id, labels, props) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET labels = EXCLUDED.labels, props = EXCLUDED.props
`, id, labels, propsJSON)
	return err
}

func (p *pgRepo) UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal edge props: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO compendium_graph_edges (src_id, rel, dst_id, props) VALUES ($1, $2, $3, $4)
ON CONFLICT (src_id, rel, dst_id) DO UPDATE SET props = EXCLUDED.props
`, srcID, rel, dstID, propsJSON)
	return err
}

func (p *pgRepo) Neighbors(ctx context.Context, id, rel string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT dst_id FROM compendium_graph_edges WHERE src_id = $1 AND rel = $2`, id, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dst string
		if err := rows.Scan(&dst); err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	return out, rows.Err()
}

func (p *pgRepo) ReverseNeighbors(ctx context.Context, id, rel string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT src_id FROM compendium_graph_edges WHERE dst_id = $1 AND rel = $2`, id, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (p *pgRepo) GetSyncState(ctx context.Context, repo string) (string, bool) {
	var head string
	err := p.pool.QueryRow(ctx, `SELECT head_commit FROM compendium_sync_state WHERE repo = $1`, repo).Scan(&head)
	if err != nil {
		return "", false
	}
	return head, true
}

func (p *pgRepo) SetSyncState(ctx context.Context, repo, head string) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO compendium_sync_state (repo, head_commit) VALUES ($1, $2)
ON CONFLICT (repo) DO UPDATE SET head_commit = EXCLUDED.head_commit
`, repo, head)
	return err
}

func (p *pgRepo) GetNode(ctx context.Context, id string) (Node, bool) {
	var n Node
	var propsJSON []byte
	err := p.pool.QueryRow(ctx, `SELECT id, labels, props FROM compendium_graph_nodes WHERE id = $1`, id).
		Scan(&n.ID, &n.Labels, &propsJSON)
	if err != nil {
		return Node{}, false
	}
	if len(propsJSON) > 0 {
		_ = json.Unmarshal(propsJSON, &n.Props)
	}
	return n, true
}

func (p *pgRepo) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Collect Section and Chunk descendants before they're deleted.
	rows, err := tx.Query(ctx, `
WITH sections AS (
  SELECT dst_id FROM compendium_graph_edges WHERE src_id = $1 AND rel = $2
)
SELECT dst_id FROM sections
UNION
SELECT e.dst_id FROM compendium_graph_edges e
  JOIN sections s ON e.src_id = s.dst_id AND e.rel = $3
UNION
SELECT dst_id FROM compendium_graph_edges WHERE src_id = $1 AND rel = $3
`, documentID, RelHasSection, RelHasChunk)
	if err != nil {
		return fmt.Errorf("collect descendants: %w", err)
	}
	doomed := []string{documentID}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		doomed = append(doomed, id)
	}
	rows.Close()

	if _, err := tx.Exec(ctx, `DELETE FROM compendium_graph_edges WHERE src_id = ANY($1) OR dst_id = ANY($1)`, doomed); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM compendium_graph_nodes WHERE id = ANY($1)`, doomed); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	return tx.Commit(ctx)
}
