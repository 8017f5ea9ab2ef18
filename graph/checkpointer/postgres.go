package checkpointer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenwick-run/stepgraph/graph"
)

// pgxPool is the subset of *pgxpool.Pool exercised by Postgres, narrow
// enough that tests can substitute pgxmock's pool in its place.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres is a graph.Checkpointer backed by PostgreSQL via pgx, for
// deployments that already run Postgres for other durable state.
type Postgres[S any] struct {
	pool pgxPool
}

// NewPostgres connects to Postgres using connString (a libpq connection
// string or URL) and creates the checkpoints table if needed.
func NewPostgres[S any](ctx context.Context, connString string) (*Postgres[S], error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	p := &Postgres[S]{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithPool wraps an existing pool, primarily so tests can inject
// a pgxmock pool in place of a live database.
func NewPostgresWithPool[S any](pool pgxPool) *Postgres[S] {
	return &Postgres[S]{pool: pool}
}

func (p *Postgres[S]) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			previous_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			node TEXT NOT NULL,
			state JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints (thread_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres[S]) Close() {
	p.pool.Close()
}

func (p *Postgres[S]) Save(ctx context.Context, cp graph.Checkpoint[S]) error {
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal checkpoint state: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO checkpoints (id, previous_id, thread_id, node, state, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		cp.ID, cp.PreviousID, cp.ThreadID, cp.Node, data, cp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (p *Postgres[S]) GetLatest(ctx context.Context, threadID string) (graph.Checkpoint[S], error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints WHERE thread_id = $1 ORDER BY seq DESC LIMIT 1`,
		threadID,
	)
	cp, err := scanPgxRow[S](row)
	if err == pgx.ErrNoRows {
		var zero graph.Checkpoint[S]
		return zero, ErrNotFound
	}
	return cp, err
}

func (p *Postgres[S]) History(ctx context.Context, threadID string, limit int) ([]graph.Checkpoint[S], error) {
	query := `SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints WHERE thread_id = $1 ORDER BY seq DESC`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []graph.Checkpoint[S]
	for rows.Next() {
		cp, err := scanPgxRow[S](rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (p *Postgres[S]) Delete(ctx context.Context, threadID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM checkpoints WHERE thread_id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

type pgxScannable interface {
	Scan(dest ...any) error
}

func scanPgxRow[S any](row pgxScannable) (graph.Checkpoint[S], error) {
	var cp graph.Checkpoint[S]
	var data []byte
	if err := row.Scan(&cp.ID, &cp.PreviousID, &cp.ThreadID, &cp.Node, &data, &cp.Timestamp); err != nil {
		return cp, err
	}
	if err := json.Unmarshal(data, &cp.State); err != nil {
		return cp, fmt.Errorf("unmarshal checkpoint state: %w", err)
	}
	return cp, nil
}

var _ graph.Checkpointer[struct{}] = (*Postgres[struct{}])(nil)
