package checkpointer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fenwick-run/stepgraph/graph"
)

// SQLite is a single-file graph.Checkpointer backed by modernc.org/sqlite,
// adapted from the teacher's workflow_checkpoints schema to the simpler
// thread-scoped checkpoint chain (§3): one row per checkpoint, ordered by
// an auto-increment sequence within a thread id.
type SQLite[S any] struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) a checkpointer backed by the SQLite file
// at path, or an in-memory database when path is ":memory:".
func NewSQLite[S any](path string) (*SQLite[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &SQLite[S]{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite[S]) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			previous_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			node TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, seq)`)
	if err != nil {
		return fmt.Errorf("create thread index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite[S]) Close() error {
	return s.db.Close()
}

func (s *SQLite[S]) Save(ctx context.Context, cp graph.Checkpoint[S]) error {
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal checkpoint state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, previous_id, thread_id, node, state, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.PreviousID, cp.ThreadID, cp.Node, string(data), cp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLite[S]) GetLatest(ctx context.Context, threadID string) (graph.Checkpoint[S], error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	)
	cp, err := scanCheckpoint[S](row)
	if err == sql.ErrNoRows {
		var zero graph.Checkpoint[S]
		return zero, ErrNotFound
	}
	return cp, err
}

func (s *SQLite[S]) History(ctx context.Context, threadID string, limit int) ([]graph.Checkpoint[S], error) {
	query := `SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []graph.Checkpoint[S]
	for rows.Next() {
		cp, err := scanCheckpointRows[S](rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLite[S]) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint[S any](row *sql.Row) (graph.Checkpoint[S], error) {
	return scanRow[S](row)
}

func scanCheckpointRows[S any](rows *sql.Rows) (graph.Checkpoint[S], error) {
	return scanRow[S](rows)
}

func scanRow[S any](row scannable) (graph.Checkpoint[S], error) {
	var cp graph.Checkpoint[S]
	var stateJSON string
	var createdAt time.Time
	if err := row.Scan(&cp.ID, &cp.PreviousID, &cp.ThreadID, &cp.Node, &stateJSON, &createdAt); err != nil {
		return cp, err
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return cp, fmt.Errorf("unmarshal checkpoint state: %w", err)
	}
	cp.Timestamp = createdAt
	return cp, nil
}

var _ graph.Checkpointer[struct{}] = (*SQLite[struct{}])(nil)
