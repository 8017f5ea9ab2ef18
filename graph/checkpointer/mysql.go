package checkpointer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/fenwick-run/stepgraph/graph"
)

// MySQL is a graph.Checkpointer backed by MySQL or MariaDB, for
// multi-process deployments that need a shared durable thread store.
type MySQL[S any] struct {
	db *sql.DB
}

// NewMySQL opens a connection pool against the given DSN (see
// go-sql-driver/mysql for the DSN format, e.g.
// "user:pass@tcp(localhost:3306)/workflows?parseTime=true") and creates the
// checkpoints table if it does not already exist.
func NewMySQL[S any](dsn string) (*MySQL[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	m := &MySQL[S]{db: db}
	if err := m.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *MySQL[S]) migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(255) NOT NULL UNIQUE,
			previous_id VARCHAR(255) NOT NULL,
			thread_id VARCHAR(255) NOT NULL,
			node VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_checkpoints_thread (thread_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *MySQL[S]) Close() error {
	return m.db.Close()
}

func (m *MySQL[S]) Save(ctx context.Context, cp graph.Checkpoint[S]) error {
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal checkpoint state: %w", err)
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, previous_id, thread_id, node, state, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.PreviousID, cp.ThreadID, cp.Node, string(data), cp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (m *MySQL[S]) GetLatest(ctx context.Context, threadID string) (graph.Checkpoint[S], error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	)
	cp, err := scanRow[S](row)
	if err == sql.ErrNoRows {
		var zero graph.Checkpoint[S]
		return zero, ErrNotFound
	}
	return cp, err
}

func (m *MySQL[S]) History(ctx context.Context, threadID string, limit int) ([]graph.Checkpoint[S], error) {
	query := `SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []graph.Checkpoint[S]
	for rows.Next() {
		cp, err := scanRow[S](rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (m *MySQL[S]) Delete(ctx context.Context, threadID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

var _ graph.Checkpointer[struct{}] = (*MySQL[struct{}])(nil)
