package checkpointer

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/fenwick-run/stepgraph/graph"
)

type pgState struct {
	Step int
}

func TestPostgres_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	p := NewPostgresWithPool[pgState](mock)

	cp := graph.Checkpoint[pgState]{
		ID: "cp-1", PreviousID: "", ThreadID: "thread-1", Node: "start", State: pgState{Step: 1}, Timestamp: time.Now().UTC(),
	}
	data, _ := json.Marshal(cp.State)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkpoints")).
		WithArgs(cp.ID, cp.PreviousID, cp.ThreadID, cp.Node, data, cp.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := p.Save(context.Background(), cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgres_GetLatest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	p := NewPostgresWithPool[pgState](mock)

	now := time.Now().UTC()
	state := pgState{Step: 7}
	data, _ := json.Marshal(state)

	rows := pgxmock.NewRows([]string{"id", "previous_id", "thread_id", "node", "state", "created_at"}).
		AddRow("cp-2", "cp-1", "thread-1", "end", data, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints")).
		WithArgs("thread-1").
		WillReturnRows(rows)

	got, err := p.GetLatest(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got.ID != "cp-2" || got.State.Step != 7 {
		t.Fatalf("unexpected checkpoint: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgres_GetLatestNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	p := NewPostgresWithPool[pgState](mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, previous_id, thread_id, node, state, created_at FROM checkpoints")).
		WithArgs("missing-thread").
		WillReturnRows(pgxmock.NewRows([]string{"id", "previous_id", "thread_id", "node", "state", "created_at"}))

	if _, err := p.GetLatest(context.Background(), "missing-thread"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
