package checkpointer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fenwick-run/stepgraph/graph"
)

type memState struct {
	Count int
}

func TestMemory_GetLatestEmpty(t *testing.T) {
	m := NewMemory[memState]()
	_, err := m.GetLatest(context.Background(), "thread-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_SaveAndGetLatest(t *testing.T) {
	m := NewMemory[memState]()
	ctx := context.Background()

	cp1 := graph.Checkpoint[memState]{ID: "a", ThreadID: "thread-1", Node: "n1", State: memState{Count: 1}, Timestamp: time.Now()}
	cp2 := graph.Checkpoint[memState]{ID: "b", PreviousID: "a", ThreadID: "thread-1", Node: "n2", State: memState{Count: 2}, Timestamp: time.Now()}

	if err := m.Save(ctx, cp1); err != nil {
		t.Fatalf("save cp1: %v", err)
	}
	if err := m.Save(ctx, cp2); err != nil {
		t.Fatalf("save cp2: %v", err)
	}

	latest, err := m.GetLatest(ctx, "thread-1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.ID != "b" || latest.State.Count != 2 {
		t.Fatalf("expected cp2, got %+v", latest)
	}
}

func TestMemory_History(t *testing.T) {
	m := NewMemory[memState]()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := m.Save(ctx, graph.Checkpoint[memState]{
			ID: string(rune('a' + i)), ThreadID: "thread-1", Node: "n", State: memState{Count: i}, Timestamp: time.Now(),
		}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	t.Run("unbounded", func(t *testing.T) {
		hist, err := m.History(ctx, "thread-1", 0)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(hist) != 5 {
			t.Fatalf("expected 5 checkpoints, got %d", len(hist))
		}
		if hist[0].State.Count != 4 {
			t.Fatalf("expected newest-first ordering, got %+v", hist[0])
		}
	})

	t.Run("limited", func(t *testing.T) {
		hist, err := m.History(ctx, "thread-1", 2)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(hist) != 2 {
			t.Fatalf("expected 2 checkpoints, got %d", len(hist))
		}
		if hist[0].State.Count != 4 || hist[1].State.Count != 3 {
			t.Fatalf("unexpected order: %+v", hist)
		}
	})
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory[memState]()
	ctx := context.Background()

	if err := m.Save(ctx, graph.Checkpoint[memState]{ID: "a", ThreadID: "thread-1", Node: "n", Timestamp: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Delete(ctx, "thread-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetLatest(ctx, "thread-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemory_ThreadIsolation(t *testing.T) {
	m := NewMemory[memState]()
	ctx := context.Background()

	if err := m.Save(ctx, graph.Checkpoint[memState]{ID: "a", ThreadID: "thread-1", Node: "n", State: memState{Count: 1}, Timestamp: time.Now()}); err != nil {
		t.Fatalf("save thread-1: %v", err)
	}
	if err := m.Save(ctx, graph.Checkpoint[memState]{ID: "b", ThreadID: "thread-2", Node: "n", State: memState{Count: 99}, Timestamp: time.Now()}); err != nil {
		t.Fatalf("save thread-2: %v", err)
	}

	latest, err := m.GetLatest(ctx, "thread-1")
	if err != nil {
		t.Fatalf("get latest thread-1: %v", err)
	}
	if latest.State.Count != 1 {
		t.Fatalf("thread-1 leaked thread-2 state: %+v", latest)
	}
}
