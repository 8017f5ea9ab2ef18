package graph

import (
	"context"
	"errors"
	"testing"
)

type counterState struct {
	Value int
}

func incrementNode(ctx context.Context, s counterState) (counterState, error) {
	s.Value++
	return s, nil
}

func TestBuilder_CompileRequiresEntryPoint(t *testing.T) {
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		Compile()
	if !errors.Is(err, ErrMissingEntryPoint) {
		t.Fatalf("expected ErrMissingEntryPoint, got %v", err)
	}
}

func TestBuilder_CompileRejectsUnknownEdgeTarget(t *testing.T) {
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddSimpleEdge("a", "nonexistent").
		SetEntryPoint("a").
		Compile()
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestBuilder_CompileRejectsDuplicateSimpleEdge(t *testing.T) {
	b := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddNode("c", NodeFunc[counterState](incrementNode)).
		AddSimpleEdge("a", "b").
		AddSimpleEdge("a", "c").
		SetEntryPoint("a")
	if _, err := b.Compile(); !errors.Is(err, ErrConflictingEdges) {
		t.Fatalf("expected ErrConflictingEdges, got %v", err)
	}
}

func TestBuilder_CompileRejectsSimpleAndConditionalFromSameSource(t *testing.T) {
	classifier := func(s counterState) string { return "x" }
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddSimpleEdge("a", "b").
		AddConditionalEdges("a", classifier, map[string]string{"x": "b"}).
		SetEntryPoint("a").
		Compile()
	if !errors.Is(err, ErrConflictingEdges) {
		t.Fatalf("expected ErrConflictingEdges, got %v", err)
	}
}

func TestBuilder_CompileRejectsParallelAndSimpleFromSameSource(t *testing.T) {
	mergeFn := func(acc, branch counterState) counterState { acc.Value += branch.Value; return acc }
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddNode("c", NodeFunc[counterState](incrementNode)).
		AddParallelEdges("a", []string{"b", "c"}).
		AddSimpleEdge("a", "b").
		SetEntryPoint("a").
		CompileWithMerge(mergeFn)
	if !errors.Is(err, ErrConflictingEdges) {
		t.Fatalf("expected ErrConflictingEdges, got %v", err)
	}
}

func TestBuilder_CompileRejectsParallelAndConditionalFromSameSource(t *testing.T) {
	classifier := func(s counterState) string { return "x" }
	mergeFn := func(acc, branch counterState) counterState { acc.Value += branch.Value; return acc }
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddNode("c", NodeFunc[counterState](incrementNode)).
		AddParallelEdges("a", []string{"b", "c"}).
		AddConditionalEdges("a", classifier, map[string]string{"x": "b"}).
		SetEntryPoint("a").
		CompileWithMerge(mergeFn)
	if !errors.Is(err, ErrConflictingEdges) {
		t.Fatalf("expected ErrConflictingEdges, got %v", err)
	}
}

func TestBuilder_CompileRejectsEmptyParallelBranchSet(t *testing.T) {
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddParallelEdges("a", nil).
		SetEntryPoint("a").
		Compile()
	if !errors.Is(err, ErrEmptyParallelBranchSet) {
		t.Fatalf("expected ErrEmptyParallelBranchSet, got %v", err)
	}
}

func TestBuilder_CompileRejectsUnmergeableStateWithParallelEdges(t *testing.T) {
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddNode("c", NodeFunc[counterState](incrementNode)).
		AddParallelEdges("a", []string{"b", "c"}).
		SetEntryPoint("a").
		Compile()
	if !errors.Is(err, ErrUnmergeableState) {
		t.Fatalf("expected ErrUnmergeableState, got %v", err)
	}
}

func TestBuilder_CompileSucceedsWithLinearGraph(t *testing.T) {
	g, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddSimpleEdge("a", "b").
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if g.EntryPoint() != "a" {
		t.Fatalf("expected entry point a, got %q", g.EntryPoint())
	}
}

func TestBuilder_DuplicateNodeRegistrationFails(t *testing.T) {
	_, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("a", NodeFunc[counterState](incrementNode)).
		SetEntryPoint("a").
		Compile()
	if err == nil {
		t.Fatal("expected error registering duplicate node id")
	}
}

func TestBuilder_SettingsDefaultsApplied(t *testing.T) {
	g, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := g.Settings()
	if s.RecursionLimit != 25 {
		t.Fatalf("expected default recursion limit 25, got %d", s.RecursionLimit)
	}
	if s.StreamChannelCapacity != 64 {
		t.Fatalf("expected default stream channel capacity 64, got %d", s.StreamChannelCapacity)
	}
}
