package graph

import (
	"errors"
	"testing"
)

func compiledForResolver(t *testing.T) *CompiledGraph[counterState] {
	t.Helper()
	classifier := func(s counterState) string {
		if s.Value > 0 {
			return "positive"
		}
		return "nonpositive"
	}
	g, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddNode("c", NodeFunc[counterState](incrementNode)).
		AddConditionalEdges("a", classifier, map[string]string{"positive": "b", "nonpositive": "c"}).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return g
}

func TestResolveEdges_ConditionalWinsOverOtherEdges(t *testing.T) {
	g := compiledForResolver(t)
	route, err := resolveEdges(g, "a", counterState{Value: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Type != EdgeConditional || route.To != "b" {
		t.Fatalf("expected conditional route to b, got %+v", route)
	}
}

func TestResolveEdges_ConditionalTagWithNoRouteErrors(t *testing.T) {
	classifier := func(s counterState) string { return "unmapped" }
	g, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddConditionalEdges("a", classifier, map[string]string{"mapped": "b"}).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = resolveEdges(g, "a", counterState{})
	if !errors.Is(err, ErrInvalidEdge) {
		t.Fatalf("expected ErrInvalidEdge, got %v", err)
	}
}

func TestResolveEdges_NoEdgeFallsThroughToEnd(t *testing.T) {
	g, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	route, err := resolveEdges(g, "a", counterState{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !route.Terminal() {
		t.Fatalf("expected terminal route, got %+v", route)
	}
}

func TestResolveEdges_SimpleEdgeUsedWhenNoConditional(t *testing.T) {
	g, err := NewBuilder[counterState]().
		AddNode("a", NodeFunc[counterState](incrementNode)).
		AddNode("b", NodeFunc[counterState](incrementNode)).
		AddSimpleEdge("a", "b").
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	route, err := resolveEdges(g, "a", counterState{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Type != EdgeSimple || route.To != "b" {
		t.Fatalf("expected simple route to b, got %+v", route)
	}
}
