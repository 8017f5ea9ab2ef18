package graph

import "testing"

type cloneableState struct {
	Tags []string
}

func (c cloneableState) Clone() cloneableState {
	tags := make([]string, len(c.Tags))
	copy(tags, c.Tags)
	return cloneableState{Tags: tags}
}

func TestCloneState_UsesClonerWhenImplemented(t *testing.T) {
	original := cloneableState{Tags: []string{"a"}}
	cloned, err := cloneState(original)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	cloned.Tags[0] = "mutated"
	if original.Tags[0] != "a" {
		t.Fatalf("mutating the clone affected the original: %v", original.Tags)
	}
}

func TestCloneState_FallsBackToJSONRoundTrip(t *testing.T) {
	original := counterState{Value: 5}
	cloned, err := cloneState(original)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if cloned.Value != 5 {
		t.Fatalf("expected cloned value 5, got %d", cloned.Value)
	}
}

func TestDiffState_JSONFallbackDetectsFieldChanges(t *testing.T) {
	type widget struct {
		Name  string
		Count int
	}
	oldState := widget{Name: "a", Count: 1}
	newState := widget{Name: "a", Count: 2}

	diff, ok := diffState(oldState, newState)
	if !ok {
		t.Fatal("expected diff to be computed for JSON-object states")
	}
	if len(diff.Modified) != 1 || diff.Modified[0] != "Count" {
		t.Fatalf("expected Count to be reported modified, got %+v", diff)
	}
	if len(diff.Added) != 0 || len(diff.Removed) != 0 {
		t.Fatalf("expected no added/removed fields, got %+v", diff)
	}
	if diff.Empty() {
		t.Fatal("expected diff to report a change")
	}
}

func TestMergeBranches_FoldsLeftToRightInDeclarationOrder(t *testing.T) {
	base := mergeableState{}
	branches := []mergeableState{{Values: []int{1}}, {Values: []int{2}}, {Values: []int{3}}}

	merged := mergeBranches(base, branches, nil)
	want := []int{1, 2, 3}
	if len(merged.Values) != len(want) {
		t.Fatalf("expected %v, got %v", want, merged.Values)
	}
	for i, v := range want {
		if merged.Values[i] != v {
			t.Fatalf("expected %v, got %v", want, merged.Values)
		}
	}
}

func TestMergeBranches_UsesExternalMergeFuncWhenSupplied(t *testing.T) {
	mergeFn := func(acc, branch counterState) counterState {
		acc.Value += branch.Value
		return acc
	}
	merged := mergeBranches(counterState{Value: 10}, []counterState{{Value: 1}, {Value: 2}}, mergeFn)
	if merged.Value != 13 {
		t.Fatalf("expected 13, got %d", merged.Value)
	}
}

func TestIsMergeable(t *testing.T) {
	if isMergeable[counterState]() {
		t.Fatal("counterState does not implement Merger, expected false")
	}
	if !isMergeable[mergeableState]() {
		t.Fatal("mergeableState implements Merger, expected true")
	}
}
