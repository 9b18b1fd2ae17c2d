package depend_test

import (
	"context"
	"sort"
	"testing"

	"github.com/lordnynex/qless-core/depend"
	"github.com/lordnynex/qless-core/store/memory"
)

func TestAddEdge_PopulatesBothSides(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	if err := depend.AddEdge(ctx, b, "child", "parent"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	deps, err := depend.Dependencies(ctx, b, "child")
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0] != "parent" {
		t.Errorf("Dependencies(child) = %v, want [parent]", deps)
	}

	dependents, err := depend.Dependents(ctx, b, "parent")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0] != "child" {
		t.Errorf("Dependents(parent) = %v, want [child]", dependents)
	}
}

func TestRemoveEdge_ClearsBothSides(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	if err := depend.AddEdge(ctx, b, "child", "parent"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := depend.RemoveEdge(ctx, b, "child", "parent"); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}

	deps, _ := depend.Dependencies(ctx, b, "child")
	if len(deps) != 0 {
		t.Errorf("Dependencies(child) after RemoveEdge = %v, want empty", deps)
	}
	dependents, _ := depend.Dependents(ctx, b, "parent")
	if len(dependents) != 0 {
		t.Errorf("Dependents(parent) after RemoveEdge = %v, want empty", dependents)
	}
}

func TestRemainingCount(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	if err := depend.AddEdge(ctx, b, "child", "p1"); err != nil {
		t.Fatal(err)
	}
	if err := depend.AddEdge(ctx, b, "child", "p2"); err != nil {
		t.Fatal(err)
	}

	n, err := depend.RemainingCount(ctx, b, "child")
	if err != nil {
		t.Fatalf("RemainingCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("RemainingCount = %d, want 2", n)
	}

	if err := depend.RemoveEdge(ctx, b, "child", "p1"); err != nil {
		t.Fatal(err)
	}
	n, _ = depend.RemainingCount(ctx, b, "child")
	if n != 1 {
		t.Fatalf("RemainingCount after one removal = %d, want 1", n)
	}
}

func TestMultipleDependents_AllTracked(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	if err := depend.AddEdge(ctx, b, "childA", "parent"); err != nil {
		t.Fatal(err)
	}
	if err := depend.AddEdge(ctx, b, "childB", "parent"); err != nil {
		t.Fatal(err)
	}

	dependents, err := depend.Dependents(ctx, b, "parent")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	sort.Strings(dependents)
	want := []string{"childA", "childB"}
	if len(dependents) != 2 || dependents[0] != want[0] || dependents[1] != want[1] {
		t.Errorf("Dependents(parent) = %v, want %v", dependents, want)
	}
}
