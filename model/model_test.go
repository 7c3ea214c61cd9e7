package model

import (
	"testing"

	"github.com/puppycad/pcad/graph"
	"github.com/puppycad/pcad/lang"
)

func mustParse(t *testing.T, source string) *lang.File {
	t.Helper()
	file, err := lang.ParseFile(source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return file
}

func TestBuildUsesTopologicalOrder(t *testing.T) {
	file := mustParse(t, `
feature hole1 = hole { target: body.top; x: 0; y: 0; d: 1; }
solid body = box { w: 20; h: 20; d: 20; }`)
	g := graph.New(file)
	state, err := Build(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.ExecutionOrder) != 2 || state.ExecutionOrder[0] != "body" || state.ExecutionOrder[1] != "hole1" {
		t.Fatalf("expected body before hole1, got %v", state.ExecutionOrder)
	}
	if state.DeclarationOrder[0] != "hole1" || state.DeclarationOrder[1] != "body" {
		t.Fatalf("expected declaration order to preserve authoring order, got %v", state.DeclarationOrder)
	}
	if state.FinalNodeID != "body" {
		t.Errorf("expected final node id to be the last authored decl 'body', got %q", state.FinalNodeID)
	}
}

func TestBuildReturnsCycleError(t *testing.T) {
	file := mustParse(t, `
solid a = box { w: b.w; h: 1; d: 1; }
solid b = box { w: a.w; h: 1; d: 1; }`)
	g := graph.New(file)
	_, err := Build(g)
	if err == nil {
		t.Fatal("expected a dependency cycle error")
	}
	langErr, ok := err.(*lang.LangError)
	if !ok || langErr.Code != lang.CodeDependencyCycle {
		t.Fatalf("expected CodeDependencyCycle, got %v", err)
	}
}

func TestBuildBreaksTiesByAuthoringOrder(t *testing.T) {
	file := mustParse(t, `
solid c = box { w: 1; }
solid b = box { w: 1; }
solid a = box { w: 1; }`)
	g := graph.New(file)
	state, err := Build(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"c", "b", "a"}
	for i, id := range want {
		if state.ExecutionOrder[i] != id {
			t.Errorf("position %d: got %q want %q", i, state.ExecutionOrder[i], id)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	file := mustParse(t, `
solid body = box { w: 20; h: 20; d: 20; }
feature hole1 = hole { target: body.top; x: 1; y: 1; d: 2; }`)
	g1 := graph.New(file)
	state1, err := Build(g1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2 := graph.New(file)
	state2, err := Build(g2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state1.ExecutionOrder) != len(state2.ExecutionOrder) {
		t.Fatal("execution order length mismatch across runs")
	}
	for i := range state1.ExecutionOrder {
		if state1.ExecutionOrder[i] != state2.ExecutionOrder[i] {
			t.Errorf("execution order diverged at %d: %q vs %q", i, state1.ExecutionOrder[i], state2.ExecutionOrder[i])
		}
	}
	for id, node1 := range state1.Nodes {
		node2, ok := state2.Nodes[id]
		if !ok {
			t.Fatalf("node %q missing from second run", id)
		}
		if len(node1.Fields) != len(node2.Fields) {
			t.Errorf("node %q: field count diverged", id)
		}
	}
}
