// Package model builds the fully-resolved model state: every declaration
// evaluated in dependency order, packaged with its fields and
// dependencies for the render kernel and codegen to consume.
package model

import (
	"sort"

	"github.com/puppycad/pcad/eval"
	"github.com/puppycad/pcad/graph"
	"github.com/puppycad/pcad/lang"
	"github.com/puppycad/pcad/pcadval"
)

// Node is one declaration's resolved state: its fields, its static
// dependency list (from the feature graph, not the evaluator's dynamic
// reference trace), and its source span for diagnostics.
type Node struct {
	ID           string
	Kind         string
	Op           string
	Fields       map[string]pcadval.Value
	Dependencies []string
	Span         lang.Span
}

// State is the fully-built model: every node keyed by id, plus the
// authoring order, the execution (topological) order, and the id of the
// file's last declaration, which downstream consumers treat as the
// model's output shape.
type State struct {
	Nodes           map[string]*Node
	DeclarationOrder []string
	ExecutionOrder   []string
	FinalNodeID      string
}

// Build resolves every declaration in g in topological order and returns
// the assembled model state.
func Build(g *graph.FeatureGraph) (*State, error) {
	order, err := topologicalOrder(g)
	if err != nil {
		return nil, err
	}

	evaluator := eval.NewFromGraph(g)
	nodes := make(map[string]*Node, len(order))

	for _, id := range order {
		fields, err := evaluator.ResolveDecl(id)
		if err != nil {
			return nil, err
		}
		decl, _ := g.Decl(id)
		deps, _ := g.Dependencies(id)

		kind := "solid"
		if decl.Kind == lang.DeclFeature {
			kind = "feature"
		}

		nodes[id] = &Node{
			ID:           id,
			Kind:         kind,
			Op:           decl.Op,
			Fields:       fields,
			Dependencies: deps,
			Span:         decl.Span,
		}
	}

	declOrder := g.DeclarationOrder()
	var finalID string
	if len(declOrder) > 0 {
		finalID = declOrder[len(declOrder)-1]
	}

	return &State{
		Nodes:            nodes,
		DeclarationOrder: declOrder,
		ExecutionOrder:   order,
		FinalNodeID:      finalID,
	}, nil
}

// topologicalOrder runs Kahn's algorithm over g, breaking ties by
// authoring order: among all currently-ready (zero remaining in-degree)
// ids, the one that appears earliest in g.DeclarationOrder() is picked
// next. This keeps output deterministic and close to authoring order
// when there is no dependency constraint forcing otherwise.
func topologicalOrder(g *graph.FeatureGraph) ([]string, error) {
	declOrder := g.DeclarationOrder()

	inDegree := make(map[string]int, len(declOrder))
	for _, id := range declOrder {
		inDegree[id] = 0
	}

	dependents := make(map[string][]string)
	for _, id := range declOrder {
		deps, _ := g.Dependencies(id)
		for _, dep := range deps {
			if !g.HasDecl(dep) {
				continue
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	visited := make(map[string]bool, len(declOrder))
	order := make([]string, 0, len(declOrder))

	for len(order) < len(declOrder) {
		progressed := false
		for _, id := range declOrder {
			if visited[id] || inDegree[id] != 0 {
				continue
			}
			visited[id] = true
			order = append(order, id)
			progressed = true

			next := append([]string(nil), dependents[id]...)
			sort.Strings(next)
			for _, dependent := range next {
				inDegree[dependent]--
			}
			break
		}
		if !progressed {
			var remaining []string
			for _, id := range declOrder {
				if !visited[id] {
					remaining = append(remaining, id)
				}
			}
			sort.Strings(remaining)

			var span lang.Span
			if decl, ok := g.Decl(remaining[0]); ok {
				span = decl.Span
			}

			return nil, &lang.LangError{
				Level:   lang.LevelError,
				Code:    lang.CodeDependencyCycle,
				Message: "dependency cycle detected among: " + joinComma(remaining),
				Span:    span,
				Details: []lang.Detail{{Key: "cycle", Value: joinComma(remaining)}},
			}
		}
	}

	return order, nil
}

func joinComma(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
