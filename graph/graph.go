// Package graph builds the static feature-dependency index over a parsed
// PuppyCAD file, without evaluating any expression.
package graph

import (
	"sort"

	"github.com/puppycad/pcad/lang"
)

// FeatureGraph maps each declaration id to its declaration and to the
// sorted, deduplicated list of other declaration ids its expressions
// reference.
type FeatureGraph struct {
	decls        map[string]*lang.Decl
	order        []string
	dependencies map[string][]string
}

// New builds a FeatureGraph from a parsed file. It does not evaluate any
// expression; it only scans identifiers and dotted-reference heads.
func New(file *lang.File) *FeatureGraph {
	decls := make(map[string]*lang.Decl, len(file.Decls))
	order := make([]string, 0, len(file.Decls))
	for _, decl := range file.Decls {
		decls[decl.ID] = decl
		order = append(order, decl.ID)
	}

	dependencies := make(map[string][]string, len(file.Decls))
	for _, decl := range file.Decls {
		var deps []string
		localNames := make(map[string]bool)
		for _, entry := range decl.Entries {
			visitExpr(entry.EntryExpr(), decls, localNames, &deps)
			localNames[entry.EntryName()] = true
		}
		sort.Strings(deps)
		deps = dedupe(deps)
		dependencies[decl.ID] = deps
	}

	return &FeatureGraph{decls: decls, order: order, dependencies: dependencies}
}

func dedupe(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// DeclarationOrder returns declaration ids in authoring order.
func (g *FeatureGraph) DeclarationOrder() []string { return g.order }

// Decl returns the declaration for id, if it exists.
func (g *FeatureGraph) Decl(id string) (*lang.Decl, bool) {
	decl, ok := g.decls[id]
	return decl, ok
}

// Dependencies returns id's sorted, deduplicated dependency list.
func (g *FeatureGraph) Dependencies(id string) ([]string, bool) {
	deps, ok := g.dependencies[id]
	return deps, ok
}

// HasDecl reports whether id names a declaration in this graph.
func (g *FeatureGraph) HasDecl(id string) bool {
	_, ok := g.decls[id]
	return ok
}

func visitExpr(expr *lang.Expr, decls map[string]*lang.Decl, localNames map[string]bool, out *[]string) {
	if expr == nil {
		return
	}
	switch expr.Kind {
	case lang.ExprVector:
		for _, v := range expr.Vector {
			visitExpr(v, decls, localNames, out)
		}
	case lang.ExprObject:
		for _, f := range expr.Fields {
			visitExpr(f.Expr, decls, localNames, out)
		}
	case lang.ExprIdent:
		ident := expr.Ident()
		if localNames[ident] {
			return
		}
		if decl, ok := decls[ident]; ok {
			*out = append(*out, decl.ID)
		}
	case lang.ExprReference:
		if len(expr.Segments) == 0 {
			return
		}
		first := expr.Segments[0]
		if localNames[first] {
			return
		}
		if decl, ok := decls[first]; ok {
			*out = append(*out, decl.ID)
		}
	case lang.ExprUnary:
		visitExpr(expr.Operand, decls, localNames, out)
	case lang.ExprBinary:
		visitExpr(expr.Left, decls, localNames, out)
		visitExpr(expr.Right, decls, localNames, out)
	case lang.ExprCall:
		for _, arg := range expr.Args {
			visitExpr(arg, decls, localNames, out)
		}
	case lang.ExprNumber, lang.ExprString, lang.ExprBool, lang.ExprNull:
		// leaf expressions reference nothing
	}
}
