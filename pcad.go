// Package pcad compiles PuppyCAD (.pcad) source into a resolved feature
// graph and a tessellated render state.
//
// pcad implements the core pipeline only: lexer, parser, feature graph,
// memoized evaluator, topologically ordered model builder, and a geometry
// kernel that emits pick-addressable meshes. The command-line front-end,
// HTTP daemon, realtime viewer, and file I/O are external collaborators —
// this package has no knowledge of any of them.
//
// Example usage:
//
//	file, err := pcad.ParseFile(source)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	state, err := pcad.BuildModelState(file)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	render := pcad.BuildRenderState(state)
//
// For the versioned JSON feature-graph export used by external viewers:
//
//	body, err := pcad.CompileToThreeJSON(file)
package pcad

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/puppycad/pcad/codegen"
	"github.com/puppycad/pcad/eval"
	"github.com/puppycad/pcad/graph"
	"github.com/puppycad/pcad/lang"
	"github.com/puppycad/pcad/model"
	"github.com/puppycad/pcad/pcadcfg"
	"github.com/puppycad/pcad/render"
)

// ParseFile lexes and parses source into a File.
//
// This is the first stage of compilation; the resulting *lang.File owns
// all declaration data and is borrowed by every later stage.
func ParseFile(source string) (*lang.File, error) {
	file, err := lang.ParseFile(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return file, nil
}

// BuildFeatureGraph builds the static dependency index over file without
// evaluating any expression.
func BuildFeatureGraph(file *lang.File) *graph.FeatureGraph {
	return graph.New(file)
}

// NewEvaluator returns a memoized expression evaluator over file.
func NewEvaluator(file *lang.File) *eval.Evaluator {
	return eval.New(file)
}

// BuildModelState topologically orders file's declarations and resolves
// every one through a fresh evaluator, returning the fully evaluated
// model or the first structural error encountered (DependencyCycle,
// UnknownIdentifier, TypeMismatch, ...).
func BuildModelState(file *lang.File) (*model.State, error) {
	g := BuildFeatureGraph(file)
	state, err := model.Build(g)
	if err != nil {
		return nil, fmt.Errorf("model build error: %w", err)
	}
	return state, nil
}

// BuildRenderState tessellates state into meshes, wireframe edges, and a
// pick table, using default view parameters. Unlike every earlier stage,
// the render kernel never fails: malformed holes and unsupported ops are
// skipped with a diagnostic, not surfaced as an error.
func BuildRenderState(state *model.State) *render.State {
	return render.Build(state)
}

// BuildRenderStateWithView is BuildRenderState with explicit view
// parameters and diagnostics logger. A nil logger defaults to a no-op
// sugared logger; a nil view defaults to pcadcfg.DefaultViewParams().
func BuildRenderStateWithView(state *model.State, view *pcadcfg.ViewParams, logger *zap.SugaredLogger) *render.State {
	return render.BuildWithView(state, view, logger)
}

// CompileToThreeJSON evaluates file and serializes the result to the
// versioned JSON feature-graph format: {version, nodes:
// [{id,kind,op,fields}], finalId}.
func CompileToThreeJSON(file *lang.File) (string, error) {
	return codegen.CompileToThreeJSON(file)
}
