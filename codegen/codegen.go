// Package codegen serializes an evaluated file to the versioned JSON
// feature-graph format consumed by external viewers, and decodes it back
// for roundtrip testing.
package codegen

import (
	json "github.com/goccy/go-json"

	"github.com/puppycad/pcad/eval"
	"github.com/puppycad/pcad/lang"
	"github.com/puppycad/pcad/pcadval"
)

const wireVersion = "puppycad.featuregraph@0.1"

type wireNode struct {
	ID     string                 `json:"id"`
	Kind   string                 `json:"kind"`
	Op     string                 `json:"op"`
	Fields pcadval.OrderedObject  `json:"fields"`
}

type wireDoc struct {
	Version string     `json:"version"`
	Nodes   []wireNode `json:"nodes"`
	FinalID string     `json:"finalId"`
}

// CompileToThreeJSON evaluates file with a fresh Evaluator and serializes
// the result to the versioned JSON payload: {version, nodes:
// [{id,kind,op,fields}], finalId}.
func CompileToThreeJSON(file *lang.File) (string, error) {
	evaluator := eval.New(file)
	nodes, err := evaluator.Build()
	if err != nil {
		return "", err
	}

	var finalID string
	if len(file.Decls) > 0 {
		finalID = file.Decls[len(file.Decls)-1].ID
	}

	doc := wireDoc{Version: wireVersion, FinalID: finalID}
	for _, node := range nodes {
		doc.Nodes = append(doc.Nodes, wireNode{
			ID:     node.ID,
			Kind:   node.Kind,
			Op:     node.Op,
			Fields: node.Fields,
		})
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return "", lang.Syntax(file.Span, "failed to emit JSON: "+err.Error())
	}
	return string(data), nil
}

// DecodedNode is one node recovered from a CompileToThreeJSON payload.
// Fields is left as the raw decoded JSON tree (maps/slices/primitives)
// since the wire format erases the Value tagged-union distinctions that
// pcadval.Value carries (NodeRef/TargetRef/Object all become plain JSON
// objects on the wire).
type DecodedNode struct {
	ID     string
	Kind   string
	Op     string
	Fields map[string]any
}

// Decoded is the full roundtrip-decoded document.
type Decoded struct {
	Version string
	Nodes   []DecodedNode
	FinalID string
}

// DecodeThreeJSON parses a CompileToThreeJSON payload back into a
// Decoded document. This complements the Rust original, whose only
// consumer of this format is an external viewer that never roundtrips
// it; the core gains this decoder to make spec.md's codegen roundtrip
// property directly testable.
func DecodeThreeJSON(data string) (*Decoded, error) {
	var raw struct {
		Version string `json:"version"`
		Nodes   []struct {
			ID     string         `json:"id"`
			Kind   string         `json:"kind"`
			Op     string         `json:"op"`
			Fields map[string]any `json:"fields"`
		} `json:"nodes"`
		FinalID string `json:"finalId"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}

	decoded := &Decoded{Version: raw.Version, FinalID: raw.FinalID}
	for _, node := range raw.Nodes {
		decoded.Nodes = append(decoded.Nodes, DecodedNode{
			ID:     node.ID,
			Kind:   node.Kind,
			Op:     node.Op,
			Fields: node.Fields,
		})
	}
	return decoded, nil
}
