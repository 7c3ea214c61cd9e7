package pcad

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/puppycad/pcad/lang"
)

func TestEndToEndBoxOnly(t *testing.T) {
	file, err := ParseFile(`solid body = box { w:20; h:20; d:20; }`)
	require.NoError(t, err)

	state, err := BuildModelState(file)
	require.NoError(t, err)
	require.Equal(t, []string{"body"}, state.ExecutionOrder)
	require.Equal(t, "body", state.FinalNodeID)

	rs := BuildRenderState(state)
	require.Len(t, rs.Meshes, 1)
	require.Equal(t, "body", rs.Meshes[0].DeclID)
	require.Len(t, rs.Meshes[0].TriFaceIDs, 12)
	require.Len(t, rs.Edges, 1)
	require.Len(t, rs.Edges[0].EdgeIDs, 12)
}

func TestEndToEndHoleOnTopFace(t *testing.T) {
	source := `
solid body = box { w:20; h:20; d:20; }
feature hole1 = hole {
  let cx = body.w/2;
  let cy = body.h/2;
  target: body.top;
  x: cx;
  y: cy;
  d: 6;
}`
	file, err := ParseFile(source)
	require.NoError(t, err)

	state, err := BuildModelState(file)
	require.NoError(t, err)
	require.Equal(t, []string{"body", "hole1"}, state.ExecutionOrder)

	rs := BuildRenderState(state)
	foundHole := false
	foundBodyFace := false
	for _, rec := range rs.PickMap {
		if rec.DeclID == "hole1" {
			foundHole = true
		}
		if rec.DeclID == "body" {
			foundBodyFace = true
		}
	}
	require.True(t, foundHole, "expected a pick record attributed to hole1")
	require.True(t, foundBodyFace, "expected a pick record attributed to body")
}

func TestEndToEndDependencyCycle(t *testing.T) {
	source := `
solid a = box { w:b.w; h:1; d:1; }
solid b = box { w:a.w; h:1; d:1; }`
	file, err := ParseFile(source)
	require.NoError(t, err)

	_, err = BuildModelState(file)
	require.Error(t, err)
	var langErr *lang.LangError
	require.ErrorAs(t, err, &langErr)
	require.Equal(t, lang.CodeDependencyCycle, langErr.Code)
}

func TestEndToEndDuplicateID(t *testing.T) {
	source := `solid body = box {w:1;} feature body = hole {d:1;}`
	_, err := ParseFile(source)
	require.Error(t, err)
	var langErr *lang.LangError
	require.ErrorAs(t, err, &langErr)
	require.Equal(t, lang.CodeDuplicateID, langErr.Code)
}

func TestEndToEndOperatorPrecedence(t *testing.T) {
	file, err := ParseFile(`solid body = box { w: 1 + 2 * 3 == 7 && true || false; }`)
	require.NoError(t, err)
	state, err := BuildModelState(file)
	require.NoError(t, err)
	v := state.Nodes["body"].Fields["w"]
	b, ok := v.AsBool()
	require.True(t, ok)
	require.True(t, b)
}

func TestEndToEndBuiltinCalls(t *testing.T) {
	file, err := ParseFile(`solid body = box {
		w: clamp(5, 0, 3);
		h: max(1, 2);
		d: 1;
	}`)
	require.NoError(t, err)
	state, err := BuildModelState(file)
	require.NoError(t, err)
	w, _ := state.Nodes["body"].Fields["w"].AsNumber()
	require.Equal(t, 3.0, w)
	h, _ := state.Nodes["body"].Fields["h"].AsNumber()
	require.Equal(t, 2.0, h)
}

func TestModelStateDeterministicAcrossRuns(t *testing.T) {
	source := `
solid body = box { w:20; h:20; d:20; }
feature hole1 = hole { target: body.top; x:1; y:1; d:2; }`
	file, err := ParseFile(source)
	require.NoError(t, err)

	state1, err := BuildModelState(file)
	require.NoError(t, err)
	state2, err := BuildModelState(file)
	require.NoError(t, err)

	if diff := cmp.Diff(state1.ExecutionOrder, state2.ExecutionOrder); diff != "" {
		t.Errorf("execution order differs across runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(state1.DeclarationOrder, state2.DeclarationOrder); diff != "" {
		t.Errorf("declaration order differs across runs (-first +second):\n%s", diff)
	}
	require.Equal(t, state1.FinalNodeID, state2.FinalNodeID)
}

func TestCodegenRoundtrip(t *testing.T) {
	file, err := ParseFile(`solid body = box { w:20; h:20; d:20; }`)
	require.NoError(t, err)
	body, err := CompileToThreeJSON(file)
	require.NoError(t, err)
	require.Contains(t, body, "puppycad.featuregraph@0.1")
}
