package render

import (
	"testing"

	"github.com/puppycad/pcad/graph"
	"github.com/puppycad/pcad/lang"
	"github.com/puppycad/pcad/model"
)

func buildState(t *testing.T, source string) *model.State {
	t.Helper()
	file, err := lang.ParseFile(source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	g := graph.New(file)
	state, err := model.Build(g)
	if err != nil {
		t.Fatalf("model build error: %v", err)
	}
	return state
}

const boxOnlySource = `solid body = box { w: 20; h: 20; d: 20; }`

const holeModelSource = `
solid body = box {
  w: 20;
  h: 20;
  d: 20;
}

feature hole1 = hole {
  let cx = body.w / 2;
  let cy = body.h / 2;

  target: body.top;
  x: cx;
  y: cy;
  d: 6;
}
`

func TestBuildBoxOnlyMesh(t *testing.T) {
	state := buildState(t, boxOnlySource)
	rs := Build(state)

	if len(rs.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(rs.Meshes))
	}
	mesh := rs.Meshes[0]
	if mesh.DeclID != "body" {
		t.Errorf("expected decl id 'body', got %q", mesh.DeclID)
	}
	if len(mesh.TriFaceIDs) != 12 {
		t.Errorf("expected 12 triangles (2 per face x 6 faces), got %d", len(mesh.TriFaceIDs))
	}
	if len(mesh.Indices)%3 != 0 {
		t.Errorf("indices length must be a multiple of 3, got %d", len(mesh.Indices))
	}
	if len(mesh.Positions) != len(mesh.Normals) {
		t.Errorf("positions/normals length mismatch: %d vs %d", len(mesh.Positions), len(mesh.Normals))
	}
	if len(rs.Edges) != 1 || len(rs.Edges[0].EdgeIDs) != 12 {
		t.Fatalf("expected 12 wireframe edges, got %d", len(rs.Edges[0].EdgeIDs))
	}
}

func TestBuildHoleOnTopFace(t *testing.T) {
	state := buildState(t, holeModelSource)
	rs := Build(state)

	if len(rs.Meshes) == 0 {
		t.Fatal("expected at least one mesh")
	}
	mesh := rs.Meshes[0]
	if len(mesh.Positions) != len(mesh.Normals) {
		t.Errorf("positions/normals length mismatch: %d vs %d", len(mesh.Positions), len(mesh.Normals))
	}
	if len(mesh.TriFaceIDs) != len(mesh.Indices)/3 {
		t.Errorf("tri_face_ids count must equal indices/3: %d vs %d", len(mesh.TriFaceIDs), len(mesh.Indices)/3)
	}
	for i, r := range mesh.TriFaceIDs {
		if int(r.StartIndex) != 3*i {
			t.Errorf("tri %d: start_index = %d, want %d", i, r.StartIndex, 3*i)
		}
	}

	foundHoleFace := false
	foundBodyFace := false
	for _, rec := range rs.PickMap {
		if rec.DeclID == "hole1" && rec.Kind == PickFace {
			foundHoleFace = true
		}
		if rec.DeclID == "body" && rec.Kind == PickFace {
			foundBodyFace = true
		}
	}
	if !foundHoleFace {
		t.Error("expected a pick record attributed to hole1")
	}
	if !foundBodyFace {
		t.Error("expected a pick record attributed to body (e.g. the unaltered side faces)")
	}

	for _, key := range []string{"body", "hole1"} {
		found := false
		for _, rec := range rs.PickMap {
			if rec.DeclID == key {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected a pick record for %q", key)
		}
	}
}

func TestEveryPickKeyHasAPickRecord(t *testing.T) {
	state := buildState(t, holeModelSource)
	rs := Build(state)

	seen := make(map[PickKey]bool)
	for _, rec := range rs.PickMap {
		seen[rec.Pick] = true
	}
	for _, mesh := range rs.Meshes {
		for _, r := range mesh.TriFaceIDs {
			if !seen[r.Pick] {
				t.Errorf("tri_face_ids pick %d has no matching pick_map entry", r.Pick)
			}
		}
	}
	for _, edges := range rs.Edges {
		for _, r := range edges.EdgeIDs {
			if !seen[r.Pick] {
				t.Errorf("edge_ids pick %d has no matching pick_map entry", r.Pick)
			}
		}
	}
}

func TestPickKeysAreUniqueAndDenseFromOne(t *testing.T) {
	state := buildState(t, holeModelSource)
	rs := Build(state)

	seen := make(map[PickKey]bool)
	max := PickKey(0)
	for _, rec := range rs.PickMap {
		if seen[rec.Pick] {
			t.Fatalf("duplicate pick key %d", rec.Pick)
		}
		seen[rec.Pick] = true
		if rec.Pick > max {
			max = rec.Pick
		}
		if rec.Pick < 1 {
			t.Fatalf("pick key %d must be >= 1", rec.Pick)
		}
	}
	if int(max) != len(rs.PickMap) {
		t.Errorf("expected dense pick keys 1..%d, got max %d", len(rs.PickMap), max)
	}
}

func TestTranslateLeavesTargetBoxUntranslated(t *testing.T) {
	state := buildState(t, `
solid base = box { w: 1; h: 1; d: 1; }
solid moved = translate { of: base; by: vec3(5, 0, 0); }
`)
	rs := Build(state)
	if len(rs.Meshes) != 1 {
		t.Fatalf("expected 1 mesh (translate has no box op), got %d", len(rs.Meshes))
	}
	mesh := rs.Meshes[0]
	if mesh.DeclID != "base" {
		t.Fatalf("expected mesh for 'base', got %q", mesh.DeclID)
	}
	// A translate stores its composed offset under its own id, and a box
	// only reads the offset stored under the box's id, so base keeps a
	// zero offset.
	for _, p := range mesh.Positions {
		if p[0] < 0 || p[0] > 1 {
			t.Errorf("unexpected untranslated position %v", p)
		}
	}
}
