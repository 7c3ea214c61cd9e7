// Package render implements the geometry kernel: it consumes a resolved
// model.State and produces tessellated box meshes with hole subtractions,
// through-hole side walls, wireframe edges, and a flat pick table mapping
// stable keys back to declarations.
package render

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/puppycad/pcad/model"
	"github.com/puppycad/pcad/pcadcfg"
	"github.com/puppycad/pcad/pcadval"
)

// PickKey is an opaque, dense handle into a RenderState's pick_map.
type PickKey = uint32

// PickKind distinguishes the two selectable element kinds.
type PickKind uint8

const (
	PickFace PickKind = iota
	PickEdge
)

func (k PickKind) String() string {
	if k == PickEdge {
		return "edge"
	}
	return "face"
}

// PickRecord attributes one pick key back to the declaration, kind, and
// human-readable hint that produced it.
type PickRecord struct {
	DeclID string
	Kind   PickKind
	Hint   string
	Pick   PickKey
}

// FaceKeyRange covers exactly one triangle (3 contiguous indices).
type FaceKeyRange struct {
	Pick        PickKey
	StartIndex  uint32
	IndexCount  uint32
}

// EdgeKeyRange covers exactly one line segment (2 contiguous indices).
type EdgeKeyRange struct {
	Pick       PickKey
	StartIndex uint32
	IndexCount uint32
}

// Aabb is an axis-aligned bounding box over a mesh's emitted positions.
type Aabb struct {
	Min [3]float32
	Max [3]float32
}

func (a *Aabb) growPoint(p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < a.Min[i] {
			a.Min[i] = p[i]
		}
		if p[i] > a.Max[i] {
			a.Max[i] = p[i]
		}
	}
}

// Mesh is one box's triangulated surface.
type Mesh struct {
	DeclID     string
	Positions  [][3]float32
	Normals    [][3]float32
	Indices    []uint32
	TriFaceIDs []FaceKeyRange
	Bounds     Aabb
}

// Edges is one box's wireframe: 12 axis-aligned bounding-cuboid edges.
type Edges struct {
	DeclID  string
	Positions [][3]float32
	Indices   []uint32
	EdgeIDs   []EdgeKeyRange
}

// State is the render kernel's full output.
type State struct {
	Meshes  []Mesh
	Edges   []Edges
	PickMap []PickRecord
}

// anchor is one of the six named face directions on an axis-aligned box.
type anchor uint8

const (
	anchorTop anchor = iota
	anchorBottom
	anchorLeft
	anchorRight
	anchorFront
	anchorBack
)

// String matches the Rust original's `{:?}` Debug output (capitalized),
// which the pick hints embed verbatim.
func (a anchor) String() string {
	switch a {
	case anchorTop:
		return "Top"
	case anchorBottom:
		return "Bottom"
	case anchorLeft:
		return "Left"
	case anchorRight:
		return "Right"
	case anchorFront:
		return "Front"
	default:
		return "Back"
	}
}

func anchorFromName(name string) (anchor, bool) {
	switch name {
	case "top":
		return anchorTop, true
	case "bottom":
		return anchorBottom, true
	case "left":
		return anchorLeft, true
	case "right":
		return anchorRight, true
	case "front":
		return anchorFront, true
	case "back":
		return anchorBack, true
	default:
		return 0, false
	}
}

func (a anchor) opposite() anchor {
	switch a {
	case anchorTop:
		return anchorBottom
	case anchorBottom:
		return anchorTop
	case anchorLeft:
		return anchorRight
	case anchorRight:
		return anchorLeft
	case anchorFront:
		return anchorBack
	default:
		return anchorFront
	}
}

func (a anchor) axisIndex() int {
	switch a {
	case anchorLeft, anchorRight:
		return 0
	case anchorFront, anchorBack:
		return 1
	default:
		return 2
	}
}

func (a anchor) axisSign() float32 {
	switch a {
	case anchorRight, anchorFront, anchorTop:
		return 1.0
	default:
		return -1.0
	}
}

func (a anchor) planeUVAxes() (int, int) {
	switch a {
	case anchorTop, anchorBottom:
		return 0, 1
	case anchorLeft, anchorRight:
		return 1, 2
	default:
		return 0, 2
	}
}

func (a anchor) normal() [3]float32 {
	switch a {
	case anchorTop:
		return [3]float32{0, 0, 1}
	case anchorBottom:
		return [3]float32{0, 0, -1}
	case anchorLeft:
		return [3]float32{-1, 0, 0}
	case anchorRight:
		return [3]float32{1, 0, 0}
	case anchorFront:
		return [3]float32{0, 1, 0}
	default:
		return [3]float32{0, -1, 0}
	}
}

// baseFaceCornerIndices indexes into the 8-corner enumeration used by
// renderBoxMesh, winding each face so the normal points outward.
func (a anchor) baseFaceCornerIndices() [4]uint32 {
	switch a {
	case anchorTop:
		return [4]uint32{4, 5, 6, 7}
	case anchorBottom:
		return [4]uint32{0, 3, 2, 1}
	case anchorLeft:
		return [4]uint32{0, 4, 7, 3}
	case anchorRight:
		return [4]uint32{1, 2, 6, 5}
	case anchorFront:
		return [4]uint32{3, 7, 6, 2}
	default:
		return [4]uint32{0, 1, 5, 4}
	}
}

var allAnchors = [6]anchor{anchorTop, anchorBottom, anchorLeft, anchorRight, anchorFront, anchorBack}

type holeSpec struct {
	declID     string
	targetNode string
	radius     float32
	u, v       float32
	target     anchor
	through    bool
}

type boxSpec struct {
	nodeID    string
	offset    [3]float32
	width     float32
	height    float32
	depth     float32
	edgeIndex uint32
}

// Build constructs a RenderState using default view parameters and a
// no-op diagnostics logger.
func Build(m *model.State) *State {
	return BuildWithView(m, pcadcfg.DefaultViewParams(), nil)
}

// BuildWithView constructs a RenderState, routing per-item diagnostics
// (skipped holes, unsupported ops) through logger. A nil logger defaults
// to a no-op sugared logger.
func BuildWithView(m *model.State, view *pcadcfg.ViewParams, logger *zap.SugaredLogger) *State {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if view == nil {
		view = pcadcfg.DefaultViewParams()
	}

	state := &State{}
	nextPick := PickKey(1)
	translations := make(map[string][3]float32)
	var edgeNodes uint32
	skippedOps := make(map[string]uint32)
	var boxes []boxSpec
	holesByTarget := make(map[string][]holeSpec)
	var holeOrder []string // insertion order for holesByTarget, for deterministic iteration

	for _, nodeID := range m.ExecutionOrder {
		node, ok := m.Nodes[nodeID]
		if !ok {
			continue
		}

		switch node.Op {
		case "box":
			local := localTranslation(node)
			parent := translations[nodeID]
			offset := [3]float32{parent[0] + local[0], parent[1] + local[1], parent[2] + local[2]}
			boxes = append(boxes, boxSpec{
				nodeID:    nodeID,
				offset:    offset,
				width:     fieldToF32(node.Fields["w"]),
				height:    fieldToF32(node.Fields["h"]),
				depth:     fieldToF32(node.Fields["d"]),
				edgeIndex: edgeNodes,
			})
			edgeNodes++

		case "translate":
			applyTranslate(node, nodeID, translations)

		case "hole":
			spec, err := parseHole(node, nodeID, m.Nodes)
			if err != nil {
				logger.Warnw("render: skipped hole", "decl_id", nodeID, "reason", err.Error())
				continue
			}
			if spec == nil {
				continue
			}
			if _, seen := holesByTarget[spec.targetNode]; !seen {
				holeOrder = append(holeOrder, spec.targetNode)
			}
			holesByTarget[spec.targetNode] = append(holesByTarget[spec.targetNode], *spec)

		default:
			skippedOps[node.Op]++
		}
	}

	for _, target := range holeOrder {
		if _, ok := m.Nodes[target]; !ok {
			for _, hole := range holesByTarget[target] {
				logger.Warnw("render: skipped hole", "decl_id", hole.declID, "reason", fmt.Sprintf("target '%s' is unknown", target))
			}
		}
	}

	effectiveRadiusShrink := radiusShrink(view)

	for _, box := range boxes {
		specs := holesByTarget[box.nodeID]
		delete(holesByTarget, box.nodeID)
		mesh, edges, picks := renderBoxMesh(box, specs, &nextPick, effectiveRadiusShrink)
		state.Meshes = append(state.Meshes, mesh)
		if len(edges.Positions) > 0 {
			state.Edges = append(state.Edges, edges)
		}
		state.PickMap = append(state.PickMap, picks...)
	}

	if len(skippedOps) > 0 {
		ops := make([]string, 0, len(skippedOps))
		for op := range skippedOps {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		parts := make([]string, 0, len(ops))
		for _, op := range ops {
			parts = append(parts, fmt.Sprintf("%s x%d", op, skippedOps[op]))
		}
		logger.Warnw("render: skipped unsupported op(s)", "ops", parts)
	}

	return state
}

// radiusShrink returns the tiny hole-radius tolerance that Draft quality
// applies; Normal/High quality leave holes untouched.
func radiusShrink(view *pcadcfg.ViewParams) float32 {
	if view.Quality != pcadcfg.QualityDraft {
		return 0
	}
	slack := view.MaxChordErrorPx
	if slack < 0 {
		slack = 0
	}
	return float32(1e-6) * slack
}

func renderBoxMesh(spec boxSpec, holeSpecs []holeSpec, nextPick *PickKey, radiusShrink float32) (Mesh, Edges, []PickRecord) {
	nodeID := spec.nodeID
	offset := spec.offset
	min := offset
	max := [3]float32{offset[0] + spec.width, offset[1] + spec.height, offset[2] + spec.depth}

	cornerPositions := [8][3]float32{
		min,
		{max[0], min[1], min[2]},
		{max[0], max[1], min[2]},
		{min[0], max[1], min[2]},
		{min[0], min[1], max[2]},
		{max[0], min[1], max[2]},
		{max[0], max[1], max[2]},
		{min[0], max[1], max[2]},
	}

	var positions [][3]float32
	var normals [][3]float32
	var indices []uint32
	var triFaceIDs []FaceKeyRange
	var pickMap []PickRecord
	triStartIndex := uint32(0)

	holeByTarget := make(map[anchor][]*holeSpec, 6)
	var throughHoles []*holeSpec
	for i := range holeSpecs {
		hole := &holeSpecs[i]
		holeByTarget[hole.target] = append(holeByTarget[hole.target], hole)
		if hole.through {
			holeByTarget[hole.target.opposite()] = append(holeByTarget[hole.target.opposite()], hole)
			throughHoles = append(throughHoles, hole)
		}
	}

	emitCorner := func(face anchor, corner uint32) uint32 {
		idx := uint32(len(positions))
		positions = append(positions, cornerPositions[corner])
		normals = append(normals, face.normal())
		return idx
	}

	emitSolidFace := func(face anchor, declID, hint string) {
		corners := face.baseFaceCornerIndices()
		a := emitCorner(face, corners[0])
		b := emitCorner(face, corners[1])
		c := emitCorner(face, corners[2])
		d := emitCorner(face, corners[3])
		emitQuad(a, b, c, d, PickFace, declID, hint, nextPick, &indices, &triFaceIDs, &pickMap, &triStartIndex)
	}

	emitFace := func(face anchor, hole *holeSpec) {
		if hole == nil {
			emitSolidFace(face, nodeID, "face."+face.String())
			return
		}

		uAxis, vAxis := face.planeUVAxes()
		minU, maxU := min[uAxis], max[uAxis]
		minV, maxV := min[vAxis], max[vAxis]
		nAxis := face.axisIndex()
		var nCoord float32
		if face.axisSign() > 0 {
			nCoord = max[nAxis]
		} else {
			nCoord = min[nAxis]
		}

		radius := hole.radius - radiusShrink
		if radius < 0 {
			radius = 0
		}
		holeU0 := clampF(hole.u-radius, minU, maxU)
		holeU1 := clampF(hole.u+radius, minU, maxU)
		holeV0 := clampF(hole.v-radius, minV, maxV)
		holeV1 := clampF(hole.v+radius, minV, maxV)

		if !(holeU0 < holeU1 && holeV0 < holeV1) {
			emitSolidFace(face, nodeID, "face."+face.String()+".fallback")
			return
		}

		cornerPoint := func(u, v float32) uint32 {
			var point [3]float32
			point[uAxis] = u
			point[vAxis] = v
			point[nAxis] = nCoord
			idx := uint32(len(positions))
			positions = append(positions, point)
			normals = append(normals, face.normal())
			return idx
		}

		p0 := cornerPoint(minU, minV)
		p1 := cornerPoint(maxU, minV)
		p2 := cornerPoint(maxU, maxV)
		p3 := cornerPoint(minU, maxV)
		h0 := cornerPoint(holeU0, holeV0)
		h1 := cornerPoint(holeU1, holeV0)
		h2 := cornerPoint(holeU1, holeV1)
		h3 := cornerPoint(holeU0, holeV1)

		// Each frame strip is emitted only when the gap between its face
		// edge and the matching hole edge is strictly positive.
		if minV < holeV0 {
			emitQuad(p0, p1, h1, h0, PickFace, hole.declID, "hole."+face.String()+".bottom", nextPick, &indices, &triFaceIDs, &pickMap, &triStartIndex)
		}
		if holeU1 < maxU {
			emitQuad(p1, p2, h2, h1, PickFace, hole.declID, "hole."+face.String()+".right", nextPick, &indices, &triFaceIDs, &pickMap, &triStartIndex)
		}
		if holeV1 < maxV {
			emitQuad(p2, p3, h3, h2, PickFace, hole.declID, "hole."+face.String()+".top", nextPick, &indices, &triFaceIDs, &pickMap, &triStartIndex)
		}
		if minU < holeU0 {
			emitQuad(p3, p0, h0, h3, PickFace, hole.declID, "hole."+face.String()+".left", nextPick, &indices, &triFaceIDs, &pickMap, &triStartIndex)
		}
	}

	for _, face := range allAnchors {
		targetHoles := holeByTarget[face]
		var first *holeSpec
		if len(targetHoles) > 0 {
			first = targetHoles[0]
		}
		emitFace(face, first)
	}

	for _, hole := range throughHoles {
		baseFace := hole.target
		uAxis, vAxis := baseFace.planeUVAxes()
		minU, maxU := min[uAxis], max[uAxis]
		minV, maxV := min[vAxis], max[vAxis]
		nAxis := baseFace.axisIndex()
		var baseN float32
		if baseFace.axisSign() > 0 {
			baseN = max[nAxis]
		} else {
			baseN = min[nAxis]
		}
		opposite := baseFace.opposite()
		var oppN float32
		if opposite.axisSign() > 0 {
			oppN = max[nAxis]
		} else {
			oppN = min[nAxis]
		}

		radius := hole.radius - radiusShrink
		if radius < 0 {
			radius = 0
		}
		holeU0 := clampF(hole.u-radius, minU, maxU)
		holeU1 := clampF(hole.u+radius, minU, maxU)
		holeV0 := clampF(hole.v-radius, minV, maxV)
		holeV1 := clampF(hole.v+radius, minV, maxV)
		if !(holeU0 < holeU1 && holeV0 < holeV1) {
			continue
		}

		wallPoint := func(u, v, n float32) [3]float32 {
			var point [3]float32
			point[uAxis] = u
			point[vAxis] = v
			point[nAxis] = n
			return point
		}

		b0 := wallPoint(holeU0, holeV0, baseN)
		b1 := wallPoint(holeU1, holeV0, baseN)
		b2 := wallPoint(holeU1, holeV1, baseN)
		b3 := wallPoint(holeU0, holeV1, baseN)
		o0 := wallPoint(holeU0, holeV0, oppN)
		o1 := wallPoint(holeU1, holeV0, oppN)
		o2 := wallPoint(holeU1, holeV1, oppN)
		o3 := wallPoint(holeU0, holeV1, oppN)

		emitWallQuad := func(a, b, c, d [3]float32, suffix string) {
			normal := faceNormalFromPoints(a, b, c)
			pushWallVertex := func(p [3]float32) uint32 {
				idx := uint32(len(positions))
				positions = append(positions, p)
				normals = append(normals, normal)
				return idx
			}
			ia := pushWallVertex(a)
			ib := pushWallVertex(b)
			ic := pushWallVertex(c)
			id := pushWallVertex(d)
			emitQuad(ia, ib, ic, id, PickFace, hole.declID, "hole-wall."+baseFace.String()+"."+suffix, nextPick, &indices, &triFaceIDs, &pickMap, &triStartIndex)
		}

		emitWallQuad(b0, b1, o1, o0, "0")
		emitWallQuad(b1, b2, o2, o1, "1")
		emitWallQuad(b2, b3, o3, o2, "2")
		emitWallQuad(b3, b0, o0, o3, "3")
	}

	bounds := Aabb{
		Min: [3]float32{posInf, posInf, posInf},
		Max: [3]float32{negInf, negInf, negInf},
	}
	for _, p := range positions {
		bounds.growPoint(p)
	}

	edgePairs := [12][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}

	var edgePositions [][3]float32
	var edgeIndices []uint32
	var edgeKeyRanges []EdgeKeyRange
	for edgeIdx, pair := range edgePairs {
		start := uint32(len(edgePositions))
		edgePositions = append(edgePositions, cornerPositions[pair[0]], cornerPositions[pair[1]])
		edgeIndices = append(edgeIndices, start, start+1)

		pick := *nextPick
		*nextPick++
		edgeKeyRanges = append(edgeKeyRanges, EdgeKeyRange{Pick: pick, StartIndex: start, IndexCount: 2})
		pickMap = append(pickMap, PickRecord{
			DeclID: nodeID,
			Kind:   PickEdge,
			Hint:   fmt.Sprintf("edge.%d.%d", spec.edgeIndex, edgeIdx),
			Pick:   pick,
		})
	}

	edges := Edges{DeclID: nodeID, Positions: edgePositions, Indices: edgeIndices, EdgeIDs: edgeKeyRanges}
	mesh := Mesh{
		DeclID:     nodeID,
		Positions:  positions,
		Normals:    normals,
		Indices:    indices,
		TriFaceIDs: triFaceIDs,
		Bounds:     bounds,
	}
	return mesh, edges, pickMap
}

var posInf = float32(math.Inf(1))
var negInf = float32(math.Inf(-1))

func emitQuad(a, b, c, d uint32, kind PickKind, declID, hint string, nextPick *PickKey, indices *[]uint32, triFaceIDs *[]FaceKeyRange, pickMap *[]PickRecord, triStartIndex *uint32) {
	pushTriangle(a, b, c, kind, declID, hint, nextPick, indices, triFaceIDs, pickMap, triStartIndex)
	pushTriangle(a, c, d, kind, declID, hint, nextPick, indices, triFaceIDs, pickMap, triStartIndex)
}

func pushTriangle(a, b, c uint32, kind PickKind, declID, hint string, nextPick *PickKey, indices *[]uint32, triFaceIDs *[]FaceKeyRange, pickMap *[]PickRecord, triStartIndex *uint32) {
	pick := *nextPick
	*nextPick++
	*indices = append(*indices, a, b, c)
	*triFaceIDs = append(*triFaceIDs, FaceKeyRange{Pick: pick, StartIndex: *triStartIndex, IndexCount: 3})
	*pickMap = append(*pickMap, PickRecord{DeclID: declID, Kind: kind, Hint: hint, Pick: pick})
	*triStartIndex += 3
}

func faceNormalFromPoints(a, b, c [3]float32) [3]float32 {
	ux, uy, uz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	vx, vy, vz := c[0]-a[0], c[1]-a[1], c[2]-a[2]

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx
	length := float32(math.Sqrt(float64(nx*nx + ny*ny + nz*nz)))
	if length <= epsilon32 {
		return [3]float32{0, 0, 0}
	}
	inv := 1 / length
	return [3]float32{nx * inv, ny * inv, nz * inv}
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func applyTranslate(node *model.Node, nodeID string, translations map[string][3]float32) {
	target, ok := asNodeRef(node.Fields["of"])
	if !ok {
		return
	}
	by, ok := asVec3(node.Fields["by"])
	if !ok {
		return
	}
	targetTranslation := translations[target]
	translations[nodeID] = [3]float32{
		targetTranslation[0] + by[0],
		targetTranslation[1] + by[1],
		targetTranslation[2] + by[2],
	}
}

func localTranslation(node *model.Node) [3]float32 {
	return [3]float32{
		fieldToF32(node.Fields["x"]),
		fieldToF32(node.Fields["y"]),
		fieldToF32(node.Fields["z"]),
	}
}

func asNodeRef(v pcadval.Value) (string, bool) {
	switch v.Kind {
	case pcadval.KindNodeRef:
		return v.NodeRef, true
	case pcadval.KindTargetRef:
		return v.TargetNode, true
	default:
		return "", false
	}
}

func asVec3(v pcadval.Value) ([3]float32, bool) {
	if v.Kind != pcadval.KindVec3 {
		return [3]float32{}, false
	}
	return [3]float32{float32(v.Vec3[0]), float32(v.Vec3[1]), float32(v.Vec3[2])}, true
}

func asBoolField(v pcadval.Value) (bool, bool) {
	if v.Kind != pcadval.KindBool {
		return false, false
	}
	return v.Bool, true
}

func fieldToF32(v pcadval.Value) float32 {
	if v.Kind != pcadval.KindNumber {
		return 0
	}
	return float32(v.Number)
}

func parseHole(node *model.Node, declID string, nodes map[string]*model.Node) (*holeSpec, error) {
	targetValue, ok := node.Fields["target"]
	if !ok {
		return nil, fmt.Errorf("missing target")
	}
	if targetValue.Kind != pcadval.KindTargetRef {
		return nil, fmt.Errorf("target must be a target reference (e.g. body.top)")
	}
	target, ok := anchorFromName(targetValue.TargetAnchor)
	if !ok {
		return nil, fmt.Errorf("unknown target anchor '%s'", targetValue.TargetAnchor)
	}
	targetNode := targetValue.TargetNode
	if _, ok := nodes[targetNode]; !ok {
		return nil, fmt.Errorf("unknown target node '%s'", targetNode)
	}

	dField, hasD := node.Fields["d"]
	if !hasD || dField.Kind != pcadval.KindNumber {
		return nil, fmt.Errorf("missing diameter 'd'")
	}
	diameter := float32(dField.Number)
	if diameter <= 0 {
		return nil, fmt.Errorf("invalid diameter '%v'", diameter)
	}

	xField, hasX := node.Fields["x"]
	if !hasX || xField.Kind != pcadval.KindNumber {
		return nil, fmt.Errorf("missing x")
	}
	yField, hasY := node.Fields["y"]
	if !hasY || yField.Kind != pcadval.KindNumber {
		return nil, fmt.Errorf("missing y")
	}

	through := true
	if throughField, ok := node.Fields["through"]; ok {
		if b, ok := asBoolField(throughField); ok {
			through = b
		}
	}

	return &holeSpec{
		declID:     declID,
		targetNode: targetNode,
		radius:     diameter / 2,
		u:          float32(xField.Number),
		v:          float32(yField.Number),
		target:     target,
		through:    through,
	}, nil
}

const epsilon32 = float32(1.1920929e-7)
