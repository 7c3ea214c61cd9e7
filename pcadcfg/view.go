// Package pcadcfg holds the render kernel's ambient configuration: camera/
// viewport parameters, quality tier, and the bounds a caller is expected to
// enforce before handing input to the core pipeline.
package pcadcfg

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RenderQuality gates the one tessellation knob the kernel currently
// varies: how much MaxChordErrorPx is allowed to shrink a hole's
// effective radius (see ViewParams.MaxChordErrorPx).
type RenderQuality uint8

const (
	QualityDraft RenderQuality = iota
	QualityNormal
	QualityHigh
)

func (q RenderQuality) String() string {
	switch q {
	case QualityDraft:
		return "draft"
	case QualityHigh:
		return "high"
	default:
		return "normal"
	}
}

// MarshalYAML renders the quality as its lowercase name.
func (q RenderQuality) MarshalYAML() (any, error) {
	return q.String(), nil
}

// UnmarshalYAML parses the quality from its lowercase name, defaulting to
// Normal on an empty or unrecognized value.
func (q *RenderQuality) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "draft":
		*q = QualityDraft
	case "high":
		*q = QualityHigh
	default:
		*q = QualityNormal
	}
	return nil
}

// ViewParams is reserved for future LOD/quality choices; the current
// render kernel uses only Quality and MaxChordErrorPx (to shrink hole
// radii very slightly under Draft quality — see render.BuildWithView).
type ViewParams struct {
	CameraPos       [3]float32    `yaml:"camera_pos"`
	ViewProj        [4][4]float32 `yaml:"view_proj"`
	ViewportPx      [2]uint32     `yaml:"viewport_px"`
	Quality         RenderQuality `yaml:"quality"`
	MaxChordErrorPx float32       `yaml:"max_chord_error_px"`
}

// DefaultViewParams mirrors the teacher's zero-value-safe defaults:
// identity projection, 800x600 viewport, Normal quality.
func DefaultViewParams() *ViewParams {
	return &ViewParams{
		ViewProj: [4][4]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
		},
		ViewportPx:      [2]uint32{800, 600},
		Quality:         QualityNormal,
		MaxChordErrorPx: 1.0,
	}
}

// LoadViewParams reads a YAML-encoded ViewParams from path, filling in
// DefaultViewParams for any field the document omits.
func LoadViewParams(path string) (*ViewParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	params := DefaultViewParams()
	if err := yaml.Unmarshal(data, params); err != nil {
		return nil, err
	}
	return params, nil
}

// Limits bounds recursion/op counts a caller should enforce before
// invoking the core pipeline, per the "callers enforce bounds" policy —
// the core itself performs no cancellation or size-based rejection.
type Limits struct {
	MaxDecls     int `yaml:"max_decls"`
	MaxExprDepth int `yaml:"max_expr_depth"`
	MaxSourceLen int `yaml:"max_source_len"`
}

// DefaultLimits returns generous bounds suitable for interactive editing.
func DefaultLimits() Limits {
	return Limits{MaxDecls: 4096, MaxExprDepth: 256, MaxSourceLen: 4 << 20}
}
