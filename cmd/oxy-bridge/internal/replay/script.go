// Package replay drives an in-memory host from a YAML script so the bridge can be exercised
// without an authoring tool.
package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is a scripted host session.
type Script struct {
	// Panel is the viewport panel the host exposes.
	Panel PanelSpec `yaml:"panel"`
	Steps []Step    `yaml:"steps"`
}

// PanelSpec is the initial viewport panel.
type PanelSpec struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Step is one host mutation. Op selects which of the remaining fields are read.
//
// Entities are referred to by the name given in the step that created them.
type Step struct {
	Op string `yaml:"op"`

	Name   string `yaml:"name,omitempty"`
	Target string `yaml:"target,omitempty"`
	Parent string `yaml:"parent,omitempty"`
	Shader string `yaml:"shader,omitempty"`
	Group  string `yaml:"group,omitempty"`
	Mesh   string `yaml:"mesh,omitempty"`

	Transform *TransformSpec `yaml:"transform,omitempty"`
	Light     *LightSpec     `yaml:"light,omitempty"`
	Geometry  *GeometrySpec  `yaml:"geometry,omitempty"`
	Surface   *SurfaceSpec   `yaml:"surface,omitempty"`

	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
	// Frames is how many Setup calls a frame step runs, at least one.
	Frames int `yaml:"frames,omitempty"`
}

// TransformSpec is a local transform. Omitted rotation and scale default to identity.
type TransformSpec struct {
	Translation [3]float64  `yaml:"translation"`
	Rotation    *[4]float64 `yaml:"rotation,omitempty"`
	Scale       *[3]float64 `yaml:"scale,omitempty"`
}

// LightSpec is a light shape.
type LightSpec struct {
	Kind      string     `yaml:"kind"`
	Color     [3]float32 `yaml:"color"`
	Intensity float32    `yaml:"intensity"`
	ConeAngle float32    `yaml:"coneAngle,omitempty"`
}

// GeometrySpec is a mesh shape.
type GeometrySpec struct {
	Name      string `yaml:"name"`
	SubMeshes int    `yaml:"subMeshes"`
}

// SurfaceSpec is a surface shader.
type SurfaceSpec struct {
	Type      string            `yaml:"type"`
	Color     [3]float32        `yaml:"color"`
	Metallic  float32           `yaml:"metallic"`
	Roughness float32           `yaml:"roughness"`
	Textures  map[string]string `yaml:"textures,omitempty"`
}

// Load reads a script file.
//
// Parameters:
//   - path: the script path
//
// Returns:
//   - *Script: the parsed script
//   - error: error if the file cannot be read or decoded
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("replay: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Script: the parsed script
//   - error: error if the document is malformed
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i, step := range s.Steps {
		if step.Op == "" {
			return nil, fmt.Errorf("step %d: missing op", i)
		}
	}
	return &s, nil
}
