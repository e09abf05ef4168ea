package command

import (
	"bytes"
	"image"
	imgcolor "image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replayScript = `
panel: {name: modelPanel4, width: 800, height: 600}
steps:
  - op: addTransform
    name: xf
  - op: addLight
    name: sun
    parent: xf
    light: {kind: directional, color: [1, 1, 1], intensity: 1}
  - op: addMesh
    name: cube
    parent: xf
    geometry: {name: cube, subMeshes: 1}
  - op: addShader
    name: brick
    surface:
      type: phong
      color: [0.5, 0.2, 0.1]
      roughness: 0.8
      textures:
        albedo: brick.png
  - op: addGroup
    name: brickSG
  - op: connect
    shader: brick
    group: brickSG
  - op: assign
    mesh: cube
    group: brickSG
  - op: frame
`

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, imgcolor.NRGBA{R: 200, A: 255})
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, png.Encode(out, img))
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	root := NewRootCommand(NewCLI(&out, &errOut))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestReplayHeadless(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "brick.png"))
	script := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(script, []byte(replayScript), 0o644))

	out, _, err := runCLI(t, "replay", "--backend", "null", script)
	require.NoError(t, err)

	assert.Contains(t, out, "replayed 8 steps, 1 frames")
	assert.Contains(t, out, "lights: 1")
	assert.Contains(t, out, "meshes: 1")
	assert.Contains(t, out, "relations: 1")
	assert.Contains(t, out, "bindings: 1")
	assert.Contains(t, out, "materials: 2")
	assert.Contains(t, out, "textures: 1")
	assert.Contains(t, out, "frame: 800x600")
}

func TestReplayUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("renderer:\n  backend: \"null\"\nlog:\n  verbosity: 1\n"), 0o644))
	script := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(script, []byte("steps:\n  - op: frame\n"), 0o644))

	out, logs, err := runCLI(t, "--config", cfg, "replay", script)
	require.NoError(t, err)
	assert.Contains(t, out, "replayed 1 steps, 1 frames")
	assert.Contains(t, logs, "dispatcher started")
}

func TestReplayReportsFailingStep(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(script, []byte("steps:\n  - op: remove\n    target: ghost\n"), 0o644))

	out, _, err := runCLI(t, "replay", "--backend", "null", script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0 (remove)")
	assert.Contains(t, out, "replayed 0 steps")
}

func TestReplayRequiresScript(t *testing.T) {
	_, _, err := runCLI(t, "replay")
	assert.Error(t, err)

	_, _, err = runCLI(t, "replay", "--backend", "null", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "oxy-bridge dev")
}
