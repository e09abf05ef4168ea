package transform

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncIdentityIsExact(t *testing.T) {
	h := host.NewMemoryHost()
	data := host.IdentityTransform()
	data.Translation = [3]float64{1, 2, 3}
	xf := h.AddTransform(data)

	got, err := Sync(h, xf)
	require.NoError(t, err)
	assert.Equal(t, Transform{
		Position: [3]float32{1, 2, 3},
		Rotation: [3]float32{0, 0, 0},
		Scale:    [3]float32{1, 1, 1},
	}, got)
	assert.False(t, math.Signbit(float64(got.Rotation[0])))
}

func TestSyncRejectsWrongKind(t *testing.T) {
	h := host.NewMemoryHost()
	xf := h.AddTransform(host.IdentityTransform())
	light, err := h.AddLight(xf, host.LightData{Kind: host.LightKindPoint})
	require.NoError(t, err)

	_, err = Sync(h, light)
	require.ErrorIs(t, err, common.ErrWrongEntityKind)

	_, err = Sync(h, host.HandleOf(404))
	require.ErrorIs(t, err, common.ErrWrongEntityKind)
}

func TestSyncRejectsDegenerateRotation(t *testing.T) {
	h := host.NewMemoryHost()
	data := host.IdentityTransform()
	data.Rotation = [4]float64{0, 0, 0, 0}
	xf := h.AddTransform(data)

	_, err := Sync(h, xf)
	require.ErrorIs(t, err, common.ErrInvalidTransform)
}

func TestConvertSingleAxisRotations(t *testing.T) {
	s, c := math.Sin(math.Pi/4), math.Cos(math.Pi/4)
	tests := []struct {
		name string
		q    [4]float64
		want [3]float32
	}{
		{"x90", [4]float64{s, 0, 0, c}, [3]float32{90, 0, 0}},
		{"y90", [4]float64{0, s, 0, c}, [3]float32{0, 90, 0}},
		{"z90", [4]float64{0, 0, s, c}, [3]float32{0, 0, 90}},
		// unnormalized input is normalized first
		{"z90 scaled", [4]float64{0, 0, 3 * s, 3 * c}, [3]float32{0, 0, 90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := host.IdentityTransform()
			data.Rotation = tt.q
			got, err := Convert(data)
			require.NoError(t, err)
			for i := range 3 {
				assert.InDelta(t, tt.want[i], got.Rotation[i], 1e-4)
			}
		})
	}
}

func TestConvertMatchesNodeMatrix(t *testing.T) {
	// arbitrary axis-angle rotation
	axis := [3]float64{0.3, -0.5, 0.8}
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	half := 1.1 / 2
	q := [4]float64{
		axis[0] / n * math.Sin(half),
		axis[1] / n * math.Sin(half),
		axis[2] / n * math.Sin(half),
		math.Cos(half),
	}
	x, y, z, w := q[0], q[1], q[2], q[3]
	want := [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y + z*w), 2 * (x*z - y*w), // column 0
		2 * (x*y - z*w), 1 - 2*(x*x+z*z), 2 * (y*z + x*w), // column 1
		2 * (x*z + y*w), 2 * (y*z - x*w), 1 - 2*(x*x+y*y), // column 2
	}

	data := host.IdentityTransform()
	data.Rotation = q
	got, err := Convert(data)
	require.NoError(t, err)

	g := scenegraph.NewSceneGraph()
	node, err := g.CreateLight(nil, scenegraph.LightTypeDirectional)
	require.NoError(t, err)
	Apply(node, got)

	m := node.ModelMatrix()
	for col := range 3 {
		for row := range 3 {
			assert.InDelta(t, want[col*3+row], m[col*4+row], 1e-5, "col %d row %d", col, row)
		}
	}
}
