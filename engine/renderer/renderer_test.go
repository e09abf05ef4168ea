package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNullRenderer(t *testing.T, m *metrics.Metrics) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeNull, WithLogger(testr.New(t)), WithMetrics(m), WithInitialSize(640, 480))
	require.NoError(t, err)
	return r
}

func TestNullRendererWaitAndResize(t *testing.T) {
	m := metrics.Discard()
	r := newNullRenderer(t, m)
	defer r.Close()

	assert.True(t, r.Ready())
	assert.Equal(t, BackendTypeNull, r.BackendType())

	w, h := r.Dimensions()
	assert.Equal(t, [2]int{640, 480}, [2]int{w, h})

	require.NoError(t, r.WaitForAllPreviousWork())
	require.NoError(t, r.WaitForAllPreviousWork())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.GPUWaits))

	require.NoError(t, r.Resize(800, 600))
	w, h = r.Dimensions()
	assert.Equal(t, [2]int{800, 600}, [2]int{w, h})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FrameResizes))

	require.Error(t, r.Resize(0, 600))
	w, _ = r.Dimensions()
	assert.Equal(t, 800, w)
}

func TestRendererClosedIsUnavailable(t *testing.T) {
	r := newNullRenderer(t, metrics.Discard())
	r.Close()
	r.Close()

	assert.False(t, r.Ready())
	require.ErrorIs(t, r.WaitForAllPreviousWork(), common.ErrResourceUnavailable)
	require.ErrorIs(t, r.Resize(10, 10), common.ErrResourceUnavailable)
}

func TestNullRendererTexturePool(t *testing.T) {
	r := newNullRenderer(t, metrics.Discard())
	defer r.Close()

	pool := r.TexturePool()
	h, err := pool.LoadFromStaging("px", common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1}, texture.FlagSRGB)
	require.NoError(t, err)
	require.NoError(t, pool.Unload(h))
	require.ErrorIs(t, pool.Unload(h), common.ErrNotFound)
}

func TestParseBackendType(t *testing.T) {
	b, err := ParseBackendType("WGPU")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeWGPU, b)

	b, err = ParseBackendType("")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeNull, b)

	_, err = ParseBackendType("vulkan")
	require.Error(t, err)

	_, err = NewRenderer(RendererBackendType(7))
	require.ErrorIs(t, err, common.ErrUnsupportedVariant)
}
