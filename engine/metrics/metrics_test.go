package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TextureHits.Inc()
	m.TrackedEntities.WithLabelValues("light").Set(2)

	count, err := testutil.GatherAndCount(reg, "oxy_bridge_texture_cache_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TrackedEntities.WithLabelValues("light")))
}

func TestDiscardDoesNotPanicOnDoubleUse(t *testing.T) {
	a := Discard()
	b := Discard()
	a.GPUWaits.Inc()
	b.GPUWaits.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.GPUWaits))
}
