package profiler

import (
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
)

func TestTickReportsAfterInterval(t *testing.T) {
	p := NewProfiler(testr.New(t), time.Second)
	start := time.Unix(100, 0)
	clock := start
	p.now = func() time.Time { return clock }
	p.lastTime = start

	for range 29 {
		clock = clock.Add(10 * time.Millisecond)
		_, reported := p.Tick()
		assert.False(t, reported)
	}

	clock = start.Add(2 * time.Second)
	stats, reported := p.Tick()
	assert.True(t, reported)
	assert.InDelta(t, 15.0, stats.FPS, 1e-9)
	assert.Positive(t, stats.SysMB)

	_, reported = p.Tick()
	assert.False(t, reported)
}

func TestNewProfilerDefaultsInterval(t *testing.T) {
	p := NewProfiler(testr.New(t), 0)
	assert.Equal(t, time.Second, p.updateInterval)
}
