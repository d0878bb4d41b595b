package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_NeverFails(t *testing.T) {
	detector := NewDetector(nil)

	caps := detector.Detect()

	assert.True(t, caps.Rasterization)
	assert.Greater(t, caps.MaxSurfacePixels, 0)
	assert.Greater(t, caps.WorkerCount, 0)
	assert.WithinDuration(t, time.Now(), caps.DetectedAt, time.Minute)
}

func TestDetect_CachesSnapshot(t *testing.T) {
	detector := NewDetector(nil)

	first := detector.Detect()
	second := detector.Detect()

	assert.Equal(t, first.DetectedAt, second.DetectedAt)
}

func TestInvalidate_ForcesRedetection(t *testing.T) {
	detector := NewDetector(nil)

	first := detector.Detect()
	time.Sleep(5 * time.Millisecond)
	detector.Invalidate()
	second := detector.Detect()

	assert.True(t, second.DetectedAt.After(first.DetectedAt))
}

func TestProbeMaxSurface_RespectsMemoryBudget(t *testing.T) {
	// A 64MB ceiling gives a 16MB surface budget, which only admits the
	// 1024 and 2048 probes (2048^2*4 = 16MB exactly)
	pixels := probeMaxSurface(64 * 1024 * 1024)
	assert.LessOrEqual(t, pixels, 2048*2048)
	assert.GreaterOrEqual(t, pixels, 1024*1024)
}

func TestProbeMaxSurface_UnknownCeilingTakesFloor(t *testing.T) {
	pixels := probeMaxSurface(0)
	require.Equal(t, 1024*1024, pixels)
}

func TestProbeRasterization(t *testing.T) {
	assert.True(t, probeRasterization())
}
