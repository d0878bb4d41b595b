package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/resumeforge/resumeforge/internal/capability"
)

const testMinSurface = 2048 * 2048

func fullCaps() capability.Capabilities {
	return capability.Capabilities{
		Rasterization:    true,
		MaxSurfacePixels: 4096 * 4096,
		WorkerCount:      4,
		DetectedAt:       time.Now(),
	}
}

func allHealthy(string) float64 { return 1.0 }

func TestSelectFullCapabilities(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	order := s.Select(fullCaps(), allHealthy)

	assert.Equal(t, []Strategy{Primary, Secondary, Degraded}, order)
}

func TestSelectExcludesPrimaryWithoutRasterization(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	caps := fullCaps()
	caps.Rasterization = false
	order := s.Select(caps, allHealthy)

	assert.Equal(t, []Strategy{Secondary, Degraded}, order)
	assert.NotContains(t, order, Primary)
}

func TestSelectExcludesPrimaryWithSmallSurface(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	caps := fullCaps()
	caps.MaxSurfacePixels = 1024 * 1024
	order := s.Select(caps, allHealthy)

	assert.NotEqual(t, Primary, order[0])
	assert.NotContains(t, order, Primary)
}

func TestSelectDeprioritizesUnhealthyPrimary(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	health := func(strategy string) float64 {
		if strategy == string(Primary) {
			return 0.2
		}
		return 1.0
	}
	order := s.Select(fullCaps(), health)

	// Moved later, never removed.
	assert.Equal(t, []Strategy{Secondary, Primary, Degraded}, order)
}

func TestSelectDegradedAlwaysLast(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	everythingUnhealthy := func(string) float64 { return 0.0 }
	order := s.Select(fullCaps(), everythingUnhealthy)

	assert.NotEmpty(t, order)
	assert.Equal(t, Degraded, order[len(order)-1])
	assert.Contains(t, order, Primary)
	assert.Contains(t, order, Secondary)
}

func TestSelectIsDeterministic(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	caps := fullCaps()
	first := s.Select(caps, allHealthy)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Select(caps, allHealthy))
	}
}

func TestSelectNilHealthFunc(t *testing.T) {
	s := NewSelector(testMinSurface, 0.5, nil)

	order := s.Select(fullCaps(), nil)

	assert.Equal(t, []Strategy{Primary, Secondary, Degraded}, order)
}

func TestGenerationConfigKey(t *testing.T) {
	cfg := GenerationConfig{Strategy: Secondary, PageFormat: "a4", ResolutionDPI: 150}

	assert.Equal(t, "secondary/a4/150", cfg.Key())

	other := cfg
	other.ResolutionDPI = 96
	assert.NotEqual(t, cfg.Key(), other.Key())
}

func TestConservativeConfig(t *testing.T) {
	prev := GenerationConfig{
		Strategy:         Primary,
		PageFormat:       "a4",
		ResolutionDPI:    300,
		CompressionLevel: 3,
		SubsetFonts:      true,
		Timeout:          10 * time.Second,
	}

	next := ConservativeConfig(prev, Secondary, 20*time.Second)

	assert.Equal(t, Secondary, next.Strategy)
	assert.Equal(t, 150, next.ResolutionDPI)
	assert.Equal(t, 5, next.CompressionLevel)
	assert.False(t, next.SubsetFonts)
	assert.Equal(t, 20*time.Second, next.Timeout)
	assert.Equal(t, prev.PageFormat, next.PageFormat)
}

func TestConservativeConfigFloorsAndCeilings(t *testing.T) {
	prev := GenerationConfig{ResolutionDPI: 96, CompressionLevel: 8}

	next := ConservativeConfig(prev, Degraded, time.Second)

	assert.Equal(t, 72, next.ResolutionDPI)
	assert.Equal(t, 9, next.CompressionLevel)
}
