package strategy

import (
	"github.com/resumeforge/resumeforge/internal/capability"
	"github.com/resumeforge/resumeforge/pkg/logging"
)

// HealthFunc reports the rolling health of a strategy in [0,1]
type HealthFunc func(strategy string) float64

// Selector orders strategies for a generation request. Selection is a pure
// function of the capability snapshot and the health signal: the same inputs
// always produce the same order.
type Selector struct {
	minSurfacePixels int
	healthThreshold  float64
	logger           *logging.Logger
}

// NewSelector creates a strategy selector. minSurfacePixels is the smallest
// rasterization surface the primary strategy needs; healthThreshold is the
// rolling-health floor below which a strategy is deprioritized.
func NewSelector(minSurfacePixels int, healthThreshold float64, logger *logging.Logger) *Selector {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Selector{
		minSurfacePixels: minSurfacePixels,
		healthThreshold:  healthThreshold,
		logger:           logger,
	}
}

// Select returns the strategies to attempt, in order. Primary is excluded
// when the host cannot rasterize or its surface is below the floor. A
// strategy whose health has dropped below the threshold is moved later but
// never removed. Degraded is always present and always last.
func (s *Selector) Select(caps capability.Capabilities, health HealthFunc) []Strategy {
	var eligible []Strategy

	if caps.Rasterization && caps.MaxSurfacePixels >= s.minSurfacePixels {
		eligible = append(eligible, Primary)
	}
	eligible = append(eligible, Secondary)

	var healthy, deprioritized []Strategy
	for _, strat := range eligible {
		if health != nil && health(string(strat)) < s.healthThreshold {
			deprioritized = append(deprioritized, strat)
			continue
		}
		healthy = append(healthy, strat)
	}

	order := make([]Strategy, 0, len(eligible)+1)
	order = append(order, healthy...)
	order = append(order, deprioritized...)
	order = append(order, Degraded)

	s.logger.Debug("strategy order selected",
		"order", order,
		"rasterization", caps.Rasterization,
		"max_surface_pixels", caps.MaxSurfacePixels,
	)

	return order
}
