package monitor

import (
	"sync"
	"time"

	"github.com/resumeforge/resumeforge/internal/document"
	"github.com/resumeforge/resumeforge/pkg/errors"
	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/metrics"
)

// Event records one generation attempt, success or failure
type Event struct {
	Timestamp    time.Time            `json:"timestamp"`
	Strategy     string               `json:"strategy"`
	Duration     time.Duration        `json:"duration"`
	Success      bool                 `json:"success"`
	ArtifactSize int64                `json:"artifact_size"`
	Category     errors.Category      `json:"category,omitempty"`
	Fingerprint  document.Fingerprint `json:"fingerprint"`
}

// Trends summarizes the recent event window
type Trends struct {
	AvgDuration time.Duration `json:"avg_duration"`
	SuccessRate float64       `json:"success_rate"`
	ErrorRate   float64       `json:"error_rate"`
	SampleCount int           `json:"sample_count"`
}

// AlertLevel represents alert severity
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert is a reactive per-event warning. Alerts are retained in a bounded
// recent list and never resolved automatically.
type Alert struct {
	Type      string     `json:"type"`
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Timestamp time.Time  `json:"timestamp"`
}

// HealthReport is the read-only diagnostics surface
type HealthReport struct {
	Trends          Trends   `json:"trends"`
	Alerts          []Alert  `json:"alerts"`
	HealthScore     float64  `json:"health_score"`
	Recommendations []string `json:"recommendations"`
	CacheEntries    int      `json:"cache_entries"`
}

// Config holds monitor configuration
type Config struct {
	WindowSize       int           `json:"window_size"`
	MaxAlerts        int           `json:"max_alerts"`
	DurationCeiling  time.Duration `json:"duration_ceiling"`
	SizeCeilingBytes int64         `json:"size_ceiling_bytes"`
}

// DefaultConfig returns default monitor configuration
func DefaultConfig() Config {
	return Config{
		WindowSize:       100,
		MaxAlerts:        50,
		DurationCeiling:  15 * time.Second,
		SizeCeilingBytes: 20 * 1024 * 1024,
	}
}

// Health score weights. The score must be monotonically non-increasing as
// success rate drops and as duration grows, saturating at 1.0 for an
// all-success, fast, warning-free window. Exact weights are tunable.
const (
	weightSuccess  = 0.6
	weightDuration = 0.3
	weightAlerts   = 0.1

	// Average durations at or below this fraction of the ceiling count as
	// fully fast, so a healthy window can reach exactly 1.0.
	fastDurationFraction = 0.1
)

// Monitor records generation events and derives rolling statistics, alerts,
// and a health score. All analytics are a pure function of the ordered event
// window plus current cache occupancy. Safe for concurrent use.
type Monitor struct {
	config  Config
	logger  *logging.Logger
	metrics *metrics.Metrics

	// occupancy reports current resource-cache entry count for the report;
	// nil means unknown
	occupancy func() int

	mu     sync.RWMutex
	events []Event
	alerts []Alert
}

// NewMonitor creates a performance monitor
func NewMonitor(config Config, m *metrics.Metrics, logger *logging.Logger) *Monitor {
	if config.WindowSize <= 0 {
		config.WindowSize = DefaultConfig().WindowSize
	}
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = DefaultConfig().MaxAlerts
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Monitor{
		config:  config,
		logger:  logger,
		metrics: m,
		events:  make([]Event, 0, config.WindowSize),
	}
}

// SetOccupancyProvider wires the cache occupancy source for reports
func (m *Monitor) SetOccupancyProvider(provider func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.occupancy = provider
}

// Record appends an event to the window and reactively evaluates alerts.
// The controller guarantees the event for attempt N is recorded before
// attempt N+1 begins.
func (m *Monitor) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	if len(m.events) > m.config.WindowSize {
		m.events = m.events[len(m.events)-m.config.WindowSize:]
	}

	m.evaluateAlertsLocked(event)
	score := m.healthScoreLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordGeneration(event.Strategy, event.Success, event.Duration, event.ArtifactSize)
		m.metrics.UpdateHealthScore(score)
	}
}

// Trends derives rolling statistics over the event window
func (m *Monitor) Trends() Trends {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trendsLocked()
}

func (m *Monitor) trendsLocked() Trends {
	if len(m.events) == 0 {
		return Trends{SuccessRate: 1.0}
	}

	var totalDuration time.Duration
	successes := 0
	for _, event := range m.events {
		totalDuration += event.Duration
		if event.Success {
			successes++
		}
	}

	count := len(m.events)
	successRate := float64(successes) / float64(count)
	return Trends{
		AvgDuration: totalDuration / time.Duration(count),
		SuccessRate: successRate,
		ErrorRate:   1.0 - successRate,
		SampleCount: count,
	}
}

// HealthScore returns the rolling health score in [0,1]
func (m *Monitor) HealthScore() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthScoreLocked()
}

func (m *Monitor) healthScoreLocked() float64 {
	if len(m.events) == 0 {
		return 1.0
	}

	trends := m.trendsLocked()

	durationScore := 1.0
	if m.config.DurationCeiling > 0 {
		ratio := float64(trends.AvgDuration) / float64(m.config.DurationCeiling)
		if ratio > fastDurationFraction {
			durationScore = clamp(1.0-ratio, 0, 1)
		}
	}

	alertScore := 1.0
	if recent := m.recentAlertCountLocked(); recent > 0 {
		alertScore = clamp(1.0-float64(recent)/float64(m.config.MaxAlerts), 0, 1)
	}

	// Saturated windows report 1.0 exactly; the weighted sum would lose
	// that to floating-point rounding.
	if trends.SuccessRate == 1.0 && durationScore == 1.0 && alertScore == 1.0 {
		return 1.0
	}

	score := weightSuccess*trends.SuccessRate + weightDuration*durationScore + weightAlerts*alertScore
	return clamp(score, 0, 1)
}

// StrategyHealth returns the per-strategy health used by the selector for
// deprioritization. A strategy with no recorded attempts is fully trusted,
// and a strategy whose most recent attempt succeeded immediately regains
// full trust.
func (m *Monitor) StrategyHealth(strategy string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attempts := 0
	successes := 0
	lastSuccess := false
	for _, event := range m.events {
		if event.Strategy != strategy {
			continue
		}
		attempts++
		lastSuccess = event.Success
		if event.Success {
			successes++
		}
	}

	if attempts == 0 || lastSuccess {
		return 1.0
	}
	return float64(successes) / float64(attempts)
}

// Alerts returns the bounded recent alert list
func (m *Monitor) Alerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Report assembles the diagnostics surface. Read-only and side-effect free.
func (m *Monitor) Report() HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := HealthReport{
		Trends:          m.trendsLocked(),
		HealthScore:     m.healthScoreLocked(),
		Recommendations: m.recommendationsLocked(),
	}

	report.Alerts = make([]Alert, len(m.alerts))
	copy(report.Alerts, m.alerts)

	if m.occupancy != nil {
		report.CacheEntries = m.occupancy()
	}

	return report
}

// Reset clears the event window and alerts
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
	m.alerts = m.alerts[:0]
}

func (m *Monitor) evaluateAlertsLocked(event Event) {
	if m.config.DurationCeiling > 0 && event.Duration > m.config.DurationCeiling {
		m.appendAlertLocked(Alert{
			Type:      "duration",
			Level:     AlertLevelWarning,
			Message:   "Generation attempt exceeded duration ceiling",
			Value:     event.Duration.Seconds(),
			Threshold: m.config.DurationCeiling.Seconds(),
			Timestamp: event.Timestamp,
		})
	}

	if m.config.SizeCeilingBytes > 0 && event.ArtifactSize > m.config.SizeCeilingBytes {
		m.appendAlertLocked(Alert{
			Type:      "size",
			Level:     AlertLevelWarning,
			Message:   "Generated artifact exceeded size ceiling",
			Value:     float64(event.ArtifactSize),
			Threshold: float64(m.config.SizeCeilingBytes),
			Timestamp: event.Timestamp,
		})
	}
}

func (m *Monitor) appendAlertLocked(alert Alert) {
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > m.config.MaxAlerts {
		m.alerts = m.alerts[len(m.alerts)-m.config.MaxAlerts:]
	}

	m.logger.Warn(alert.Message,
		"type", alert.Type,
		"value", alert.Value,
		"threshold", alert.Threshold,
	)
}

func (m *Monitor) recentAlertCountLocked() int {
	return len(m.alerts)
}

// recommendation thresholds: a category appearing this often in the window
// produces an actionable suggestion
const recommendationThreshold = 3

func (m *Monitor) recommendationsLocked() []string {
	counts := make(map[errors.Category]int)
	largeInputTimeouts := 0

	for _, event := range m.events {
		if event.Success {
			continue
		}
		counts[event.Category]++
		if event.Category == errors.CategoryGeneration && event.Fingerprint.ElementCount > 200 {
			largeInputTimeouts++
		}
	}

	var recommendations []string
	if counts[errors.CategoryRuntime] >= recommendationThreshold {
		recommendations = append(recommendations,
			"Repeated runtime failures: the host cannot rasterize reliably; prefer the server-assisted strategy or update the runtime environment")
	}
	if counts[errors.CategoryNetwork] >= recommendationThreshold {
		recommendations = append(recommendations,
			"Repeated network failures: check connectivity to the render service")
	}
	if largeInputTimeouts >= recommendationThreshold {
		recommendations = append(recommendations,
			"Repeated generation failures on large documents: reduce document complexity (fewer sections, smaller images)")
	} else if counts[errors.CategoryGeneration] >= recommendationThreshold {
		recommendations = append(recommendations,
			"Repeated generation failures: lower the quality tier or retry later")
	}
	if counts[errors.CategoryContent] >= recommendationThreshold {
		recommendations = append(recommendations,
			"Repeated content failures: the document contains elements the renderer cannot process")
	}

	return recommendations
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
