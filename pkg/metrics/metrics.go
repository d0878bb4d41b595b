package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ArtifactSizeBytes  *prometheus.HistogramVec
	RecoveryActions    *prometheus.CounterVec
	HealthScore        prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheEntries     *prometheus.GaugeVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "resumeforge",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics on the default registry
func NewMetrics(config *Config) *Metrics {
	return NewMetricsWithRegistry(config, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics registered on the given registerer.
// Tests use a fresh registry to avoid duplicate registration panics.
func NewMetricsWithRegistry(config *Config, reg prometheus.Registerer) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
			[]string{"method", "path"},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "generations_total",
				Help:      "Total number of generation attempts",
			},
			[]string{"strategy", "status"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "generation_duration_seconds",
				Help:      "Generation attempt duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"strategy"},
		),
		ArtifactSizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "artifact_size_bytes",
				Help:      "Size of produced PDF artifacts in bytes",
				Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
			},
			[]string{"strategy"},
		),
		RecoveryActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "recovery_actions_total",
				Help:      "Recovery planner decisions by error category and action",
			},
			[]string{"category", "action"},
		),
		HealthScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "health_score",
				Help:      "Rolling generation health score in [0,1]",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Resource cache hits per partition",
			},
			[]string{"partition"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Resource cache misses per partition",
			},
			[]string{"partition"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_entries",
				Help:      "Resource cache occupancy per partition",
			},
			[]string{"partition"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "errors_total",
				Help:      "Classified errors by category",
			},
			[]string{"category", "recoverable"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.GenerationsTotal,
		m.GenerationDuration,
		m.ArtifactSizeBytes,
		m.RecoveryActions,
		m.HealthScore,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEntries,
		m.ErrorsTotal,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records a generation attempt outcome
func (m *Metrics) RecordGeneration(strategy string, success bool, duration time.Duration, artifactSize int64) {
	if m.GenerationsTotal == nil {
		return
	}

	status := "failure"
	if success {
		status = "success"
	}

	m.GenerationsTotal.WithLabelValues(strategy, status).Inc()
	m.GenerationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if success && artifactSize > 0 {
		m.ArtifactSizeBytes.WithLabelValues(strategy).Observe(float64(artifactSize))
	}
}

// RecordRecoveryAction records a recovery planner decision
func (m *Metrics) RecordRecoveryAction(category, action string) {
	if m.RecoveryActions == nil {
		return
	}
	m.RecoveryActions.WithLabelValues(category, action).Inc()
}

// UpdateHealthScore updates the health score gauge
func (m *Metrics) UpdateHealthScore(score float64) {
	if m.HealthScore == nil {
		return
	}
	m.HealthScore.Set(score)
}

// RecordCacheHit records a cache hit for a partition
func (m *Metrics) RecordCacheHit(partition string) {
	if m.CacheHitsTotal == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(partition).Inc()
}

// RecordCacheMiss records a cache miss for a partition
func (m *Metrics) RecordCacheMiss(partition string) {
	if m.CacheMissesTotal == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(partition).Inc()
}

// UpdateCacheEntries updates the occupancy gauge for a partition
func (m *Metrics) UpdateCacheEntries(partition string, count int) {
	if m.CacheEntries == nil {
		return
	}
	m.CacheEntries.WithLabelValues(partition).Set(float64(count))
}

// RecordError records a classified error
func (m *Metrics) RecordError(category string, recoverable bool) {
	if m.ErrorsTotal == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(category, strconv.FormatBool(recoverable)).Inc()
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.HTTPRequestsInFlight != nil {
			m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Inc()
			defer m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Dec()
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
