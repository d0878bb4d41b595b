package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/resumeforge/resumeforge/internal/capability"
	"github.com/resumeforge/resumeforge/internal/generator"
	"github.com/resumeforge/resumeforge/internal/monitor"
	"github.com/resumeforge/resumeforge/internal/resources"
	"github.com/resumeforge/resumeforge/internal/strategy"
	"github.com/resumeforge/resumeforge/pkg/config"
	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/metrics"
	"github.com/resumeforge/resumeforge/pkg/tracing"
)

// GenerationService runs one export job
type GenerationService interface {
	Generate(ctx context.Context, req generator.Request) (*strategy.Result, error)
}

// HealthReporter exposes the monitor's diagnostics surface
type HealthReporter interface {
	Report() monitor.HealthReport
}

// CacheAdmin exposes cache occupancy and administration
type CacheAdmin interface {
	Stats() resources.Stats
	ClearAll()
}

// CapabilityProvider exposes the host capability snapshot
type CapabilityProvider interface {
	Detect() capability.Capabilities
	Invalidate()
}

// Server is the HTTP surface of the export service
type Server struct {
	config       *config.Config
	generation   GenerationService
	health       HealthReporter
	cache        CacheAdmin
	capabilities CapabilityProvider
	metrics      *metrics.Metrics
	tracer       *tracing.TracingService
	logger       *logging.Logger
	router       *gin.Engine
}

// Deps bundles the server's collaborators. Metrics and Tracer are optional.
type Deps struct {
	Generation   GenerationService
	Health       HealthReporter
	Cache        CacheAdmin
	Capabilities CapabilityProvider
	Metrics      *metrics.Metrics
	Tracer       *tracing.TracingService
	Logger       *logging.Logger
}

// NewServer creates the HTTP server and wires its routes
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.GetLogger()
	}

	s := &Server{
		config:       cfg,
		generation:   deps.Generation,
		health:       deps.Health,
		cache:        deps.Cache,
		capabilities: deps.Capabilities,
		metrics:      deps.Metrics,
		tracer:       deps.Tracer,
		logger:       deps.Logger,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// HTTPServer returns an http.Server bound per the server config
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(s.requestIDMiddleware())
	router.Use(s.loggingMiddleware())
	router.Use(s.securityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Generation-Strategy", "X-Generation-Duration-Ms", "X-Generation-Pages", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if s.metrics != nil {
		router.Use(s.metrics.PrometheusMiddleware())
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.tracer != nil {
		router.Use(s.tracer.TracingMiddleware())
	}

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/generate", s.handleGenerate)
		v1.GET("/health-report", s.handleHealthReport)
		v1.GET("/capabilities", s.handleCapabilities)
		v1.POST("/capabilities/refresh", s.handleCapabilityRefresh)
		v1.GET("/cache/stats", s.handleCacheStats)
		v1.POST("/cache/clear", s.handleCacheClear)
	}

	return router
}
