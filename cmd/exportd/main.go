package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/resumeforge/resumeforge/internal/api"
	"github.com/resumeforge/resumeforge/internal/capability"
	"github.com/resumeforge/resumeforge/internal/generator"
	"github.com/resumeforge/resumeforge/internal/monitor"
	"github.com/resumeforge/resumeforge/internal/recovery"
	"github.com/resumeforge/resumeforge/internal/resources"
	"github.com/resumeforge/resumeforge/internal/strategy"
	"github.com/resumeforge/resumeforge/pkg/config"
	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/metrics"
	"github.com/resumeforge/resumeforge/pkg/resilience"
	"github.com/resumeforge/resumeforge/pkg/tracing"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "resumeforge-exportd",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	var tracer *tracing.TracingService
	if cfg.Tracing.Enabled {
		var err error
		tracer, err = tracing.NewTracingService(&tracing.Config{
			Enabled:        true,
			ServiceName:    "resumeforge-exportd",
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	m := metrics.NewMetrics(&metrics.Config{Enabled: true})

	cache, err := resources.NewCache(resources.Config{
		FontEntries:   cfg.Cache.FontEntries,
		ImageEntries:  cfg.Cache.ImageEntries,
		ConfigEntries: cfg.Cache.ConfigEntries,
	}, m, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize resource cache: %w", err)
	}

	var mirror *resources.RemoteMirror
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		mirror = resources.NewRemoteMirror(client, cfg.Cache.ConfigTTL, logger)
		if err := mirror.Ping(pingCtx); err != nil {
			logger.Warn("config mirror unreachable, continuing without it", "error", err)
			mirror = nil
		}
		cancel()
		defer client.Close()
	}

	detector := capability.NewDetector(logger)
	caps := detector.Detect()
	logger.Info("Capabilities detected",
		"rasterization", caps.Rasterization,
		"max_surface_pixels", caps.MaxSurfacePixels,
		"workers", caps.WorkerCount,
	)

	mon := monitor.NewMonitor(monitor.Config{
		WindowSize:       cfg.Monitor.WindowSize,
		MaxAlerts:        cfg.Monitor.MaxAlerts,
		DurationCeiling:  cfg.Monitor.DurationCeiling,
		SizeCeilingBytes: cfg.Monitor.SizeCeilingBytes,
	}, m, logger)
	mon.SetOccupancyProvider(func() int { return cache.Stats().TotalEntries() })

	planner := recovery.NewPlanner(recovery.Config{
		Ceiling:   cfg.Generation.RecoveryCeiling,
		Retention: cfg.Generation.RecoveryRetention,
	}, m, logger)

	controller := generator.NewController(cfg.Generation, generator.Deps{
		Detector: detector,
		Selector: strategy.NewSelector(cfg.Generation.MinSurfacePixels, cfg.Generation.HealthThreshold, logger),
		Executors: []strategy.Executor{
			strategy.NewPrimaryExecutor(cache, int64(caps.MaxSurfacePixels), logger),
			strategy.NewSecondaryExecutor(cfg.Generation.RenderServiceURL, nil, logger).
				WithBreaker(resilience.NewBreaker(resilience.DefaultBreakerConfig("render-service"), logger)),
			strategy.NewDegradedExecutor(logger),
		},
		Planner: planner,
		Monitor: mon,
		Cache:   cache,
		Mirror:  mirror,
		Tracer:  tracer,
		Logger:  logger,
	})

	server := api.NewServer(cfg, api.Deps{
		Generation:   controller,
		Health:       mon,
		Cache:        cache,
		Capabilities: detector,
		Metrics:      m,
		Tracer:       tracer,
		Logger:       logger,
	})

	httpServer := server.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Export service listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
