package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/resumeforge/resumeforge/internal/capability"
	"github.com/resumeforge/resumeforge/internal/document"
	"github.com/resumeforge/resumeforge/internal/monitor"
	"github.com/resumeforge/resumeforge/internal/recovery"
	"github.com/resumeforge/resumeforge/internal/resources"
	"github.com/resumeforge/resumeforge/internal/strategy"
	"github.com/resumeforge/resumeforge/pkg/config"
	"github.com/resumeforge/resumeforge/pkg/errors"
	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/tracing"
	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Request is one export job handed to the controller
type Request struct {
	Document  *document.Document `json:"document"`
	Options   document.Options   `json:"options"`
	RequestID string             `json:"request_id,omitempty"`
}

// AttemptRecord describes one attempt of a finished (or failed) generation
type AttemptRecord struct {
	Strategy strategy.Strategy `json:"strategy"`
	Duration time.Duration     `json:"duration"`
	Success  bool              `json:"success"`
	Category errors.Category   `json:"category,omitempty"`
	Action   recovery.Action   `json:"action,omitempty"`
	Detail   string            `json:"detail,omitempty"`
}

// Failure is the terminal error of a generation whose every attempt failed.
// It carries the last classified error plus the full attempt history.
type Failure struct {
	Classified  *errors.ClassifiedError `json:"classified"`
	UserMessage string                  `json:"user_message"`
	Attempts    []AttemptRecord         `json:"attempts"`
}

func (f *Failure) Error() string {
	last := "no attempts"
	if len(f.Attempts) > 0 {
		last = string(f.Attempts[len(f.Attempts)-1].Strategy)
	}
	return fmt.Sprintf("generation failed after %d attempts (last strategy %s): %s",
		len(f.Attempts), last, f.Classified.Error())
}

func (f *Failure) Unwrap() error {
	return f.Classified
}

// Controller orchestrates generation: capability resolution, strategy
// selection, per-attempt timeouts, recovery, and monitoring.
type Controller struct {
	config    config.GenerationConfig
	detector  *capability.Detector
	selector  *strategy.Selector
	executors map[strategy.Strategy]strategy.Executor
	planner   *recovery.Planner
	monitor   *monitor.Monitor
	cache     *resources.Cache
	mirror    *resources.RemoteMirror
	tracer    *tracing.TracingService
	logger    *logging.Logger
}

// Deps bundles the controller's collaborators. Mirror and Tracer are
// optional.
type Deps struct {
	Detector  *capability.Detector
	Selector  *strategy.Selector
	Executors []strategy.Executor
	Planner   *recovery.Planner
	Monitor   *monitor.Monitor
	Cache     *resources.Cache
	Mirror    *resources.RemoteMirror
	Tracer    *tracing.TracingService
	Logger    *logging.Logger
}

// NewController wires a generation controller
func NewController(cfg config.GenerationConfig, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = logging.GetLogger()
	}

	executors := make(map[strategy.Strategy]strategy.Executor, len(deps.Executors))
	for _, exec := range deps.Executors {
		executors[exec.Strategy()] = exec
	}

	return &Controller{
		config:    cfg,
		detector:  deps.Detector,
		selector:  deps.Selector,
		executors: executors,
		planner:   deps.Planner,
		monitor:   deps.Monitor,
		cache:     deps.Cache,
		mirror:    deps.Mirror,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
	}
}

// Generate runs the attempt loop until a strategy succeeds, the planner
// aborts, or the total attempt budget is spent. The monitoring event for
// attempt N is always recorded before attempt N+1 begins.
func (c *Controller) Generate(ctx context.Context, req Request) (*strategy.Result, error) {
	if req.Document == nil {
		return nil, errors.NewFatal(errors.CategoryValidation, "document is required")
	}

	if req.RequestID == "" {
		req.RequestID = logging.NewCorrelationID()
	}
	ctx = logging.WithRequestID(ctx, req.RequestID)

	if c.tracer != nil {
		var span oteltrace.Span
		ctx, span = c.tracer.StartGenerationSpan(ctx, req.RequestID)
		defer span.End()
	}

	opts := req.Options.Normalize()
	doc := req.Document
	fingerprint := document.ComputeFingerprint(doc)

	caps := c.detector.Detect()
	order := c.selector.Select(caps, c.monitor.StrategyHealth)

	c.logger.WithContext(ctx).WithFields(logrus.Fields{
		"order":       orderNames(order),
		"elements":    fingerprint.ElementCount,
		"images":      fingerprint.ImageCount,
		"page_format": opts.PageFormat,
	}).Info("Starting generation")

	cfg := c.initialConfig(ctx, order[0], opts)

	var (
		attempts       int
		index          int
		records        []AttemptRecord
		lastClassified *errors.ClassifiedError
		lastMessage    string
		lastKey        string
	)

	for attempts < c.maxAttempts() && index < len(order) {
		strat := order[index]
		exec := c.executors[strat]
		if exec == nil {
			index++
			continue
		}
		cfg.Strategy = strat
		cfg.Timeout = c.timeoutFor(strat)
		attempts++

		started := time.Now()
		result, err := c.runAttempt(ctx, exec, doc, opts, cfg, attempts)
		elapsed := time.Since(started)
		if err == nil {
			if lastKey != "" {
				c.planner.Resolve(lastKey)
			}
			c.monitor.Record(monitor.Event{
				Strategy:     string(strat),
				Duration:     result.Duration,
				Success:      true,
				ArtifactSize: result.Size,
				Fingerprint:  fingerprint,
			})
			c.rememberConfig(ctx, opts, cfg)
			c.logger.LogGenerationEvent(ctx, "generation_succeeded", string(strat), result.Duration, logrus.Fields{
				"attempts": attempts,
				"size":     result.Size,
			})
			return result, nil
		}

		classified := recovery.Classify(err)
		decision := c.planner.Plan(classified, cfg.Key())
		lastKey = cfg.Key()

		// Attempt N's event lands before attempt N+1 starts.
		c.monitor.Record(monitor.Event{
			Strategy:    string(strat),
			Duration:    elapsed,
			Success:     false,
			Category:    classified.Category,
			Fingerprint: fingerprint,
		})

		records = append(records, AttemptRecord{
			Strategy: strat,
			Duration: elapsed,
			Category: classified.Category,
			Action:   decision.Action,
			Detail:   decision.TechnicalDetail,
		})
		lastClassified = classified
		lastMessage = decision.UserMessage

		c.logger.LogRecoveryEvent(ctx, string(classified.Category), string(decision.Action), attempts, logrus.Fields{
			"strategy": strat,
			"key":      cfg.Key(),
		})

		if ctx.Err() != nil {
			break
		}

		if decision.RedetectCapabilities {
			c.detector.Invalidate()
		}

		if decision.AdjustContent {
			doc = document.Adjust(doc, document.Constraints{
				MaxImageBytes: 1 << 20,
				FlattenTables: true,
			})
			fingerprint = document.ComputeFingerprint(doc)
		}

		switch decision.Action {
		case recovery.ActionAbort:
			return nil, &Failure{Classified: classified, UserMessage: decision.UserMessage, Attempts: records}
		case recovery.ActionFallback:
			index++
			if index < len(order) {
				cfg = strategy.ConservativeConfig(cfg, order[index], c.timeoutFor(order[index]))
			}
		}
	}

	if lastClassified == nil {
		lastClassified = errors.NewFatal(errors.CategoryGeneration, "no strategy was able to run")
	}
	if lastMessage == "" {
		lastMessage = "Generation failed. Please try again later."
	}

	return nil, &Failure{Classified: lastClassified, UserMessage: lastMessage, Attempts: records}
}

// runAttempt executes one strategy under its own deadline. A deadline hit on
// the attempt context, with the caller's context still live, surfaces as a
// classified timeout.
func (c *Controller) runAttempt(ctx context.Context, exec strategy.Executor, doc *document.Document, opts document.Options, cfg strategy.GenerationConfig, attempt int) (*strategy.Result, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}
	defer cancel()

	if c.tracer != nil {
		spanCtx, span := c.tracer.StartAttemptSpan(attemptCtx, string(cfg.Strategy), attempt)
		attemptCtx = spanCtx
		defer span.End()
	}

	result, err := exec.Execute(attemptCtx, doc, opts, cfg)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, errors.NewTimeoutError(string(cfg.Strategy), cfg.Timeout).WithCause(err)
	}
	return result, err
}

// initialConfig builds the first attempt's config, preferring a remembered
// known-good config for the same page format and strategy.
func (c *Controller) initialConfig(ctx context.Context, strat strategy.Strategy, opts document.Options) strategy.GenerationConfig {
	if remembered, ok := c.recallConfig(ctx, opts); ok && remembered.Strategy == strat {
		remembered.Timeout = c.timeoutFor(strat)
		return remembered
	}

	return strategy.GenerationConfig{
		Strategy:         strat,
		PageFormat:       opts.PageFormat,
		ResolutionDPI:    opts.QualityTier.DPI(),
		CompressionLevel: compressionFor(opts.QualityTier),
		SubsetFonts:      opts.QualityTier == document.QualityHigh,
		Timeout:          c.timeoutFor(strat),
	}
}

func lastGoodKey(format document.PageFormat) string {
	return "last-good:" + string(format)
}

// rememberConfig stores a successful config locally and, when a mirror is
// wired, shares it with other instances. Mirror failures are best-effort.
func (c *Controller) rememberConfig(ctx context.Context, opts document.Options, cfg strategy.GenerationConfig) {
	key := lastGoodKey(opts.PageFormat)
	if c.cache != nil {
		c.cache.Put(resources.PartitionConfigs, key, cfg)
	}
	if c.mirror != nil {
		if err := c.mirror.Put(ctx, key, cfg); err != nil {
			c.logger.Debug("config mirror write failed", "error", err)
		}
	}
}

func (c *Controller) recallConfig(ctx context.Context, opts document.Options) (strategy.GenerationConfig, bool) {
	key := lastGoodKey(opts.PageFormat)

	if c.cache != nil {
		if value, ok := c.cache.Get(resources.PartitionConfigs, key); ok {
			if cfg, ok := value.(strategy.GenerationConfig); ok {
				return cfg, true
			}
		}
	}

	if c.mirror != nil {
		if raw, ok := c.mirror.Get(ctx, key); ok {
			var cfg strategy.GenerationConfig
			if err := json.Unmarshal(raw, &cfg); err == nil && cfg.Strategy.Valid() {
				if c.cache != nil {
					c.cache.Put(resources.PartitionConfigs, key, cfg)
				}
				return cfg, true
			}
		}
	}

	return strategy.GenerationConfig{}, false
}

func (c *Controller) maxAttempts() int {
	if c.config.MaxAttempts > 0 {
		return c.config.MaxAttempts
	}
	return 3
}

func (c *Controller) timeoutFor(strat strategy.Strategy) time.Duration {
	switch strat {
	case strategy.Primary:
		return c.config.PrimaryTimeout
	case strategy.Secondary:
		return c.config.SecondaryTimeout
	default:
		return c.config.DegradedTimeout
	}
}

func compressionFor(tier document.QualityTier) int {
	switch tier {
	case document.QualityLow:
		return 6
	case document.QualityHigh:
		return 2
	default:
		return 4
	}
}

func orderNames(order []strategy.Strategy) string {
	names := make([]string, len(order))
	for i, s := range order {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}
