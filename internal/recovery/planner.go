package recovery

import (
	"sync"
	"time"

	"github.com/resumeforge/resumeforge/pkg/errors"
	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/metrics"
)

// Action is what the controller should do next
type Action string

const (
	// ActionRetry re-runs the same strategy with the same or an adjusted
	// document
	ActionRetry Action = "retry"

	// ActionFallback moves to the next strategy with a conservative config
	ActionFallback Action = "fallback"

	// ActionAbort stops the generation and surfaces the failure
	ActionAbort Action = "abort"
)

// Result is the eventual outcome of a planned action
type Result string

const (
	// ResultPending means the planned action has not finished yet
	ResultPending Result = "pending"
	// ResultSucceeded means a later attempt on the same key succeeded
	ResultSucceeded Result = "succeeded"
	// ResultFailed means the key failed again after the planned action
	ResultFailed Result = "failed"
)

// Decision is the planner's verdict for one failure
type Decision struct {
	Action Action `json:"action"`

	// RedetectCapabilities asks the controller to invalidate the cached
	// capability snapshot before the next attempt
	RedetectCapabilities bool `json:"redetect_capabilities"`

	// AdjustContent asks the controller to derive a more conservative
	// document copy before the next attempt
	AdjustContent bool `json:"adjust_content"`

	UserMessage     string `json:"user_message"`
	TechnicalDetail string `json:"technical_detail"`
}

// Attempt is one recorded failure: the triggering error's category, the
// action planned for it, and how that action turned out once known.
type Attempt struct {
	At       time.Time       `json:"at"`
	Category errors.Category `json:"category"`
	Action   Action          `json:"action"`
	Result   Result          `json:"result"`
}

// Config holds planner tunables
type Config struct {
	// Ceiling is the failure count for one attempt key after which the
	// planner aborts regardless of category
	Ceiling int

	// Retention bounds how long past failures count toward the ceiling
	Retention time.Duration
}

// DefaultConfig returns default planner configuration
func DefaultConfig() Config {
	return Config{
		Ceiling:   3,
		Retention: time.Hour,
	}
}

// Planner holds time-windowed failure history per attempt key and turns a
// classified error into the next action. Safe for concurrent use.
type Planner struct {
	config  Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	history map[string][]Attempt
}

// NewPlanner creates a recovery planner
func NewPlanner(config Config, m *metrics.Metrics, logger *logging.Logger) *Planner {
	if config.Ceiling <= 0 {
		config.Ceiling = DefaultConfig().Ceiling
	}
	if config.Retention <= 0 {
		config.Retention = DefaultConfig().Retention
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Planner{
		config:  config,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		history: make(map[string][]Attempt),
	}
}

// Plan records the failure against its attempt key and decides the next
// action. Once a key has accumulated Ceiling failures within the retention
// window, every subsequent plan for it is abort, regardless of category.
func (p *Planner) Plan(classified *errors.ClassifiedError, key string) Decision {
	p.mu.Lock()
	now := p.now()
	p.pruneLocked(key, now)

	priorFailures := len(p.history[key])
	p.resolveLastLocked(key, ResultFailed)

	decision := p.decide(classified, priorFailures, priorFailures+1)

	p.history[key] = append(p.history[key], Attempt{
		At:       now,
		Category: classified.Category,
		Action:   decision.Action,
		Result:   ResultPending,
	})
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordRecoveryAction(string(classified.Category), string(decision.Action))
		p.metrics.RecordError(string(classified.Category), classified.Recoverable)
	}

	p.logger.Warn("recovery decision",
		"category", classified.Category,
		"action", decision.Action,
		"key", key,
		"failures", priorFailures+1,
	)

	return decision
}

func (p *Planner) decide(classified *errors.ClassifiedError, priorFailures, failures int) Decision {
	detail := classified.Error()

	if priorFailures >= p.config.Ceiling {
		return Decision{
			Action:          ActionAbort,
			UserMessage:     "Generation keeps failing with the same configuration. Please try again later.",
			TechnicalDetail: detail,
		}
	}

	if !classified.Recoverable {
		return Decision{
			Action:          ActionAbort,
			UserMessage:     "Generation failed and cannot be retried automatically.",
			TechnicalDetail: detail,
		}
	}

	switch classified.Category {
	case errors.CategoryRuntime:
		return Decision{
			Action:               ActionFallback,
			RedetectCapabilities: true,
			UserMessage:          "This environment cannot render at full quality; switching to an alternative method.",
			TechnicalDetail:      detail,
		}

	case errors.CategoryNetwork:
		if failures == 1 {
			return Decision{
				Action:          ActionRetry,
				UserMessage:     "A network hiccup interrupted generation; retrying.",
				TechnicalDetail: detail,
			}
		}
		return Decision{
			Action:          ActionFallback,
			UserMessage:     "The render service is unreachable; switching to an alternative method.",
			TechnicalDetail: detail,
		}

	case errors.CategoryContent:
		// Content rarely benefits from retrying the same strategy: fall
		// back with a simplified document, and give up the second time.
		if failures == 1 {
			return Decision{
				Action:          ActionFallback,
				AdjustContent:   true,
				UserMessage:     "Part of the document could not be rendered; switching to an alternative method with a simplified copy.",
				TechnicalDetail: detail,
			}
		}
		return Decision{
			Action:          ActionAbort,
			UserMessage:     "The document could not be rendered. Remove or replace its problematic content.",
			TechnicalDetail: detail,
		}

	case errors.CategoryValidation:
		if failures == 1 {
			return Decision{
				Action:          ActionFallback,
				UserMessage:     "The generated file failed a quality check; switching to an alternative method.",
				TechnicalDetail: detail,
			}
		}
		return Decision{
			Action:          ActionAbort,
			UserMessage:     "The generated file keeps failing quality checks.",
			TechnicalDetail: detail,
		}

	default: // generation
		// A timed-out attempt is not worth repeating under the same
		// deadline; other transient generation errors get one retry.
		if !errors.IsTimeout(classified) && failures == 1 {
			return Decision{
				Action:          ActionRetry,
				UserMessage:     "Generation hit a transient problem; retrying.",
				TechnicalDetail: detail,
			}
		}
		return Decision{
			Action:          ActionFallback,
			UserMessage:     "Generation took too long or failed; switching to a faster method.",
			TechnicalDetail: detail,
		}
	}
}

// Resolve marks the most recent pending attempt for a key as succeeded.
// The controller calls it when a later attempt on the same key completes.
func (p *Planner) Resolve(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolveLastLocked(key, ResultSucceeded)
}

func (p *Planner) resolveLastLocked(key string, result Result) {
	entries := p.history[key]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Result == ResultPending {
			entries[i].Result = result
			return
		}
	}
}

// History returns a copy of the windowed failure records for a key
func (p *Planner) History(key string) []Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked(key, p.now())

	out := make([]Attempt, len(p.history[key]))
	copy(out, p.history[key])
	return out
}

// FailureCount returns the current windowed failure count for a key
func (p *Planner) FailureCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked(key, p.now())
	return len(p.history[key])
}

// Prune drops history entries older than the retention window relative to
// now. Pure with respect to the supplied time: the same history and now
// always leave the same state.
func (p *Planner) Prune(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.history {
		p.pruneLocked(key, now)
	}
}

func (p *Planner) pruneLocked(key string, now time.Time) {
	entries := p.history[key]
	cutoff := now.Add(-p.config.Retention)

	kept := entries[:0]
	for _, entry := range entries {
		if entry.At.After(cutoff) {
			kept = append(kept, entry)
		}
	}

	if len(kept) == 0 {
		delete(p.history, key)
		return
	}
	p.history[key] = kept
}
