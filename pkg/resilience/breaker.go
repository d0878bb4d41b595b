package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/resumeforge/resumeforge/pkg/logging"
)

// ErrOpen is returned by Allow while the breaker is open
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker's position
type State int

const (
	// StateClosed allows requests
	StateClosed State = iota
	// StateOpen rejects requests until the cooldown elapses
	StateOpen
	// StateHalfOpen allows a limited number of probe requests
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds circuit breaker tunables
type BreakerConfig struct {
	// Name identifies the protected dependency in logs
	Name string
	// FailureThreshold is the consecutive failure count that opens the
	// breaker
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration
	// HalfOpenProbes is how many probe requests may run half-open
	HalfOpenProbes int
}

// DefaultBreakerConfig returns breaker defaults suited to an external
// render service
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Breaker is a consecutive-failure circuit breaker guarding one external
// dependency. Safe for concurrent use.
type Breaker struct {
	config BreakerConfig
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	openedAt time.Time
}

// NewBreaker creates a circuit breaker
func NewBreaker(config BreakerConfig, logger *logging.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig(config.Name).FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerConfig(config.Name).Cooldown
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = 1
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Breaker{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Allow reports whether a request may proceed. When the cooldown has
// elapsed the breaker moves to half-open and admits probe requests.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probes = 0
		fallthrough
	default: // half-open
		if b.probes >= b.config.HalfOpenProbes {
			return ErrOpen
		}
		b.probes++
		return nil
	}
}

// RecordSuccess closes the breaker and clears the failure count
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure counts one failure, opening the breaker at the threshold.
// A failed half-open probe reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	}
}

// State returns the breaker's current position
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) open() {
	b.failures = 0
	b.openedAt = b.now()
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.logger.Warn("circuit breaker state change",
		"name", b.config.Name,
		"from", from.String(),
		"to", to.String(),
	)
}
