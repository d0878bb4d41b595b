package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) *Breaker {
	t.Helper()
	return NewBreaker(BreakerConfig{
		Name:             "render-service",
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		HalfOpenProbes:   1,
	}, nil)
}

func TestBreakerStartsClosed(t *testing.T) {
	b := newTestBreaker(t, 3, time.Minute)

	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newTestBreaker(t, 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := newTestBreaker(t, 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := newTestBreaker(t, 1, time.Minute)

	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	current = current.Add(2 * time.Minute)
	assert.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	// Only one probe is admitted.
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := newTestBreaker(t, 1, time.Minute)
	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	current = current.Add(2 * time.Minute)
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := newTestBreaker(t, 1, time.Minute)
	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	current = current.Add(2 * time.Minute)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}
