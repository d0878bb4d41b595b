package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError_Error(t *testing.T) {
	err := NewNetworkError("render service unreachable")
	assert.Equal(t, "network: render service unreachable", err.Error())

	cause := errors.New("dial tcp: connection refused")
	err = err.WithCause(cause)
	assert.Contains(t, err.Error(), "caused by: dial tcp")
}

func TestClassifiedError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewGenerationError("encode failed").WithCause(cause)

	assert.True(t, errors.Is(err, cause))
}

func TestClassifiedError_Context(t *testing.T) {
	err := NewRuntimeError("raster surface unsupported").
		WithContext("max_surface", "2048").
		WithFallback("secondary")

	assert.Equal(t, "2048", err.Context["max_surface"])
	assert.Equal(t, "secondary", err.Fallback)
	assert.True(t, err.Recoverable)
	assert.WithinDuration(t, time.Now(), err.Timestamp, time.Second)
}

func TestAsClassified(t *testing.T) {
	ce := NewContentError("document too large")
	wrapped := fmt.Errorf("attempt failed: %w", ce)

	got, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Equal(t, CategoryContent, got.Category)

	_, ok = AsClassified(errors.New("plain"))
	assert.False(t, ok)
}

func TestGetCategory_Defaults(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"classified network", NewNetworkError("x"), CategoryNetwork},
		{"classified validation", NewValidationError("x"), CategoryValidation},
		{"unclassified defaults to generation", errors.New("x"), CategoryGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCategory(tt.err))
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(NewGenerationError("x")))
	assert.True(t, IsRecoverable(errors.New("unknown errors are conservative")))
	assert.False(t, IsRecoverable(NewFatal(CategoryContent, "structurally broken")))
}

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("primary strategy", 5*time.Second)

	assert.Equal(t, CategoryGeneration, err.Category)
	assert.True(t, err.Recoverable)
	assert.Equal(t, "5s", err.Context["timeout"])
	assert.Contains(t, err.Message, "timed out")
}
