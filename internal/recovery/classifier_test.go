package recovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/resumeforge/pkg/errors"
)

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	original := errors.NewNetworkError("render service unreachable")

	classified := Classify(original)

	assert.Same(t, original, classified)
}

func TestClassifyWrappedClassified(t *testing.T) {
	original := errors.NewContentError("malformed image payload")
	wrapped := fmt.Errorf("attempt failed: %w", original)

	classified := Classify(wrapped)

	assert.Same(t, original, classified)
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	classified := Classify(context.DeadlineExceeded)

	require.NotNil(t, classified)
	assert.Equal(t, errors.CategoryGeneration, classified.Category)
	assert.True(t, classified.Recoverable)
	assert.Equal(t, "true", classified.Context["timeout"])
}

func TestClassifyCanceledIsNotRecoverable(t *testing.T) {
	classified := Classify(context.Canceled)

	require.NotNil(t, classified)
	assert.False(t, classified.Recoverable)
}

func TestClassifySignatures(t *testing.T) {
	tests := []struct {
		message string
		want    errors.Category
	}{
		{"raster surface allocation failed", errors.CategoryRuntime},
		{"out of memory drawing page", errors.CategoryRuntime},
		{"dial tcp 10.0.0.1:443: connection refused", errors.CategoryNetwork},
		{"lookup render.internal: no such host", errors.CategoryNetwork},
		{"malformed table row", errors.CategoryContent},
		{"oversized inline payload", errors.CategoryContent},
		{"artifact check: zero pages", errors.CategoryValidation},
		{"operation timed out after 10s", errors.CategoryGeneration},
		{"pdf assembly failed", errors.CategoryGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			classified := Classify(stderrors.New(tt.message))
			require.NotNil(t, classified)
			assert.Equal(t, tt.want, classified.Category)
			assert.True(t, classified.Recoverable)
		})
	}
}

func TestClassifyUnmatchedDefaultsToGeneration(t *testing.T) {
	classified := Classify(stderrors.New("something entirely novel"))

	require.NotNil(t, classified)
	assert.Equal(t, errors.CategoryGeneration, classified.Category)
	assert.True(t, classified.Recoverable)
	assert.Empty(t, classified.Fallback)
}
