package recovery

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/resumeforge/resumeforge/pkg/errors"
)

// signature lists lowercase substrings that map an unclassified error
// message onto a category
type signature struct {
	category errors.Category
	patterns []string
}

// Classification signatures are checked in order; the first match wins.
// Runtime signatures come first because raster failures often mention the
// operation that timed out.
var signatures = []signature{
	{errors.CategoryRuntime, []string{
		"raster", "surface", "canvas", "out of memory", "unsupported image config", "font face",
	}},
	{errors.CategoryNetwork, []string{
		"connection refused", "connection reset", "no such host", "unreachable",
		"broken pipe", "network", "dial tcp", "render service returned",
	}},
	{errors.CategoryContent, []string{
		"malformed", "oversized", "invalid character", "unsupported element", "rejected the document",
	}},
	{errors.CategoryValidation, []string{
		"quality check", "validation failed", "artifact check",
	}},
	{errors.CategoryGeneration, []string{
		"timeout", "timed out", "deadline", "empty artifact", "non-pdf", "assembly failed",
	}},
}

// Classify maps any error onto a classified error with a closed-set
// category. Already-classified errors pass through unchanged. Unmatched
// errors default to a recoverable generation error with no suggested
// fallback.
func Classify(err error) *errors.ClassifiedError {
	if err == nil {
		return nil
	}

	if classified, ok := errors.AsClassified(err); ok {
		return classified
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewGenerationError("generation attempt timed out").
			WithCause(err).
			WithContext("timeout", "true")
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.NewFatal(errors.CategoryGeneration, "generation canceled by caller").
			WithCause(err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.NewNetworkError(err.Error()).WithCause(err)
	}

	message := strings.ToLower(err.Error())
	for _, sig := range signatures {
		for _, pattern := range sig.patterns {
			if strings.Contains(message, pattern) {
				return errors.New(sig.category, true, err.Error()).WithCause(err)
			}
		}
	}

	return errors.NewGenerationError(err.Error()).WithCause(err)
}
