package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Category represents the classification of a generation error
type Category string

const (
	// CategoryRuntime - the host runtime cannot support a strategy
	CategoryRuntime Category = "runtime"
	// CategoryContent - the input document is structurally unprocessable
	CategoryContent Category = "content"
	// CategoryGeneration - internal failure or timeout during rendering/encoding
	CategoryGeneration Category = "generation"
	// CategoryNetwork - transient connectivity failure (server-assisted strategies)
	CategoryNetwork Category = "network"
	// CategoryValidation - produced artifact failed a post-generation quality check
	CategoryValidation Category = "validation"
)

// ClassifiedError is the single error value used throughout the generation
// pipeline. Category is closed-set data rather than a type hierarchy so the
// recovery planner can handle it exhaustively.
type ClassifiedError struct {
	Category    Category          `json:"category"`
	Recoverable bool              `json:"recoverable"`
	Fallback    string            `json:"fallback,omitempty"`
	Message     string            `json:"message"`
	Context     map[string]string `json:"context,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Cause       error             `json:"-"`
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// New creates a classified error with the given category
func New(category Category, recoverable bool, message string) *ClassifiedError {
	return &ClassifiedError{
		Category:    category,
		Recoverable: recoverable,
		Message:     message,
		Context:     make(map[string]string),
		Timestamp:   time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *ClassifiedError) WithCause(cause error) *ClassifiedError {
	e.Cause = cause
	return e
}

// WithContext adds a context entry to the error
func (e *ClassifiedError) WithContext(key, value string) *ClassifiedError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithFallback suggests the next strategy to try
func (e *ClassifiedError) WithFallback(strategy string) *ClassifiedError {
	e.Fallback = strategy
	return e
}

// Common error constructors
func NewRuntimeError(message string) *ClassifiedError {
	return New(CategoryRuntime, true, message)
}

func NewContentError(message string) *ClassifiedError {
	return New(CategoryContent, true, message)
}

func NewGenerationError(message string) *ClassifiedError {
	return New(CategoryGeneration, true, message)
}

func NewNetworkError(message string) *ClassifiedError {
	return New(CategoryNetwork, true, message)
}

func NewValidationError(message string) *ClassifiedError {
	return New(CategoryValidation, true, message)
}

// NewTimeoutError creates a generation-category error for an attempt that
// exceeded its time budget. Timeouts are failures, not hangs.
func NewTimeoutError(operation string, timeout time.Duration) *ClassifiedError {
	return New(CategoryGeneration, true, fmt.Sprintf("%s timed out", operation)).
		WithContext("timeout", timeout.String())
}

// NewFatal creates a non-recoverable error in the given category
func NewFatal(category Category, message string) *ClassifiedError {
	return New(category, false, message)
}

// AsClassified extracts a ClassifiedError from an error chain
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsCategory checks if the error is classified with a specific category
func IsCategory(err error, category Category) bool {
	if ce, ok := AsClassified(err); ok {
		return ce.Category == category
	}
	return false
}

// GetCategory returns the error category, defaulting to generation for
// unclassified errors since that is the conservative recoverable choice
func GetCategory(err error) Category {
	if ce, ok := AsClassified(err); ok {
		return ce.Category
	}
	return CategoryGeneration
}

// IsTimeout reports whether the error records an exceeded time budget
func IsTimeout(err error) bool {
	if ce, ok := AsClassified(err); ok {
		return ce.Context["timeout"] != ""
	}
	return false
}

// IsRecoverable reports whether the error permits a retry or fallback.
// Unclassified errors are treated as recoverable.
func IsRecoverable(err error) bool {
	if ce, ok := AsClassified(err); ok {
		return ce.Recoverable
	}
	return true
}
