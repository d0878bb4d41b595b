package api

import (
	"github.com/gin-gonic/gin"

	"github.com/resumeforge/resumeforge/internal/generator"
	"github.com/resumeforge/resumeforge/pkg/errors"
)

// ErrorEnvelope is the JSON error body of every failed request
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the user-facing failure description
type ErrorBody struct {
	Category    string                    `json:"category"`
	Message     string                    `json:"message"`
	Recoverable bool                      `json:"recoverable"`
	RequestID   string                    `json:"request_id,omitempty"`
	Suggestions []string                  `json:"suggestions,omitempty"`
	Attempts    []generator.AttemptRecord `json:"attempts,omitempty"`
}

func respondError(c *gin.Context, status int, category errors.Category, message string) {
	c.JSON(status, ErrorEnvelope{Error: ErrorBody{
		Category:  string(category),
		Message:   message,
		RequestID: requestID(c),
	}})
}

func respondFailure(c *gin.Context, status int, failure *generator.Failure, suggestions []string) {
	c.JSON(status, ErrorEnvelope{Error: ErrorBody{
		Category:    string(failure.Classified.Category),
		Message:     failure.UserMessage,
		Recoverable: failure.Classified.Recoverable,
		RequestID:   requestID(c),
		Suggestions: suggestions,
		Attempts:    failure.Attempts,
	}})
}
