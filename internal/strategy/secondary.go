package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/resumeforge/resumeforge/internal/document"
	"github.com/resumeforge/resumeforge/pkg/errors"
	"github.com/resumeforge/resumeforge/pkg/logging"
	"github.com/resumeforge/resumeforge/pkg/resilience"
)

// maxRenderResponseBytes caps how much of a render-service response is read
const maxRenderResponseBytes = 64 * 1024 * 1024

// renderRequest is the wire payload sent to the render service
type renderRequest struct {
	Document *document.Document `json:"document"`
	Options  document.Options   `json:"options"`
	Config   GenerationConfig   `json:"config"`
}

// SecondaryExecutor delegates rendering to the external render service over
// HTTP. Connectivity and status-code failures surface as network errors so
// the recovery planner can retry or fall back.
type SecondaryExecutor struct {
	baseURL string
	client  *http.Client
	breaker *resilience.Breaker
	logger  *logging.Logger
}

// NewSecondaryExecutor creates the server-assisted executor. The client's
// own timeout is left unset; per-attempt deadlines come from the context.
func NewSecondaryExecutor(baseURL string, client *http.Client, logger *logging.Logger) *SecondaryExecutor {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &SecondaryExecutor{
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// WithBreaker guards the render service with a circuit breaker. Only
// network-class failures count toward opening it.
func (e *SecondaryExecutor) WithBreaker(breaker *resilience.Breaker) *SecondaryExecutor {
	e.breaker = breaker
	return e
}

func (e *SecondaryExecutor) Strategy() Strategy {
	return Secondary
}

func (e *SecondaryExecutor) Execute(ctx context.Context, doc *document.Document, opts document.Options, cfg GenerationConfig) (*Result, error) {
	if e.baseURL == "" {
		return nil, errors.NewNetworkError("render service not configured")
	}

	if e.breaker != nil {
		if err := e.breaker.Allow(); err != nil {
			return nil, errors.NewNetworkError("render service circuit open").WithCause(err)
		}
	}

	result, err := e.render(ctx, doc, opts, cfg)

	if e.breaker != nil {
		switch {
		case err == nil:
			e.breaker.RecordSuccess()
		case errors.IsCategory(err, errors.CategoryNetwork):
			e.breaker.RecordFailure()
		}
	}

	return result, err
}

func (e *SecondaryExecutor) render(ctx context.Context, doc *document.Document, opts document.Options, cfg GenerationConfig) (*Result, error) {
	start := time.Now()

	payload, err := json.Marshal(renderRequest{Document: doc, Options: opts, Config: cfg})
	if err != nil {
		return nil, errors.NewContentError("failed to encode render request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewNetworkError("failed to build render request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewNetworkError("render service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewNetworkError("failed to read render response").WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return nil, errors.NewContentError("render service rejected the document").
			WithContext("status", resp.Status)
	case resp.StatusCode >= 500:
		return nil, errors.NewNetworkError(
			fmt.Sprintf("render service returned %s", resp.Status)).
			WithContext("status", resp.Status)
	default:
		return nil, errors.NewNetworkError(
			fmt.Sprintf("unexpected render service status %s", resp.Status)).
			WithContext("status", resp.Status)
	}

	if len(body) == 0 {
		return nil, errors.NewGenerationError("render service returned an empty artifact")
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return nil, errors.NewGenerationError("render service returned a non-PDF artifact")
	}

	e.logger.Debug("server-assisted render succeeded",
		"size", len(body),
		"duration", time.Since(start),
	)

	return &Result{
		PDF:      body,
		Strategy: Secondary,
		Duration: time.Since(start),
		Size:     int64(len(body)),
	}, nil
}
