package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/resumeforge/internal/capability"
	"github.com/resumeforge/resumeforge/internal/generator"
	"github.com/resumeforge/resumeforge/internal/monitor"
	"github.com/resumeforge/resumeforge/internal/resources"
	"github.com/resumeforge/resumeforge/internal/strategy"
	"github.com/resumeforge/resumeforge/pkg/config"
	"github.com/resumeforge/resumeforge/pkg/errors"
)

type stubGeneration struct {
	result *strategy.Result
	err    error
	got    generator.Request
}

func (s *stubGeneration) Generate(_ context.Context, req generator.Request) (*strategy.Result, error) {
	s.got = req
	return s.result, s.err
}

type stubHealth struct {
	report monitor.HealthReport
}

func (s *stubHealth) Report() monitor.HealthReport { return s.report }

type stubCache struct {
	stats   resources.Stats
	cleared bool
}

func (s *stubCache) Stats() resources.Stats { return s.stats }
func (s *stubCache) ClearAll()              { s.cleared = true }

type stubCapabilities struct {
	caps        capability.Capabilities
	invalidated bool
}

func (s *stubCapabilities) Detect() capability.Capabilities { return s.caps }
func (s *stubCapabilities) Invalidate()                     { s.invalidated = true }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
	}
}

func newTestServer(gen *stubGeneration) (*Server, *stubCache, *stubCapabilities) {
	cache := &stubCache{stats: resources.Stats{Fonts: 1, Images: 2, Configs: 3}}
	caps := &stubCapabilities{caps: capability.Capabilities{Rasterization: true, MaxSurfacePixels: 4096 * 4096}}

	server := NewServer(testConfig(), Deps{
		Generation:   gen,
		Health:       &stubHealth{report: monitor.HealthReport{HealthScore: 0.9}},
		Cache:        cache,
		Capabilities: caps,
	})
	return server, cache, caps
}

func generateBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"document": map[string]interface{}{
			"title": "Jane Doe",
			"sections": []map[string]interface{}{
				{"title": "Experience", "elements": []map[string]interface{}{
					{"kind": "text", "text": "Shipped things."},
				}},
			},
		},
		"options": map[string]interface{}{
			"filename_hint": "jane-doe-cv",
			"quality_tier":  "high",
		},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestGenerateEndpointSuccess(t *testing.T) {
	pdf := []byte("%PDF-1.7 stub")
	gen := &stubGeneration{result: &strategy.Result{
		PDF:       pdf,
		Strategy:  strategy.Primary,
		Duration:  1500 * time.Millisecond,
		PageCount: 2,
		Size:      int64(len(pdf)),
	}}
	server, _, _ := newTestServer(gen)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, pdf, rec.Body.Bytes())
	assert.Equal(t, "primary", rec.Header().Get("X-Generation-Strategy"))
	assert.Equal(t, "1500", rec.Header().Get("X-Generation-Duration-Ms"))
	assert.Equal(t, "2", rec.Header().Get("X-Generation-Pages"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "jane-doe-cv.pdf")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGenerateEndpointForwardsRequestID(t *testing.T) {
	gen := &stubGeneration{result: &strategy.Result{PDF: []byte("%PDF"), Strategy: strategy.Degraded}}
	server, _, _ := newTestServer(gen)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t))
	req.Header.Set("X-Request-ID", "req-123")
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", gen.got.RequestID)
}

func TestGenerateEndpointMalformedBody(t *testing.T) {
	server, _, _ := newTestServer(&stubGeneration{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader([]byte("{not json")))
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(errors.CategoryValidation), envelope.Error.Category)
}

func TestGenerateEndpointTerminalFailure(t *testing.T) {
	failure := &generator.Failure{
		Classified:  errors.NewNetworkError("render service unreachable"),
		UserMessage: "The render service is unreachable; switching to an alternative method.",
		Attempts: []generator.AttemptRecord{
			{Strategy: strategy.Secondary, Category: errors.CategoryNetwork},
			{Strategy: strategy.Degraded, Category: errors.CategoryGeneration},
		},
	}
	server, _, _ := newTestServer(&stubGeneration{err: failure})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t))
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "network", envelope.Error.Category)
	assert.NotEmpty(t, envelope.Error.Message)
	assert.Len(t, envelope.Error.Attempts, 2)
}

func TestGenerateEndpointContentFailureIs422(t *testing.T) {
	failure := &generator.Failure{
		Classified:  errors.NewContentError("malformed image payload"),
		UserMessage: "The document could not be rendered as-is.",
	}
	server, _, _ := newTestServer(&stubGeneration{err: failure})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", generateBody(t))
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGenerateEndpointMissingDocument(t *testing.T) {
	server, _, _ := newTestServer(&stubGeneration{
		err: errors.NewFatal(errors.CategoryValidation, "document is required"),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader([]byte(`{"options":{}}`)))
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(&stubGeneration{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHealthReportEndpoint(t *testing.T) {
	server, _, _ := newTestServer(&stubGeneration{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health-report", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var report monitor.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.InDelta(t, 0.9, report.HealthScore, 1e-9)
}

func TestCapabilitiesEndpoints(t *testing.T) {
	server, _, caps := newTestServer(&stubGeneration{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rasterization")
	assert.False(t, caps.invalidated)

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/capabilities/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, caps.invalidated)
}

func TestCacheEndpoints(t *testing.T) {
	server, cache, _ := newTestServer(&stubGeneration{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 6, body["total"])

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.cleared)
}

func TestSecurityHeaders(t *testing.T) {
	server, _, _ := newTestServer(&stubGeneration{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
