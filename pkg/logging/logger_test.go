package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()

	logger, err := NewLogger(&Config{
		Level:       "debug",
		Format:      "json",
		Output:      "stdout",
		ServiceName: "resumeforge-test",
		Version:     "test",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "nope", Format: "json", Output: "stdout"})
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(&Config{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)
}

func TestLogger_WithContext(t *testing.T) {
	logger, buf := newTestLogger(t)

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = WithRequestID(ctx, "req-456")
	logger.WithContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-123", entry["correlation_id"])
	assert.Equal(t, "req-456", entry["request_id"])
	assert.Equal(t, "resumeforge-test", entry["service"])
}

func TestLogger_KeyValuePairs(t *testing.T) {
	logger, buf := newTestLogger(t)

	logger.Info("generation finished", "strategy", "primary", "pages", 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "primary", entry["strategy"])
	assert.Equal(t, float64(2), entry["pages"])
}

func TestLogger_LogGenerationEvent(t *testing.T) {
	logger, buf := newTestLogger(t)

	logger.LogGenerationEvent(context.Background(), "attempt_succeeded", "degraded",
		120*time.Millisecond, logrus.Fields{"artifact_size": 4096})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "attempt_succeeded", entry["event"])
	assert.Equal(t, "degraded", entry["strategy"])
	assert.Equal(t, float64(120), entry["duration_ms"])
	assert.Equal(t, float64(4096), entry["artifact_size"])
}

func TestGetCorrelationID_Missing(t *testing.T) {
	assert.Equal(t, "", GetCorrelationID(context.Background()))
}
