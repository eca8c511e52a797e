package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_EmitsServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("auth", "info", &buf)

	l.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "auth", entry["service"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("auth", "warn", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("auth", "bogus", &buf)

	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	l.Info("kept")
	assert.NotZero(t, buf.Len())
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", CorrelationIDFromContext(ctx))
}

func TestCorrelationID_MissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}

func TestWithContext_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("auth", "info", &buf)
	ctx := WithCorrelationID(context.Background(), "req-42")

	WithContext(ctx, l).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["correlation_id"])
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestNewContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("auth", "info", &buf)
	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
