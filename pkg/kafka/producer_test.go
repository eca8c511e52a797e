package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signedUpPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func TestNewEvent(t *testing.T) {
	payload := signedUpPayload{UserID: "user-123", Email: "alice@example.com"}

	event, err := NewEvent("auth.user.signed_up", "user-123", "user", "auth-service", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "auth.user.signed_up", event.EventType)
	assert.Equal(t, "user-123", event.AggregateID)
	assert.Equal(t, "user", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "auth-service", event.Source)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("auth.user.signed_up", "user-123", "user", "auth-service", make(chan int))
	assert.Error(t, err)
}

func TestEvent_WithCorrelationID(t *testing.T) {
	event, err := NewEvent("auth.user.verified", "user-123", "user", "auth-service", nil)
	require.NoError(t, err)

	event.WithCorrelationID("corr-42")
	assert.Equal(t, "corr-42", event.CorrelationID)
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	original := signedUpPayload{UserID: "user-123", Email: "alice@example.com"}

	event, err := NewEvent("auth.user.signed_up", "user-123", "user", "auth-service", original)
	require.NoError(t, err)

	data, err := event.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"auth.user.signed_up"`)

	var decoded signedUpPayload
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, original, decoded)
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"kafka-1:9092", "kafka-2:9092"})

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}
