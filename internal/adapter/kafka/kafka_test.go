package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobMessageRoundTrip(t *testing.T) {
	data, err := json.Marshal(jobMessage{Kind: "load_soundings", JobID: "abc-123"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"load_soundings","job_id":"abc-123"}`, string(data))

	var decoded jobMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "load_soundings", decoded.Kind)
	assert.Equal(t, "abc-123", decoded.JobID)
}

func newTestConsumer() *Consumer {
	return &Consumer{
		handlers: make(map[string]HandlerFunc),
		logger:   discardLogger(),
		metrics:  observability.NewMetricsForTesting(),
	}
}

func TestDispatch_RoutesToHandler(t *testing.T) {
	c := newTestConsumer()

	var gotID string
	c.Handle("load_soundings", func(_ context.Context, jobID string) error {
		gotID = jobID
		return nil
	})

	msg := kafkago.Message{Value: []byte(`{"kind":"load_soundings","job_id":"job-1"}`)}
	ok := c.dispatch(context.Background(), msg)

	assert.True(t, ok)
	assert.Equal(t, "job-1", gotID)
}

func TestDispatch_HandlerErrorIsNotCommitted(t *testing.T) {
	c := newTestConsumer()
	c.Handle("load_soundings", func(context.Context, string) error {
		return errors.New("store unavailable")
	})

	msg := kafkago.Message{Value: []byte(`{"kind":"load_soundings","job_id":"job-1"}`)}
	assert.False(t, c.dispatch(context.Background(), msg))
}

func TestDispatch_UnknownKindIsSkipped(t *testing.T) {
	c := newTestConsumer()
	c.Handle("load_soundings", func(context.Context, string) error {
		t.Fatal("handler should not run")
		return nil
	})

	msg := kafkago.Message{Value: []byte(`{"kind":"mystery","job_id":"job-1"}`)}
	assert.True(t, c.dispatch(context.Background(), msg))
}

func TestDispatch_BadPayloadIsSkipped(t *testing.T) {
	c := newTestConsumer()
	msg := kafkago.Message{Value: []byte(`not json`)}
	assert.True(t, c.dispatch(context.Background(), msg))
}

func TestCheckReadiness(t *testing.T) {
	c := newTestConsumer()
	require.Error(t, c.CheckReadiness(context.Background()))

	c.running.Store(true)
	assert.NoError(t, c.CheckReadiness(context.Background()))
}

func TestNextBackoff(t *testing.T) {
	maxBackoff := 5 * time.Second

	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, maxBackoff))
	assert.Equal(t, 5*time.Second, nextBackoff(3*time.Second, maxBackoff))
	assert.Equal(t, 5*time.Second, nextBackoff(5*time.Second, maxBackoff))
}

func TestSleepWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepWithContext(ctx, time.Minute))
}

func TestSleepWithContext_ZeroDuration(t *testing.T) {
	assert.True(t, sleepWithContext(context.Background(), 0))
}
