//go:build integration

// Package integration exercises the job queue against a real Kafka broker in
// a container. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/sounding-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/sounding-data-service/internal/config"
	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

const jobsTopic = "sounding-jobs-it"

func startKafka(t *testing.T, ctx context.Context) []string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("sounding-it-cluster"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers
}

func createTopic(t *testing.T, ctx context.Context, brokers []string) {
	t.Helper()

	conn, err := kafkago.DialContext(ctx, "tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()

	err = conn.CreateTopics(kafkago.TopicConfig{
		Topic:             jobsTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err)
}

func TestJobQueue_EnqueueToConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers := startKafka(t, ctx)
	createTopic(t, ctx, brokers)

	cfg := &config.Config{
		KafkaBrokers:   brokers,
		KafkaJobsTopic: jobsTopic,
		KafkaGroupID:   "sounding-it-group",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	enqueuer := kafkaadapter.NewEnqueuer(cfg, logger)
	t.Cleanup(func() { enqueuer.Close() })

	consumer := kafkaadapter.NewConsumer(cfg, logger, observability.NewMetricsForTesting())
	t.Cleanup(func() { consumer.Close() })

	received := make(chan string, 1)
	consumer.Handle(domain.JobKindLoadSoundings, func(_ context.Context, jobID string) error {
		received <- jobID
		return nil
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := consumer.Run(runCtx); err != nil {
			t.Logf("consumer run: %v", err)
		}
	}()

	// The first write may retry while the group rebalances.
	require.Eventually(t, func() bool {
		return enqueuer.Enqueue(ctx, domain.JobKindLoadSoundings, "job-it-1") == nil
	}, time.Minute, time.Second)

	select {
	case jobID := <-received:
		assert.Equal(t, "job-it-1", jobID)
	case <-time.After(time.Minute):
		t.Fatal("job message never reached the handler")
	}

	assert.NoError(t, consumer.CheckReadiness(ctx))
}
