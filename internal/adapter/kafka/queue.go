// Package kafka carries job dispatch between the API surface and the
// workers over a single jobs topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sounding-data-service/internal/config"
)

// jobMessage is the wire form of one queued job.
type jobMessage struct {
	Kind  string `json:"kind"`
	JobID string `json:"job_id"`
}

// Enqueuer produces job messages to the jobs topic.
// It implements domain.JobQueue.
type Enqueuer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewEnqueuer creates a Kafka producer for the configured jobs topic.
func NewEnqueuer(cfg *config.Config, logger *slog.Logger) *Enqueuer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaJobsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Enqueuer{writer: w, logger: logger}
}

// Enqueue publishes one job reference. The job id is the message key so
// retries of the same job land on the same partition.
func (e *Enqueuer) Enqueue(ctx context.Context, kind, jobID string) error {
	data, err := json.Marshal(jobMessage{Kind: kind, JobID: jobID})
	if err != nil {
		return fmt.Errorf("serialize job message: %w", err)
	}
	err = e.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(jobID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	e.logger.Debug("job enqueued", "kind", kind, "job_id", jobID)
	return nil
}

func (e *Enqueuer) Close() error {
	return e.writer.Close()
}
