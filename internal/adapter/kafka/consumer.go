package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sounding-data-service/internal/config"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

// HandlerFunc processes one job by id.
type HandlerFunc func(ctx context.Context, jobID string) error

// Consumer reads job messages from the jobs topic and dispatches them to the
// handler registered for each job kind. A message with an unknown kind or an
// undecodable body is committed and skipped; a handler error leaves the
// message uncommitted so the group redelivers it after backoff.
type Consumer struct {
	reader   *kafkago.Reader
	handlers map[string]HandlerFunc
	logger   *slog.Logger
	metrics  *observability.Metrics
	running  atomic.Bool
}

// NewConsumer creates a consumer-group reader on the jobs topic.
func NewConsumer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaJobsTopic,
		GroupID:     cfg.KafkaGroupID,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
		StartOffset: kafkago.FirstOffset,
	})
	return &Consumer{
		reader:   reader,
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		metrics:  metrics,
	}
}

// Handle registers the handler for one job kind. Must be called before Run.
func (c *Consumer) Handle(kind string, fn HandlerFunc) {
	c.handlers[kind] = fn
}

// CheckReadiness returns nil once the consumer loop is active.
func (c *Consumer) CheckReadiness(_ context.Context) error {
	if !c.running.Load() {
		return errors.New("job consumer is not running")
	}
	return nil
}

// Run consumes job messages until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("job consumer started", "kinds", len(c.handlers))
	c.running.Store(true)
	c.metrics.QueueRunning.Set(1)
	defer func() {
		c.running.Store(false)
		c.metrics.QueueRunning.Set(0)
	}()

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("job consumer stopping", "reason", ctx.Err())
			return nil
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("fetch job message failed", "error", err)
			if !c.backoffOrStop(ctx, &backoff, maxBackoff) {
				return nil
			}
			continue
		}
		backoff = 200 * time.Millisecond

		if !c.dispatch(ctx, msg) {
			// Handler failed; leave the offset uncommitted and back off
			// before re-fetching so a broken job does not spin.
			if !c.backoffOrStop(ctx, &backoff, maxBackoff) {
				return nil
			}
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("commit job message failed", "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// dispatch decodes and runs one message. Returns false only when the handler
// itself failed; malformed or unroutable messages count as handled so they
// are committed and dropped.
func (c *Consumer) dispatch(ctx context.Context, msg kafkago.Message) bool {
	var job jobMessage
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		c.logger.Warn("skipping undecodable job message", "error", err,
			"partition", msg.Partition, "offset", msg.Offset)
		c.metrics.QueueMessages.WithLabelValues("skipped").Inc()
		return true
	}

	handler, ok := c.handlers[job.Kind]
	if !ok {
		c.logger.Warn("skipping job with unknown kind", "kind", job.Kind, "job_id", job.JobID)
		c.metrics.QueueMessages.WithLabelValues("skipped").Inc()
		return true
	}

	if err := handler(ctx, job.JobID); err != nil {
		c.logger.Error("job handler failed", "kind", job.Kind, "job_id", job.JobID, "error", err)
		c.metrics.QueueMessages.WithLabelValues("error").Inc()
		return false
	}
	c.metrics.QueueMessages.WithLabelValues("handled").Inc()
	return true
}

func (c *Consumer) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
