// Package kafka publishes run results to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Record types carried in the record_type header.
const (
	RecordMonthly  = "monthly"
	RecordForecast = "forecast"
	RecordSummary  = "summary"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// messageWriter is the subset of kafkago.Writer used for publishing.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes monthly aggregates, forecasts and the run summary.
// It implements pipeline.ResultSink.
type Writer struct {
	writer  messageWriter
	topic   string
	backoff time.Duration
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: topic, backoff: initialBackoff, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Save publishes one message per monthly aggregate and forecast, keyed by
// month, followed by the run summary. The whole batch is retried on failure.
func (w *Writer) Save(ctx context.Context, result *domain.RunResult) error {
	msgs, err := buildMessages(result)
	if err != nil {
		return err
	}

	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		err = w.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			break
		}
		if attempt == maxAttempts {
			return fmt.Errorf("publish %d messages to %s: %w", len(msgs), w.topic, err)
		}
		w.logger.Warn("kafka publish failed, retrying",
			"topic", w.topic,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}

	w.logger.Info("results published", "topic", w.topic, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func buildMessages(result *domain.RunResult) ([]kafkago.Message, error) {
	generated := result.Summary.GeneratedAt
	msgs := make([]kafkago.Message, 0, len(result.Aggregates.Monthly)+len(result.Forecasts)+1)

	for _, m := range result.Aggregates.Monthly {
		msg, err := serializeToMessage(RecordMonthly, m.Month.String(), m, generated)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, f := range result.Forecasts {
		msg, err := serializeToMessage(RecordForecast, f.TargetMonth.String(), f, generated)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	msg, err := serializeToMessage(RecordSummary, RecordSummary, result.Summary, generated)
	if err != nil {
		return nil, err
	}
	return append(msgs, msg), nil
}

// serializeToMessage marshals a record into a Kafka message.
func serializeToMessage(recordType, key string, v any, generated time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", recordType, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "generated_at", Value: []byte(generated.Format(time.RFC3339))},
		},
	}, nil
}
