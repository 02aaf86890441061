package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

type fakeWriter struct {
	failures int
	calls    int
	written  []kafkago.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("leader not available")
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func newTestWriter(fw *fakeWriter) *Writer {
	return &Writer{writer: fw, topic: "weather-monthly-results", backoff: time.Millisecond, logger: slog.New(slog.DiscardHandler)}
}

func sampleResult() *domain.RunResult {
	march := domain.MonthKey{Year: 2024, Month: time.March}
	return &domain.RunResult{
		Summary: domain.RunSummary{GeneratedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC), Months: 1},
		Aggregates: domain.Aggregates{
			Monthly: []domain.MonthlyAggregate{{Month: march, MeanTemp: 6, MeanHighTemp: 10, MeanLowTemp: 2, Days: 31}},
		},
		Forecasts: []domain.ForecastResult{
			{TargetMonth: march.AddMonths(1), PointEstimate: 15, LowerBound: 12, UpperBound: 18},
			{TargetMonth: march.AddMonths(2), PointEstimate: 20, LowerBound: 16, UpperBound: 24},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	f := domain.ForecastResult{
		TargetMonth:   domain.MonthKey{Year: 2024, Month: time.May},
		PointEstimate: 21.5,
		LowerBound:    18,
		UpperBound:    25,
	}

	msg, err := serializeToMessage(RecordForecast, f.TargetMonth.String(), f, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("2024-05"), msg.Key)
	assert.Contains(t, string(msg.Value), `"month":"2024-05"`)
	assert.Contains(t, string(msg.Value), `"point_estimate":21.5`)
	assert.NotContains(t, string(msg.Value), "actual")
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "record_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("forecast"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestBuildMessages_Order(t *testing.T) {
	msgs, err := buildMessages(sampleResult())
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	keys := make([]string, len(msgs))
	for i, m := range msgs {
		keys[i] = string(m.Key)
	}
	assert.Equal(t, []string{"2024-03", "2024-04", "2024-05", "summary"}, keys)

	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(msgs[3].Value, &summary))
	assert.Equal(t, 1, summary.Months)
}

func TestWriter_SaveRetries(t *testing.T) {
	fw := &fakeWriter{failures: 2}
	w := newTestWriter(fw)
	assert.Equal(t, "kafka", w.Name())

	require.NoError(t, w.Save(context.Background(), sampleResult()))
	assert.Equal(t, 3, fw.calls)
	assert.Len(t, fw.written, 4)
}

func TestWriter_SaveGivesUp(t *testing.T) {
	fw := &fakeWriter{failures: maxAttempts}
	err := newTestWriter(fw).Save(context.Background(), sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, maxAttempts, fw.calls)
	assert.Empty(t, fw.written)
}

func TestWriter_SaveCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fw := &fakeWriter{failures: 1}
	err := newTestWriter(fw).Save(ctx, sampleResult())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fw.calls)
}
