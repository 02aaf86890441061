//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-history-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/mockdata"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
)

const testSinkTopic = "test-weather-results"

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("weather-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type published struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) published {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return published{Key: string(msg.Key), Value: msg.Value, Headers: headers}
}

// TestPipelinePublishesResults runs the batch pipeline from a generated raw
// table on disk into a real Kafka topic and reads every record back.
func TestPipelinePublishesResults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	rawPath := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, csvfile.WriteRawRows(rawPath, mockdata.Generate(mockdata.Options{Months: 36, Seed: 11})))

	writer := kafka.NewWriter([]string{broker}, testSinkTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		csvfile.NewReader(rawPath, discardLogger()), nil,
		[]pipeline.ResultSink{writer},
		pipeline.DefaultOptions(), discardLogger(), observability.NewMetricsForTesting(),
	)
	result, err := p.Run(ctx)
	require.NoError(t, err)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	want := len(result.Aggregates.Monthly) + len(result.Forecasts) + 1
	received := make([]published, 0, want)
	for len(received) < want {
		received = append(received, readPublished(ctx, t, consumer))
	}

	counts := map[string]int{}
	generated := result.Summary.GeneratedAt.Format(time.RFC3339)
	for _, m := range received {
		counts[m.Headers["record_type"]]++
		assert.Equal(t, generated, m.Headers["generated_at"])
	}
	assert.Equal(t, 36, counts[kafka.RecordMonthly])
	assert.Equal(t, 6, counts[kafka.RecordForecast])
	assert.Equal(t, 1, counts[kafka.RecordSummary])

	// Single partition keeps publish order: months, forecasts, summary.
	assert.Equal(t, "2022-01", received[0].Key)
	var first domain.MonthlyAggregate
	require.NoError(t, json.Unmarshal(received[0].Value, &first))
	assert.Equal(t, result.Aggregates.Monthly[0], first)

	var forecast domain.ForecastResult
	require.NoError(t, json.Unmarshal(received[36].Value, &forecast))
	assert.Equal(t, "2025-01", forecast.TargetMonth.String())
	assert.Equal(t, result.Forecasts[0].PointEstimate, forecast.PointEstimate)

	last := received[len(received)-1]
	assert.Equal(t, "summary", last.Key)
	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(last.Value, &summary))
	assert.Equal(t, result.Summary.RowsKept, summary.RowsKept)
}
