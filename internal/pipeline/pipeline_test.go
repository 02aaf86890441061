package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/forecast"
	"github.com/couchcryptid/weather-history-etl/internal/mockdata"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
)

// --- mocks ---

type mockSource struct {
	rows []domain.RawRow
	err  error
}

func (m *mockSource) ReadRows(_ context.Context) ([]domain.RawRow, error) {
	return m.rows, m.err
}

type mockSink struct {
	name  string
	err   error
	saved []*domain.RunResult
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Save(_ context.Context, result *domain.RunResult) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, result)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func history(months int) *mockSource {
	return &mockSource{rows: mockdata.Generate(mockdata.Options{Months: months, Seed: 1})}
}

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })
	return now
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	now := freezeClock(t)
	sink := &mockSink{name: "memory"}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(history(36), nil, []pipeline.ResultSink{sink}, pipeline.DefaultOptions(), discardLogger(), metrics)
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.Nil(t, p.LastResult())

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.saved, 1)
	assert.Same(t, result, sink.saved[0])
	assert.Same(t, result, p.LastResult())
	assert.NoError(t, p.CheckReadiness(context.Background()))

	s := result.Summary
	assert.Equal(t, now, s.GeneratedAt)
	assert.Equal(t, 1096, s.RowsRead, "2022 through 2024 has one leap day")
	assert.Equal(t, s.RowsRead, s.RowsKept)
	assert.Equal(t, 36, s.Months)
	assert.Equal(t, "2022-01", s.TrainStart.String())
	assert.Equal(t, "2024-12", s.TrainEnd.String())
	assert.Equal(t, "mean_high_temp", s.Target)
	assert.Equal(t, "SARIMA(1,1,1)x(1,1,1,12)", s.Model)
	assert.Zero(t, s.Accuracy.Compared)

	require.Len(t, result.Forecasts, 6)
	assert.Equal(t, "2025-01", result.Forecasts[0].TargetMonth.String())
	for _, f := range result.Forecasts {
		assert.LessOrEqual(t, f.LowerBound, f.PointEstimate)
		assert.LessOrEqual(t, f.PointEstimate, f.UpperBound)
		assert.Nil(t, f.Actual)
	}
	assert.Len(t, result.Daily, 1096)
	assert.Len(t, result.Climatology.Seasonal, 12)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1096.0, testutil.ToFloat64(metrics.RowsRead.WithLabelValues("history")))
	assert.Equal(t, 36.0, testutil.ToFloat64(metrics.MonthsAggregated.WithLabelValues("history")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("memory", "success")))
	assert.Zero(t, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_DropsMalformedRows(t *testing.T) {
	rows := mockdata.Generate(mockdata.Options{Months: 36, Seed: 2, MalformedEvery: 100})
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(&mockSource{rows: rows}, nil, nil, pipeline.DefaultOptions(), discardLogger(), metrics)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	dropped := 0
	for _, n := range result.Summary.RowsDropped {
		dropped += n
	}
	assert.Equal(t, 10, dropped, "one defect every hundred rows")
	assert.Equal(t, result.Summary.RowsRead-dropped, result.Summary.RowsKept)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("history", string(domain.DropTemperature))))
}

func TestPipeline_Run_AttachesActuals(t *testing.T) {
	actuals := &mockSource{rows: mockdata.Generate(mockdata.Options{
		Start:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Months: 3,
		Seed:   9,
	})}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(history(36), actuals, nil, pipeline.DefaultOptions(), discardLogger(), metrics)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.ActualMonthly, 3)
	assert.Equal(t, 3, result.Summary.ActualMonths)
	for i, f := range result.Forecasts {
		if i < 3 {
			require.NotNil(t, f.Actual, f.TargetMonth.String())
			assert.Equal(t, result.ActualMonthly[i].MeanHighTemp, *f.Actual)
		} else {
			assert.Nil(t, f.Actual, f.TargetMonth.String())
		}
	}
	assert.Equal(t, 3, result.Summary.Accuracy.Compared)
	assert.Equal(t, result.Summary.Accuracy.MAE, testutil.ToFloat64(metrics.BacktestMAE))
}

func TestPipeline_Run_TrainingWindowBacktest(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.TrainEnd = domain.MonthKey{Year: 2024, Month: time.June}
	opts.Target = forecast.TargetMeanTemp

	p := pipeline.New(history(36), nil, nil, opts, discardLogger(), observability.NewMetricsForTesting())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-06", result.Summary.TrainEnd.String())
	require.Len(t, result.Forecasts, 6)
	assert.Equal(t, "2024-07", result.Forecasts[0].TargetMonth.String())
	for _, f := range result.Forecasts {
		assert.NotNil(t, f.Actual, "later history months serve as actuals")
	}
	assert.Equal(t, 6, result.Summary.Accuracy.Compared)
	assert.GreaterOrEqual(t, result.Summary.Accuracy.RMSE, result.Summary.Accuracy.MAE)
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	source := &mockSource{err: errors.New("disk gone")}
	sink := &mockSink{name: "memory"}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(source, nil, []pipeline.ResultSink{sink}, pipeline.DefaultOptions(), discardLogger(), metrics)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract history")
	assert.Empty(t, sink.saved)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failure")))
}

func TestPipeline_Run_InsufficientHistory(t *testing.T) {
	sink := &mockSink{name: "memory"}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(history(12), nil, []pipeline.ResultSink{sink}, pipeline.DefaultOptions(), discardLogger(), metrics)
	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, forecast.ErrInsufficientHistory)

	var pre *forecast.PreconditionError
	assert.ErrorAs(t, err, &pre)
	assert.Empty(t, sink.saved)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ForecastErrors.WithLabelValues("fit")))
}

func TestPipeline_Run_SinkErrorStopsLoad(t *testing.T) {
	failing := &mockSink{name: "broken", err: errors.New("write refused")}
	after := &mockSink{name: "after"}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(history(36), nil, []pipeline.ResultSink{failing, after}, pipeline.DefaultOptions(), discardLogger(), metrics)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load broken")
	assert.Empty(t, after.saved, "sinks after a failure are not called")
	assert.Nil(t, p.LastResult())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("broken", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failure")))
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := pipeline.New(history(36), nil, nil, pipeline.DefaultOptions(), discardLogger(), observability.NewMetricsForTesting())
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
