package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/forecast"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
)

// RowSource reads a complete raw observation table.
type RowSource interface {
	ReadRows(ctx context.Context) ([]domain.RawRow, error)
}

// ResultSink persists or publishes the output of a run.
type ResultSink interface {
	Name() string
	Save(ctx context.Context, result *domain.RunResult) error
}

// Options selects the run policies and the forecast setup.
type Options struct {
	Normalize domain.NormalizeOptions
	Forecast  forecast.Config
	Target    forecast.Target
	Horizon   int

	// Training window bounds; zero means open.
	TrainStart domain.MonthKey
	TrainEnd   domain.MonthKey
}

// DefaultOptions returns a six-month high-temperature forecast over all history.
func DefaultOptions() Options {
	return Options{
		Forecast: forecast.DefaultConfig(),
		Target:   forecast.TargetMeanHighTemp,
		Horizon:  6,
	}
}

// Pipeline runs extract -> normalize -> aggregate -> forecast -> load as one
// synchronous batch. Each stage consumes the complete output of the last.
type Pipeline struct {
	history RowSource
	actuals RowSource
	sinks   []ResultSink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	ready atomic.Bool
	last  atomic.Pointer[domain.RunResult]
}

// New creates a Pipeline. actuals may be nil when no later table exists.
func New(history, actuals RowSource, sinks []ResultSink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		history: history,
		actuals: actuals,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastResult returns the result of the most recent successful run, or nil.
func (p *Pipeline) LastResult() *domain.RunResult {
	return p.last.Load()
}

// Run executes one batch. The first fatal error stops the run and is
// returned; nothing is retried.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunResult, error) {
	p.logger.Info("pipeline started",
		"target", p.opts.Target,
		"horizon", p.opts.Horizon,
		"model", p.opts.Forecast.Order.String(),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := time.Now()
	result, err := p.run(ctx)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("failure").Inc()
		p.logger.Error("pipeline run failed", "error", err)
		return nil, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.SetToCurrentTime()
	p.last.Store(result)
	p.ready.Store(true)
	p.logger.Info("pipeline run complete",
		"rows_read", result.Summary.RowsRead,
		"rows_kept", result.Summary.RowsKept,
		"months", result.Summary.Months,
		"forecasts", len(result.Forecasts),
		"duration", time.Since(start),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*domain.RunResult, error) {
	summary := domain.NewRunSummary()
	summary.Horizon = p.opts.Horizon
	summary.Target = string(p.opts.Target)
	summary.Model = p.opts.Forecast.Order.String()

	rows, err := p.history.ReadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract history: %w", err)
	}
	norm := p.normalize("history", rows)
	agg := domain.Aggregate(norm.Observations)
	p.metrics.MonthsAggregated.WithLabelValues("history").Set(float64(len(agg.Monthly)))

	summary.RowsRead = len(rows)
	summary.RowsKept = len(norm.Observations)
	summary.InvertedTemps = norm.Inverted
	for reason, n := range norm.DroppedByReason() {
		summary.RowsDropped[string(reason)] = n
	}
	summary.Months = len(agg.Monthly)

	var actualMonthly []domain.MonthlyAggregate
	if p.actuals != nil {
		actualRows, err := p.actuals.ReadRows(ctx)
		if err != nil {
			return nil, fmt.Errorf("extract actuals: %w", err)
		}
		actualMonthly = domain.Aggregate(p.normalize("actuals", actualRows).Observations).Monthly
		p.metrics.MonthsAggregated.WithLabelValues("actuals").Set(float64(len(actualMonthly)))
		summary.ActualMonths = len(actualMonthly)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series := p.opts.Target.Series(agg.Monthly)
	train := forecast.Window(series, p.opts.TrainStart, p.opts.TrainEnd)
	forecasts, err := p.forecast(train)
	if err != nil {
		return nil, err
	}
	summary.TrainStart = train[0].Month
	summary.TrainEnd = train[len(train)-1].Month

	// History months past the training window count as actuals too; a
	// separate actuals table takes precedence for the same month.
	observed := forecast.Window(series, summary.TrainEnd.AddMonths(1), domain.MonthKey{})
	observed = append(observed, p.opts.Target.Series(actualMonthly)...)
	forecasts = forecast.AttachActuals(forecasts, observed)

	summary.Accuracy = forecast.Evaluate(forecasts)
	if summary.Accuracy.Compared > 0 {
		p.metrics.BacktestMAE.Set(summary.Accuracy.MAE)
		p.metrics.BacktestCoverage.Set(summary.Accuracy.Coverage)
		p.logger.Info("backtest",
			"compared", summary.Accuracy.Compared,
			"mae", summary.Accuracy.MAE,
			"rmse", summary.Accuracy.RMSE,
			"coverage", summary.Accuracy.Coverage,
		)
	}

	result := &domain.RunResult{
		Summary:       summary,
		Daily:         norm.Observations,
		Aggregates:    agg,
		ActualMonthly: actualMonthly,
		Forecasts:     forecasts,
		Climatology:   domain.BuildClimatology(agg),
	}

	for _, sink := range p.sinks {
		if err := sink.Save(ctx, result); err != nil {
			p.metrics.SinkWrites.WithLabelValues(sink.Name(), "error").Inc()
			return nil, fmt.Errorf("load %s: %w", sink.Name(), err)
		}
		p.metrics.SinkWrites.WithLabelValues(sink.Name(), "success").Inc()
		p.logger.Debug("sink saved", "sink", sink.Name())
	}

	return result, nil
}

// forecast fits a fresh engine on the training window and forecasts the
// configured horizon.
func (p *Pipeline) forecast(train []forecast.Point) ([]domain.ForecastResult, error) {
	engine, err := forecast.NewEngine(p.opts.Forecast)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = engine.Fit(train)
	p.metrics.ForecastFitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.ForecastErrors.WithLabelValues("fit").Inc()
		return nil, fmt.Errorf("fit forecast: %w", err)
	}
	p.logger.Info("forecast model fitted",
		"train_start", train[0].Month,
		"train_end", train[len(train)-1].Month,
		"months", len(train),
		"iterations", engine.Iterations(),
		"sigma2", engine.Params().Sigma2,
	)

	results, err := engine.Forecast(p.opts.Horizon)
	if err != nil {
		p.metrics.ForecastErrors.WithLabelValues("forecast").Inc()
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return results, nil
}
