package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	// Normalization metrics. labels: source={history,actuals}
	RowsRead             *prometheus.CounterVec
	RowsDropped          *prometheus.CounterVec // labels: source, reason={date,temperature,sky,duplicate_date}
	InvertedTemperatures *prometheus.CounterVec
	MonthsAggregated     *prometheus.GaugeVec

	// Forecast metrics.
	ForecastFitDuration prometheus.Histogram
	ForecastErrors      *prometheus.CounterVec // labels: stage={fit,forecast}
	BacktestMAE         prometheus.Gauge
	BacktestCoverage    prometheus.Gauge

	// Run metrics.
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,failure}
	RunDuration     prometheus.Histogram
	LastSuccess     prometheus.Gauge
	PipelineRunning prometheus.Gauge
	SinkWrites      *prometheus.CounterVec // labels: sink, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Raw table rows read, by source table.",
		}, []string{"source"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Raw rows excluded by the normalizer, by source and reason.",
		}, []string{"source", "reason"}),
		InvertedTemperatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inverted_temperatures_total",
			Help:      "Observations whose high temperature was below the low.",
		}, []string{"source"}),
		MonthsAggregated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "months_aggregated",
			Help:      "Monthly aggregates produced by the last run.",
		}, []string{"source"}),
		ForecastFitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_fit_duration_seconds",
			Help:      "Time spent fitting the seasonal model.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ForecastErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_errors_total",
			Help:      "Forecast engine failures by stage.",
		}, []string{"stage"}),
		BacktestMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backtest_mae",
			Help:      "Mean absolute error of the last forecast against attached actuals.",
		}),
		BacktestCoverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backtest_coverage_ratio",
			Help:      "Fraction of attached actuals inside their prediction interval.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-normalize-aggregate-forecast-load run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Result sink saves by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsRead,
		m.RowsDropped,
		m.InvertedTemperatures,
		m.MonthsAggregated,
		m.ForecastFitDuration,
		m.ForecastErrors,
		m.BacktestMAE,
		m.BacktestCoverage,
		m.RunsTotal,
		m.RunDuration,
		m.LastSuccess,
		m.PipelineRunning,
		m.SinkWrites,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Register adds the metrics to reg. Tests use it with a private registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
