package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-history-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// storeSnapshot is what the SQLite sink holds for the latest run.
type storeSnapshot struct {
	runs      int
	monthly   []domain.MonthlyAggregate
	forecasts []domain.ForecastResult
	summary   domain.RunSummary
}

func loadStore(ctx context.Context, path string) (*storeSnapshot, error) {
	store, err := sqlite.Open(ctx, path, slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	s := &storeSnapshot{}
	if s.runs, err = store.RunCount(ctx); err != nil {
		return nil, err
	}
	if s.summary, err = store.LatestSummary(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.monthly, err = store.Monthly(ctx, sqlite.SourceHistory); err != nil {
		return nil, err
	}
	if s.forecasts, err = store.Forecasts(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ── Phase 6: SQLite store ──

func validateStore(a *artifacts) *phase {
	p := &phase{name: "Phase 6: SQLite store matches CSV"}
	s := a.store

	if !s.summary.GeneratedAt.Equal(a.summary.GeneratedAt) {
		p.errorf("latest stored run generated at %s, %s says %s",
			s.summary.GeneratedAt, csvfile.SummaryFile, a.summary.GeneratedAt)
	}

	if len(s.monthly) != len(a.months) {
		p.errorf("store has %d monthly rows, %s has %d", len(s.monthly), csvfile.MonthlyFile, len(a.months))
	}
	for _, m := range s.monthly {
		want, ok := a.monthly[m.Month]
		if !ok {
			p.errorf("store month %s missing from %s", m.Month, csvfile.MonthlyFile)
			continue
		}
		got := [3]float64{m.MeanTemp, m.MeanHighTemp, m.MeanLowTemp}
		for i, name := range []string{"mean_temp", "mean_high_temp", "mean_low_temp"} {
			if math.Abs(got[i]-want[i]) > 1e-9 {
				p.errorf("store month %s %s %.2f, csv %.2f", m.Month, name, got[i], want[i])
			}
		}
	}

	if len(s.forecasts) != len(a.forecasts) {
		p.errorf("store has %d forecasts, %s has %d", len(s.forecasts), csvfile.ForecastFile, len(a.forecasts))
		return p
	}
	for i, f := range s.forecasts {
		want := a.forecasts[i]
		if f.TargetMonth != want.month || math.Abs(f.PointEstimate-want.point) > 1e-9 {
			p.errorf("store forecast %s %.4f, csv line %d %s %.4f",
				f.TargetMonth, f.PointEstimate, want.line, want.month, want.point)
		}
	}
	return p
}
