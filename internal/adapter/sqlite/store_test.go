package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

var (
	jan = domain.MonthKey{Year: 2025, Month: time.January}
	feb = domain.MonthKey{Year: 2025, Month: time.February}
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(generated time.Time, point float64) *domain.RunResult {
	actual := 3.5
	return &domain.RunResult{
		Summary: domain.RunSummary{GeneratedAt: generated, RowsRead: 2, RowsKept: 2, RowsDropped: map[string]int{"sky": 1}, Months: 1},
		Daily: []domain.DailyObservation{
			{Date: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), HighTemp: 4, LowTemp: -2, MeanTemp: 1, WindLevel: "3级", SkyConditions: []string{"多云", "晴"}},
			{Date: time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC), HighTemp: 5, LowTemp: -1, MeanTemp: 2, SkyConditions: []string{"晴"}},
		},
		Aggregates: domain.Aggregates{
			Monthly:       []domain.MonthlyAggregate{{Month: jan.AddMonths(-1), MeanTemp: 1.5, MeanHighTemp: 4.5, MeanLowTemp: -1.5, Days: 2}},
			WindLevels:    []domain.WindLevelDayCount{{Month: jan.AddMonths(-1), WindLevel: "3级", DayCount: 1}},
			SkyConditions: []domain.SkyConditionDayCount{{Month: jan.AddMonths(-1), SkyCondition: "晴", DayCount: 2}},
		},
		ActualMonthly: []domain.MonthlyAggregate{{Month: jan, MeanTemp: 0.5, MeanHighTemp: 3.5, MeanLowTemp: -2.5, Days: 31}},
		Forecasts: []domain.ForecastResult{
			{TargetMonth: jan, PointEstimate: point, LowerBound: point - 2, UpperBound: point + 2, Actual: &actual},
			{TargetMonth: feb, PointEstimate: point + 1, LowerBound: point - 2, UpperBound: point + 4},
		},
	}
}

func TestStore_SaveAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	generated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleResult(generated, 4)))

	history, err := s.Monthly(ctx, SourceHistory)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-12", history[0].Month.String())
	assert.Equal(t, 2, history[0].Days)

	actuals, err := s.Monthly(ctx, SourceActuals)
	require.NoError(t, err)
	require.Len(t, actuals, 1)
	assert.Equal(t, 3.5, actuals[0].MeanHighTemp)

	forecasts, err := s.Forecasts(ctx)
	require.NoError(t, err)
	want := sampleResult(generated, 4).Forecasts
	if diff := cmp.Diff(want, forecasts); diff != "" {
		t.Fatalf("forecasts mismatch (-want +got):\n%s", diff)
	}

	summary, err := s.LatestSummary(ctx)
	require.NoError(t, err)
	assert.True(t, generated.Equal(summary.GeneratedAt))
	assert.Equal(t, 1, summary.RowsDropped["sky"])

	var wind sql.NullString
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT wind_level FROM daily_observations WHERE date = '2024-12-02'`).Scan(&wind))
	assert.False(t, wind.Valid, "absent wind level is stored as NULL")

	var sky string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT sky_conditions FROM daily_observations WHERE date = '2024-12-01'`).Scan(&sky))
	assert.Equal(t, "多云/晴", sky)
}

func TestStore_SaveTwiceReplacesDerivedRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Save(ctx, sampleResult(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 4)))
	second := sampleResult(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), 6)
	second.Forecasts = second.Forecasts[:1]
	require.NoError(t, s.Save(ctx, second))

	forecasts, err := s.Forecasts(ctx)
	require.NoError(t, err)
	require.Len(t, forecasts, 1)
	assert.Equal(t, 6.0, forecasts[0].PointEstimate)

	history, err := s.Monthly(ctx, SourceHistory)
	require.NoError(t, err)
	assert.Len(t, history, 1, "monthly rows upsert by key")

	n, err := s.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	summary, err := s.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.GeneratedAt.Day())
}

func TestStore_LatestSummaryEmpty(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestSummary(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestStore_ReadinessAndName(t *testing.T) {
	s := openTestStore(t)
	assert.Equal(t, "sqlite", s.Name())
	assert.NoError(t, s.CheckReadiness(context.Background()))
}
