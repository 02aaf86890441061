package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-history-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/mockdata"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
)

type rowSource struct{ opts mockdata.Options }

func (s rowSource) ReadRows(_ context.Context) ([]domain.RawRow, error) {
	return mockdata.Generate(s.opts), nil
}

func writeRun(t *testing.T, extra ...pipeline.ResultSink) string {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)
	p := pipeline.New(
		rowSource{mockdata.Options{Months: 36, Seed: 5, MalformedEvery: 40}},
		rowSource{mockdata.Options{Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), Months: 2, Seed: 6}},
		append([]pipeline.ResultSink{csvfile.NewWriter(dir, logger)}, extra...),
		pipeline.DefaultOptions(), logger, observability.NewMetricsForTesting(),
	)
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	return dir
}

func writeStoredRun(t *testing.T) (dir, dbPath string) {
	t.Helper()
	dbPath = filepath.Join(t.TempDir(), "weather.db")
	store, err := sqlite.Open(context.Background(), dbPath, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	dir = writeRun(t, store)
	require.NoError(t, store.Close())
	return dir, dbPath
}

func TestValidate_PipelineOutputPasses(t *testing.T) {
	a, err := load(writeRun(t))
	require.NoError(t, err)

	for _, p := range validate(a) {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
	assert.Equal(t, 0, run(writeRun(t), ""))
}

func TestValidate_StoreMatchesCSV(t *testing.T) {
	dir, dbPath := writeStoredRun(t)

	a, err := load(dir)
	require.NoError(t, err)
	a.store, err = loadStore(context.Background(), dbPath)
	require.NoError(t, err)
	assert.Equal(t, 1, a.store.runs)

	phases := validate(a)
	require.Len(t, phases, 6)
	for _, p := range phases {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
	assert.Equal(t, 0, run(dir, dbPath))
}

func TestValidate_StoreFromAnotherRun(t *testing.T) {
	_, dbPath := writeStoredRun(t)
	dir := writeRun(t)

	a, err := load(dir)
	require.NoError(t, err)
	a.store, err = loadStore(context.Background(), dbPath)
	require.NoError(t, err)

	p := validateStore(a)
	require.False(t, p.passed())
	assert.Contains(t, p.errors[0], "generated at")
}

func TestValidate_DetectsTamperedMonthlyMean(t *testing.T) {
	dir := writeRun(t)
	path := filepath.Join(dir, csvfile.MonthlyFile)
	header, records, err := csvfile.ReadTable(path)
	require.NoError(t, err)
	records[0][2] = "99"
	require.NoError(t, csvfile.WriteTable(path, header, records))

	a, err := load(dir)
	require.NoError(t, err)
	phases := validate(a)
	assert.False(t, phases[1].passed())
	assert.Contains(t, phases[1].errors[0], "mean_high_temp")
	assert.True(t, phases[0].passed())
}

func TestValidateCounts_SkyTotals(t *testing.T) {
	march := domain.MonthKey{Year: 2024, Month: time.March}
	a := &artifacts{
		daily: []dailyRow{
			{line: 2, date: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
			{line: 3, date: time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)},
		},
	}

	t.Run("three labels a day pass", func(t *testing.T) {
		a.sky = []countRow{
			{line: 2, month: march, label: "多云", count: 2},
			{line: 3, month: march, label: "晴", count: 2},
			{line: 4, month: march, label: "阴", count: 2},
		}
		p := validateCounts(a)
		assert.True(t, p.passed(), "%v", p.errors)
	})

	t.Run("day without a label fails", func(t *testing.T) {
		a.sky = []countRow{{line: 2, month: march, label: "晴", count: 1}}
		p := validateCounts(a)
		require.False(t, p.passed())
		assert.Contains(t, p.errors[0], "want at least 2")
	})
}

func TestValidate_DetectsUnorderedBounds(t *testing.T) {
	a := &artifacts{forecasts: []forecastRow{{line: 2, point: 5, lower: 6, upper: 7}}}
	p := validateForecasts(a)
	assert.False(t, p.passed())
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
	assert.Equal(t, 1, run(filepath.Join(t.TempDir(), "absent"), ""))
}
