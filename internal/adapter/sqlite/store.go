// Package sqlite persists pipeline results in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// ErrNoRuns is returned by LatestSummary before the first Save.
var ErrNoRuns = errors.New("no runs stored")

// Monthly aggregate sources.
const (
	SourceHistory = "history"
	SourceActuals = "actuals"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_observations (
	date           TEXT PRIMARY KEY,
	high_temp      REAL NOT NULL,
	low_temp       REAL NOT NULL,
	mean_temp      REAL NOT NULL,
	wind_level     TEXT,
	sky_conditions TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS monthly_aggregates (
	source         TEXT NOT NULL,
	month          TEXT NOT NULL,
	mean_temp      REAL NOT NULL,
	mean_high_temp REAL NOT NULL,
	mean_low_temp  REAL NOT NULL,
	days           INTEGER NOT NULL,
	PRIMARY KEY (source, month)
);
CREATE TABLE IF NOT EXISTS wind_level_days (
	month      TEXT NOT NULL,
	wind_level TEXT NOT NULL,
	day_count  INTEGER NOT NULL,
	PRIMARY KEY (month, wind_level)
);
CREATE TABLE IF NOT EXISTS sky_condition_days (
	month         TEXT NOT NULL,
	sky_condition TEXT NOT NULL,
	day_count     INTEGER NOT NULL,
	PRIMARY KEY (month, sky_condition)
);
CREATE TABLE IF NOT EXISTS forecasts (
	month          TEXT PRIMARY KEY,
	point_estimate REAL NOT NULL,
	lower_bound    REAL NOT NULL,
	upper_bound    REAL NOT NULL,
	actual         REAL
);
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	generated_at TEXT NOT NULL,
	summary      TEXT NOT NULL
);
`

// Store is a SQLite-backed result store.
// It implements pipeline.ResultSink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Writes are serialized by the pipeline, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save writes a run in a single transaction. Daily and monthly rows are
// upserted by key; count and forecast tables are replaced, since each run
// recomputes them from the full input.
func (s *Store) Save(ctx context.Context, result *domain.RunResult) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck // original error wins
		}
	}()

	steps := []func(context.Context, *sql.Tx, *domain.RunResult) error{
		saveDaily,
		saveMonthly,
		saveCounts,
		saveForecasts,
		saveRun,
	}
	for _, step := range steps {
		if err = step(ctx, tx, result); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("results stored",
		"daily", len(result.Daily),
		"months", len(result.Aggregates.Monthly),
		"forecasts", len(result.Forecasts),
	)
	return nil
}

func saveDaily(ctx context.Context, tx *sql.Tx, result *domain.RunResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_observations (date, high_temp, low_temp, mean_temp, wind_level, sky_conditions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			high_temp = excluded.high_temp,
			low_temp = excluded.low_temp,
			mean_temp = excluded.mean_temp,
			wind_level = excluded.wind_level,
			sky_conditions = excluded.sky_conditions`)
	if err != nil {
		return fmt.Errorf("prepare daily: %w", err)
	}
	defer stmt.Close()

	for _, d := range result.Daily {
		var wind sql.NullString
		if d.HasWindLevel() {
			wind = sql.NullString{String: d.WindLevel, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			d.Date.Format(time.DateOnly), d.HighTemp, d.LowTemp, d.MeanTemp, wind, strings.Join(d.SkyConditions, "/"),
		); err != nil {
			return fmt.Errorf("upsert daily %s: %w", d.Date.Format(time.DateOnly), err)
		}
	}
	return nil
}

func saveMonthly(ctx context.Context, tx *sql.Tx, result *domain.RunResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monthly_aggregates (source, month, mean_temp, mean_high_temp, mean_low_temp, days)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, month) DO UPDATE SET
			mean_temp = excluded.mean_temp,
			mean_high_temp = excluded.mean_high_temp,
			mean_low_temp = excluded.mean_low_temp,
			days = excluded.days`)
	if err != nil {
		return fmt.Errorf("prepare monthly: %w", err)
	}
	defer stmt.Close()

	sets := []struct {
		source  string
		monthly []domain.MonthlyAggregate
	}{
		{SourceHistory, result.Aggregates.Monthly},
		{SourceActuals, result.ActualMonthly},
	}
	for _, set := range sets {
		for _, m := range set.monthly {
			if _, err := stmt.ExecContext(ctx,
				set.source, m.Month.String(), m.MeanTemp, m.MeanHighTemp, m.MeanLowTemp, m.Days,
			); err != nil {
				return fmt.Errorf("upsert monthly %s %s: %w", set.source, m.Month, err)
			}
		}
	}
	return nil
}

func saveCounts(ctx context.Context, tx *sql.Tx, result *domain.RunResult) error {
	for _, table := range []string{"wind_level_days", "sky_condition_days"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, w := range result.Aggregates.WindLevels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wind_level_days (month, wind_level, day_count) VALUES (?, ?, ?)`,
			w.Month.String(), w.WindLevel, w.DayCount,
		); err != nil {
			return fmt.Errorf("insert wind count: %w", err)
		}
	}
	for _, c := range result.Aggregates.SkyConditions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sky_condition_days (month, sky_condition, day_count) VALUES (?, ?, ?)`,
			c.Month.String(), c.SkyCondition, c.DayCount,
		); err != nil {
			return fmt.Errorf("insert sky count: %w", err)
		}
	}
	return nil
}

func saveForecasts(ctx context.Context, tx *sql.Tx, result *domain.RunResult) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM forecasts"); err != nil {
		return fmt.Errorf("clear forecasts: %w", err)
	}
	for _, f := range result.Forecasts {
		var actual sql.NullFloat64
		if f.Actual != nil {
			actual = sql.NullFloat64{Float64: *f.Actual, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO forecasts (month, point_estimate, lower_bound, upper_bound, actual) VALUES (?, ?, ?, ?, ?)`,
			f.TargetMonth.String(), f.PointEstimate, f.LowerBound, f.UpperBound, actual,
		); err != nil {
			return fmt.Errorf("insert forecast %s: %w", f.TargetMonth, err)
		}
	}
	return nil
}

func saveRun(ctx context.Context, tx *sql.Tx, result *domain.RunResult) error {
	data, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (generated_at, summary) VALUES (?, ?)`,
		result.Summary.GeneratedAt.UTC().Format(time.RFC3339), string(data),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Monthly returns the stored aggregates for source in month order.
func (s *Store) Monthly(ctx context.Context, source string) ([]domain.MonthlyAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, mean_temp, mean_high_temp, mean_low_temp, days
		FROM monthly_aggregates WHERE source = ? ORDER BY month`, source)
	if err != nil {
		return nil, fmt.Errorf("query monthly: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthlyAggregate
	for rows.Next() {
		var (
			m     domain.MonthlyAggregate
			month string
		)
		if err := rows.Scan(&month, &m.MeanTemp, &m.MeanHighTemp, &m.MeanLowTemp, &m.Days); err != nil {
			return nil, fmt.Errorf("scan monthly: %w", err)
		}
		if m.Month, err = domain.ParseMonthKey(month); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Forecasts returns the forecasts of the last saved run in month order.
func (s *Store) Forecasts(ctx context.Context) ([]domain.ForecastResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, point_estimate, lower_bound, upper_bound, actual
		FROM forecasts ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []domain.ForecastResult
	for rows.Next() {
		var (
			f      domain.ForecastResult
			month  string
			actual sql.NullFloat64
		)
		if err := rows.Scan(&month, &f.PointEstimate, &f.LowerBound, &f.UpperBound, &actual); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		if f.TargetMonth, err = domain.ParseMonthKey(month); err != nil {
			return nil, err
		}
		if actual.Valid {
			v := actual.Float64
			f.Actual = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestSummary returns the summary of the most recently saved run.
func (s *Store) LatestSummary(ctx context.Context) (domain.RunSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM runs ORDER BY id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunSummary{}, ErrNoRuns
	}
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("query latest run: %w", err)
	}

	var summary domain.RunSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return domain.RunSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	return summary, nil
}

// RunCount returns how many runs have been stored.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
