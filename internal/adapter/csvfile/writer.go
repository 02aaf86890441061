package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Output file names.
const (
	DailyFile           = "daily_avg_temp.csv"
	MonthlyFile         = "monthly_avg_temp.csv"
	ActualMonthlyFile   = "actual_monthly_avg_temp.csv"
	WindLevelFile       = "monthly_wind_level_days.csv"
	SkyConditionFile    = "monthly_weather_days.csv"
	ForecastFile        = "forecast.csv"
	SeasonalProfileFile = "seasonal_profile.csv"
	WindClimatologyFile = "wind_climatology.csv"
	SkyClimatologyFile  = "sky_climatology.csv"
	SummaryFile         = "run_summary.json"
)

const (
	dateLayout = "2006-01-02"
	filePerm   = 0o644
	dirPerm    = 0o755
)

// Writer saves a run's artifacts under one directory.
// It implements pipeline.ResultSink.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer for dir. The directory is created on save.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

func (w *Writer) Name() string { return "csv" }

// Save writes every artifact, replacing earlier files of the same name.
func (w *Writer) Save(ctx context.Context, result *domain.RunResult) error {
	if err := os.MkdirAll(w.dir, dirPerm); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tables := []table{
		{DailyFile, []string{"date", "mean_temp", "high_temp", "low_temp"}, dailyRows(result.Daily)},
		{MonthlyFile, monthlyHeader, monthlyRows(result.Aggregates.Monthly)},
		{WindLevelFile, []string{"month", "wind_level", "day_count"}, windRows(result.Aggregates.WindLevels)},
		{SkyConditionFile, []string{"month", "sky_condition", "day_count"}, skyRows(result.Aggregates.SkyConditions)},
		{ForecastFile, []string{"month", "point_estimate", "lower_bound", "upper_bound", "actual"}, forecastRows(result.Forecasts)},
		{SeasonalProfileFile, []string{"month", "mean_high_temp", "mean_low_temp", "years"}, seasonalRows(result.Climatology.Seasonal)},
		{WindClimatologyFile, []string{"month", "wind_level", "mean_days"}, windNormRows(result.Climatology.WindLevels)},
		{SkyClimatologyFile, []string{"month", "sky_condition", "mean_days"}, skyNormRows(result.Climatology.SkyConditions)},
	}
	if len(result.ActualMonthly) > 0 {
		tables = append(tables, table{ActualMonthlyFile, monthlyHeader, monthlyRows(result.ActualMonthly)})
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := WriteTable(filepath.Join(w.dir, t.name), t.header, t.rows); err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
	}

	summary, err := json.MarshalIndent(result.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, SummaryFile), append(summary, '\n'), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", SummaryFile, err)
	}

	w.logger.Info("csv artifacts written", "dir", w.dir, "files", len(tables)+1)
	return nil
}

// WriteRawRows writes a raw observation table with the site's header.
func WriteRawRows(path string, rows []domain.RawRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.DateText, r.SkyText, r.TemperatureText, r.WindText}
	}
	return WriteTable(path, RawHeader, records)
}

// WriteTable writes a BOM-prefixed UTF-8 CSV file.
func WriteTable(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(enc)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return enc.Close()
}

type table struct {
	name   string
	header []string
	rows   [][]string
}

var monthlyHeader = []string{"month", "mean_temp", "mean_high_temp", "mean_low_temp"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func dailyRows(daily []domain.DailyObservation) [][]string {
	rows := make([][]string, len(daily))
	for i, d := range daily {
		rows[i] = []string{d.Date.Format(dateLayout), formatFloat(d.MeanTemp), formatFloat(d.HighTemp), formatFloat(d.LowTemp)}
	}
	return rows
}

func monthlyRows(monthly []domain.MonthlyAggregate) [][]string {
	rows := make([][]string, len(monthly))
	for i, m := range monthly {
		rows[i] = []string{m.Month.String(), formatFloat(m.MeanTemp), formatFloat(m.MeanHighTemp), formatFloat(m.MeanLowTemp)}
	}
	return rows
}

func windRows(counts []domain.WindLevelDayCount) [][]string {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Month.String(), c.WindLevel, strconv.Itoa(c.DayCount)}
	}
	return rows
}

func skyRows(counts []domain.SkyConditionDayCount) [][]string {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Month.String(), c.SkyCondition, strconv.Itoa(c.DayCount)}
	}
	return rows
}

func forecastRows(results []domain.ForecastResult) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		actual := ""
		if r.Actual != nil {
			actual = formatFloat(*r.Actual)
		}
		rows[i] = []string{
			r.TargetMonth.String(),
			formatFloat(r.PointEstimate),
			formatFloat(r.LowerBound),
			formatFloat(r.UpperBound),
			actual,
		}
	}
	return rows
}

func seasonalRows(norms []domain.SeasonalNorm) [][]string {
	rows := make([][]string, len(norms))
	for i, n := range norms {
		rows[i] = []string{strconv.Itoa(int(n.Month)), formatFloat(n.MeanHighTemp), formatFloat(n.MeanLowTemp), strconv.Itoa(n.Years)}
	}
	return rows
}

func windNormRows(norms []domain.WindLevelNorm) [][]string {
	rows := make([][]string, len(norms))
	for i, n := range norms {
		rows[i] = []string{strconv.Itoa(int(n.Month)), n.WindLevel, formatFloat(n.MeanDays)}
	}
	return rows
}

func skyNormRows(norms []domain.SkyConditionNorm) [][]string {
	rows := make([][]string, len(norms))
	for i, n := range norms {
		rows[i] = []string{strconv.Itoa(int(n.Month)), n.SkyCondition, formatFloat(n.MeanDays)}
	}
	return rows
}
