// Command validate performs integrity checks over the CSV artifacts written
// by the ETL: daily rows are consistent, monthly means recompute from the
// daily table, wind and sky counts fit inside each month, forecast bounds
// are ordered, and the run summary agrees with the tables. With -db, the
// SQLite sink's latest run is also checked against the CSV tables.
//
// Usage:
//
//	go run ./cmd/validate -dir data/out [-db data/weather.db]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Rounded means may differ from a recomputation by at most half a cent.
const tolerance = 0.005 + 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// artifacts holds the parsed output tables of one run.
type artifacts struct {
	daily     []dailyRow
	monthly   map[domain.MonthKey][3]float64
	months    []domain.MonthKey
	wind      []countRow
	sky       []countRow
	forecasts []forecastRow
	summary   domain.RunSummary
	store     *storeSnapshot
}

type dailyRow struct {
	line            int
	date            time.Time
	mean, high, low float64
}

type countRow struct {
	line  int
	month domain.MonthKey
	label string
	count int
}

type forecastRow struct {
	line                int
	month               domain.MonthKey
	point, lower, upper float64
	actual              *float64
}

func main() {
	dir := flag.String("dir", "", "ETL output directory")
	db := flag.String("db", "", "optional SQLite database written by the same run")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*dir, *db))
}

func run(dir, dbPath string) int {
	fmt.Println("=== Weather History Output Validation ===")
	fmt.Println()

	a, err := load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if dbPath != "" {
		if a.store, err = loadStore(context.Background(), dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		fmt.Printf("Store: %d runs in %s\n\n", a.store.runs, dbPath)
	}

	phases := validate(a)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d daily, %d monthly, %d wind, %d sky, %d forecast\n",
		len(a.daily), len(a.months), len(a.wind), len(a.sky), len(a.forecasts))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validate(a *artifacts) []*phase {
	phases := []*phase{
		validateDaily(a),
		validateMonthly(a),
		validateCounts(a),
		validateForecasts(a),
		validateSummary(a),
	}
	if a.store != nil {
		phases = append(phases, validateStore(a))
	}
	return phases
}

// ── Data loading ──

func load(dir string) (*artifacts, error) {
	a := &artifacts{monthly: map[domain.MonthKey][3]float64{}}

	records, err := readTable(dir, csvfile.DailyFile)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		line := i + 2
		if len(rec) < 4 {
			return nil, fmt.Errorf("%s line %d: short record", csvfile.DailyFile, line)
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvfile.DailyFile, line, err)
		}
		v, err := floats(rec[1:4])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvfile.DailyFile, line, err)
		}
		a.daily = append(a.daily, dailyRow{line: line, date: date, mean: v[0], high: v[1], low: v[2]})
	}

	if records, err = readTable(dir, csvfile.MonthlyFile); err != nil {
		return nil, err
	}
	for i, rec := range records {
		line := i + 2
		if len(rec) < 4 {
			return nil, fmt.Errorf("%s line %d: short record", csvfile.MonthlyFile, line)
		}
		month, err := domain.ParseMonthKey(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvfile.MonthlyFile, line, err)
		}
		v, err := floats(rec[1:4])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvfile.MonthlyFile, line, err)
		}
		a.months = append(a.months, month)
		a.monthly[month] = [3]float64{v[0], v[1], v[2]}
	}

	if a.wind, err = loadCounts(dir, csvfile.WindLevelFile); err != nil {
		return nil, err
	}
	if a.sky, err = loadCounts(dir, csvfile.SkyConditionFile); err != nil {
		return nil, err
	}

	if records, err = readTable(dir, csvfile.ForecastFile); err != nil {
		return nil, err
	}
	for i, rec := range records {
		line := i + 2
		if len(rec) < 5 {
			return nil, fmt.Errorf("%s line %d: short record", csvfile.ForecastFile, line)
		}
		month, err := domain.ParseMonthKey(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvfile.ForecastFile, line, err)
		}
		v, err := floats(rec[1:4])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvfile.ForecastFile, line, err)
		}
		row := forecastRow{line: line, month: month, point: v[0], lower: v[1], upper: v[2]}
		if rec[4] != "" {
			actual, err := strconv.ParseFloat(rec[4], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", csvfile.ForecastFile, line, err)
			}
			row.actual = &actual
		}
		a.forecasts = append(a.forecasts, row)
	}

	data, err := os.ReadFile(filepath.Join(dir, csvfile.SummaryFile))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &a.summary); err != nil {
		return nil, fmt.Errorf("%s: %w", csvfile.SummaryFile, err)
	}
	return a, nil
}

func readTable(dir, name string) ([][]string, error) {
	_, records, err := csvfile.ReadTable(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return records, nil
}

func loadCounts(dir, name string) ([]countRow, error) {
	records, err := readTable(dir, name)
	if err != nil {
		return nil, err
	}
	rows := make([]countRow, 0, len(records))
	for i, rec := range records {
		line := i + 2
		if len(rec) < 3 {
			return nil, fmt.Errorf("%s line %d: short record", name, line)
		}
		month, err := domain.ParseMonthKey(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		n, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		rows = append(rows, countRow{line: line, month: month, label: rec[1], count: n})
	}
	return rows, nil
}

func floats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ── Phase 1: daily observations ──

func validateDaily(a *artifacts) *phase {
	p := &phase{name: "Phase 1: Daily observations"}
	seen := make(map[time.Time]int, len(a.daily))
	for _, d := range a.daily {
		if prev, ok := seen[d.date]; ok {
			p.errorf("line %d: date %s repeats line %d", d.line, d.date.Format("2006-01-02"), prev)
		}
		seen[d.date] = d.line
		if math.Abs(d.mean-(d.high+d.low)/2) > 1e-9 {
			p.errorf("line %d: mean %v is not the midpoint of %v and %v", d.line, d.mean, d.high, d.low)
		}
	}
	return p
}

// ── Phase 2: monthly recompute ──

func validateMonthly(a *artifacts) *phase {
	p := &phase{name: "Phase 2: Monthly means recompute"}

	groups := map[domain.MonthKey][3][]float64{}
	for _, d := range a.daily {
		m := domain.MonthOf(d.date)
		g := groups[m]
		g[0] = append(g[0], d.mean)
		g[1] = append(g[1], d.high)
		g[2] = append(g[2], d.low)
		groups[m] = g
	}

	if len(groups) != len(a.monthly) {
		p.errorf("daily table covers %d months, monthly table has %d", len(groups), len(a.monthly))
	}
	names := [3]string{"mean_temp", "mean_high_temp", "mean_low_temp"}
	for i, m := range a.months {
		if i > 0 && !a.months[i-1].Before(m) {
			p.errorf("month %s out of order", m)
		}
		g, ok := groups[m]
		if !ok {
			p.errorf("month %s has no daily rows", m)
			continue
		}
		got := a.monthly[m]
		for j := range names {
			want := domain.Round2(stat.Mean(g[j], nil))
			if math.Abs(got[j]-want) > tolerance {
				p.errorf("month %s %s: table %v, recomputed %v", m, names[j], got[j], want)
			}
		}
	}
	return p
}

// ── Phase 3: wind and sky counts ──

func validateCounts(a *artifacts) *phase {
	p := &phase{name: "Phase 3: Wind and sky day counts"}

	days := map[domain.MonthKey]int{}
	for _, d := range a.daily {
		days[domain.MonthOf(d.date)]++
	}

	windTotal := map[domain.MonthKey]int{}
	for _, c := range a.wind {
		if c.count <= 0 || c.count > days[c.month] {
			p.errorf("%s line %d: %s %s count %d outside 1..%d", csvfile.WindLevelFile, c.line, c.month, c.label, c.count, days[c.month])
		}
		windTotal[c.month] += c.count
	}
	for m, n := range windTotal {
		if n > days[m] {
			p.errorf("%s: month %s wind counts sum to %d over %d days", csvfile.WindLevelFile, m, n, days[m])
		}
	}

	// Each day carries at least one distinct sky label.
	skyTotal := map[domain.MonthKey]int{}
	for _, c := range a.sky {
		if c.count <= 0 || c.count > days[c.month] {
			p.errorf("%s line %d: %s %s count %d outside 1..%d", csvfile.SkyConditionFile, c.line, c.month, c.label, c.count, days[c.month])
		}
		skyTotal[c.month] += c.count
	}
	for m, n := range days {
		if skyTotal[m] < n {
			p.errorf("%s: month %s sky counts sum to %d, want at least %d", csvfile.SkyConditionFile, m, skyTotal[m], n)
		}
	}
	return p
}

// ── Phase 4: forecasts ──

func validateForecasts(a *artifacts) *phase {
	p := &phase{name: "Phase 4: Forecast bounds"}
	for i, f := range a.forecasts {
		if f.lower > f.point || f.point > f.upper {
			p.errorf("line %d: %s bounds not ordered: %v <= %v <= %v", f.line, f.month, f.lower, f.point, f.upper)
		}
		if i > 0 && f.month != a.forecasts[i-1].month.AddMonths(1) {
			p.errorf("line %d: %s does not follow %s", f.line, f.month, a.forecasts[i-1].month)
		}
		if i == 0 && len(a.months) > 0 && !a.summary.TrainEnd.IsZero() && f.month != a.summary.TrainEnd.AddMonths(1) {
			p.errorf("line %d: first forecast %s does not follow training end %s", f.line, f.month, a.summary.TrainEnd)
		}
	}
	return p
}

// ── Phase 5: run summary ──

func validateSummary(a *artifacts) *phase {
	p := &phase{name: "Phase 5: Run summary consistency"}
	s := a.summary

	if s.RowsKept != len(a.daily) {
		p.errorf("rows_kept %d, daily table has %d rows", s.RowsKept, len(a.daily))
	}
	dropped := 0
	for _, n := range s.RowsDropped {
		dropped += n
	}
	if s.RowsRead != s.RowsKept+dropped {
		p.errorf("rows_read %d != rows_kept %d + dropped %d", s.RowsRead, s.RowsKept, dropped)
	}
	if s.Months != len(a.months) {
		p.errorf("months %d, monthly table has %d rows", s.Months, len(a.months))
	}
	if s.Horizon != len(a.forecasts) {
		p.errorf("horizon %d, forecast table has %d rows", s.Horizon, len(a.forecasts))
	}
	compared := 0
	for _, f := range a.forecasts {
		if f.actual != nil {
			compared++
		}
	}
	if s.Accuracy.Compared != compared {
		p.errorf("accuracy compared %d, forecast table has %d actuals", s.Accuracy.Compared, compared)
	}
	return p
}
