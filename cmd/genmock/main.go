// Command genmock writes deterministic raw weather-history tables for
// fixtures and demos. The tables follow the scraped site's layout and can be
// fed straight into the ETL via RAW_HISTORY_PATH and RAW_ACTUALS_PATH.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/raw/weather_history.csv \
//	  -actuals-out data/raw/weather_actuals.csv \
//	  -start 2021-01 -months 48 -actual-months 6 -malformed-every 97
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the training raw table")
	actualsOut := flag.String("actuals-out", "", "optional output path for the actuals raw table")
	start := flag.String("start", "2022-01", "first month (YYYY-MM)")
	months := flag.Int("months", 36, "months of training history")
	actualMonths := flag.Int("actual-months", 6, "months in the actuals table")
	seed := flag.Int64("seed", 1, "random seed")
	malformedEvery := flag.Int("malformed-every", 0, "corrupt every Nth training row (0 disables)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	first, err := domain.ParseMonthKey(*start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	rows := mockdata.Generate(mockdata.Options{
		Start:          first.FirstDay(),
		Months:         *months,
		Seed:           *seed,
		MalformedEvery: *malformedEvery,
	})
	if err := csvfile.WriteRawRows(*out, rows); err != nil {
		return fmt.Errorf("writing training table: %w", err)
	}
	log.Printf("wrote %s: %d rows, %s to %s", *out, len(rows), first, first.AddMonths(*months-1))
	printStats(rows)

	if *actualsOut == "" {
		return nil
	}
	actualStart := first.AddMonths(*months)
	actuals := mockdata.Generate(mockdata.Options{
		Start:  actualStart.FirstDay(),
		Months: *actualMonths,
		Seed:   *seed + 1,
	})
	if err := csvfile.WriteRawRows(*actualsOut, actuals); err != nil {
		return fmt.Errorf("writing actuals table: %w", err)
	}
	log.Printf("wrote %s: %d rows, %s to %s", *actualsOut, len(actuals), actualStart, actualStart.AddMonths(*actualMonths-1))
	return nil
}

// printStats runs the normalizer over the generated rows so the expected
// drop counts are visible next to the fixture.
func printStats(rows []domain.RawRow) {
	norm := domain.Normalize(rows, domain.NormalizeOptions{})
	log.Printf("normalizer keeps %d of %d rows", len(norm.Observations), len(rows))

	dropped := norm.DroppedByReason()
	reasons := make([]string, 0, len(dropped))
	for r := range dropped {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		log.Printf("  dropped %-20s %d", r, dropped[domain.DropReason(r)])
	}
}
