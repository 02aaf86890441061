// Package mockdata generates deterministic raw weather-history tables shaped
// like the scraped site output: localized dates, ℃ temperature pairs, wind
// text with embedded force tokens, and day/night sky labels.
package mockdata

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Options controls the generated table.
type Options struct {
	Start  time.Time // first day; defaults to 2022-01-01
	Months int       // defaults to 36
	Seed   int64

	// MalformedEvery replaces every Nth row with a defect the normalizer
	// must drop (bad temperature, bad date, empty sky, repeated date).
	// Zero disables defects.
	MalformedEvery int
}

var (
	directions = []string{"北风", "东北风", "东风", "东南风", "南风", "西南风", "西风", "西北风", "无持续风向"}
	levels     = []string{"1-2级", "3-4级", "3级", "4级", "4-5级", "5级", "6级"}
)

// Generate returns one raw row per calendar day of the requested span.
func Generate(opts Options) []domain.RawRow {
	if opts.Start.IsZero() {
		opts.Start = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.Months <= 0 {
		opts.Months = 36
	}
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // fixture data
	end := opts.Start.AddDate(0, opts.Months, 0)

	var rows []domain.RawRow
	for day := opts.Start; day.Before(end); day = day.AddDate(0, 0, 1) {
		rows = append(rows, row(rng, day))
	}

	if opts.MalformedEvery > 0 {
		kind := 0
		for i := opts.MalformedEvery - 1; i < len(rows); i += opts.MalformedEvery {
			corrupt(rows, i, kind)
			kind++
		}
	}
	return rows
}

func row(rng *rand.Rand, day time.Time) domain.RawRow {
	season := math.Sin(2 * math.Pi * float64(day.YearDay()-105) / 365.25)
	high := int(math.Round(18 + 14*season + rng.NormFloat64()*2.5))
	low := high - 6 - rng.Intn(5)

	wind := directions[rng.Intn(len(directions))]
	if rng.Intn(12) != 0 {
		wind += levels[rng.Intn(len(levels))]
	} else {
		wind += "微风"
	}

	return domain.RawRow{
		DateText:        day.Format("2006年01月02日"),
		SkyText:         sky(rng, season) + "/" + sky(rng, season),
		TemperatureText: fmt.Sprintf("%d℃/%d℃", high, low),
		WindText:        wind,
	}
}

func sky(rng *rand.Rand, season float64) string {
	switch r := rng.Float64(); {
	case r < 0.35:
		return "晴"
	case r < 0.6:
		return "多云"
	case r < 0.75:
		return "阴"
	case season > 0.5 && r < 0.9:
		return "雷阵雨"
	case season < -0.6 && r < 0.9:
		return "小雪"
	default:
		return "小雨"
	}
}

func corrupt(rows []domain.RawRow, i, kind int) {
	switch kind % 4 {
	case 0:
		rows[i].TemperatureText = "N/A"
	case 1:
		rows[i].DateText = "2022年13月45日"
	case 2:
		rows[i].SkyText = ""
	default:
		if i > 0 {
			rows[i].DateText = rows[i-1].DateText
		}
	}
}
