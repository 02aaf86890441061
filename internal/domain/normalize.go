package domain

import (
	"slices"
	"time"
)

// DropReason names why a raw row was excluded from the observation set.
type DropReason string

const (
	DropDate          DropReason = "date"
	DropTemperature   DropReason = "temperature"
	DropSky           DropReason = "sky"
	DropDuplicateDate DropReason = "duplicate_date"
)

// NormalizeOptions controls policies the source data leaves open.
type NormalizeOptions struct {
	// SwapInvertedTemps reorders a pair whose first value is below the
	// second. Inverted pairs are counted either way; the mean is unaffected.
	SwapInvertedTemps bool
}

// Rejection records one dropped row.
type Rejection struct {
	Row      int
	DateText string
	Reason   DropReason
	Err      error
}

// Normalized is the output of Normalize.
type Normalized struct {
	Observations []DailyObservation
	Rejected     []Rejection
	Inverted     int
}

// DroppedByReason tallies rejections per reason.
func (n Normalized) DroppedByReason() map[DropReason]int {
	counts := make(map[DropReason]int, len(n.Rejected))
	for _, r := range n.Rejected {
		counts[r.Reason]++
	}
	return counts
}

// Normalize converts raw rows into date-ordered daily observations. A row is
// dropped when its date, temperature pair, or sky set fails to parse, or when
// its date repeats an earlier row. A missing wind level is kept as absent.
func Normalize(rows []RawRow, opts NormalizeOptions) Normalized {
	var out Normalized
	seen := make(map[time.Time]struct{}, len(rows))

	for i, row := range rows {
		obs, inverted, reason, err := normalizeRow(row, opts)
		if err != nil {
			out.Rejected = append(out.Rejected, Rejection{Row: i, DateText: row.DateText, Reason: reason, Err: err})
			continue
		}
		if _, dup := seen[obs.Date]; dup {
			out.Rejected = append(out.Rejected, Rejection{Row: i, DateText: row.DateText, Reason: DropDuplicateDate})
			continue
		}
		seen[obs.Date] = struct{}{}
		if inverted {
			out.Inverted++
		}
		out.Observations = append(out.Observations, obs)
	}

	slices.SortStableFunc(out.Observations, func(a, b DailyObservation) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

func normalizeRow(row RawRow, opts NormalizeOptions) (DailyObservation, bool, DropReason, error) {
	date, err := ParseDate(row.DateText)
	if err != nil {
		return DailyObservation{}, false, DropDate, err
	}

	high, low, err := ParseTemperature(row.TemperatureText)
	if err != nil {
		return DailyObservation{}, false, DropTemperature, err
	}

	sky := ParseSkyConditions(row.SkyText)
	if len(sky) == 0 {
		return DailyObservation{}, false, DropSky, parseErr("sky", row.SkyText, ErrEmptySky)
	}

	inverted := high < low
	if inverted && opts.SwapInvertedTemps {
		high, low = low, high
	}

	wind, _ := ParseWindLevel(row.WindText)

	return DailyObservation{
		Date:          date,
		HighTemp:      high,
		LowTemp:       low,
		MeanTemp:      (high + low) / 2,
		WindLevel:     wind,
		SkyConditions: sky,
	}, inverted, "", nil
}
