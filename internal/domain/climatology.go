package domain

import (
	"cmp"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SeasonalNorm is the multi-year average of one calendar month's monthly means.
type SeasonalNorm struct {
	Month        time.Month `json:"month"`
	MeanHighTemp float64    `json:"mean_high_temp"`
	MeanLowTemp  float64    `json:"mean_low_temp"`
	Years        int        `json:"years"`
}

// WindLevelNorm is the average number of days a wind level occurs in a
// calendar month, over the months in which it occurred at all.
type WindLevelNorm struct {
	Month     time.Month `json:"month"`
	WindLevel string     `json:"wind_level"`
	MeanDays  float64    `json:"mean_days"`
}

// SkyConditionNorm is the average number of days per year a sky label
// occurs in a calendar month.
type SkyConditionNorm struct {
	Month        time.Month `json:"month"`
	SkyCondition string     `json:"sky_condition"`
	MeanDays     float64    `json:"mean_days"`
}

// Climatology folds several years of monthly rollups onto the twelve
// calendar months.
type Climatology struct {
	Seasonal      []SeasonalNorm     `json:"seasonal"`
	WindLevels    []WindLevelNorm    `json:"wind_levels"`
	SkyConditions []SkyConditionNorm `json:"sky_conditions"`
}

// BuildClimatology derives all three calendar-month views from one set of aggregates.
func BuildClimatology(agg Aggregates) Climatology {
	return Climatology{
		Seasonal:      SeasonalProfile(agg.Monthly),
		WindLevels:    WindClimatology(agg.WindLevels),
		SkyConditions: SkyClimatology(agg.SkyConditions),
	}
}

// SeasonalProfile averages the monthly high and low means per calendar month.
func SeasonalProfile(monthly []MonthlyAggregate) []SeasonalNorm {
	highs := make(map[time.Month][]float64)
	lows := make(map[time.Month][]float64)
	for _, m := range monthly {
		highs[m.Month.Month] = append(highs[m.Month.Month], m.MeanHighTemp)
		lows[m.Month.Month] = append(lows[m.Month.Month], m.MeanLowTemp)
	}

	out := make([]SeasonalNorm, 0, len(highs))
	for month := time.January; month <= time.December; month++ {
		h, ok := highs[month]
		if !ok {
			continue
		}
		out = append(out, SeasonalNorm{
			Month:        month,
			MeanHighTemp: Round2(stat.Mean(h, nil)),
			MeanLowTemp:  Round2(stat.Mean(lows[month], nil)),
			Years:        len(h),
		})
	}
	return out
}

type calendarLabel struct {
	month time.Month
	label string
}

// WindClimatology averages wind-level day counts per calendar month. Levels
// are ordered by their numeric lower bound within each month.
func WindClimatology(counts []WindLevelDayCount) []WindLevelNorm {
	days := make(map[calendarLabel][]float64)
	for _, c := range counts {
		k := calendarLabel{c.Month.Month, c.WindLevel}
		days[k] = append(days[k], float64(c.DayCount))
	}

	out := make([]WindLevelNorm, 0, len(days))
	for k, d := range days {
		out = append(out, WindLevelNorm{Month: k.month, WindLevel: k.label, MeanDays: Round2(stat.Mean(d, nil))})
	}
	slices.SortFunc(out, func(a, b WindLevelNorm) int {
		return cmp.Or(
			cmp.Compare(a.Month, b.Month),
			cmp.Compare(WindLevelRank(a.WindLevel), WindLevelRank(b.WindLevel)),
			cmp.Compare(a.WindLevel, b.WindLevel),
		)
	})
	return out
}

// SkyClimatology divides each calendar month's total label count by the
// number of distinct years present in the counts. Within a month, labels
// are ordered by descending frequency.
func SkyClimatology(counts []SkyConditionDayCount) []SkyConditionNorm {
	years := make(map[int]struct{})
	totals := make(map[calendarLabel]int)
	for _, c := range counts {
		years[c.Month.Year] = struct{}{}
		totals[calendarLabel{c.Month.Month, c.SkyCondition}] += c.DayCount
	}
	if len(years) == 0 {
		return nil
	}

	out := make([]SkyConditionNorm, 0, len(totals))
	for k, total := range totals {
		if total == 0 {
			continue
		}
		out = append(out, SkyConditionNorm{
			Month:        k.month,
			SkyCondition: k.label,
			MeanDays:     Round2(float64(total) / float64(len(years))),
		})
	}
	slices.SortFunc(out, func(a, b SkyConditionNorm) int {
		return cmp.Or(
			cmp.Compare(a.Month, b.Month),
			cmp.Compare(b.MeanDays, a.MeanDays),
			cmp.Compare(a.SkyCondition, b.SkyCondition),
		)
	})
	return out
}
