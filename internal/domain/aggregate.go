package domain

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

type monthGroup struct {
	means, highs, lows []float64
}

type labelKey struct {
	month MonthKey
	label string
}

// Aggregate rolls daily observations up into monthly means and day counts.
// Each mean is rounded to two decimals independently, after averaging.
// Observations without a wind level count under no level. Every distinct sky
// label of a day adds one to that label's count for the month.
func Aggregate(observations []DailyObservation) Aggregates {
	groups := make(map[MonthKey]*monthGroup)
	wind := make(map[labelKey]int)
	sky := make(map[labelKey]int)

	for _, obs := range observations {
		month := obs.Month()
		g, ok := groups[month]
		if !ok {
			g = &monthGroup{}
			groups[month] = g
		}
		g.means = append(g.means, obs.MeanTemp)
		g.highs = append(g.highs, obs.HighTemp)
		g.lows = append(g.lows, obs.LowTemp)

		if obs.HasWindLevel() {
			wind[labelKey{month, obs.WindLevel}]++
		}
		for _, label := range obs.SkyConditions {
			sky[labelKey{month, label}]++
		}
	}

	out := Aggregates{
		Monthly:       make([]MonthlyAggregate, 0, len(groups)),
		WindLevels:    make([]WindLevelDayCount, 0, len(wind)),
		SkyConditions: make([]SkyConditionDayCount, 0, len(sky)),
	}
	for month, g := range groups {
		out.Monthly = append(out.Monthly, MonthlyAggregate{
			Month:        month,
			MeanTemp:     Round2(stat.Mean(g.means, nil)),
			MeanHighTemp: Round2(stat.Mean(g.highs, nil)),
			MeanLowTemp:  Round2(stat.Mean(g.lows, nil)),
			Days:         len(g.means),
		})
	}
	for k, n := range wind {
		out.WindLevels = append(out.WindLevels, WindLevelDayCount{Month: k.month, WindLevel: k.label, DayCount: n})
	}
	for k, n := range sky {
		out.SkyConditions = append(out.SkyConditions, SkyConditionDayCount{Month: k.month, SkyCondition: k.label, DayCount: n})
	}

	slices.SortFunc(out.Monthly, func(a, b MonthlyAggregate) int {
		return a.Month.Compare(b.Month)
	})
	slices.SortFunc(out.WindLevels, func(a, b WindLevelDayCount) int {
		return cmp.Or(a.Month.Compare(b.Month), cmp.Compare(a.WindLevel, b.WindLevel))
	})
	slices.SortFunc(out.SkyConditions, func(a, b SkyConditionDayCount) int {
		return cmp.Or(a.Month.Compare(b.Month), cmp.Compare(a.SkyCondition, b.SkyCondition))
	})
	return out
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
