package domain

import "time"

// RawRow is one scraped table row with every column still as text.
type RawRow struct {
	DateText        string `json:"date_text"`
	SkyText         string `json:"sky_text"`
	TemperatureText string `json:"temperature_text"`
	WindText        string `json:"wind_text"`
}

// DailyObservation is the typed form of a RawRow that passed every mandatory
// field parser. Date is unique within a normalized set.
type DailyObservation struct {
	Date     time.Time `json:"date"`
	HighTemp float64   `json:"high_temp"`
	LowTemp  float64   `json:"low_temp"`
	MeanTemp float64   `json:"mean_temp"`

	// WindLevel is empty when the wind column carried no force token.
	WindLevel string `json:"wind_level,omitempty"`

	// SkyConditions holds one or more distinct labels in ascending order.
	SkyConditions []string `json:"sky_conditions"`
}

// Month returns the calendar month the observation belongs to.
func (o DailyObservation) Month() MonthKey {
	return MonthOf(o.Date)
}

// HasWindLevel reports whether the wind column yielded a force token.
func (o DailyObservation) HasWindLevel() bool {
	return o.WindLevel != ""
}

// MonthlyAggregate holds the mean temperatures of one calendar month,
// each rounded to two decimals.
type MonthlyAggregate struct {
	Month        MonthKey `json:"month"`
	MeanTemp     float64  `json:"mean_temp"`
	MeanHighTemp float64  `json:"mean_high_temp"`
	MeanLowTemp  float64  `json:"mean_low_temp"`
	Days         int      `json:"days"`
}

// WindLevelDayCount is the number of days in a month reporting a wind level.
type WindLevelDayCount struct {
	Month     MonthKey `json:"month"`
	WindLevel string   `json:"wind_level"`
	DayCount  int      `json:"day_count"`
}

// SkyConditionDayCount is the number of days in a month on which a sky label
// appeared, by day or by night.
type SkyConditionDayCount struct {
	Month        MonthKey `json:"month"`
	SkyCondition string   `json:"sky_condition"`
	DayCount     int      `json:"day_count"`
}

// Aggregates bundles the three monthly rollups of one observation set.
// Every slice is ordered by its group key ascending.
type Aggregates struct {
	Monthly       []MonthlyAggregate     `json:"monthly"`
	WindLevels    []WindLevelDayCount    `json:"wind_levels"`
	SkyConditions []SkyConditionDayCount `json:"sky_conditions"`
}

// ForecastResult is the model output for one future month. Actual stays nil
// until an independently sourced aggregate for that month is attached.
type ForecastResult struct {
	TargetMonth   MonthKey `json:"month"`
	PointEstimate float64  `json:"point_estimate"`
	LowerBound    float64  `json:"lower_bound"`
	UpperBound    float64  `json:"upper_bound"`
	Actual        *float64 `json:"actual,omitempty"`
}

// ForecastAccuracy compares forecasts against the actuals attached to them.
type ForecastAccuracy struct {
	Compared int     `json:"compared"`
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	Coverage float64 `json:"coverage"`
}

// RunSummary describes one pipeline run for logs, the result store and the API.
type RunSummary struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	RowsRead      int              `json:"rows_read"`
	RowsKept      int              `json:"rows_kept"`
	RowsDropped   map[string]int   `json:"rows_dropped"`
	InvertedTemps int              `json:"inverted_temps"`
	Months        int              `json:"months"`
	ActualMonths  int              `json:"actual_months"`
	TrainStart    MonthKey         `json:"train_start"`
	TrainEnd      MonthKey         `json:"train_end"`
	Horizon       int              `json:"horizon"`
	Target        string           `json:"target"`
	Model         string           `json:"model"`
	Accuracy      ForecastAccuracy `json:"accuracy"`
}

// RunResult is everything one pipeline run produced.
type RunResult struct {
	Summary       RunSummary         `json:"summary"`
	Daily         []DailyObservation `json:"daily"`
	Aggregates    Aggregates         `json:"aggregates"`
	ActualMonthly []MonthlyAggregate `json:"actual_monthly,omitempty"`
	Forecasts     []ForecastResult   `json:"forecasts"`
	Climatology   Climatology        `json:"climatology"`
}

// NewRunSummary returns a summary stamped with the package clock.
func NewRunSummary() RunSummary {
	return RunSummary{
		GeneratedAt: clock.Now().UTC(),
		RowsDropped: map[string]int{},
	}
}
