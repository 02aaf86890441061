package domain

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// MonthKey identifies a calendar month. Keys are totally ordered and format
// as "YYYY-MM" at every interchange boundary.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// String formats the key as "YYYY-MM".
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// IsZero reports whether k is the zero key.
func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// Index is the number of months since year 0, so consecutive months differ by one.
func (k MonthKey) Index() int {
	return k.Year*12 + int(k.Month) - 1
}

// AddMonths returns the key n months after k (before it when n is negative).
func (k MonthKey) AddMonths(n int) MonthKey {
	i := k.Index() + n
	year, month := i/12, i%12
	if month < 0 {
		year--
		month += 12
	}
	return MonthKey{Year: year, Month: time.Month(month + 1)}
}

// Compare returns -1, 0 or +1 as k sorts before, equal to, or after o.
func (k MonthKey) Compare(o MonthKey) int {
	switch a, b := k.Index(), o.Index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether k sorts strictly before o.
func (k MonthKey) Before(o MonthKey) bool {
	return k.Compare(o) < 0
}

// FirstDay returns midnight UTC on the first day of the month.
func (k MonthKey) FirstDay() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// MarshalText encodes the key as "YYYY-MM" for JSON values and map keys.
func (k MonthKey) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a "YYYY-MM" string. An empty string yields the zero key.
func (k *MonthKey) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = MonthKey{}
		return nil
	}
	parsed, err := ParseMonthKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
