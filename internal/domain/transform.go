package domain

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-1-2"

var (
	// windLevelRe finds the first force token in the wind column, e.g.
	// "南风3-4级" -> "3-4级", "无持续风向3级" -> "3级".
	windLevelRe = regexp.MustCompile(`\d+-\d+级|\d+级`)

	// dateMarkers rewrites "2022年01月05日" into "2022-01-05".
	dateMarkers = strings.NewReplacer("年", "-", "月", "-", "日", "")

	// tempSeparators folds locale variants of the high/low separator.
	tempSeparators = strings.NewReplacer("／", "/")

	tempUnits = []string{"℃", "°C"}
)

// ParseDate converts a localized date ("2022年01月05日") or a canonical one
// ("2022-01-05") into midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	canonical := strings.TrimSpace(dateMarkers.Replace(strings.TrimSpace(s)))
	if canonical == "" {
		return time.Time{}, parseErr("date", s, ErrMalformedDate)
	}
	t, err := time.Parse(dateLayout, canonical)
	if err != nil {
		return time.Time{}, parseErr("date", s, fmt.Errorf("%w: %v", ErrMalformedDate, err))
	}
	return t, nil
}

// ParseTemperature splits "<high>℃/<low>℃" into its two values. Both parts
// must carry a unit marker and parse as numbers; nothing is defaulted.
func ParseTemperature(s string) (high, low float64, err error) {
	parts := strings.Split(tempSeparators.Replace(strings.TrimSpace(s)), "/")
	if len(parts) != 2 {
		return 0, 0, parseErr("temperature", s, fmt.Errorf("%w: want 2 parts, got %d", ErrMalformedTemperature, len(parts)))
	}

	high, err = parseTempPart(parts[0])
	if err != nil {
		return 0, 0, parseErr("temperature", s, err)
	}
	low, err = parseTempPart(parts[1])
	if err != nil {
		return 0, 0, parseErr("temperature", s, err)
	}
	return high, low, nil
}

func parseTempPart(part string) (float64, error) {
	part = strings.TrimSpace(part)
	var number string
	var found bool
	for _, unit := range tempUnits {
		if number, found = strings.CutSuffix(part, unit); found {
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: missing unit in %q", ErrMalformedTemperature, part)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformedTemperature, part)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrMalformedTemperature, part)
	}
	return v, nil
}

// ParseWindLevel returns the first force token embedded in the wind text.
// The boolean is false when the text carries no token.
func ParseWindLevel(s string) (string, bool) {
	level := windLevelRe.FindString(s)
	return level, level != ""
}

// ParseSkyConditions splits "<day>/<night>" into its distinct labels in
// ascending order. Identical halves collapse to one label; blank input or
// blank halves yield nothing.
func ParseSkyConditions(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var labels []string
	for _, part := range strings.Split(s, "/") {
		part = strings.TrimSpace(part)
		if part == "" || slices.Contains(labels, part) {
			continue
		}
		labels = append(labels, part)
	}
	slices.Sort(labels)
	return labels
}

// WindLevelRank orders wind levels by their lower bound: "3-4级" ranks as 3.
// Levels without a leading number rank last.
func WindLevelRank(level string) int {
	end := strings.IndexFunc(level, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return math.MaxInt
	}
	if end < 0 {
		end = len(level)
	}
	n, err := strconv.Atoi(level[:end])
	if err != nil {
		return math.MaxInt
	}
	return n
}
