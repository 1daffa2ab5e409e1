package coercion

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vitebski/petsync/pkg/models"
)

// numericToken matches the first integer or decimal inside free text
var numericToken = regexp.MustCompile(`\d+\.?\d*`)

// Epoch seconds of the first and last storable days, years 1 and 9999
var (
	minEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxEpoch = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC).Unix()
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"Jan 2, 2006",
	"January 2, 2006",
}

// rawText renders a raw value as the text the feed carried.
// The second result is false for nil.
func rawText(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return fmt.Sprint(val), true
	}
}

// parseDecimal reads a finite decimal number. Digit separators, NaN and
// infinities are rejected since no destination column can hold them.
func parseDecimal(s string) (float64, bool) {
	if strings.Contains(s, "_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseIdentifier applies a lenient numeric conversion; decimals are truncated
func parseIdentifier(v interface{}) (int64, bool) {
	s, ok := rawText(v)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, ok := parseDecimal(s)
	if !ok || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// toInteger is a strict cast; anything but a whole number fails
func toInteger(v interface{}) (int64, bool) {
	if f, ok := v.(float64); ok {
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	}
	s, ok := rawText(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// toFloat returns nil for empty or unparseable input; defect is true only
// when a non-empty value had to be discarded
func toFloat(v interface{}) (value interface{}, defect bool) {
	if f, ok := v.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, true
		}
		return f, false
	}
	s, ok := rawText(v)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, false
	}
	f, ok := parseDecimal(strings.TrimSpace(s))
	if !ok {
		return nil, true
	}
	return f, false
}

// toTriBool accepts only the literals "Yes" and "No"
func toTriBool(v interface{}) (value models.TriBool, defect bool) {
	s, ok := v.(string)
	if !ok {
		return models.Unknown, v != nil
	}
	switch s {
	case "Yes":
		return models.True, false
	case "No":
		return models.False, false
	case "":
		return models.Unknown, false
	default:
		return models.Unknown, true
	}
}

// toText keeps the value verbatim
func toText(v interface{}) interface{} {
	s, ok := rawText(v)
	if !ok {
		return nil
	}
	return s
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// toDate parses a calendar day and drops the time of day
func toDate(v interface{}) (value interface{}, defect bool) {
	s, ok := rawText(v)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return nil, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), false
		}
	}
	return nil, true
}

// toEpochDate reads seconds since the epoch and keeps the UTC day.
// Instants outside years 1 through 9999 are defects.
func toEpochDate(v interface{}) (value interface{}, defect bool) {
	s, ok := rawText(v)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return nil, false
	}
	f, ok := parseDecimal(s)
	if !ok || f < float64(minEpoch) || f >= float64(maxEpoch+86400) {
		return nil, true
	}
	return day(time.Unix(int64(f), 0).UTC()), false
}

// extractNumber keeps the first numeric token of mixed free text
func extractNumber(v interface{}) (value interface{}, defect bool) {
	s, ok := rawText(v)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, false
	}
	token := numericToken.FindString(s)
	if token == "" {
		return nil, true
	}
	f, ok := parseDecimal(strings.TrimSuffix(token, "."))
	if !ok {
		return nil, true
	}
	return f, false
}
