package common

import (
	"strings"
	"time"
)

// SourceDateLayout is the M/D/YY layout providers use for date columns.
const SourceDateLayout = "1/2/06"

// ParseSourceDate parses an M/D/YY string into UTC midnight. Column names
// that fail to parse are metadata.
func ParseSourceDate(s string) (time.Time, error) {
	t, err := time.Parse(SourceDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatSourceDate renders t (in UTC) using SourceDateLayout.
func FormatSourceDate(t time.Time) string {
	return t.UTC().Format(SourceDateLayout)
}

// ISODate renders t as an ISO-8601 UTC timestamp, e.g. 2020-03-14T00:00:00Z.
func ISODate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// EqualFoldAny returns true if s equals any of the candidates, ignoring case.
func EqualFoldAny(s string, candidates ...string) bool {
	for _, c := range candidates {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}
