// Date handling works on plain YYYY-MM-DD strings instead of time.Time.
// Zero-padded ISO dates compare lexicographically in chronological order,
// which avoids the off-by-one-day drift of parsing dates in negative-UTC
// timezones.
package core

import (
	"fmt"
	"time"
)

const isoDateLayout = "2006-01-02"

// ValidISODate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidISODate(s string) bool {
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse(isoDateLayout, s)
	return err == nil
}

// Today returns the current calendar date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format(isoDateLayout)
}

// MonthKey extracts the YYYY-MM prefix from an ISO date.
func MonthKey(dateStr string) string {
	if len(dateStr) < 7 {
		return ""
	}
	return dateStr[:7]
}

// YearKey extracts the YYYY prefix from an ISO date.
func YearKey(dateStr string) string {
	if len(dateStr) < 4 {
		return ""
	}
	return dateStr[:4]
}

// CurrentMonthKey returns the YYYY-MM key for the current calendar month.
func CurrentMonthKey() string {
	return MonthKey(Today())
}

// CompareISODates orders two ISO dates without constructing time.Time values.
func CompareISODates(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FormatDisplayDate converts YYYY-MM-DD to DD/MM/YYYY for display. Malformed
// input is returned unchanged.
func FormatDisplayDate(dateStr string) string {
	if len(dateStr) < 10 {
		return dateStr
	}
	return fmt.Sprintf("%s/%s/%s", dateStr[8:10], dateStr[5:7], dateStr[:4])
}

// MonthKeyParts splits a YYYY-MM month key into its year and month numbers.
func MonthKeyParts(monthKey string) (year int, month int, err error) {
	t, err := time.Parse("2006-01", monthKey)
	if err != nil {
		return 0, 0, fmt.Errorf("parse month key %q: %w", monthKey, err)
	}
	return t.Year(), int(t.Month()), nil
}
