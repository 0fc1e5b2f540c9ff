// Package datetime provides the business-day calendar used by the engine.
// Saturdays and Sundays are non-business days; no holiday calendar applies.
package datetime

import (
	"time"

	"github.com/iwvelando/reverse-consolidation/pkg/constants"
)

const (
	// DateLayout is the format expected in deal files and is also the output
	// date format.
	DateLayout = constants.DateLayout
)

// MustParseDate parses a date string in DateLayout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseDate(date string) time.Time {
	t, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a date string in DateLayout.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// IsBusinessDay reports whether t falls Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// BusinessDaysBetween counts business days strictly between start and end,
// both exclusive. It returns 0 when end is not after start.
func BusinessDaysBetween(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)
	if !end.After(start) {
		return 0
	}

	count := 0
	for d := start.AddDate(0, 0, 1); d.Before(end); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// AddBusinessDays returns the date n business days after start. Weekends are
// skipped; n <= 0 returns start unchanged.
func AddBusinessDays(start time.Time, n int) time.Time {
	date := truncateDay(start)
	added := 0
	for added < n {
		date = date.AddDate(0, 0, 1)
		if IsBusinessDay(date) {
			added++
		}
	}
	return date
}

// FormatBusinessDate formats a date as a short readable string, e.g. "Mar 15, 2026".
func FormatBusinessDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
