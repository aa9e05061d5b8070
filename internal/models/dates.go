package models

import (
	"fmt"
	"time"
)

// DateLayoutISO is the canonical date layout used for persistence and CLI
// flags. All domain dates are day-granular.
const DateLayoutISO = "2006-01-02"

// DateOnly truncates t to midnight UTC. Occurrence dates, exception keys and
// realized-link keys are always stored in this form so map lookups and SQL
// uniqueness behave.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO date (YYYY-MM-DD) into a day-granular UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayoutISO, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a day-granular time as an ISO date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayoutISO)
}

// DaysBetween returns the absolute whole-day distance between two
// day-granular dates.
func DaysBetween(a, b time.Time) int {
	d := DateOnly(a).Sub(DateOnly(b))
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
