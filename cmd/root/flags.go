package root

import (
	"fmt"
	"time"

	"fjacquet/budget-recon/internal/models"
)

// ParseWindow turns --from/--to flag values into a date window. Empty
// values default to today and today plus defaultDays (which may be
// negative for backward-looking windows).
func ParseWindow(from, to string, defaultDays int) (time.Time, time.Time, error) {
	today := models.DateOnly(time.Now())
	start, end := today, today.AddDate(0, 0, defaultDays)
	if defaultDays < 0 {
		start, end = end, start
	}

	var err error
	if from != "" {
		if start, err = models.ParseDate(from); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date: %w", err)
		}
	}
	if to != "" {
		if end, err = models.ParseDate(to); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to (%s) is before --from (%s)",
			models.FormatDate(end), models.FormatDate(start))
	}
	return start, end, nil
}
