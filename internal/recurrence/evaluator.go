// Package recurrence evaluates recurrence rules into occurrence dates and
// overlays per-occurrence exceptions. Evaluation is pure: the same rule and
// window always produce the same sequence.
package recurrence

import (
	"time"

	"fjacquet/budget-recon/internal/models"
)

// Occurrences returns the ascending occurrence dates of rule inside
// [windowStart, windowEnd], bounded by the rule's own end date and
// occurrence count, whichever is reached first.
//
// Monthly and yearly stepping clamps to the last valid day of the target
// month, so a rule anchored on Jan 31 falls on Feb 28 (29 in leap years)
// and back on Mar 31. Stepping is always computed from the anchor, never
// from the previous occurrence, so the clamp does not drift.
func Occurrences(rule models.RecurrenceRule, windowStart, windowEnd time.Time) []time.Time {
	ws := models.DateOnly(windowStart)
	we := models.DateOnly(windowEnd)
	if we.Before(ws) {
		return nil
	}

	var dates []time.Time
	for n := startIndex(rule, ws); ; n++ {
		if rule.Count > 0 && n >= rule.Count {
			break
		}
		candidate := occurrenceAt(rule, n)
		if !rule.Until.IsZero() && candidate.After(rule.Until) {
			break
		}
		if candidate.After(we) {
			break
		}
		if !candidate.Before(ws) {
			dates = append(dates, candidate)
		}
	}
	return dates
}

// OccursOn reports whether rule produces date as a scheduled occurrence.
func OccursOn(rule models.RecurrenceRule, date time.Time) bool {
	d := models.DateOnly(date)
	occ := Occurrences(rule, d, d)
	return len(occ) == 1
}

// occurrenceAt computes the n-th occurrence (zero-based) from the anchor.
func occurrenceAt(rule models.RecurrenceRule, n int) time.Time {
	switch rule.Frequency {
	case models.FrequencyDaily:
		return rule.Anchor.AddDate(0, 0, n*rule.Interval)
	case models.FrequencyWeekly:
		return rule.Anchor.AddDate(0, 0, 7*n*rule.Interval)
	case models.FrequencyMonthly:
		return addMonthsClamped(rule.Anchor, n*rule.Interval)
	case models.FrequencyYearly:
		return addMonthsClamped(rule.Anchor, 12*n*rule.Interval)
	}
	// Unreachable for rules built through NewRecurrenceRule.
	return rule.Anchor
}

// startIndex skips occurrences that end strictly before the window without
// iterating them one by one. The returned index may undershoot; the caller's
// window filter discards anything still before windowStart.
func startIndex(rule models.RecurrenceRule, windowStart time.Time) int {
	if !rule.Anchor.Before(windowStart) {
		return 0
	}
	days := int(windowStart.Sub(rule.Anchor).Hours() / 24)
	var n int
	switch rule.Frequency {
	case models.FrequencyDaily:
		n = days / rule.Interval
	case models.FrequencyWeekly:
		n = days / (7 * rule.Interval)
	case models.FrequencyMonthly:
		months := (windowStart.Year()-rule.Anchor.Year())*12 + int(windowStart.Month()) - int(rule.Anchor.Month())
		n = months/rule.Interval - 1
	case models.FrequencyYearly:
		years := windowStart.Year() - rule.Anchor.Year()
		n = years/rule.Interval - 1
	}
	if n < 0 {
		n = 0
	}
	return n
}

// addMonthsClamped advances t by whole months, clamping the day of month to
// the last valid day of the target month. time.AddDate is unsuitable here:
// it normalizes Jan 31 + 1 month to Mar 3.
func addMonthsClamped(t time.Time, months int) time.Time {
	year := t.Year()
	month := int(t.Month()) - 1 + months
	year += month / 12
	month = month % 12

	day := t.Day()
	if last := daysInMonth(year, time.Month(month+1)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
