package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-recon/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustRule(t *testing.T, freq models.Frequency, interval int, anchor time.Time, until time.Time, count int) models.RecurrenceRule {
	t.Helper()
	rule, err := models.NewRecurrenceRule(freq, interval, anchor, until, count)
	require.NoError(t, err)
	return rule
}

func TestMonthlyClampsToEndOfMonth(t *testing.T) {
	// Monthly anchored Jan 31: February clamps to its last day.
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 31), time.Time{}, 0)

	got := Occurrences(rule, date(2026, time.January, 1), date(2026, time.April, 30))

	assert.Equal(t, []time.Time{
		date(2026, time.January, 31),
		date(2026, time.February, 28),
		date(2026, time.March, 31),
		date(2026, time.April, 30),
	}, got)
}

func TestMonthlyClampLeapYear(t *testing.T) {
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2028, time.January, 31), time.Time{}, 0)

	got := Occurrences(rule, date(2028, time.February, 1), date(2028, time.February, 29))

	assert.Equal(t, []time.Time{date(2028, time.February, 29)}, got)
}

func TestClampDoesNotDrift(t *testing.T) {
	// Stepping is anchored, so after clamping through February the rule
	// returns to the 31st in longer months instead of sticking at 28.
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 31), time.Time{}, 0)

	got := Occurrences(rule, date(2026, time.May, 1), date(2026, time.May, 31))

	assert.Equal(t, []time.Time{date(2026, time.May, 31)}, got)
}

func TestDailyAndWeeklyStepping(t *testing.T) {
	daily := mustRule(t, models.FrequencyDaily, 3, date(2026, time.June, 1), time.Time{}, 0)
	assert.Equal(t, []time.Time{
		date(2026, time.June, 1),
		date(2026, time.June, 4),
		date(2026, time.June, 7),
	}, Occurrences(daily, date(2026, time.June, 1), date(2026, time.June, 8)))

	weekly := mustRule(t, models.FrequencyWeekly, 2, date(2026, time.June, 5), time.Time{}, 0)
	assert.Equal(t, []time.Time{
		date(2026, time.June, 5),
		date(2026, time.June, 19),
	}, Occurrences(weekly, date(2026, time.June, 1), date(2026, time.June, 30)))
}

func TestYearlyFeb29ClampsOnNonLeapYears(t *testing.T) {
	rule := mustRule(t, models.FrequencyYearly, 1, date(2028, time.February, 29), time.Time{}, 0)

	got := Occurrences(rule, date(2028, time.January, 1), date(2030, time.December, 31))

	assert.Equal(t, []time.Time{
		date(2028, time.February, 29),
		date(2029, time.February, 28),
		date(2030, time.February, 28),
	}, got)
}

func TestWindowFiltersOccurrences(t *testing.T) {
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2025, time.January, 15), time.Time{}, 0)

	got := Occurrences(rule, date(2026, time.March, 1), date(2026, time.April, 30))

	assert.Equal(t, []time.Time{
		date(2026, time.March, 15),
		date(2026, time.April, 15),
	}, got)
}

func TestUntilBoundsGeneration(t *testing.T) {
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 15), date(2026, time.March, 15), 0)

	got := Occurrences(rule, date(2026, time.January, 1), date(2026, time.December, 31))

	assert.Equal(t, []time.Time{
		date(2026, time.January, 15),
		date(2026, time.February, 15),
		date(2026, time.March, 15),
	}, got)
}

func TestCountBoundsGeneration(t *testing.T) {
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 15), time.Time{}, 2)

	got := Occurrences(rule, date(2026, time.January, 1), date(2026, time.December, 31))

	assert.Equal(t, []time.Time{
		date(2026, time.January, 15),
		date(2026, time.February, 15),
	}, got)
}

func TestTighterBoundWins(t *testing.T) {
	// Count allows 5 occurrences but until cuts off after 2.
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 15), date(2026, time.February, 28), 5)
	assert.Len(t, Occurrences(rule, date(2026, time.January, 1), date(2026, time.December, 31)), 2)

	// Until allows the whole year but count cuts off after 3.
	rule = mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 15), date(2026, time.December, 31), 3)
	assert.Len(t, Occurrences(rule, date(2026, time.January, 1), date(2026, time.December, 31)), 3)
}

func TestCountRespectedWhenWindowSkipsAhead(t *testing.T) {
	// The rule ends after 3 occurrences (Jan/Feb/Mar); a later window must
	// not see phantom occurrences even though the start index fast-forward
	// jumps past them.
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 15), time.Time{}, 3)

	got := Occurrences(rule, date(2026, time.June, 1), date(2026, time.December, 31))

	assert.Empty(t, got)
}

func TestEmptyAndInvertedWindows(t *testing.T) {
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 15), time.Time{}, 0)

	assert.Empty(t, Occurrences(rule, date(2026, time.February, 1), date(2026, time.January, 1)))
	assert.Empty(t, Occurrences(rule, date(2025, time.January, 1), date(2025, time.December, 31)))
}

func TestOccurrencesIsPure(t *testing.T) {
	rule := mustRule(t, models.FrequencyWeekly, 1, date(2026, time.January, 5), time.Time{}, 0)
	ws, we := date(2026, time.January, 1), date(2026, time.March, 1)

	first := Occurrences(rule, ws, we)
	second := Occurrences(rule, ws, we)

	assert.Equal(t, first, second)
}

func TestOccursOn(t *testing.T) {
	rule := mustRule(t, models.FrequencyMonthly, 1, date(2026, time.January, 31), time.Time{}, 0)

	assert.True(t, OccursOn(rule, date(2026, time.February, 28)))
	assert.True(t, OccursOn(rule, date(2026, time.March, 31)))
	assert.False(t, OccursOn(rule, date(2026, time.March, 30)))
	assert.False(t, OccursOn(rule, date(2026, time.February, 27)))
}

func TestDistantAnchorFastForward(t *testing.T) {
	// A daily rule anchored years back must still evaluate a small recent
	// window correctly (and quickly).
	rule := mustRule(t, models.FrequencyDaily, 1, date(2000, time.January, 1), time.Time{}, 0)

	got := Occurrences(rule, date(2026, time.August, 30), date(2026, time.August, 31))

	assert.Equal(t, []time.Time{
		date(2026, time.August, 30),
		date(2026, time.August, 31),
	}, got)
}
