// Package models defines the domain types of the budgeting core: recurring
// items and their recurrence rules, per-occurrence exceptions, projected
// instances, realized links and reconciliation matches.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fjacquet/budget-recon/internal/domainerr"
)

// Frequency is the recurrence frequency of a rule.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// ItemKind distinguishes recurring transactions from recurring transfers.
// Matching and realization treat both as a single item with one occurrence
// stream; the paired ledger entry of a transfer is the store's concern.
type ItemKind string

const (
	KindTransaction ItemKind = "transaction"
	KindTransfer    ItemKind = "transfer"
)

func (k ItemKind) Valid() bool {
	return k == KindTransaction || k == KindTransfer
}

// RecurrenceRule describes when a recurring item falls due. Immutable once
// created; construct through NewRecurrenceRule so the invariants hold.
type RecurrenceRule struct {
	Frequency Frequency
	Interval  int
	Anchor    time.Time
	// Until bounds generation by date; zero means unbounded.
	Until time.Time
	// Count bounds generation by number of occurrences; zero means
	// unbounded. When both bounds are set, whichever is reached first
	// terminates generation.
	Count int
}

// NewRecurrenceRule validates and builds a rule. Interval must be >= 1 and
// an end date, if set, must not precede the anchor. Validation happens here,
// at construction time, never during evaluation.
func NewRecurrenceRule(freq Frequency, interval int, anchor time.Time, until time.Time, count int) (RecurrenceRule, error) {
	if !freq.Valid() {
		return RecurrenceRule{}, &domainerr.ValidationError{Field: "frequency", Reason: "unknown frequency " + string(freq)}
	}
	if interval < 1 {
		return RecurrenceRule{}, &domainerr.ValidationError{Field: "interval", Reason: "must be >= 1"}
	}
	if anchor.IsZero() {
		return RecurrenceRule{}, &domainerr.ValidationError{Field: "anchor", Reason: "anchor date is required"}
	}
	if count < 0 {
		return RecurrenceRule{}, &domainerr.ValidationError{Field: "count", Reason: "must be >= 0"}
	}
	rule := RecurrenceRule{
		Frequency: freq,
		Interval:  interval,
		Anchor:    DateOnly(anchor),
		Count:     count,
	}
	if !until.IsZero() {
		u := DateOnly(until)
		if u.Before(rule.Anchor) {
			return RecurrenceRule{}, &domainerr.ValidationError{Field: "until", Reason: "end date precedes anchor"}
		}
		rule.Until = u
	}
	return rule, nil
}

// RecurringItem is a recurring transaction or transfer owned by the user:
// the expected amount and description, the recurrence rule, and the import
// patterns used to short-circuit description matching during reconciliation.
type RecurringItem struct {
	ID          uuid.UUID
	Name        string
	Description string
	Amount      decimal.Decimal
	Kind        ItemKind
	Rule        RecurrenceRule
	// Patterns are import patterns matched against imported transaction
	// descriptions: plain substrings or '*' wildcards, case-insensitive.
	Patterns []string
	Active   bool
	// Tolerances optionally overrides the global matching tolerances for
	// this item. Nil means use the global configuration.
	Tolerances *ToleranceOverride
}

// ToleranceOverride carries the per-item subset of matching tolerances.
// Unset fields (nil) fall back to the global values.
type ToleranceOverride struct {
	DateToleranceDays  *int
	AmountTolerancePct *decimal.Decimal
	AmountToleranceAbs *decimal.Decimal
}
