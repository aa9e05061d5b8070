package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExceptionKind is the tagged variant of a per-occurrence exception.
type ExceptionKind string

const (
	// ExceptionSkip drops the occurrence from totals; the instance is
	// still emitted with status Skipped so the UI can show it.
	ExceptionSkip ExceptionKind = "skip"
	// ExceptionModify overrides amount, date and/or description for the
	// single occurrence it is keyed to.
	ExceptionModify ExceptionKind = "modify"
)

func (k ExceptionKind) Valid() bool {
	return k == ExceptionSkip || k == ExceptionModify
}

// ModifyOverrides holds the optional field overrides of a Modify exception.
// Nil fields fall back to the recurring item's defaults, which keeps "what
// is and isn't overridden" explicit.
type ModifyOverrides struct {
	Amount      *decimal.Decimal
	Date        *time.Time
	Description *string
}

// RecurringException is keyed by (item id, scheduled occurrence date); the
// store enforces at most one exception per pair. Exceptions are created by
// user action and only removed when the parent item is deleted.
type RecurringException struct {
	ItemID uuid.UUID
	// Date is the scheduled occurrence date the exception applies to,
	// matched exactly (no fuzzy lookup).
	Date time.Time
	Kind ExceptionKind
	// Overrides is set only for Kind == ExceptionModify.
	Overrides ModifyOverrides
}

// ExceptionIndex builds the exact-date lookup the overlay uses. Dates are
// normalized to day granularity so map hits are reliable.
func ExceptionIndex(exceptions []RecurringException) map[time.Time]RecurringException {
	index := make(map[time.Time]RecurringException, len(exceptions))
	for _, ex := range exceptions {
		index[DateOnly(ex.Date)] = ex
	}
	return index
}
