package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstanceStatus tags a projected instance with the exception outcome.
type InstanceStatus string

const (
	StatusNormal   InstanceStatus = "normal"
	StatusModified InstanceStatus = "modified"
	StatusSkipped  InstanceStatus = "skipped"
)

// ProjectedInstance is the read-only view of one scheduled occurrence after
// exception overlay. It is regenerated on every query and never persisted.
type ProjectedInstance struct {
	ItemID   uuid.UUID
	ItemName string
	Kind     ItemKind
	// ScheduledDate is the date the recurrence rule produced; ordering is
	// always by this date, not the effective one.
	ScheduledDate time.Time
	// EffectiveDate equals ScheduledDate unless a Modify exception moved it.
	EffectiveDate time.Time
	Amount        decimal.Decimal
	Description   string
	Status        InstanceStatus
	Realized      bool
}

// CountsTowardTotals reports whether the instance participates in monetary
// aggregation. Skipped instances are shown but never totalled.
func (p ProjectedInstance) CountsTowardTotals() bool {
	return p.Status != StatusSkipped
}

// RealizedLink records that an occurrence became a real ledger transaction.
// At most one link may exist per (item, occurrence date) and per
// transaction; the store's unique constraints back both invariants.
type RealizedLink struct {
	ID             uuid.UUID
	ItemID         uuid.UUID
	OccurrenceDate time.Time
	TransactionID  uuid.UUID
	CreatedAt      time.Time
}
