package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle state of a reconciliation match.
//
// Transitions: Suggested -> {Accepted, Rejected};
// AutoMatched -> {Accepted, Rejected}; Accepted -> Rejected only via Unlink.
// Accepted (with live link) and Rejected are terminal.
type MatchStatus string

const (
	MatchSuggested   MatchStatus = "suggested"
	MatchAccepted    MatchStatus = "accepted"
	MatchRejected    MatchStatus = "rejected"
	MatchAutoMatched MatchStatus = "auto_matched"
)

// MatchSource records whether the match came from the scorer or a user.
type MatchSource string

const (
	SourceAuto   MatchSource = "auto"
	SourceManual MatchSource = "manual"
)

// ConfidenceTier is the coarse bucket derived from the confidence score.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// ReconciliationMatch pairs one imported transaction with one
// (recurring item, occurrence date) candidate.
type ReconciliationMatch struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	ItemID         uuid.UUID
	OccurrenceDate time.Time
	Confidence     float64
	Tier           ConfidenceTier
	Status         MatchStatus
	Source         MatchSource
	AmountVariance decimal.Decimal
	DateOffsetDays int
	Reason         string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// Open reports whether the match still awaits a decision.
func (m ReconciliationMatch) Open() bool {
	return m.Status == MatchSuggested || m.Status == MatchAutoMatched
}

// Linked reports whether the match's status implies a live RealizedLink.
func (m ReconciliationMatch) Linked() bool {
	return m.Status == MatchAccepted || m.Status == MatchAutoMatched
}
