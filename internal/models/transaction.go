package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an imported ledger transaction: the unit the reconciler
// tries to match against projected recurring instances.
type Transaction struct {
	ID          uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Category    string
	// SourceHash fingerprints the raw imported row so re-importing the
	// same statement does not duplicate transactions.
	SourceHash string
	CreatedAt  time.Time
}

// ComputeSourceHash fingerprints an imported row by its date, amount and
// description. Stable across runs for identical input.
func ComputeSourceHash(date time.Time, amount decimal.Decimal, description string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", FormatDate(date), amount.String(), description)))
	return hex.EncodeToString(sum[:])
}

// NewTransaction builds an imported transaction with a fresh id and source
// hash, normalizing the date to day granularity.
func NewTransaction(date time.Time, amount decimal.Decimal, description string) Transaction {
	d := DateOnly(date)
	return Transaction{
		ID:          uuid.New(),
		Date:        d,
		Amount:      amount,
		Description: description,
		SourceHash:  ComputeSourceHash(d, amount, description),
		CreatedAt:   time.Now().UTC(),
	}
}
