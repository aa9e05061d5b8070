package matching

import (
	"github.com/shopspring/decimal"

	"fjacquet/budget-recon/internal/domainerr"
	"fjacquet/budget-recon/internal/models"
)

// Tolerances is the matching configuration passed explicitly into every
// scoring call. It is a value type: nothing in this package reads ambient
// state, which keeps scoring deterministic under test.
type Tolerances struct {
	// DateToleranceDays is the window (in days) around an instance's
	// effective date within which an import is a plausible match.
	DateToleranceDays int
	// AmountTolerancePct and AmountToleranceAbs define the amount band;
	// the more permissive of the two applies. Pct is a percentage of the
	// expected amount (5 means 5%).
	AmountTolerancePct decimal.Decimal
	AmountToleranceAbs decimal.Decimal
	// SuggestThreshold is the minimum composite score for a Medium-tier
	// suggestion; AutoMatchThreshold for High-tier auto acceptance.
	SuggestThreshold   float64
	AutoMatchThreshold float64
}

// DefaultTolerances returns the calibration defaults. The threshold values
// are tunables pinned by the scenario tests, not derived constants.
func DefaultTolerances() Tolerances {
	return Tolerances{
		DateToleranceDays:  7,
		AmountTolerancePct: decimal.NewFromInt(1),
		AmountToleranceAbs: decimal.Zero,
		SuggestThreshold:   0.50,
		AutoMatchThreshold: 0.85,
	}
}

// Validate rejects malformed tolerances at configuration time so scoring
// never has to.
func (t Tolerances) Validate() error {
	if t.DateToleranceDays < 0 {
		return &domainerr.ValidationError{Field: "date_tolerance_days", Reason: "must be >= 0"}
	}
	if t.AmountTolerancePct.IsNegative() {
		return &domainerr.ValidationError{Field: "amount_tolerance_percent", Reason: "must be >= 0"}
	}
	if t.AmountToleranceAbs.IsNegative() {
		return &domainerr.ValidationError{Field: "amount_tolerance_abs", Reason: "must be >= 0"}
	}
	if t.SuggestThreshold < 0 || t.SuggestThreshold > 1 {
		return &domainerr.ValidationError{Field: "suggest_threshold", Reason: "must be within [0,1]"}
	}
	if t.AutoMatchThreshold < 0 || t.AutoMatchThreshold > 1 {
		return &domainerr.ValidationError{Field: "auto_match_threshold", Reason: "must be within [0,1]"}
	}
	if t.AutoMatchThreshold < t.SuggestThreshold {
		return &domainerr.ValidationError{Field: "auto_match_threshold", Reason: "must be >= suggest_threshold"}
	}
	return nil
}

// WithOverride applies a per-item override on top of the global tolerances.
// Thresholds are global-only; items may tighten or widen the date and
// amount bands.
func (t Tolerances) WithOverride(o *models.ToleranceOverride) Tolerances {
	if o == nil {
		return t
	}
	out := t
	if o.DateToleranceDays != nil {
		out.DateToleranceDays = *o.DateToleranceDays
	}
	if o.AmountTolerancePct != nil {
		out.AmountTolerancePct = *o.AmountTolerancePct
	}
	if o.AmountToleranceAbs != nil {
		out.AmountToleranceAbs = *o.AmountToleranceAbs
	}
	return out
}
