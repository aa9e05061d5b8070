// Package matching scores imported bank transactions against projected
// recurring instances. The composite confidence is a weighted sum of
// description similarity, amount closeness and date proximity.
package matching

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"fjacquet/budget-recon/internal/models"
)

// Scoring weights. Description dominates because bank descriptions are the
// strongest stable signal across statements; the values are calibration
// defaults validated by the scenario tests.
const (
	weightDescription = 0.50
	weightAmount      = 0.30
	weightDate        = 0.20
)

// Candidate is one not-yet-realized projected instance offered to the
// scorer, together with the owning item's import patterns.
type Candidate struct {
	Instance models.ProjectedInstance
	// Patterns short-circuit description scoring to 1.0 on match.
	Patterns []string
}

// Result is a scored candidate.
type Result struct {
	Candidate      Candidate
	Score          float64
	Tier           models.ConfidenceTier
	AmountVariance decimal.Decimal
	DateOffsetDays int
}

// Score computes the composite confidence of tx against candidate,
// in [0,1].
func Score(tx models.Transaction, candidate Candidate, tol Tolerances) float64 {
	desc := descriptionScore(tx.Description, candidate.Instance.Description, candidate.Patterns)
	amount := amountScore(tx.Amount, candidate.Instance.Amount, tol)
	date := dateScore(models.DaysBetween(tx.Date, candidate.Instance.EffectiveDate), tol)
	return weightDescription*desc + weightAmount*amount + weightDate*date
}

// BestMatch scores all candidates and returns the winner with its tier, or
// nil when there are no candidates. Ties resolve to the smaller date
// offset, then the smaller amount variance.
func BestMatch(tx models.Transaction, candidates []Candidate, tol Tolerances) *Result {
	var best *Result
	for _, c := range candidates {
		r := &Result{
			Candidate:      c,
			Score:          Score(tx, c, tol),
			AmountVariance: amountVariance(tx.Amount, c.Instance.Amount),
			DateOffsetDays: models.DaysBetween(tx.Date, c.Instance.EffectiveDate),
		}
		if best == nil || Better(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	best.Tier = tierFor(best.Score, tol)
	return best
}

// Better reports whether a beats b under the tie-break order: higher score,
// then smaller date offset, then smaller amount variance. Exported so the
// reconciler can rank results scored under per-item tolerances.
func Better(a, b *Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DateOffsetDays != b.DateOffsetDays {
		return a.DateOffsetDays < b.DateOffsetDays
	}
	return a.AmountVariance.LessThan(b.AmountVariance)
}

func tierFor(score float64, tol Tolerances) models.ConfidenceTier {
	switch {
	case score >= tol.AutoMatchThreshold:
		return models.TierHigh
	case score >= tol.SuggestThreshold:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// descriptionScore returns 1.0 when an import pattern matches, otherwise a
// Levenshtein-derived similarity ratio between the imported and expected
// descriptions.
func descriptionScore(imported, expected string, patterns []string) float64 {
	for _, pattern := range patterns {
		if MatchesPattern(imported, pattern) {
			return 1.0
		}
	}
	a := strings.ToUpper(strings.TrimSpace(imported))
	b := strings.ToUpper(strings.TrimSpace(expected))
	if a == "" || b == "" {
		return 0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	ratio := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if ratio < 0 {
		return 0
	}
	return ratio
}

// amountScore is 1.0 inside the tolerance band (the more permissive of the
// absolute and percentage bands), decays linearly to 0 at twice the band,
// and is 0 beyond. A zero band means exact match or nothing.
func amountScore(imported, expected decimal.Decimal, tol Tolerances) float64 {
	diff := amountVariance(imported, expected)
	band := amountBand(expected, tol)

	if diff.LessThanOrEqual(band) {
		return 1.0
	}
	if band.IsZero() {
		return 0
	}
	double := band.Mul(decimal.NewFromInt(2))
	if diff.GreaterThanOrEqual(double) {
		return 0
	}
	over, _ := diff.Sub(band).Div(band).Float64()
	return 1.0 - over
}

// dateScore is 1.0 on the exact date, decays linearly to 0 at the tolerance
// boundary, and is 0 beyond it.
func dateScore(offsetDays int, tol Tolerances) float64 {
	if offsetDays == 0 {
		return 1.0
	}
	if tol.DateToleranceDays <= 0 || offsetDays >= tol.DateToleranceDays {
		return 0
	}
	return 1.0 - float64(offsetDays)/float64(tol.DateToleranceDays)
}

// amountVariance is the absolute difference between the magnitudes of the
// two amounts. Magnitudes, because import sign conventions differ by bank
// while recurring items store signed budget amounts.
func amountVariance(imported, expected decimal.Decimal) decimal.Decimal {
	return imported.Abs().Sub(expected.Abs()).Abs()
}

func amountBand(expected decimal.Decimal, tol Tolerances) decimal.Decimal {
	pctBand := expected.Abs().Mul(tol.AmountTolerancePct).Div(decimal.NewFromInt(100))
	if tol.AmountToleranceAbs.GreaterThan(pctBand) {
		return tol.AmountToleranceAbs
	}
	return pctBand
}

// MatchesPattern reports whether an imported description matches an import
// pattern. Patterns are case-insensitive; a plain pattern matches as a
// substring, '*' acts as a wildcard ('*NETFLIX*' style).
func MatchesPattern(description, pattern string) bool {
	desc := strings.ToUpper(strings.TrimSpace(description))
	pat := strings.ToUpper(strings.TrimSpace(pattern))
	if pat == "" {
		return false
	}
	if !strings.Contains(pat, "*") {
		return strings.Contains(desc, pat)
	}

	segments := strings.Split(pat, "*")
	// Leading segment anchors at the start, trailing segment at the end.
	if first := segments[0]; first != "" {
		if !strings.HasPrefix(desc, first) {
			return false
		}
		desc = desc[len(first):]
	}
	last := segments[len(segments)-1]
	middle := segments[1 : len(segments)-1]
	if last != "" {
		if !strings.HasSuffix(desc, last) {
			return false
		}
		desc = desc[:len(desc)-len(last)]
	}
	for _, seg := range middle {
		if seg == "" {
			continue
		}
		idx := strings.Index(desc, seg)
		if idx < 0 {
			return false
		}
		desc = desc[idx+len(seg):]
	}
	return true
}
