// Package report builds read-only summaries over the reconciled ledger:
// per-item variance history and forward-looking projection totals.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/models"
	"fjacquet/budget-recon/internal/projection"
)

// MatchSource supplies resolved matches and their transactions.
type MatchSource interface {
	MatchesForItem(ctx context.Context, itemID uuid.UUID, statuses ...models.MatchStatus) ([]models.ReconciliationMatch, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// VarianceRow is one realized occurrence compared against plan.
type VarianceRow struct {
	OccurrenceDate  time.Time       `json:"occurrence_date"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description"`
	Expected        decimal.Decimal `json:"expected"`
	Actual          decimal.Decimal `json:"actual"`
	// Variance is actual minus expected on magnitudes, so overspend is
	// positive for expenses and income shortfalls are negative.
	Variance       decimal.Decimal `json:"variance"`
	DateOffsetDays int             `json:"date_offset_days"`
}

// VarianceReport is the variance history of one recurring item.
type VarianceReport struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ItemName      string          `json:"item_name"`
	Expected      decimal.Decimal `json:"expected_amount"`
	Rows          []VarianceRow   `json:"rows"`
	TotalVariance decimal.Decimal `json:"total_variance"`
	MeanVariance  decimal.Decimal `json:"mean_variance"`
}

// ForecastLine is one item's projected total over the report window.
type ForecastLine struct {
	ItemID      uuid.UUID       `json:"item_id"`
	ItemName    string          `json:"item_name"`
	Occurrences int             `json:"occurrences"`
	Skipped     int             `json:"skipped"`
	Total       decimal.Decimal `json:"total"`
}

// Forecast sums projected instances per item over a window. Skipped
// instances are listed but excluded from every total.
type Forecast struct {
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Lines       []ForecastLine  `json:"lines"`
	Total       decimal.Decimal `json:"total"`
}

// Reporter computes reports against the store and the projector.
type Reporter struct {
	items     projection.ItemStore
	matches   MatchSource
	projector *projection.Projector
	log       logging.Logger
}

// New creates a Reporter.
func New(items projection.ItemStore, matches MatchSource, projector *projection.Projector, log logging.Logger) *Reporter {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &Reporter{items: items, matches: matches, projector: projector, log: log}
}

// Variance builds the variance history of one item from its accepted and
// auto-matched occurrences.
func (r *Reporter) Variance(ctx context.Context, itemID uuid.UUID) (*VarianceReport, error) {
	item, err := r.items.GetRecurringItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	matches, err := r.matches.MatchesForItem(ctx, itemID, models.MatchAccepted, models.MatchAutoMatched)
	if err != nil {
		return nil, err
	}

	report := &VarianceReport{
		ItemID:        item.ID,
		ItemName:      item.Name,
		Expected:      item.Amount,
		TotalVariance: decimal.Zero,
		MeanVariance:  decimal.Zero,
	}
	expectedAbs := item.Amount.Abs()
	for _, m := range matches {
		tx, err := r.matches.GetTransaction(ctx, m.TransactionID)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			return nil, fmt.Errorf("match %s references missing transaction %s", m.ID, m.TransactionID)
		}
		variance := tx.Amount.Abs().Sub(expectedAbs)
		report.Rows = append(report.Rows, VarianceRow{
			OccurrenceDate:  m.OccurrenceDate,
			TransactionDate: tx.Date,
			Description:     tx.Description,
			Expected:        item.Amount,
			Actual:          tx.Amount,
			Variance:        variance,
			DateOffsetDays:  m.DateOffsetDays,
		})
		report.TotalVariance = report.TotalVariance.Add(variance)
	}
	if n := len(report.Rows); n > 0 {
		report.MeanVariance = report.TotalVariance.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	return report, nil
}

// Project totals upcoming instances per active item over the window.
func (r *Reporter) Project(ctx context.Context, windowStart, windowEnd time.Time) (*Forecast, error) {
	items, err := r.items.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := r.projector.ProjectAll(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	byItem := make(map[uuid.UUID]*ForecastLine, len(items))
	forecast := &Forecast{
		WindowStart: models.DateOnly(windowStart),
		WindowEnd:   models.DateOnly(windowEnd),
		Total:       decimal.Zero,
	}
	for _, item := range items {
		line := &ForecastLine{ItemID: item.ID, ItemName: item.Name, Total: decimal.Zero}
		byItem[item.ID] = line
	}
	for _, inst := range instances {
		line, ok := byItem[inst.ItemID]
		if !ok {
			continue
		}
		if !inst.CountsTowardTotals() {
			line.Skipped++
			continue
		}
		line.Occurrences++
		line.Total = line.Total.Add(inst.Amount)
		forecast.Total = forecast.Total.Add(inst.Amount)
	}
	for _, item := range items {
		forecast.Lines = append(forecast.Lines, *byItem[item.ID])
	}
	return forecast, nil
}

// RenderJSON serializes a report for machine consumption.
func RenderJSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}
