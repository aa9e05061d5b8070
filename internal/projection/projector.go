// Package projection produces the effective view of recurring items over a
// date window: occurrences, exception overlay applied, realized occurrences
// filtered out. Projection is a pure read; it is regenerated on every query
// and persists nothing.
package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/models"
	"fjacquet/budget-recon/internal/recurrence"
)

// ItemStore supplies recurring items.
type ItemStore interface {
	GetRecurringItem(ctx context.Context, id uuid.UUID) (*models.RecurringItem, error)
	ListActiveItems(ctx context.Context) ([]models.RecurringItem, error)
}

// ExceptionStore supplies per-occurrence exceptions for an item and window.
type ExceptionStore interface {
	ExceptionsForItem(ctx context.Context, itemID uuid.UUID, windowStart, windowEnd time.Time) ([]models.RecurringException, error)
}

// LinkStore reports which (item, occurrence date) pairs are already
// realized as ledger transactions.
type LinkStore interface {
	RealizedLinks(ctx context.Context, itemIDs []uuid.UUID, windowStart, windowEnd time.Time) ([]models.RealizedLink, error)
}

// Projector wires the evaluator, the overlay and the realized-link filter.
type Projector struct {
	Items      ItemStore
	Exceptions ExceptionStore
	Links      LinkStore
	Log        logging.Logger
}

// New creates a Projector.
func New(items ItemStore, exceptions ExceptionStore, links LinkStore, log logging.Logger) *Projector {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &Projector{Items: items, Exceptions: exceptions, Links: links, Log: log}
}

// Project returns the projected instances of one recurring item within
// [windowStart, windowEnd], excluding occurrences that are already
// realized. Returns NotFound for an unknown item id.
func (p *Projector) Project(ctx context.Context, itemID uuid.UUID, windowStart, windowEnd time.Time) ([]models.ProjectedInstance, error) {
	item, err := p.Items.GetRecurringItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return p.projectItem(ctx, *item, windowStart, windowEnd)
}

// ProjectAll fans out over every active recurring item and returns all
// not-yet-realized projected instances within the window, ordered per item
// by scheduled date.
func (p *Projector) ProjectAll(ctx context.Context, windowStart, windowEnd time.Time) ([]models.ProjectedInstance, error) {
	items, err := p.Items.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.ProjectedInstance
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		instances, err := p.projectItem(ctx, item, windowStart, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("projecting item %s: %w", item.ID, err)
		}
		all = append(all, instances...)
	}

	p.Log.Debug("Projected instances across active items",
		logging.Field{Key: logging.FieldCount, Value: len(all)},
		logging.Field{Key: logging.FieldWindowStart, Value: models.FormatDate(windowStart)},
		logging.Field{Key: logging.FieldWindowEnd, Value: models.FormatDate(windowEnd)})
	return all, nil
}

func (p *Projector) projectItem(ctx context.Context, item models.RecurringItem, windowStart, windowEnd time.Time) ([]models.ProjectedInstance, error) {
	dates := recurrence.Occurrences(item.Rule, windowStart, windowEnd)
	if len(dates) == 0 {
		return nil, nil
	}

	exceptions, err := p.Exceptions.ExceptionsForItem(ctx, item.ID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	instances := recurrence.ApplyExceptions(item, dates, exceptions)

	links, err := p.Links.RealizedLinks(ctx, []uuid.UUID{item.ID}, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	realized := make(map[time.Time]bool, len(links))
	for _, link := range links {
		realized[models.DateOnly(link.OccurrenceDate)] = true
	}

	out := instances[:0]
	for _, inst := range instances {
		if realized[inst.ScheduledDate] {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}
