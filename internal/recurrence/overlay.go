package recurrence

import (
	"time"

	"fjacquet/budget-recon/internal/models"
)

// ApplyExceptions turns raw occurrence dates into projected instances for
// item, overlaying exceptions keyed by exact scheduled date. Skipped
// occurrences are still emitted (status Skipped) so callers can render
// them; they are excluded from totals downstream. The output preserves the
// input order, which is ascending by scheduled date even when a Modify
// exception moves the effective date.
func ApplyExceptions(item models.RecurringItem, dates []time.Time, exceptions []models.RecurringException) []models.ProjectedInstance {
	index := models.ExceptionIndex(exceptions)

	instances := make([]models.ProjectedInstance, 0, len(dates))
	for _, d := range dates {
		scheduled := models.DateOnly(d)
		instance := models.ProjectedInstance{
			ItemID:        item.ID,
			ItemName:      item.Name,
			Kind:          item.Kind,
			ScheduledDate: scheduled,
			EffectiveDate: scheduled,
			Amount:        item.Amount,
			Description:   expectedDescription(item),
			Status:        models.StatusNormal,
		}

		if ex, ok := index[scheduled]; ok {
			switch ex.Kind {
			case models.ExceptionSkip:
				instance.Status = models.StatusSkipped
			case models.ExceptionModify:
				instance.Status = models.StatusModified
				if ex.Overrides.Amount != nil {
					instance.Amount = *ex.Overrides.Amount
				}
				if ex.Overrides.Date != nil {
					instance.EffectiveDate = models.DateOnly(*ex.Overrides.Date)
				}
				if ex.Overrides.Description != nil {
					instance.Description = *ex.Overrides.Description
				}
			}
		}

		instances = append(instances, instance)
	}
	return instances
}

// expectedDescription is what the matcher compares imported descriptions
// against when no import pattern fires.
func expectedDescription(item models.RecurringItem) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Name
}
