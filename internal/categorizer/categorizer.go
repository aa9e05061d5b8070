// Package categorizer assigns spending categories to imported transactions.
// Strategies are tried in order: local keyword rules first, then the Gemini
// model as a fallback when one is configured. Transactions no strategy can
// place get the fallback category.
package categorizer

import (
	"context"

	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/models"
)

// FallbackCategory is assigned when every strategy passes.
const FallbackCategory = "Uncategorized"

// Strategy is one way of deciding a transaction's category.
type Strategy interface {
	// Categorize returns the category and whether this strategy could
	// decide. An error aborts only this strategy, not the chain.
	Categorize(ctx context.Context, tx models.Transaction) (string, bool, error)
	Name() string
}

// Categorizer runs a strategy chain over transactions.
type Categorizer struct {
	strategies []Strategy
	log        logging.Logger
}

// New builds a Categorizer; nil strategies are dropped.
func New(log logging.Logger, strategies ...Strategy) *Categorizer {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	c := &Categorizer{log: log}
	for _, s := range strategies {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c
}

// Categorize returns the first strategy's answer, or FallbackCategory when
// none matches. Strategy errors are logged and the chain continues.
func (c *Categorizer) Categorize(ctx context.Context, tx models.Transaction) (string, error) {
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		category, found, err := s.Categorize(ctx, tx)
		if err != nil {
			c.log.WithError(err).Warn("Categorization strategy failed",
				logging.Field{Key: logging.FieldStrategy, Value: s.Name()})
			continue
		}
		if found {
			c.log.Debug("Transaction categorized",
				logging.Field{Key: logging.FieldStrategy, Value: s.Name()},
				logging.Field{Key: logging.FieldCategory, Value: category})
			return category, nil
		}
	}
	return FallbackCategory, nil
}

// CategorizeAll fills the Category field of every transaction that does
// not already have one.
func (c *Categorizer) CategorizeAll(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	out := make([]models.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx
		if tx.Category != "" {
			continue
		}
		category, err := c.Categorize(ctx, tx)
		if err != nil {
			return nil, err
		}
		out[i].Category = category
	}
	return out, nil
}
