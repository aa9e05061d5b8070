package categorizer

import (
	"context"
	"strings"

	"fjacquet/budget-recon/internal/models"
)

// KeywordStrategy matches transaction descriptions against the keyword
// lists of the configured categories. Matching is case-insensitive
// substring containment; the first category with a hit wins, in file
// order.
type KeywordStrategy struct {
	categories []CategoryConfig
}

// NewKeywordStrategy lowercases all keywords once up front.
func NewKeywordStrategy(categories []CategoryConfig) *KeywordStrategy {
	normalized := make([]CategoryConfig, 0, len(categories))
	for _, c := range categories {
		nc := CategoryConfig{Name: c.Name, Keywords: make([]string, 0, len(c.Keywords))}
		for _, k := range c.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				nc.Keywords = append(nc.Keywords, k)
			}
		}
		normalized = append(normalized, nc)
	}
	return &KeywordStrategy{categories: normalized}
}

func (s *KeywordStrategy) Name() string { return "keyword" }

func (s *KeywordStrategy) Categorize(_ context.Context, tx models.Transaction) (string, bool, error) {
	description := strings.ToLower(tx.Description)
	if description == "" {
		return "", false, nil
	}
	for _, c := range s.categories {
		for _, keyword := range c.Keywords {
			if strings.Contains(description, keyword) {
				return c.Name, true, nil
			}
		}
	}
	return "", false, nil
}
