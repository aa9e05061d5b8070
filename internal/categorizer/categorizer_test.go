package categorizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/models"
)

type stubStrategy struct {
	name     string
	category string
	found    bool
	err      error
	calls    int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Categorize(_ context.Context, _ models.Transaction) (string, bool, error) {
	s.calls++
	return s.category, s.found, s.err
}

func sampleTx(description string) models.Transaction {
	return models.NewTransaction(
		time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		decimal.RequireFromString("-15.99"),
		description)
}

func TestCategorizeFirstHitWins(t *testing.T) {
	first := &stubStrategy{name: "first", category: "Streaming", found: true}
	second := &stubStrategy{name: "second", category: "Other", found: true}
	c := New(&logging.MockLogger{}, first, second)

	got, err := c.Categorize(context.Background(), sampleTx("NETFLIX.COM"))
	require.NoError(t, err)
	assert.Equal(t, "Streaming", got)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestCategorizeContinuesPastFailingStrategy(t *testing.T) {
	failing := &stubStrategy{name: "failing", err: errors.New("api down")}
	working := &stubStrategy{name: "working", category: "Groceries", found: true}
	log := &logging.MockLogger{}
	c := New(log, failing, working)

	got, err := c.Categorize(context.Background(), sampleTx("MIGROS"))
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got)
	assert.NotEmpty(t, log.EntriesByLevel("WARN"))
}

func TestCategorizeFallback(t *testing.T) {
	miss := &stubStrategy{name: "miss"}
	c := New(&logging.MockLogger{}, miss)

	got, err := c.Categorize(context.Background(), sampleTx("MYSTERY SHOP"))
	require.NoError(t, err)
	assert.Equal(t, FallbackCategory, got)

	// An empty chain falls back too.
	got, err = New(&logging.MockLogger{}).Categorize(context.Background(), sampleTx("ANYTHING"))
	require.NoError(t, err)
	assert.Equal(t, FallbackCategory, got)
}

func TestCategorizeAllPreservesExistingCategories(t *testing.T) {
	strategy := &stubStrategy{name: "stub", category: "Streaming", found: true}
	c := New(&logging.MockLogger{}, strategy)

	tagged := sampleTx("MIGROS")
	tagged.Category = "Groceries"
	txs := []models.Transaction{tagged, sampleTx("NETFLIX.COM")}

	out, err := c.CategorizeAll(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", out[0].Category)
	assert.Equal(t, "Streaming", out[1].Category)
	assert.Equal(t, 1, strategy.calls)
}

func TestCategorizeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(&logging.MockLogger{}, &stubStrategy{name: "stub", found: true})
	_, err := c.Categorize(ctx, sampleTx("ANYTHING"))
	assert.ErrorIs(t, err, context.Canceled)
}
