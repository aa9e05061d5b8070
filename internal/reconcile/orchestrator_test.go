package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/budget-recon/internal/domainerr"
	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/matching"
	"fjacquet/budget-recon/internal/models"
	"fjacquet/budget-recon/internal/projection"
)

// memStore backs both the orchestrator's Store port and the projector's
// item/exception/link ports for tests.
type memStore struct {
	items      map[uuid.UUID]models.RecurringItem
	exceptions []models.RecurringException
	txs        map[uuid.UUID]models.Transaction
	matches    map[uuid.UUID]models.ReconciliationMatch
	links      map[uuid.UUID]models.RealizedLink
	patterns   map[uuid.UUID][]string
}

func newMemStore(items ...models.RecurringItem) *memStore {
	s := &memStore{
		items:    make(map[uuid.UUID]models.RecurringItem),
		txs:      make(map[uuid.UUID]models.Transaction),
		matches:  make(map[uuid.UUID]models.ReconciliationMatch),
		links:    make(map[uuid.UUID]models.RealizedLink),
		patterns: make(map[uuid.UUID][]string),
	}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *memStore) GetRecurringItem(_ context.Context, id uuid.UUID) (*models.RecurringItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, &domainerr.NotFoundError{Entity: "recurring item", ID: id.String()}
	}
	return &item, nil
}

func (s *memStore) ListActiveItems(_ context.Context) ([]models.RecurringItem, error) {
	var out []models.RecurringItem
	for _, item := range s.items {
		if item.Active {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore) ExceptionsForItem(_ context.Context, itemID uuid.UUID, _, _ time.Time) ([]models.RecurringException, error) {
	var out []models.RecurringException
	for _, ex := range s.exceptions {
		if ex.ItemID == itemID {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (s *memStore) RealizedLinks(_ context.Context, itemIDs []uuid.UUID, _, _ time.Time) ([]models.RealizedLink, error) {
	var out []models.RealizedLink
	for _, link := range s.links {
		for _, id := range itemIDs {
			if link.ItemID == id {
				out = append(out, link)
			}
		}
	}
	return out, nil
}

func (s *memStore) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (s *memStore) GetMatch(_ context.Context, id uuid.UUID) (*models.ReconciliationMatch, error) {
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memStore) OpenMatchForTransaction(_ context.Context, txID uuid.UUID) (*models.ReconciliationMatch, error) {
	for _, m := range s.matches {
		if m.TransactionID == txID && m.Open() {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memStore) LinkForTransaction(_ context.Context, txID uuid.UUID) (*models.RealizedLink, error) {
	for _, link := range s.links {
		if link.TransactionID == txID {
			link := link
			return &link, nil
		}
	}
	return nil, nil
}

func (s *memStore) LinkForOccurrence(_ context.Context, itemID uuid.UUID, date time.Time) (*models.RealizedLink, error) {
	for _, link := range s.links {
		if link.ItemID == itemID && link.OccurrenceDate.Equal(date) {
			link := link
			return &link, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateMatch(_ context.Context, m models.ReconciliationMatch) error {
	s.matches[m.ID] = m
	return nil
}

func (s *memStore) CreateMatchWithLink(ctx context.Context, m models.ReconciliationMatch, link models.RealizedLink) error {
	if existing, _ := s.LinkForOccurrence(ctx, link.ItemID, link.OccurrenceDate); existing != nil {
		return &domainerr.ConflictError{Entity: "realized link", Reason: "occurrence already realized"}
	}
	if existing, _ := s.LinkForTransaction(ctx, link.TransactionID); existing != nil {
		return &domainerr.ConflictError{Entity: "realized link", Reason: "transaction already linked"}
	}
	s.matches[m.ID] = m
	s.links[link.ID] = link
	return nil
}

func (s *memStore) ResolveMatch(_ context.Context, m models.ReconciliationMatch) error {
	s.matches[m.ID] = m
	return nil
}

func (s *memStore) AcceptMatch(ctx context.Context, m models.ReconciliationMatch, link models.RealizedLink) error {
	if existing, _ := s.LinkForOccurrence(ctx, link.ItemID, link.OccurrenceDate); existing != nil {
		return &domainerr.ConflictError{Entity: "realized link", Reason: "occurrence already realized"}
	}
	s.matches[m.ID] = m
	s.links[link.ID] = link
	return nil
}

func (s *memStore) UnlinkMatch(_ context.Context, m models.ReconciliationMatch) error {
	s.matches[m.ID] = m
	for id, link := range s.links {
		if link.TransactionID == m.TransactionID {
			delete(s.links, id)
		}
	}
	return nil
}

func (s *memStore) AddImportPattern(_ context.Context, itemID uuid.UUID, pattern string) error {
	s.patterns[itemID] = append(s.patterns[itemID], pattern)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthlyItem(t *testing.T, name string, amount string, anchor time.Time, patterns ...string) models.RecurringItem {
	t.Helper()
	rule, err := models.NewRecurrenceRule(models.FrequencyMonthly, 1, anchor, time.Time{}, 0)
	require.NoError(t, err)
	return models.RecurringItem{
		ID:       uuid.New(),
		Name:     name,
		Amount:   decimal.RequireFromString(amount),
		Kind:     models.KindTransaction,
		Rule:     rule,
		Patterns: patterns,
		Active:   true,
	}
}

func newOrchestrator(t *testing.T, store *memStore) *Orchestrator {
	t.Helper()
	log := &logging.MockLogger{}
	proj := projection.New(store, store, store, log)
	o, err := New(proj, store, store, matching.DefaultTolerances(), log)
	require.NoError(t, err)
	return o
}

func TestRunBatchAutoMatchesOnPattern(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT LLC")
	store.txs[tx.ID] = tx

	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionAutoMatched, result.Outcomes[0].Action)
	assert.Equal(t, models.TierHigh, result.Outcomes[0].Tier)
	assert.Equal(t, 1, result.AutoMatched)

	m := store.matches[result.Outcomes[0].MatchID]
	assert.Equal(t, models.MatchAutoMatched, m.Status)
	assert.Equal(t, models.SourceAuto, m.Source)
	link, err := store.LinkForOccurrence(context.Background(), item.ID, date(2024, time.March, 1))
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, tx.ID, link.TransactionID)
}

func TestRunBatchSuggestsMediumConfidence(t *testing.T) {
	// No pattern, fuzzy name distance and a two-day offset keep the score
	// between the suggest and auto-match thresholds.
	item := monthlyItem(t, "Netflix", "-15.99", date(2024, time.January, 15))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 13), decimal.RequireFromString("-15.99"), "NETFLIX.COM")
	store.txs[tx.ID] = tx

	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	out := result.Outcomes[0]
	assert.Equal(t, ActionSuggested, out.Action)
	assert.Equal(t, models.TierMedium, out.Tier)

	m := store.matches[out.MatchID]
	assert.Equal(t, models.MatchSuggested, m.Status)
	// A suggestion carries no link until accepted.
	link, err := store.LinkForTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestRunBatchLeavesStrangersUnmatched(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 2), decimal.RequireFromString("-4.20"), "COFFEE CORNER")
	store.txs[tx.ID] = tx

	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, ActionUnmatched, result.Outcomes[0].Action)
	assert.Empty(t, store.matches)
}

func TestRunBatchIsIdempotent(t *testing.T) {
	auto := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	suggested := monthlyItem(t, "Netflix", "-15.99", date(2024, time.January, 15))
	store := newMemStore(auto, suggested)
	o := newOrchestrator(t, store)

	txs := []models.Transaction{
		models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT"),
		models.NewTransaction(date(2024, time.March, 13), decimal.RequireFromString("-15.99"), "NETFLIX.COM"),
	}
	for _, tx := range txs {
		store.txs[tx.ID] = tx
	}

	first, err := o.RunBatch(context.Background(), txs)
	require.NoError(t, err)
	require.Equal(t, 1, first.AutoMatched)
	require.Equal(t, 1, first.Suggested)

	second, err := o.RunBatch(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, 0, second.AutoMatched)
	assert.Equal(t, 0, second.Suggested)
	assert.Equal(t, ActionAlreadyLinked, second.Outcomes[0].Action)
	assert.Equal(t, ActionPending, second.Outcomes[1].Action)
	assert.Len(t, store.matches, 2)
	assert.Len(t, store.links, 1)
}

func TestRunBatchOneTransactionPerOccurrence(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	// A duplicate charge in the same batch; the occurrence can only be
	// realized once, so the second transaction falls through unmatched.
	first := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT")
	second := models.NewTransaction(date(2024, time.March, 2), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT DUP")
	store.txs[first.ID] = first
	store.txs[second.ID] = second

	result, err := o.RunBatch(context.Background(), []models.Transaction{first, second})
	require.NoError(t, err)
	assert.Equal(t, ActionAutoMatched, result.Outcomes[0].Action)
	assert.Equal(t, ActionUnmatched, result.Outcomes[1].Action)
	assert.Len(t, store.links, 1)
}

func TestRunBatchSkipsSkippedInstances(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	store := newMemStore(item)
	store.exceptions = append(store.exceptions, models.RecurringException{
		ItemID: item.ID,
		Date:   date(2024, time.March, 1),
		Kind:   models.ExceptionSkip,
	})
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT")
	store.txs[tx.ID] = tx

	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, ActionUnmatched, result.Outcomes[0].Action)
}

func TestRunBatchRespectsCancellation(t *testing.T) {
	store := newMemStore(monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1)))
	o := newOrchestrator(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tx := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "RENT")
	_, err := o.RunBatch(ctx, []models.Transaction{tx})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcceptSuggestionCreatesLink(t *testing.T) {
	item := monthlyItem(t, "Netflix", "-15.99", date(2024, time.January, 15))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 13), decimal.RequireFromString("-15.99"), "NETFLIX.COM")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	matchID := result.Outcomes[0].MatchID

	require.NoError(t, o.Accept(context.Background(), matchID))

	m := store.matches[matchID]
	assert.Equal(t, models.MatchAccepted, m.Status)
	require.NotNil(t, m.ResolvedAt)
	link, err := store.LinkForTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, item.ID, link.ItemID)
	assert.Equal(t, date(2024, time.March, 15), link.OccurrenceDate)
}

func TestAcceptTwiceIsConflict(t *testing.T) {
	item := monthlyItem(t, "Netflix", "-15.99", date(2024, time.January, 15))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 13), decimal.RequireFromString("-15.99"), "NETFLIX.COM")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	matchID := result.Outcomes[0].MatchID

	require.NoError(t, o.Accept(context.Background(), matchID))
	err = o.Accept(context.Background(), matchID)
	assert.True(t, domainerr.IsConflict(err), "second accept should conflict, got %v", err)
	assert.Len(t, store.links, 1)
}

func TestAcceptAutoMatchedKeepsExistingLink(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	matchID := result.Outcomes[0].MatchID

	require.NoError(t, o.Accept(context.Background(), matchID))
	assert.Equal(t, models.MatchAccepted, store.matches[matchID].Status)
	assert.Len(t, store.links, 1)
}

func TestAcceptUnknownMatch(t *testing.T) {
	store := newMemStore()
	o := newOrchestrator(t, store)
	err := o.Accept(context.Background(), uuid.New())
	assert.True(t, domainerr.IsNotFound(err))
}

func TestAcceptConflictsWhenOccurrenceTaken(t *testing.T) {
	item := monthlyItem(t, "Netflix", "-15.99", date(2024, time.January, 15))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 13), decimal.RequireFromString("-15.99"), "NETFLIX.COM")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)

	// Someone else realizes the occurrence before the accept lands.
	store.links[uuid.New()] = models.RealizedLink{
		ID:             uuid.New(),
		ItemID:         item.ID,
		OccurrenceDate: date(2024, time.March, 15),
		TransactionID:  uuid.New(),
	}

	err = o.Accept(context.Background(), result.Outcomes[0].MatchID)
	assert.True(t, domainerr.IsConflict(err))
}

func TestRejectSuggestionLeavesNoLink(t *testing.T) {
	item := monthlyItem(t, "Netflix", "-15.99", date(2024, time.January, 15))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 13), decimal.RequireFromString("-15.99"), "NETFLIX.COM")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	matchID := result.Outcomes[0].MatchID

	require.NoError(t, o.Reject(context.Background(), matchID, "different merchant"))
	m := store.matches[matchID]
	assert.Equal(t, models.MatchRejected, m.Status)
	assert.Equal(t, "different merchant", m.Reason)
	assert.Empty(t, store.links)

	err = o.Reject(context.Background(), matchID, "again")
	assert.True(t, domainerr.IsConflict(err))
}

func TestRejectAutoMatchedRemovesLink(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, store.links, 1)

	require.NoError(t, o.Reject(context.Background(), result.Outcomes[0].MatchID, "duplicate charge"))
	assert.Empty(t, store.links)
	assert.Equal(t, models.MatchRejected, store.matches[result.Outcomes[0].MatchID].Status)
}

func TestManualLink(t *testing.T) {
	item := monthlyItem(t, "Gym", "-45.00", date(2024, time.January, 5))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 8), decimal.RequireFromString("-45.00"), "POWERHOUSE FITNESS 0042")
	store.txs[tx.ID] = tx

	m, err := o.ManualLink(context.Background(), tx.ID, item.ID, date(2024, time.March, 5), true)
	require.NoError(t, err)
	assert.Equal(t, models.MatchAccepted, m.Status)
	assert.Equal(t, models.SourceManual, m.Source)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, models.TierHigh, m.Tier)
	assert.Equal(t, []string{"POWERHOUSE FITNESS 0042"}, store.patterns[item.ID])

	link, err := store.LinkForOccurrence(context.Background(), item.ID, date(2024, time.March, 5))
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, tx.ID, link.TransactionID)
}

func TestManualLinkRejectsNonOccurrence(t *testing.T) {
	item := monthlyItem(t, "Gym", "-45.00", date(2024, time.January, 5))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 8), decimal.RequireFromString("-45.00"), "POWERHOUSE FITNESS")
	store.txs[tx.ID] = tx

	_, err := o.ManualLink(context.Background(), tx.ID, item.ID, date(2024, time.March, 6), false)
	assert.True(t, domainerr.IsInvariant(err), "expected invariant violation, got %v", err)
	assert.Empty(t, store.links)
	assert.Empty(t, store.patterns[item.ID])
}

func TestManualLinkConflicts(t *testing.T) {
	item := monthlyItem(t, "Gym", "-45.00", date(2024, time.January, 5))
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	linked := models.NewTransaction(date(2024, time.March, 5), decimal.RequireFromString("-45.00"), "POWERHOUSE FITNESS")
	other := models.NewTransaction(date(2024, time.March, 6), decimal.RequireFromString("-45.00"), "POWERHOUSE FITNESS")
	store.txs[linked.ID] = linked
	store.txs[other.ID] = other

	_, err := o.ManualLink(context.Background(), linked.ID, item.ID, date(2024, time.March, 5), false)
	require.NoError(t, err)

	// Same occurrence again with a different transaction.
	_, err = o.ManualLink(context.Background(), other.ID, item.ID, date(2024, time.March, 5), false)
	assert.True(t, domainerr.IsConflict(err))

	// Same transaction again to a different occurrence.
	_, err = o.ManualLink(context.Background(), linked.ID, item.ID, date(2024, time.April, 5), false)
	assert.True(t, domainerr.IsConflict(err))

	_, err = o.ManualLink(context.Background(), uuid.New(), item.ID, date(2024, time.April, 5), false)
	assert.True(t, domainerr.IsNotFound(err))
}

func TestUnlinkReturnsInstanceToProjection(t *testing.T) {
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 1), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT")
	store.txs[tx.ID] = tx
	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	matchID := result.Outcomes[0].MatchID

	proj := projection.New(store, store, store, &logging.MockLogger{})
	before, err := proj.Project(context.Background(), item.ID, date(2024, time.March, 1), date(2024, time.March, 31))
	require.NoError(t, err)
	assert.Empty(t, before, "realized occurrence must be excluded")

	require.NoError(t, o.Unlink(context.Background(), matchID))
	assert.Equal(t, models.MatchRejected, store.matches[matchID].Status)
	assert.Empty(t, store.links)

	after, err := proj.Project(context.Background(), item.ID, date(2024, time.March, 1), date(2024, time.March, 31))
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, date(2024, time.March, 1), after[0].ScheduledDate)

	// Only linked matches can be unlinked.
	err = o.Unlink(context.Background(), matchID)
	assert.True(t, domainerr.IsConflict(err))
}

func TestPerItemToleranceOverrides(t *testing.T) {
	// A tight one-day date tolerance on the item excludes a transaction
	// the global seven-day tolerance would have matched.
	tight := 1
	item := monthlyItem(t, "Rent", "-1500.00", date(2024, time.January, 1), "ACME PROPERTY")
	item.Tolerances = &models.ToleranceOverride{DateToleranceDays: &tight}
	store := newMemStore(item)
	o := newOrchestrator(t, store)

	tx := models.NewTransaction(date(2024, time.March, 4), decimal.RequireFromString("-1500.00"), "ACME PROPERTY MGMT")
	store.txs[tx.ID] = tx

	result, err := o.RunBatch(context.Background(), []models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, ActionUnmatched, result.Outcomes[0].Action)
}
