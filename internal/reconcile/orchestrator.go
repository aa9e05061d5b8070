// Package reconcile orchestrates matching imported transactions against
// projected recurring instances: batch runs, accept/reject decisions,
// manual linking and unlinking.
//
// Every mutation is a single atomic persistence transaction executed by the
// Store; the (item, occurrence date) uniqueness constraint in the store is
// the sole guard against two concurrent runs realizing the same occurrence.
// A losing writer surfaces a ConflictError.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fjacquet/budget-recon/internal/domainerr"
	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/matching"
	"fjacquet/budget-recon/internal/models"
	"fjacquet/budget-recon/internal/projection"
	"fjacquet/budget-recon/internal/recurrence"
)

// Store is the persistence port of the orchestrator. Compound methods
// (CreateMatchWithLink, AcceptMatch, UnlinkMatch) commit their writes in
// one database transaction so a batch interrupted mid-way never leaves a
// match without its link.
type Store interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error)
	// OpenMatchForTransaction returns the transaction's Suggested or
	// AutoMatched match, or nil.
	OpenMatchForTransaction(ctx context.Context, txID uuid.UUID) (*models.ReconciliationMatch, error)
	LinkForTransaction(ctx context.Context, txID uuid.UUID) (*models.RealizedLink, error)
	LinkForOccurrence(ctx context.Context, itemID uuid.UUID, date time.Time) (*models.RealizedLink, error)
	CreateMatch(ctx context.Context, m models.ReconciliationMatch) error
	CreateMatchWithLink(ctx context.Context, m models.ReconciliationMatch, link models.RealizedLink) error
	// ResolveMatch persists a status/reason/resolved-at update.
	ResolveMatch(ctx context.Context, m models.ReconciliationMatch) error
	AcceptMatch(ctx context.Context, m models.ReconciliationMatch, link models.RealizedLink) error
	// UnlinkMatch persists the match update and deletes the realized link
	// of m's transaction, if any, atomically.
	UnlinkMatch(ctx context.Context, m models.ReconciliationMatch) error
	AddImportPattern(ctx context.Context, itemID uuid.UUID, pattern string) error
}

// Action describes what RunBatch decided for one transaction.
type Action string

const (
	ActionAutoMatched   Action = "auto_matched"
	ActionSuggested     Action = "suggested"
	ActionUnmatched     Action = "unmatched"
	ActionAlreadyLinked Action = "already_linked"
	ActionPending       Action = "pending" // an open suggestion already exists
	ActionConflict      Action = "conflict"
)

// Outcome is the per-transaction result of a batch run.
type Outcome struct {
	TransactionID uuid.UUID
	Action        Action
	MatchID       uuid.UUID
	Score         float64
	Tier          models.ConfidenceTier
}

// BatchResult aggregates a RunBatch call.
type BatchResult struct {
	Outcomes    []Outcome
	AutoMatched int
	Suggested   int
	Unmatched   int
	Conflicts   int
}

func (r *BatchResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Action {
	case ActionAutoMatched:
		r.AutoMatched++
	case ActionSuggested:
		r.Suggested++
	case ActionUnmatched:
		r.Unmatched++
	case ActionConflict:
		r.Conflicts++
	}
}

// Orchestrator runs reconciliation against the projector and the store.
type Orchestrator struct {
	projector  *projection.Projector
	items      projection.ItemStore
	store      Store
	tolerances matching.Tolerances
	log        logging.Logger
}

// New validates the tolerances and builds an Orchestrator.
func New(projector *projection.Projector, items projection.ItemStore, store Store, tol matching.Tolerances, log logging.Logger) (*Orchestrator, error) {
	if err := tol.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &Orchestrator{
		projector:  projector,
		items:      items,
		store:      store,
		tolerances: tol,
		log:        log,
	}, nil
}

type occurrenceKey struct {
	itemID uuid.UUID
	date   time.Time
}

// RunBatch reconciles the transactions in input order. Each transaction's
// decision commits independently; re-running the same batch is idempotent
// because already-linked transactions and open suggestions are skipped and
// the link uniqueness constraint rejects double realization.
func (o *Orchestrator) RunBatch(ctx context.Context, txs []models.Transaction) (*BatchResult, error) {
	items, err := o.items.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	itemIndex := make(map[uuid.UUID]models.RecurringItem, len(items))
	maxToleranceDays := o.tolerances.DateToleranceDays
	for _, item := range items {
		itemIndex[item.ID] = item
		if d := o.tolerances.WithOverride(item.Tolerances).DateToleranceDays; d > maxToleranceDays {
			maxToleranceDays = d
		}
	}

	result := &BatchResult{}
	claimed := make(map[occurrenceKey]bool)
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome, err := o.reconcileOne(ctx, tx, itemIndex, maxToleranceDays, claimed)
		if err != nil {
			return nil, fmt.Errorf("reconciling transaction %s: %w", tx.ID, err)
		}
		result.add(outcome)
	}

	o.log.Info("Batch reconciliation finished",
		logging.Field{Key: logging.FieldCount, Value: len(txs)},
		logging.Field{Key: "auto_matched", Value: result.AutoMatched},
		logging.Field{Key: "suggested", Value: result.Suggested},
		logging.Field{Key: "unmatched", Value: result.Unmatched},
		logging.Field{Key: "conflicts", Value: result.Conflicts})
	return result, nil
}

func (o *Orchestrator) reconcileOne(ctx context.Context, tx models.Transaction, items map[uuid.UUID]models.RecurringItem, windowDays int, claimed map[occurrenceKey]bool) (Outcome, error) {
	// Idempotency: a linked transaction is settled, an open suggestion is
	// awaiting a decision. Neither gets a second match record.
	if link, err := o.store.LinkForTransaction(ctx, tx.ID); err != nil {
		return Outcome{}, err
	} else if link != nil {
		return Outcome{TransactionID: tx.ID, Action: ActionAlreadyLinked}, nil
	}
	if open, err := o.store.OpenMatchForTransaction(ctx, tx.ID); err != nil {
		return Outcome{}, err
	} else if open != nil {
		return Outcome{TransactionID: tx.ID, Action: ActionPending, MatchID: open.ID}, nil
	}

	windowStart := tx.Date.AddDate(0, 0, -windowDays)
	windowEnd := tx.Date.AddDate(0, 0, windowDays)
	instances, err := o.projector.ProjectAll(ctx, windowStart, windowEnd)
	if err != nil {
		return Outcome{}, err
	}

	best := o.pickBest(tx, instances, items, claimed)
	if best == nil {
		return Outcome{TransactionID: tx.ID, Action: ActionUnmatched}, nil
	}

	switch best.Tier {
	case models.TierHigh:
		return o.autoMatch(ctx, tx, best, claimed)
	case models.TierMedium:
		return o.suggest(ctx, tx, best)
	default:
		return Outcome{TransactionID: tx.ID, Action: ActionUnmatched}, nil
	}
}

// pickBest scores every eligible candidate under its item's tolerances and
// ranks with the matcher's tie-break order.
func (o *Orchestrator) pickBest(tx models.Transaction, instances []models.ProjectedInstance, items map[uuid.UUID]models.RecurringItem, claimed map[occurrenceKey]bool) *matching.Result {
	var best *matching.Result
	for _, inst := range instances {
		if inst.Status == models.StatusSkipped {
			continue
		}
		if claimed[occurrenceKey{itemID: inst.ItemID, date: inst.ScheduledDate}] {
			continue
		}
		item, ok := items[inst.ItemID]
		if !ok {
			continue
		}
		tol := o.tolerances.WithOverride(item.Tolerances)
		if models.DaysBetween(tx.Date, inst.EffectiveDate) > tol.DateToleranceDays {
			continue
		}
		candidate := matching.Candidate{Instance: inst, Patterns: item.Patterns}
		r := matching.BestMatch(tx, []matching.Candidate{candidate}, tol)
		if r == nil {
			continue
		}
		if best == nil || matching.Better(r, best) {
			best = r
		}
	}
	return best
}

func (o *Orchestrator) autoMatch(ctx context.Context, tx models.Transaction, best *matching.Result, claimed map[occurrenceKey]bool) (Outcome, error) {
	now := time.Now().UTC()
	match := models.ReconciliationMatch{
		ID:             uuid.New(),
		TransactionID:  tx.ID,
		ItemID:         best.Candidate.Instance.ItemID,
		OccurrenceDate: best.Candidate.Instance.ScheduledDate,
		Confidence:     best.Score,
		Tier:           best.Tier,
		Status:         models.MatchAutoMatched,
		Source:         models.SourceAuto,
		AmountVariance: best.AmountVariance,
		DateOffsetDays: best.DateOffsetDays,
		CreatedAt:      now,
	}
	link := models.RealizedLink{
		ID:             uuid.New(),
		ItemID:         match.ItemID,
		OccurrenceDate: match.OccurrenceDate,
		TransactionID:  tx.ID,
		CreatedAt:      now,
	}

	if err := o.store.CreateMatchWithLink(ctx, match, link); err != nil {
		// A concurrent run realized the occurrence first. The decision
		// for this transaction is lost, not the batch.
		if domainerr.IsConflict(err) {
			o.log.WithError(err).Warn("Occurrence realized concurrently, skipping transaction",
				logging.Field{Key: logging.FieldTransactionID, Value: tx.ID.String()},
				logging.Field{Key: logging.FieldOccurrence, Value: models.FormatDate(match.OccurrenceDate)})
			return Outcome{TransactionID: tx.ID, Action: ActionConflict}, nil
		}
		return Outcome{}, err
	}

	claimed[occurrenceKey{itemID: match.ItemID, date: match.OccurrenceDate}] = true
	o.log.Info("Transaction auto-matched",
		logging.Field{Key: logging.FieldTransactionID, Value: tx.ID.String()},
		logging.Field{Key: logging.FieldMatchID, Value: match.ID.String()},
		logging.Field{Key: logging.FieldScore, Value: best.Score})
	return Outcome{TransactionID: tx.ID, Action: ActionAutoMatched, MatchID: match.ID, Score: best.Score, Tier: best.Tier}, nil
}

func (o *Orchestrator) suggest(ctx context.Context, tx models.Transaction, best *matching.Result) (Outcome, error) {
	match := models.ReconciliationMatch{
		ID:             uuid.New(),
		TransactionID:  tx.ID,
		ItemID:         best.Candidate.Instance.ItemID,
		OccurrenceDate: best.Candidate.Instance.ScheduledDate,
		Confidence:     best.Score,
		Tier:           best.Tier,
		Status:         models.MatchSuggested,
		Source:         models.SourceAuto,
		AmountVariance: best.AmountVariance,
		DateOffsetDays: best.DateOffsetDays,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.store.CreateMatch(ctx, match); err != nil {
		return Outcome{}, err
	}
	return Outcome{TransactionID: tx.ID, Action: ActionSuggested, MatchID: match.ID, Score: best.Score, Tier: best.Tier}, nil
}

// Accept confirms a suggested (or formalizes an auto-matched) match and
// creates its realized link. Accepting an already-resolved match or an
// occurrence realized by a different match is a conflict.
func (o *Orchestrator) Accept(ctx context.Context, matchID uuid.UUID) error {
	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return &domainerr.NotFoundError{Entity: "match", ID: matchID.String()}
	}
	switch m.Status {
	case models.MatchAccepted:
		return &domainerr.ConflictError{Entity: "match", Reason: "occurrence already realized by this match"}
	case models.MatchRejected:
		return &domainerr.ConflictError{Entity: "match", Reason: "match already rejected"}
	}

	now := time.Now().UTC()
	resolved := *m
	resolved.Status = models.MatchAccepted
	resolved.ResolvedAt = &now

	existing, err := o.store.LinkForOccurrence(ctx, m.ItemID, m.OccurrenceDate)
	if err != nil {
		return err
	}
	if existing != nil {
		if m.Status == models.MatchAutoMatched && existing.TransactionID == m.TransactionID {
			// The link was created by RunBatch; only the status changes.
			return o.store.ResolveMatch(ctx, resolved)
		}
		return &domainerr.ConflictError{Entity: "realized link", Reason: "occurrence already realized by a different match"}
	}
	if link, err := o.store.LinkForTransaction(ctx, m.TransactionID); err != nil {
		return err
	} else if link != nil {
		return &domainerr.ConflictError{Entity: "realized link", Reason: "transaction already linked"}
	}

	link := models.RealizedLink{
		ID:             uuid.New(),
		ItemID:         m.ItemID,
		OccurrenceDate: m.OccurrenceDate,
		TransactionID:  m.TransactionID,
		CreatedAt:      now,
	}
	return o.store.AcceptMatch(ctx, resolved, link)
}

// Reject declines a suggested or auto-matched match; an auto-matched
// rejection also unwinds its realized link. The transaction returns to the
// unmatched pool.
func (o *Orchestrator) Reject(ctx context.Context, matchID uuid.UUID, reason string) error {
	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return &domainerr.NotFoundError{Entity: "match", ID: matchID.String()}
	}
	if !m.Open() {
		return &domainerr.ConflictError{Entity: "match", Reason: fmt.Sprintf("cannot reject match in status %s", m.Status)}
	}

	now := time.Now().UTC()
	resolved := *m
	resolved.Status = models.MatchRejected
	resolved.Reason = reason
	resolved.ResolvedAt = &now

	if m.Status == models.MatchAutoMatched {
		return o.store.UnlinkMatch(ctx, resolved)
	}
	return o.store.ResolveMatch(ctx, resolved)
}

// ManualLink links a transaction to a specific occurrence, bypassing
// scoring. With rememberPattern the transaction's description becomes a new
// import pattern on the item, validated against other items' patterns
// before anything is written.
func (o *Orchestrator) ManualLink(ctx context.Context, txID, itemID uuid.UUID, instanceDate time.Time, rememberPattern bool) (*models.ReconciliationMatch, error) {
	tx, err := o.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &domainerr.NotFoundError{Entity: "transaction", ID: txID.String()}
	}
	item, err := o.items.GetRecurringItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	date := models.DateOnly(instanceDate)
	if !recurrence.OccursOn(item.Rule, date) {
		return nil, &domainerr.InvariantError{
			Invariant: "occurrence-exists",
			Detail:    fmt.Sprintf("%s is not an occurrence of item %s", models.FormatDate(date), item.Name),
		}
	}
	if link, err := o.store.LinkForTransaction(ctx, txID); err != nil {
		return nil, err
	} else if link != nil {
		return nil, &domainerr.ConflictError{Entity: "realized link", Reason: "transaction already linked, unlink first"}
	}
	if link, err := o.store.LinkForOccurrence(ctx, itemID, date); err != nil {
		return nil, err
	} else if link != nil {
		return nil, &domainerr.ConflictError{Entity: "realized link", Reason: "occurrence already realized"}
	}

	if rememberPattern {
		if err := o.store.AddImportPattern(ctx, itemID, tx.Description); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	match := models.ReconciliationMatch{
		ID:             uuid.New(),
		TransactionID:  txID,
		ItemID:         itemID,
		OccurrenceDate: date,
		Confidence:     1.0,
		Tier:           models.TierHigh,
		Status:         models.MatchAccepted,
		Source:         models.SourceManual,
		AmountVariance: tx.Amount.Abs().Sub(item.Amount.Abs()).Abs(),
		DateOffsetDays: models.DaysBetween(tx.Date, date),
		CreatedAt:      now,
		ResolvedAt:     &now,
	}
	link := models.RealizedLink{
		ID:             uuid.New(),
		ItemID:         itemID,
		OccurrenceDate: date,
		TransactionID:  txID,
		CreatedAt:      now,
	}
	if err := o.store.CreateMatchWithLink(ctx, match, link); err != nil {
		return nil, err
	}
	return &match, nil
}

// Unlink reverts an accepted or auto-matched match: the match becomes
// Rejected, the realized link is deleted, and both the transaction and the
// instance return to the unmatched pool.
func (o *Orchestrator) Unlink(ctx context.Context, matchID uuid.UUID) error {
	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return &domainerr.NotFoundError{Entity: "match", ID: matchID.String()}
	}
	if !m.Linked() {
		return &domainerr.ConflictError{Entity: "match", Reason: fmt.Sprintf("cannot unlink match in status %s", m.Status)}
	}

	now := time.Now().UTC()
	resolved := *m
	resolved.Status = models.MatchRejected
	resolved.Reason = "unlinked"
	resolved.ResolvedAt = &now
	return o.store.UnlinkMatch(ctx, resolved)
}
