package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fjacquet/budget-recon/internal/domainerr"
	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/matching"
	"fjacquet/budget-recon/internal/models"
	"fjacquet/budget-recon/internal/recurrence"
)

// SQLiteStore is the ledger persistence layer. It backs both the projector
// ports and the reconciliation orchestrator's Store.
type SQLiteStore struct {
	db  *sql.DB
	log logging.Logger
}

// NewSQLiteStore wraps an open database.
func NewSQLiteStore(db *sql.DB, log logging.Logger) *SQLiteStore {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &SQLiteStore{db: db, log: log}
}

// ---------------------------------------------------------------------------
// Recurring items
// ---------------------------------------------------------------------------

// CreateRecurringItem inserts the item and its import patterns atomically.
func (s *SQLiteStore) CreateRecurringItem(ctx context.Context, item models.RecurringItem) error {
	if item.Name == "" {
		return &domainerr.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !item.Kind.Valid() {
		return &domainerr.ValidationError{Field: "kind", Reason: "unknown kind " + string(item.Kind)}
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recurring_items
				(id, name, description, amount, kind, frequency, interval,
				 anchor, until_date, occurrence_count, active,
				 date_tol_days, amount_tol_pct, amount_tol_abs)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID.String(), item.Name, item.Description, item.Amount.String(),
			string(item.Kind), string(item.Rule.Frequency), item.Rule.Interval,
			models.FormatDate(item.Rule.Anchor), nullDate(item.Rule.Until),
			item.Rule.Count, boolInt(item.Active),
			overrideDays(item.Tolerances), overridePct(item.Tolerances), overrideAbs(item.Tolerances))
		if err != nil {
			return fmt.Errorf("insert recurring item: %w", err)
		}
		for _, p := range item.Patterns {
			if err := insertPattern(ctx, tx, item.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

const itemColumns = `id, name, description, amount, kind, frequency, interval,
	anchor, until_date, occurrence_count, active,
	date_tol_days, amount_tol_pct, amount_tol_abs`

// GetRecurringItem loads an item with its import patterns.
func (s *SQLiteStore) GetRecurringItem(ctx context.Context, id uuid.UUID) (*models.RecurringItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM recurring_items WHERE id = ?", id.String())
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, &domainerr.NotFoundError{Entity: "recurring item", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("load recurring item: %w", err)
	}
	if err := s.loadPatterns(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ListRecurringItems returns every item, active or not, ordered by name.
func (s *SQLiteStore) ListRecurringItems(ctx context.Context) ([]models.RecurringItem, error) {
	return s.listItems(ctx, "SELECT "+itemColumns+" FROM recurring_items ORDER BY name")
}

// ListActiveItems returns the items considered for projection and matching.
func (s *SQLiteStore) ListActiveItems(ctx context.Context) ([]models.RecurringItem, error) {
	return s.listItems(ctx, "SELECT "+itemColumns+" FROM recurring_items WHERE active = 1 ORDER BY name")
}

func (s *SQLiteStore) listItems(ctx context.Context, query string) ([]models.RecurringItem, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []models.RecurringItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range items {
		if err := s.loadPatterns(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SetItemActive pauses or resumes an item without losing its history.
func (s *SQLiteStore) SetItemActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE recurring_items SET active = ? WHERE id = ?", boolInt(active), id.String())
	if err != nil {
		return fmt.Errorf("update recurring item: %w", err)
	}
	return requireRow(res, "recurring item", id.String())
}

// DeleteRecurringItem removes the item together with its exceptions,
// patterns and open matches. The cascade is explicit application logic:
// an item with realized links is in use and the delete is a conflict
// until those occurrences are unlinked. Imported transactions survive.
func (s *SQLiteStore) DeleteRecurringItem(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetRecurringItem(ctx, id); err != nil {
		return err
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		var linked int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM realized_links WHERE item_id = ?", id.String()).Scan(&linked)
		if err != nil {
			return fmt.Errorf("count realized links: %w", err)
		}
		if linked > 0 {
			return &domainerr.ConflictError{
				Entity: "recurring item",
				Reason: fmt.Sprintf("%d realized occurrences exist; unlink them first", linked),
			}
		}
		for _, stmt := range []string{
			"DELETE FROM reconciliation_matches WHERE item_id = ?",
			"DELETE FROM recurrence_exceptions WHERE item_id = ?",
			"DELETE FROM import_patterns WHERE item_id = ?",
			"DELETE FROM recurring_items WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id.String()); err != nil {
				return fmt.Errorf("delete recurring item: %w", err)
			}
		}
		return nil
	})
}

// AddImportPattern attaches a pattern to an item. A pattern has exactly one
// owner across all items, and a new pattern must not overlap another item's
// patterns (it would make their matches ambiguous).
func (s *SQLiteStore) AddImportPattern(ctx context.Context, itemID uuid.UUID, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return &domainerr.ValidationError{Field: "pattern", Reason: "must not be empty"}
	}
	if _, err := s.GetRecurringItem(ctx, itemID); err != nil {
		return err
	}
	if err := s.checkPatternOverlap(ctx, itemID, pattern); err != nil {
		return err
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		return insertPattern(ctx, tx, itemID, pattern)
	})
}

func (s *SQLiteStore) checkPatternOverlap(ctx context.Context, itemID uuid.UUID, pattern string) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id, pattern FROM import_patterns WHERE item_id != ?", itemID.String())
	if err != nil {
		return fmt.Errorf("load import patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var owner, existing string
		if err := rows.Scan(&owner, &existing); err != nil {
			return err
		}
		if matching.MatchesPattern(pattern, existing) || matching.MatchesPattern(existing, pattern) {
			return &domainerr.ConflictError{
				Entity: "import pattern",
				Reason: fmt.Sprintf("pattern %q overlaps %q on another item", pattern, existing),
			}
		}
	}
	return rows.Err()
}

func insertPattern(ctx context.Context, tx *sql.Tx, itemID uuid.UUID, pattern string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO import_patterns (item_id, pattern) VALUES (?, ?)",
		itemID.String(), pattern)
	return conflictOnUnique(err, "import pattern",
		fmt.Sprintf("pattern %q already assigned to an item", pattern))
}

func (s *SQLiteStore) loadPatterns(ctx context.Context, item *models.RecurringItem) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT pattern FROM import_patterns WHERE item_id = ? ORDER BY pattern", item.ID.String())
	if err != nil {
		return fmt.Errorf("load import patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		item.Patterns = append(item.Patterns, p)
	}
	return rows.Err()
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// AddException records a skip or modify for one scheduled occurrence. The
// date must be an occurrence the item's rule actually produces, and each
// occurrence carries at most one exception.
func (s *SQLiteStore) AddException(ctx context.Context, ex models.RecurringException) error {
	if !ex.Kind.Valid() {
		return &domainerr.ValidationError{Field: "kind", Reason: "unknown exception kind " + string(ex.Kind)}
	}
	item, err := s.GetRecurringItem(ctx, ex.ItemID)
	if err != nil {
		return err
	}
	date := models.DateOnly(ex.Date)
	if !recurrence.OccursOn(item.Rule, date) {
		return &domainerr.InvariantError{
			Invariant: "occurrence-exists",
			Detail:    fmt.Sprintf("%s is not a scheduled occurrence of %s", models.FormatDate(date), item.Name),
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recurrence_exceptions
			(item_id, date, kind, amount_override, date_override, description_override)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ex.ItemID.String(), models.FormatDate(date), string(ex.Kind),
		nullDecimalPtr(ex.Overrides.Amount), nullDatePtr(ex.Overrides.Date),
		nullStringPtr(ex.Overrides.Description))
	return conflictOnUnique(err, "recurrence exception",
		fmt.Sprintf("occurrence %s already has an exception", models.FormatDate(date)))
}

// RemoveException deletes the exception for one occurrence.
func (s *SQLiteStore) RemoveException(ctx context.Context, itemID uuid.UUID, date time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM recurrence_exceptions WHERE item_id = ? AND date = ?",
		itemID.String(), models.FormatDate(models.DateOnly(date)))
	if err != nil {
		return fmt.Errorf("delete exception: %w", err)
	}
	return requireRow(res, "recurrence exception", models.FormatDate(date))
}

// ExceptionsForItem returns the item's exceptions whose scheduled date
// falls inside the window.
func (s *SQLiteStore) ExceptionsForItem(ctx context.Context, itemID uuid.UUID, windowStart, windowEnd time.Time) ([]models.RecurringException, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, date, kind, amount_override, date_override, description_override
		FROM recurrence_exceptions
		WHERE item_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		itemID.String(), models.FormatDate(windowStart), models.FormatDate(windowEnd))
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RecurringException
	for rows.Next() {
		var (
			ex                   models.RecurringException
			itemStr, dateStr     string
			amount, date, descr  sql.NullString
		)
		if err := rows.Scan(&itemStr, &dateStr, &ex.Kind, &amount, &date, &descr); err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		if ex.ItemID, err = uuid.Parse(itemStr); err != nil {
			return nil, err
		}
		if ex.Date, err = models.ParseDate(dateStr); err != nil {
			return nil, err
		}
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("parse amount override: %w", err)
			}
			ex.Overrides.Amount = &d
		}
		if date.Valid {
			t, err := models.ParseDate(date.String)
			if err != nil {
				return nil, err
			}
			ex.Overrides.Date = &t
		}
		if descr.Valid {
			v := descr.String
			ex.Overrides.Description = &v
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// InsertTransactions stores a batch of imported transactions. Rows whose
// source hash is already present are skipped, so re-importing the same
// statement is harmless. Returns how many were inserted and skipped.
func (s *SQLiteStore) InsertTransactions(ctx context.Context, txs []models.Transaction) (int, int, error) {
	inserted, skipped := 0, 0
	err := withTx(s.db, func(tx *sql.Tx) error {
		for _, t := range txs {
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO transactions
					(id, date, amount, description, category, source_hash, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.ID.String(), models.FormatDate(t.Date), t.Amount.String(),
				t.Description, t.Category, t.SourceHash,
				t.CreatedAt.UTC().Format(time.RFC3339))
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				skipped++
			} else {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	s.log.Info("Transactions stored",
		logging.Field{Key: logging.FieldCount, Value: inserted},
		logging.Field{Key: "skipped", Value: skipped})
	return inserted, skipped, nil
}

const txColumns = "id, date, amount, description, category, source_hash, created_at"

// GetTransaction returns nil when the transaction does not exist.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE id = ?", id.String())
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions dated inside the window, oldest
// first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE date >= ? AND date <= ? ORDER BY date, id",
		models.FormatDate(windowStart), models.FormatDate(windowEnd))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

// UnmatchedTransactions returns windowed transactions that have neither a
// realized link nor an open match.
func (s *SQLiteStore) UnmatchedTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+txColumns+` FROM transactions t
		WHERE t.date >= ? AND t.date <= ?
		  AND NOT EXISTS (SELECT 1 FROM realized_links l WHERE l.transaction_id = t.id)
		  AND NOT EXISTS (SELECT 1 FROM reconciliation_matches m
		                  WHERE m.transaction_id = t.id AND m.status IN (?, ?))
		ORDER BY t.date, t.id`,
		models.FormatDate(windowStart), models.FormatDate(windowEnd),
		string(models.MatchSuggested), string(models.MatchAutoMatched))
	if err != nil {
		return nil, fmt.Errorf("list unmatched transactions: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer func() { _ = rows.Close() }()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Realized links
// ---------------------------------------------------------------------------

// LinkForTransaction returns nil when the transaction is not linked.
func (s *SQLiteStore) LinkForTransaction(ctx context.Context, txID uuid.UUID) (*models.RealizedLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, occurrence_date, transaction_id, created_at
		FROM realized_links WHERE transaction_id = ?`, txID.String())
	return scanOptionalLink(row)
}

// LinkForOccurrence returns nil when the occurrence is not realized.
func (s *SQLiteStore) LinkForOccurrence(ctx context.Context, itemID uuid.UUID, date time.Time) (*models.RealizedLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, occurrence_date, transaction_id, created_at
		FROM realized_links WHERE item_id = ? AND occurrence_date = ?`,
		itemID.String(), models.FormatDate(models.DateOnly(date)))
	return scanOptionalLink(row)
}

// RealizedLinks returns the links for the given items whose occurrence
// date falls inside the window.
func (s *SQLiteStore) RealizedLinks(ctx context.Context, itemIDs []uuid.UUID, windowStart, windowEnd time.Time) ([]models.RealizedLink, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]interface{}, 0, len(itemIDs)+2)
	for _, id := range itemIDs {
		args = append(args, id.String())
	}
	args = append(args, models.FormatDate(windowStart), models.FormatDate(windowEnd))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, occurrence_date, transaction_id, created_at
		FROM realized_links
		WHERE item_id IN (`+placeholders+`) AND occurrence_date >= ? AND occurrence_date <= ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list realized links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RealizedLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *link)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Matches
// ---------------------------------------------------------------------------

// CreateMatch stores a suggestion; no link is created.
func (s *SQLiteStore) CreateMatch(ctx context.Context, m models.ReconciliationMatch) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		return insertMatch(ctx, tx, m)
	})
}

// CreateMatchWithLink stores a resolved or auto match together with its
// realized link in one transaction. A taken occurrence or an already
// linked transaction rolls the whole write back with a conflict.
func (s *SQLiteStore) CreateMatchWithLink(ctx context.Context, m models.ReconciliationMatch, link models.RealizedLink) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if err := insertMatch(ctx, tx, m); err != nil {
			return err
		}
		return insertLink(ctx, tx, link)
	})
}

// ResolveMatch persists a status transition without touching links.
func (s *SQLiteStore) ResolveMatch(ctx context.Context, m models.ReconciliationMatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_matches
		SET status = ?, reason = ?, resolved_at = ?
		WHERE id = ?`,
		string(m.Status), m.Reason, nullTimePtr(m.ResolvedAt), m.ID.String())
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return requireRow(res, "match", m.ID.String())
}

// AcceptMatch persists the acceptance and creates the realized link
// atomically.
func (s *SQLiteStore) AcceptMatch(ctx context.Context, m models.ReconciliationMatch, link models.RealizedLink) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE reconciliation_matches
			SET status = ?, reason = ?, resolved_at = ?
			WHERE id = ?`,
			string(m.Status), m.Reason, nullTimePtr(m.ResolvedAt), m.ID.String())
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		if err := requireRow(res, "match", m.ID.String()); err != nil {
			return err
		}
		return insertLink(ctx, tx, link)
	})
}

// UnlinkMatch persists the match update and removes the transaction's
// realized link in one transaction.
func (s *SQLiteStore) UnlinkMatch(ctx context.Context, m models.ReconciliationMatch) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE reconciliation_matches
			SET status = ?, reason = ?, resolved_at = ?
			WHERE id = ?`,
			string(m.Status), m.Reason, nullTimePtr(m.ResolvedAt), m.ID.String())
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		if err := requireRow(res, "match", m.ID.String()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM realized_links WHERE transaction_id = ?", m.TransactionID.String()); err != nil {
			return fmt.Errorf("delete realized link: %w", err)
		}
		return nil
	})
}

const matchColumns = `id, transaction_id, item_id, occurrence_date, confidence,
	tier, status, source, amount_variance, date_offset_days, reason,
	created_at, resolved_at`

// GetMatch returns nil when the match does not exist.
func (s *SQLiteStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+matchColumns+" FROM reconciliation_matches WHERE id = ?", id.String())
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load match: %w", err)
	}
	return m, nil
}

// OpenMatchForTransaction returns the transaction's suggested or
// auto-matched match, or nil.
func (s *SQLiteStore) OpenMatchForTransaction(ctx context.Context, txID uuid.UUID) (*models.ReconciliationMatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM reconciliation_matches
		WHERE transaction_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		txID.String(), string(models.MatchSuggested), string(models.MatchAutoMatched))
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load open match: %w", err)
	}
	return m, nil
}

// ListMatches returns matches filtered by status (all statuses when none
// given), newest first.
func (s *SQLiteStore) ListMatches(ctx context.Context, statuses ...models.MatchStatus) ([]models.ReconciliationMatch, error) {
	query := "SELECT " + matchColumns + " FROM reconciliation_matches"
	var args []interface{}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query += " WHERE status IN (" + placeholders + ")"
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return collectMatches(rows)
}

// MatchesForItem returns the item's matches with the given statuses,
// ordered by occurrence date.
func (s *SQLiteStore) MatchesForItem(ctx context.Context, itemID uuid.UUID, statuses ...models.MatchStatus) ([]models.ReconciliationMatch, error) {
	query := "SELECT " + matchColumns + " FROM reconciliation_matches WHERE item_id = ?"
	args := []interface{}{itemID.String()}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query += " AND status IN (" + placeholders + ")"
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY occurrence_date"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list item matches: %w", err)
	}
	return collectMatches(rows)
}

func insertMatch(ctx context.Context, tx *sql.Tx, m models.ReconciliationMatch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliation_matches
			(id, transaction_id, item_id, occurrence_date, confidence, tier,
			 status, source, amount_variance, date_offset_days, reason,
			 created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.TransactionID.String(), m.ItemID.String(),
		models.FormatDate(m.OccurrenceDate), m.Confidence, string(m.Tier),
		string(m.Status), string(m.Source), m.AmountVariance.String(),
		m.DateOffsetDays, m.Reason, m.CreatedAt.UTC().Format(time.RFC3339),
		nullTimePtr(m.ResolvedAt))
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func insertLink(ctx context.Context, tx *sql.Tx, link models.RealizedLink) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO realized_links (id, item_id, occurrence_date, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		link.ID.String(), link.ItemID.String(),
		models.FormatDate(link.OccurrenceDate), link.TransactionID.String(),
		link.CreatedAt.UTC().Format(time.RFC3339))
	return conflictOnUnique(err, "realized link",
		"occurrence already realized or transaction already linked")
}

// ---------------------------------------------------------------------------
// Row scanning
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.RecurringItem, error) {
	var (
		item                      models.RecurringItem
		idStr, amountStr          string
		kind, freq, anchorStr     string
		until                     sql.NullString
		active                    int
		tolDays                   sql.NullInt64
		tolPct, tolAbs            sql.NullString
	)
	err := row.Scan(&idStr, &item.Name, &item.Description, &amountStr,
		&kind, &freq, &item.Rule.Interval, &anchorStr, &until,
		&item.Rule.Count, &active, &tolDays, &tolPct, &tolAbs)
	if err != nil {
		return nil, err
	}
	if item.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if item.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	item.Kind = models.ItemKind(kind)
	item.Rule.Frequency = models.Frequency(freq)
	if item.Rule.Anchor, err = models.ParseDate(anchorStr); err != nil {
		return nil, err
	}
	if until.Valid {
		if item.Rule.Until, err = models.ParseDate(until.String); err != nil {
			return nil, err
		}
	}
	item.Active = active != 0

	if tolDays.Valid || tolPct.Valid || tolAbs.Valid {
		o := &models.ToleranceOverride{}
		if tolDays.Valid {
			d := int(tolDays.Int64)
			o.DateToleranceDays = &d
		}
		if tolPct.Valid {
			v, err := decimal.NewFromString(tolPct.String)
			if err != nil {
				return nil, fmt.Errorf("parse amount tolerance pct: %w", err)
			}
			o.AmountTolerancePct = &v
		}
		if tolAbs.Valid {
			v, err := decimal.NewFromString(tolAbs.String)
			if err != nil {
				return nil, fmt.Errorf("parse amount tolerance abs: %w", err)
			}
			o.AmountToleranceAbs = &v
		}
		item.Tolerances = o
	}
	return &item, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                        models.Transaction
		idStr, dateStr           string
		amountStr, createdStr    string
	)
	err := row.Scan(&idStr, &dateStr, &amountStr, &t.Description,
		&t.Category, &t.SourceHash, &createdStr)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if t.Date, err = models.ParseDate(dateStr); err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanLink(row rowScanner) (*models.RealizedLink, error) {
	var (
		link                            models.RealizedLink
		idStr, itemStr, dateStr, txStr  string
		createdStr                      string
	)
	err := row.Scan(&idStr, &itemStr, &dateStr, &txStr, &createdStr)
	if err != nil {
		return nil, err
	}
	if link.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if link.ItemID, err = uuid.Parse(itemStr); err != nil {
		return nil, err
	}
	if link.OccurrenceDate, err = models.ParseDate(dateStr); err != nil {
		return nil, err
	}
	if link.TransactionID, err = uuid.Parse(txStr); err != nil {
		return nil, err
	}
	if link.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, err
	}
	return &link, nil
}

func scanOptionalLink(row *sql.Row) (*models.RealizedLink, error) {
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load realized link: %w", err)
	}
	return link, nil
}

func scanMatch(row rowScanner) (*models.ReconciliationMatch, error) {
	var (
		m                             models.ReconciliationMatch
		idStr, txStr, itemStr         string
		dateStr, varianceStr          string
		tier, status, source          string
		createdStr                    string
		resolved                      sql.NullString
	)
	err := row.Scan(&idStr, &txStr, &itemStr, &dateStr, &m.Confidence,
		&tier, &status, &source, &varianceStr, &m.DateOffsetDays,
		&m.Reason, &createdStr, &resolved)
	if err != nil {
		return nil, err
	}
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if m.TransactionID, err = uuid.Parse(txStr); err != nil {
		return nil, err
	}
	if m.ItemID, err = uuid.Parse(itemStr); err != nil {
		return nil, err
	}
	if m.OccurrenceDate, err = models.ParseDate(dateStr); err != nil {
		return nil, err
	}
	if m.AmountVariance, err = decimal.NewFromString(varianceStr); err != nil {
		return nil, fmt.Errorf("parse amount variance: %w", err)
	}
	m.Tier = models.ConfidenceTier(tier)
	m.Status = models.MatchStatus(status)
	m.Source = models.MatchSource(source)
	if m.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, err
	}
	if resolved.Valid {
		t, err := time.Parse(time.RFC3339, resolved.String)
		if err != nil {
			return nil, err
		}
		m.ResolvedAt = &t
	}
	return &m, nil
}

func collectMatches(rows *sql.Rows) ([]models.ReconciliationMatch, error) {
	defer func() { _ = rows.Close() }()
	var out []models.ReconciliationMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Null helpers
// ---------------------------------------------------------------------------

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domainerr.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func nullDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return models.FormatDate(t)
}

func nullDatePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return models.FormatDate(*t)
}

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullDecimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func overrideDays(o *models.ToleranceOverride) interface{} {
	if o == nil || o.DateToleranceDays == nil {
		return nil
	}
	return *o.DateToleranceDays
}

func overridePct(o *models.ToleranceOverride) interface{} {
	if o == nil {
		return nil
	}
	return nullDecimalPtr(o.AmountTolerancePct)
}

func overrideAbs(o *models.ToleranceOverride) interface{} {
	if o == nil {
		return nil
	}
	return nullDecimalPtr(o.AmountToleranceAbs)
}
