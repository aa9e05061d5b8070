// Package store persists the budgeting ledger in SQLite: recurring items
// and their import patterns, per-occurrence exceptions, imported
// transactions, reconciliation matches and realized links.
//
// Uniqueness rules live in the schema, not in application checks: one
// exception per (item, date), one realized link per occurrence and per
// transaction, one owner per import pattern. Violations surface as
// ConflictError.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"fjacquet/budget-recon/internal/domainerr"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS recurring_items (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	amount            TEXT NOT NULL,
	kind              TEXT NOT NULL,
	frequency         TEXT NOT NULL,
	interval          INTEGER NOT NULL,
	anchor            TEXT NOT NULL,
	until_date        TEXT,
	occurrence_count  INTEGER NOT NULL DEFAULT 0,
	active            INTEGER NOT NULL DEFAULT 1,
	date_tol_days     INTEGER,
	amount_tol_pct    TEXT,
	amount_tol_abs    TEXT
);

CREATE TABLE IF NOT EXISTS import_patterns (
	item_id  TEXT NOT NULL REFERENCES recurring_items(id),
	pattern  TEXT NOT NULL,
	UNIQUE(pattern)
);

CREATE TABLE IF NOT EXISTS recurrence_exceptions (
	item_id        TEXT NOT NULL REFERENCES recurring_items(id),
	date           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	amount_override       TEXT,
	date_override         TEXT,
	description_override  TEXT,
	UNIQUE(item_id, date)
);

CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	date         TEXT NOT NULL,
	amount       TEXT NOT NULL,
	description  TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	source_hash  TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE(source_hash)
);

CREATE TABLE IF NOT EXISTS realized_links (
	id               TEXT PRIMARY KEY,
	item_id          TEXT NOT NULL REFERENCES recurring_items(id),
	occurrence_date  TEXT NOT NULL,
	transaction_id   TEXT NOT NULL REFERENCES transactions(id),
	created_at       TEXT NOT NULL,
	UNIQUE(item_id, occurrence_date),
	UNIQUE(transaction_id)
);

CREATE TABLE IF NOT EXISTS reconciliation_matches (
	id               TEXT PRIMARY KEY,
	transaction_id   TEXT NOT NULL REFERENCES transactions(id),
	item_id          TEXT NOT NULL REFERENCES recurring_items(id),
	occurrence_date  TEXT NOT NULL,
	confidence       REAL NOT NULL,
	tier             TEXT NOT NULL,
	status           TEXT NOT NULL,
	source           TEXT NOT NULL,
	amount_variance  TEXT NOT NULL,
	date_offset_days INTEGER NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	resolved_at      TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
CREATE INDEX IF NOT EXISTS idx_matches_transaction ON reconciliation_matches(transaction_id);
CREATE INDEX IF NOT EXISTS idx_matches_status ON reconciliation_matches(status);
CREATE INDEX IF NOT EXISTS idx_links_window ON realized_links(item_id, occurrence_date);
`

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY under concurrent command invocations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_meta").Scan(&count); err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// conflictOnUnique translates a UNIQUE violation into the domain conflict
// taxonomy; any other error passes through unchanged.
func conflictOnUnique(err error, entity, reason string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domainerr.ConflictError{Entity: entity, Reason: reason, Err: err}
	}
	return err
}
