package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"bookkeeping-reconciliation-service/pkg/logger"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bank_transactions (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL,
	amount          TEXT NOT NULL,
	date            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	merchant        TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT '',
	category        TEXT,
	is_reconciled   INTEGER NOT NULL DEFAULT 0,
	flagged         INTEGER NOT NULL DEFAULT 0,
	review_note     TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	auto_match      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_bank_tx_account_date ON bank_transactions(account_id, date);

CREATE TABLE IF NOT EXISTS book_transactions (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL,
	amount          TEXT NOT NULL,
	date            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	merchant        TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT '',
	category        TEXT,
	is_reconciled   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_book_tx_account_date ON book_transactions(account_id, date);

CREATE TABLE IF NOT EXISTS reconciliation_sessions (
	id                     TEXT PRIMARY KEY,
	account_id             TEXT NOT NULL,
	user_id                TEXT NOT NULL,
	start_date             TEXT NOT NULL,
	end_date               TEXT NOT NULL,
	status                 TEXT NOT NULL,
	total_transactions     INTEGER NOT NULL DEFAULT 0,
	matched_transactions   INTEGER NOT NULL DEFAULT 0,
	unmatched_transactions INTEGER NOT NULL DEFAULT 0,
	reconciliation_score   INTEGER NOT NULL DEFAULT 0,
	created_at             TEXT NOT NULL,
	completed_at           TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON reconciliation_sessions(user_id, created_at);

CREATE TABLE IF NOT EXISTS reconciliation_matches (
	id                  TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL REFERENCES reconciliation_sessions(id),
	bank_transaction_id TEXT NOT NULL,
	book_transaction_id TEXT NOT NULL,
	confidence          REAL NOT NULL,
	match_type          TEXT NOT NULL,
	difference          TEXT NOT NULL DEFAULT '0',
	notes               TEXT NOT NULL DEFAULT '',
	created_at          TEXT NOT NULL,
	UNIQUE(session_id, bank_transaction_id),
	UNIQUE(session_id, book_transaction_id)
);
CREATE INDEX IF NOT EXISTS idx_matches_session ON reconciliation_matches(session_id, created_at);

CREATE TABLE IF NOT EXISTS reconciliation_rules (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	conditions  TEXT NOT NULL,
	actions     TEXT NOT NULL,
	is_active   INTEGER NOT NULL DEFAULT 1,
	priority    INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_user_priority ON reconciliation_rules(user_id, priority);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger logger.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite does not benefit from multiple connections; a single one also
	// serializes the match-plus-flags writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		logger: logger.GetGlobalLogger().WithComponent("sqlite_store"),
	}

	if err := store.ensureSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_meta LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		s.logger.WithField("version", schemaVersion).Debug("Initialized database schema")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("unsupported schema version %d (expected %d)", version, schemaVersion)
	}

	return nil
}
