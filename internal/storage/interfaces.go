// Package storage defines the persistence contracts for the reconciliation
// service and provides a SQLite implementation plus an in-memory mock.
//
// Interfaces are split per concern so components can depend on exactly what
// they use; Store aggregates them for wiring.
package storage

import (
	"context"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/rules"
)

// TransactionStore provides access to bank and book transaction records.
type TransactionStore interface {
	// GetBankTransactions returns bank transactions for an account within
	// the inclusive date range, in date order
	GetBankTransactions(ctx context.Context, accountID string, start, end time.Time) ([]*models.BankTransaction, error)

	// GetBookTransactions returns book transactions for an account within
	// the inclusive date range, in date order
	GetBookTransactions(ctx context.Context, accountID string, start, end time.Time) ([]*models.BookTransaction, error)

	// GetBankTransaction returns a single bank transaction by id
	GetBankTransaction(ctx context.Context, id string) (*models.BankTransaction, error)

	// GetBookTransaction returns a single book transaction by id
	GetBookTransaction(ctx context.Context, id string) (*models.BookTransaction, error)

	// CreateBankTransaction persists a new bank transaction
	CreateBankTransaction(ctx context.Context, tx *models.BankTransaction) error

	// CreateBookTransaction persists a new book transaction
	CreateBookTransaction(ctx context.Context, tx *models.BookTransaction) error

	// MarkReconciled flips the reconciled flag on a bank or book transaction
	MarkReconciled(ctx context.Context, transactionID string) error

	// SetCategory writes the category field of a transaction; repeated
	// calls with the same category are no-ops
	SetCategory(ctx context.Context, transactionID, category string) error

	// FlagForReview marks a transaction for manual review
	FlagForReview(ctx context.Context, transactionID, note string) error

	// Tag attaches a tag to a transaction; attaching an existing tag is a
	// no-op
	Tag(ctx context.Context, transactionID, tag string) error

	// EnableAutoMatch marks a transaction eligible for automatic matching
	EnableAutoMatch(ctx context.Context, transactionID string) error
}

// SessionStore provides CRUD over reconciliation sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.ReconciliationSession) error
	GetSession(ctx context.Context, id string) (*models.ReconciliationSession, error)
	UpdateSession(ctx context.Context, session *models.ReconciliationSession) error
	// ListSessions returns a user's sessions, newest first, optionally
	// filtered by account
	ListSessions(ctx context.Context, userID, accountID string, limit, offset int) ([]*models.ReconciliationSession, error)
}

// MatchStore provides access to confirmed matches.
type MatchStore interface {
	// CreateMatch inserts the match and flips the reconciled flag on both
	// paired transactions in a single storage transaction, so a crash can
	// never leave a match without its flags or vice versa
	CreateMatch(ctx context.Context, match *models.ReconciliationMatch) error

	// ListMatches returns all matches for a session in creation order
	ListMatches(ctx context.Context, sessionID string) ([]*models.ReconciliationMatch, error)
}

// RuleStore provides access to user-defined reconciliation rules.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *rules.Rule) error
	GetRule(ctx context.Context, id string) (*rules.Rule, error)
	// ListActiveRules returns a user's active rules ordered by priority
	// descending
	ListActiveRules(ctx context.Context, userID string) ([]*rules.Rule, error)
	// ListRules returns all of a user's rules ordered by priority descending
	ListRules(ctx context.Context, userID string) ([]*rules.Rule, error)
}

// Store aggregates all persistence concerns.
type Store interface {
	TransactionStore
	SessionStore
	MatchStore
	RuleStore
	Close() error
}
