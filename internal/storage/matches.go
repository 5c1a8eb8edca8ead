package storage

import (
	"context"
	"fmt"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// CreateMatch inserts the match and marks both paired transactions as
// reconciled inside one database transaction. Either everything lands or
// nothing does.
func (s *SQLiteStore) CreateMatch(ctx context.Context, match *models.ReconciliationMatch) error {
	if err := match.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "match", err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_match", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reconciliation_matches
			(id, session_id, bank_transaction_id, book_transaction_id,
			 confidence, match_type, difference, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.SessionID, match.BankTransactionID, match.BookTransactionID,
		match.Confidence, string(match.MatchType), match.Difference.String(),
		match.Notes, match.CreatedAt.UTC().Format(dateLayout))
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_match", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE bank_transactions SET is_reconciled = 1 WHERE id = ?`, match.BankTransactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_match", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", match.BankTransactionID)
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE book_transactions SET is_reconciled = 1 WHERE id = ?`, match.BookTransactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_match", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "book transaction", match.BookTransactionID)
	}

	if err := tx.Commit(); err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_match", err)
	}
	return nil
}

// ListMatches returns all matches for a session in creation order
func (s *SQLiteStore) ListMatches(ctx context.Context, sessionID string) ([]*models.ReconciliationMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, bank_transaction_id, book_transaction_id,
		       confidence, match_type, difference, notes, created_at
		FROM reconciliation_matches
		WHERE session_id = ?
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_matches", err)
	}
	defer rows.Close()

	var matches []*models.ReconciliationMatch
	for rows.Next() {
		var (
			match      models.ReconciliationMatch
			difference string
			createdAt  string
		)
		err := rows.Scan(&match.ID, &match.SessionID, &match.BankTransactionID,
			&match.BookTransactionID, &match.Confidence, (*string)(&match.MatchType),
			&difference, &match.Notes, &createdAt)
		if err != nil {
			return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_matches", err)
		}
		if match.Difference, err = decimal.NewFromString(difference); err != nil {
			return nil, fmt.Errorf("corrupt difference for match %s: %w", match.ID, err)
		}
		if match.CreatedAt, err = time.Parse(dateLayout, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt created at for match %s: %w", match.ID, err)
		}
		matches = append(matches, &match)
	}
	if err := rows.Err(); err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_matches", err)
	}
	return matches, nil
}
