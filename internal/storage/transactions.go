package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

const dateLayout = time.RFC3339

// GetBankTransactions returns bank transactions for an account within the
// inclusive date range, in date order
func (s *SQLiteStore) GetBankTransactions(ctx context.Context, accountID string, start, end time.Time) ([]*models.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, date, description, merchant, type, category, is_reconciled
		FROM bank_transactions
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		accountID, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
	if err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "get_bank_transactions", err)
	}
	defer rows.Close()

	var txs []*models.BankTransaction
	for rows.Next() {
		tx, err := scanBankTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "get_bank_transactions", err)
	}
	return txs, nil
}

// GetBookTransactions returns book transactions for an account within the
// inclusive date range, in date order
func (s *SQLiteStore) GetBookTransactions(ctx context.Context, accountID string, start, end time.Time) ([]*models.BookTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, date, description, merchant, type, category, is_reconciled
		FROM book_transactions
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		accountID, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
	if err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "get_book_transactions", err)
	}
	defer rows.Close()

	var txs []*models.BookTransaction
	for rows.Next() {
		tx, err := scanBookTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "get_book_transactions", err)
	}
	return txs, nil
}

// GetBankTransaction returns a single bank transaction by id
func (s *SQLiteStore) GetBankTransaction(ctx context.Context, id string) (*models.BankTransaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount, date, description, merchant, type, category, is_reconciled
		FROM bank_transactions WHERE id = ?`, id)

	tx, err := scanBankTransaction(row)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", id)
	}
	return tx, err
}

// GetBookTransaction returns a single book transaction by id
func (s *SQLiteStore) GetBookTransaction(ctx context.Context, id string) (*models.BookTransaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount, date, description, merchant, type, category, is_reconciled
		FROM book_transactions WHERE id = ?`, id)

	tx, err := scanBookTransaction(row)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "book transaction", id)
	}
	return tx, err
}

// CreateBankTransaction persists a new bank transaction
func (s *SQLiteStore) CreateBankTransaction(ctx context.Context, tx *models.BankTransaction) error {
	if err := tx.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "bank_transaction", err.Error())
	}

	var category interface{}
	if tx.Category != nil {
		category = *tx.Category
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_transactions (id, account_id, amount, date, description, merchant, type, category, is_reconciled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.Amount.String(), tx.Date.UTC().Format(dateLayout),
		tx.Description, tx.Merchant, string(tx.Type), category, boolToInt(tx.IsReconciled))
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_bank_transaction", err)
	}
	return nil
}

// CreateBookTransaction persists a new book transaction
func (s *SQLiteStore) CreateBookTransaction(ctx context.Context, tx *models.BookTransaction) error {
	if err := tx.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "book_transaction", err.Error())
	}

	var category interface{}
	if tx.Category != nil {
		category = *tx.Category
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_transactions (id, account_id, amount, date, description, merchant, type, category, is_reconciled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.Amount.String(), tx.Date.UTC().Format(dateLayout),
		tx.Description, tx.Merchant, string(tx.Type), category, boolToInt(tx.IsReconciled))
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_book_transaction", err)
	}
	return nil
}

// MarkReconciled flips the reconciled flag on whichever table holds the
// transaction
func (s *SQLiteStore) MarkReconciled(ctx context.Context, transactionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET is_reconciled = 1 WHERE id = ?`, transactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "mark_reconciled", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	res, err = s.db.ExecContext(ctx,
		`UPDATE book_transactions SET is_reconciled = 1 WHERE id = ?`, transactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "mark_reconciled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "transaction", transactionID)
	}
	return nil
}

// SetCategory writes the category field of a transaction
func (s *SQLiteStore) SetCategory(ctx context.Context, transactionID, category string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET category = ? WHERE id = ?`, category, transactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "set_category", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	res, err = s.db.ExecContext(ctx,
		`UPDATE book_transactions SET category = ? WHERE id = ?`, category, transactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "set_category", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "transaction", transactionID)
	}
	return nil
}

// FlagForReview marks a bank transaction for manual review
func (s *SQLiteStore) FlagForReview(ctx context.Context, transactionID, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET flagged = 1, review_note = ? WHERE id = ?`, note, transactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "flag_for_review", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", transactionID)
	}
	return nil
}

// Tag attaches a tag to a bank transaction. Tags are stored as a JSON
// array; attaching an existing tag is a no-op so the action stays
// idempotent.
func (s *SQLiteStore) Tag(ctx context.Context, transactionID, tag string) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT tags FROM bank_transactions WHERE id = ?`, transactionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", transactionID)
	}
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeQueryFailed, "tag", err)
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		tags = nil
	}
	for _, t := range tags {
		if t == tag {
			return nil
		}
	}
	tags = append(tags, tag)

	encoded, err := json.Marshal(tags)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "tag", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET tags = ? WHERE id = ?`, string(encoded), transactionID); err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "tag", err)
	}
	return nil
}

// EnableAutoMatch marks a bank transaction eligible for automatic matching
func (s *SQLiteStore) EnableAutoMatch(ctx context.Context, transactionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET auto_match = 1 WHERE id = ?`, transactionID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "enable_auto_match", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", transactionID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBankTransaction(row rowScanner) (*models.BankTransaction, error) {
	var (
		tx           models.BankTransaction
		amount       string
		date         string
		category     sql.NullString
		isReconciled int
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &amount, &date, &tx.Description,
		&tx.Merchant, (*string)(&tx.Type), &category, &isReconciled)
	if err != nil {
		return nil, err
	}

	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount for bank transaction %s: %w", tx.ID, err)
	}
	if tx.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("corrupt date for bank transaction %s: %w", tx.ID, err)
	}
	if category.Valid {
		tx.Category = &category.String
	}
	tx.IsReconciled = isReconciled != 0
	return &tx, nil
}

func scanBookTransaction(row rowScanner) (*models.BookTransaction, error) {
	var (
		tx           models.BookTransaction
		amount       string
		date         string
		category     sql.NullString
		isReconciled int
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &amount, &date, &tx.Description,
		&tx.Merchant, (*string)(&tx.Type), &category, &isReconciled)
	if err != nil {
		return nil, err
	}

	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount for book transaction %s: %w", tx.ID, err)
	}
	if tx.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("corrupt date for book transaction %s: %w", tx.ID, err)
	}
	if category.Valid {
		tx.Category = &category.String
	}
	tx.IsReconciled = isReconciled != 0
	return &tx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
