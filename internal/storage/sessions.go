package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"
)

// CreateSession persists a new reconciliation session
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.ReconciliationSession) error {
	if err := session.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "session", err.Error())
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_sessions
			(id, account_id, user_id, start_date, end_date, status,
			 total_transactions, matched_transactions, unmatched_transactions,
			 reconciliation_score, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.AccountID, session.UserID,
		session.StartDate.UTC().Format(dateLayout), session.EndDate.UTC().Format(dateLayout),
		string(session.Status), session.TotalTransactions, session.MatchedTransactions,
		session.UnmatchedTransactions, session.ReconciliationScore,
		session.CreatedAt.UTC().Format(dateLayout), nullableTime(session.CompletedAt))
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_session", err)
	}
	return nil
}

// GetSession returns a session by id
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.ReconciliationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, user_id, start_date, end_date, status,
		       total_transactions, matched_transactions, unmatched_transactions,
		       reconciliation_score, created_at, completed_at
		FROM reconciliation_sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFoundError(svcerrors.CodeSessionNotFound, "session", id)
	}
	return session, err
}

// UpdateSession writes back the mutable session fields
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *models.ReconciliationSession) error {
	if err := session.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "session", err.Error())
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_sessions SET
			status = ?, total_transactions = ?, matched_transactions = ?,
			unmatched_transactions = ?, reconciliation_score = ?, completed_at = ?
		WHERE id = ?`,
		string(session.Status), session.TotalTransactions, session.MatchedTransactions,
		session.UnmatchedTransactions, session.ReconciliationScore,
		nullableTime(session.CompletedAt), session.ID)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "update_session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFoundError(svcerrors.CodeSessionNotFound, "session", session.ID)
	}
	return nil
}

// ListSessions returns a user's sessions, newest first, optionally filtered
// by account
func (s *SQLiteStore) ListSessions(ctx context.Context, userID, accountID string, limit, offset int) ([]*models.ReconciliationSession, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, account_id, user_id, start_date, end_date, status,
		       total_transactions, matched_transactions, unmatched_transactions,
		       reconciliation_score, created_at, completed_at
		FROM reconciliation_sessions WHERE user_id = ?`
	args := []interface{}{userID}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_sessions", err)
	}
	defer rows.Close()

	var sessions []*models.ReconciliationSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_sessions", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*models.ReconciliationSession, error) {
	var (
		session     models.ReconciliationSession
		startDate   string
		endDate     string
		createdAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&session.ID, &session.AccountID, &session.UserID, &startDate,
		&endDate, (*string)(&session.Status), &session.TotalTransactions,
		&session.MatchedTransactions, &session.UnmatchedTransactions,
		&session.ReconciliationScore, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if session.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("corrupt start date for session %s: %w", session.ID, err)
	}
	if session.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("corrupt end date for session %s: %w", session.ID, err)
	}
	if session.CreatedAt, err = time.Parse(dateLayout, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created at for session %s: %w", session.ID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(dateLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt completed at for session %s: %w", session.ID, err)
		}
		session.CompletedAt = &t
	}
	return &session, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}
