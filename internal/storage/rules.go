package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bookkeeping-reconciliation-service/internal/rules"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"
)

// CreateRule persists a rule. Validation happens here so malformed
// operators and actions are rejected before they ever reach evaluation.
func (s *SQLiteStore) CreateRule(ctx context.Context, rule *rules.Rule) error {
	if err := rule.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "rule", err.Error())
	}

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_rule", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_rule", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_rules
			(id, user_id, name, description, conditions, actions,
			 is_active, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.Name, rule.Description,
		string(conditions), string(actions), boolToInt(rule.IsActive), rule.Priority,
		rule.CreatedAt.UTC().Format(dateLayout), rule.UpdatedAt.UTC().Format(dateLayout))
	if err != nil {
		return svcerrors.StorageError(svcerrors.CodeWriteFailed, "create_rule", err)
	}
	return nil
}

// GetRule returns a rule by id
func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, conditions, actions,
		       is_active, priority, created_at, updated_at
		FROM reconciliation_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFoundError(svcerrors.CodeRuleNotFound, "rule", id)
	}
	return rule, err
}

// ListActiveRules returns a user's active rules ordered by priority
// descending
func (s *SQLiteStore) ListActiveRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	return s.listRules(ctx, userID, true)
}

// ListRules returns all of a user's rules ordered by priority descending
func (s *SQLiteStore) ListRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	return s.listRules(ctx, userID, false)
}

func (s *SQLiteStore) listRules(ctx context.Context, userID string, activeOnly bool) ([]*rules.Rule, error) {
	query := `
		SELECT id, user_id, name, description, conditions, actions,
		       is_active, priority, created_at, updated_at
		FROM reconciliation_rules WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY priority DESC, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_rules", err)
	}
	defer rows.Close()

	var ruleSet []*rules.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		ruleSet = append(ruleSet, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, svcerrors.StorageError(svcerrors.CodeQueryFailed, "list_rules", err)
	}
	return ruleSet, nil
}

func scanRule(row rowScanner) (*rules.Rule, error) {
	var (
		rule       rules.Rule
		conditions string
		actions    string
		isActive   int
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&rule.ID, &rule.UserID, &rule.Name, &rule.Description,
		&conditions, &actions, &isActive, &rule.Priority, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("corrupt conditions for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("corrupt actions for rule %s: %w", rule.ID, err)
	}
	rule.IsActive = isActive != 0
	if rule.CreatedAt, err = time.Parse(dateLayout, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created at for rule %s: %w", rule.ID, err)
	}
	if rule.UpdatedAt, err = time.Parse(dateLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated at for rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}
