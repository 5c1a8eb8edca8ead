package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/rules"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBankTx(id string, amount string, date time.Time) *models.BankTransaction {
	return &models.BankTransaction{
		ID:          id,
		AccountID:   "acct-1",
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: "Test transaction " + id,
		Type:        models.TransactionTypeDebit,
	}
}

func testBookTx(id string, amount string, date time.Time) *models.BookTransaction {
	return &models.BookTransaction{
		ID:          id,
		AccountID:   "acct-1",
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: "Test transaction " + id,
		Type:        models.TransactionTypeDebit,
	}
}

func TestSQLiteStoreTransactionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	tx := testBankTx("bank-1", "123.45", date)
	category := "utilities"
	tx.Category = &category

	require.NoError(t, store.CreateBankTransaction(ctx, tx))

	got, err := store.GetBankTransaction(ctx, "bank-1")
	require.NoError(t, err)
	assert.Equal(t, "bank-1", got.ID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("123.45")))
	assert.True(t, got.Date.Equal(date))
	require.NotNil(t, got.Category)
	assert.Equal(t, "utilities", *got.Category)
	assert.False(t, got.IsReconciled)
}

func TestSQLiteStoreGetBankTransactionsDateRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, day := range []int{1, 10, 20} {
		tx := testBankTx([]string{"bank-a", "bank-b", "bank-c"}[i], "10.00",
			base.AddDate(0, 0, day-1))
		require.NoError(t, store.CreateBankTransaction(ctx, tx))
	}

	// Range boundaries are inclusive.
	txs, err := store.GetBankTransactions(ctx, "acct-1",
		base, base.AddDate(0, 0, 9))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "bank-a", txs[0].ID)
	assert.Equal(t, "bank-b", txs[1].ID)
}

func TestSQLiteStoreGetBankTransactionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetBankTransaction(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, svcerrors.IsCategory(err, svcerrors.CategoryNotFound))
}

func TestSQLiteStoreMarkReconciled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateBankTransaction(ctx, testBankTx("bank-1", "10.00", date)))
	require.NoError(t, store.CreateBookTransaction(ctx, testBookTx("book-1", "10.00", date)))

	require.NoError(t, store.MarkReconciled(ctx, "bank-1"))
	require.NoError(t, store.MarkReconciled(ctx, "book-1"))

	bank, err := store.GetBankTransaction(ctx, "bank-1")
	require.NoError(t, err)
	assert.True(t, bank.IsReconciled)

	book, err := store.GetBookTransaction(ctx, "book-1")
	require.NoError(t, err)
	assert.True(t, book.IsReconciled)

	err = store.MarkReconciled(ctx, "missing")
	assert.True(t, svcerrors.IsCategory(err, svcerrors.CategoryNotFound))
}

func TestSQLiteStoreTagIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateBankTransaction(ctx, testBankTx("bank-1", "10.00", date)))

	require.NoError(t, store.Tag(ctx, "bank-1", "recurring"))
	require.NoError(t, store.Tag(ctx, "bank-1", "recurring"))
	require.NoError(t, store.Tag(ctx, "bank-1", "reviewed"))

	var raw string
	err := store.db.QueryRow(`SELECT tags FROM bank_transactions WHERE id = ?`, "bank-1").Scan(&raw)
	require.NoError(t, err)
	assert.JSONEq(t, `["recurring","reviewed"]`, raw)
}

func TestSQLiteStoreSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &models.ReconciliationSession{
		ID:        "sess-1",
		AccountID: "acct-1",
		UserID:    "user-1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.SessionPending,
		CreatedAt: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionPending, got.Status)
	assert.Nil(t, got.CompletedAt)

	completedAt := time.Date(2024, 2, 1, 9, 5, 0, 0, time.UTC)
	got.Status = models.SessionCompleted
	got.TotalTransactions = 3
	got.MatchedTransactions = 2
	got.UnmatchedTransactions = 1
	got.ReconciliationScore = 67
	got.CompletedAt = &completedAt
	require.NoError(t, store.UpdateSession(ctx, got))

	updated, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	assert.Equal(t, 67, updated.ReconciliationScore)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, updated.CompletedAt.Equal(completedAt))
}

func TestSQLiteStoreListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"sess-1", "sess-2", "sess-3"} {
		account := "acct-1"
		if id == "sess-3" {
			account = "acct-2"
		}
		require.NoError(t, store.CreateSession(ctx, &models.ReconciliationSession{
			ID:        id,
			AccountID: account,
			UserID:    "user-1",
			StartDate: base,
			EndDate:   base.AddDate(0, 1, 0),
			Status:    models.SessionPending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.CreateSession(ctx, &models.ReconciliationSession{
		ID:        "sess-other",
		AccountID: "acct-1",
		UserID:    "user-2",
		StartDate: base,
		EndDate:   base.AddDate(0, 1, 0),
		Status:    models.SessionPending,
		CreatedAt: base,
	}))

	sessions, err := store.ListSessions(ctx, "user-1", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "sess-3", sessions[0].ID)

	filtered, err := store.ListSessions(ctx, "user-1", "acct-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	paged, err := store.ListSessions(ctx, "user-1", "", 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "sess-2", paged[0].ID)
}

func TestSQLiteStoreCreateMatchFlipsBothFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateBankTransaction(ctx, testBankTx("bank-1", "100.00", date)))
	require.NoError(t, store.CreateBookTransaction(ctx, testBookTx("book-1", "100.00", date)))
	require.NoError(t, store.CreateSession(ctx, &models.ReconciliationSession{
		ID:        "sess-1",
		AccountID: "acct-1",
		UserID:    "user-1",
		StartDate: date,
		EndDate:   date.AddDate(0, 1, 0),
		Status:    models.SessionInProgress,
		CreatedAt: date,
	}))

	match := &models.ReconciliationMatch{
		ID:                "match-1",
		SessionID:         "sess-1",
		BankTransactionID: "bank-1",
		BookTransactionID: "book-1",
		Confidence:        1.0,
		MatchType:         models.MatchExact,
		Difference:        decimal.Zero,
		CreatedAt:         date,
	}
	require.NoError(t, store.CreateMatch(ctx, match))

	bank, err := store.GetBankTransaction(ctx, "bank-1")
	require.NoError(t, err)
	assert.True(t, bank.IsReconciled)

	book, err := store.GetBookTransaction(ctx, "book-1")
	require.NoError(t, err)
	assert.True(t, book.IsReconciled)

	matches, err := store.ListMatches(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.MatchExact, matches[0].MatchType)
	assert.True(t, matches[0].Difference.IsZero())
}

func TestSQLiteStoreCreateMatchMissingTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateBankTransaction(ctx, testBankTx("bank-1", "100.00", date)))
	require.NoError(t, store.CreateSession(ctx, &models.ReconciliationSession{
		ID:        "sess-1",
		AccountID: "acct-1",
		UserID:    "user-1",
		StartDate: date,
		EndDate:   date.AddDate(0, 1, 0),
		Status:    models.SessionInProgress,
		CreatedAt: date,
	}))

	err := store.CreateMatch(ctx, &models.ReconciliationMatch{
		ID:                "match-1",
		SessionID:         "sess-1",
		BankTransactionID: "bank-1",
		BookTransactionID: "book-missing",
		Confidence:        1.0,
		MatchType:         models.MatchManual,
		Difference:        decimal.Zero,
		CreatedAt:         date,
	})
	require.Error(t, err)
	assert.True(t, svcerrors.IsCategory(err, svcerrors.CategoryNotFound))

	// Neither the match row nor the bank flag survives the rollback.
	matches, err := store.ListMatches(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, matches)

	bank, err := store.GetBankTransaction(ctx, "bank-1")
	require.NoError(t, err)
	assert.False(t, bank.IsReconciled)
}

func TestSQLiteStoreRuleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rule := &rules.Rule{
		ID:     "rule-1",
		UserID: "user-1",
		Name:   "Flag large wires",
		Conditions: []rules.Condition{
			{Field: rules.FieldDescription, Operator: rules.OperatorContains, Value: "wire"},
			{Field: rules.FieldAmount, Operator: rules.OperatorAmountRange, Value: "5000-100000"},
		},
		Actions: []rules.Action{
			{Type: rules.ActionFlagForReview, Value: "large wire"},
		},
		IsActive:  true,
		Priority:  10,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	got, err := store.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	require.Len(t, got.Conditions, 2)
	assert.Equal(t, rules.OperatorAmountRange, got.Conditions[1].Operator)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, rules.ActionFlagForReview, got.Actions[0].Type)
}

func TestSQLiteStoreCreateRuleRejectsUnknownOperator(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := store.CreateRule(context.Background(), &rules.Rule{
		ID:     "rule-bad",
		UserID: "user-1",
		Name:   "Bad rule",
		Conditions: []rules.Condition{
			{Field: rules.FieldDescription, Operator: "sounds_like", Value: "rent"},
		},
		Actions:   []rules.Action{{Type: rules.ActionTag, Value: "rent"}},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.Error(t, err)
	assert.True(t, svcerrors.IsCategory(err, svcerrors.CategoryValidation))
}

func TestSQLiteStoreListActiveRulesPriorityOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mkRule := func(id string, priority int, active bool) *rules.Rule {
		return &rules.Rule{
			ID:     id,
			UserID: "user-1",
			Name:   "Rule " + id,
			Conditions: []rules.Condition{
				{Field: rules.FieldDescription, Operator: rules.OperatorContains, Value: "x"},
			},
			Actions:   []rules.Action{{Type: rules.ActionTag, Value: "t"}},
			IsActive:  active,
			Priority:  priority,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	require.NoError(t, store.CreateRule(ctx, mkRule("rule-low", 1, true)))
	require.NoError(t, store.CreateRule(ctx, mkRule("rule-high", 100, true)))
	require.NoError(t, store.CreateRule(ctx, mkRule("rule-off", 50, false)))

	active, err := store.ListActiveRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "rule-high", active[0].ID)
	assert.Equal(t, "rule-low", active[1].ID)

	all, err := store.ListRules(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
