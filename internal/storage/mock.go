package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/rules"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"
)

// MemoryStore is an in-memory Store implementation used by tests and by the
// orchestrator's own test fixtures. It is safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	bankTxs  map[string]*models.BankTransaction
	bookTxs  map[string]*models.BookTransaction
	sessions map[string]*models.ReconciliationSession
	matches  map[string]*models.ReconciliationMatch
	ruleSet  map[string]*rules.Rule

	// Flags and Tags record rule-action side effects so tests can assert
	// on them without reaching into SQL.
	Flags     map[string]string
	Tags      map[string][]string
	AutoMatch map[string]bool

	matchOrder []string
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bankTxs:   make(map[string]*models.BankTransaction),
		bookTxs:   make(map[string]*models.BookTransaction),
		sessions:  make(map[string]*models.ReconciliationSession),
		matches:   make(map[string]*models.ReconciliationMatch),
		ruleSet:   make(map[string]*rules.Rule),
		Flags:     make(map[string]string),
		Tags:      make(map[string][]string),
		AutoMatch: make(map[string]bool),
	}
}

// GetBankTransactions returns bank transactions within the inclusive range
func (m *MemoryStore) GetBankTransactions(ctx context.Context, accountID string, start, end time.Time) ([]*models.BankTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var txs []*models.BankTransaction
	for _, tx := range m.bankTxs {
		if tx.AccountID == accountID && !tx.Date.Before(start) && !tx.Date.After(end) {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sortBankByDate(txs)
	return txs, nil
}

// GetBookTransactions returns book transactions within the inclusive range
func (m *MemoryStore) GetBookTransactions(ctx context.Context, accountID string, start, end time.Time) ([]*models.BookTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var txs []*models.BookTransaction
	for _, tx := range m.bookTxs {
		if tx.AccountID == accountID && !tx.Date.Before(start) && !tx.Date.After(end) {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sortBookByDate(txs)
	return txs, nil
}

// GetBankTransaction returns a bank transaction by id
func (m *MemoryStore) GetBankTransaction(ctx context.Context, id string) (*models.BankTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.bankTxs[id]
	if !ok {
		return nil, svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", id)
	}
	copied := *tx
	return &copied, nil
}

// GetBookTransaction returns a book transaction by id
func (m *MemoryStore) GetBookTransaction(ctx context.Context, id string) (*models.BookTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.bookTxs[id]
	if !ok {
		return nil, svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "book transaction", id)
	}
	copied := *tx
	return &copied, nil
}

// CreateBankTransaction stores a bank transaction
func (m *MemoryStore) CreateBankTransaction(ctx context.Context, tx *models.BankTransaction) error {
	if err := tx.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "bank_transaction", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tx
	m.bankTxs[tx.ID] = &copied
	return nil
}

// CreateBookTransaction stores a book transaction
func (m *MemoryStore) CreateBookTransaction(ctx context.Context, tx *models.BookTransaction) error {
	if err := tx.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "book_transaction", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tx
	m.bookTxs[tx.ID] = &copied
	return nil
}

// MarkReconciled flips the reconciled flag on a bank or book transaction
func (m *MemoryStore) MarkReconciled(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx, ok := m.bankTxs[transactionID]; ok {
		tx.IsReconciled = true
		return nil
	}
	if tx, ok := m.bookTxs[transactionID]; ok {
		tx.IsReconciled = true
		return nil
	}
	return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "transaction", transactionID)
}

// SetCategory writes the category field of a transaction
func (m *MemoryStore) SetCategory(ctx context.Context, transactionID, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx, ok := m.bankTxs[transactionID]; ok {
		tx.Category = &category
		return nil
	}
	if tx, ok := m.bookTxs[transactionID]; ok {
		tx.Category = &category
		return nil
	}
	return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "transaction", transactionID)
}

// FlagForReview records a review flag against a bank transaction
func (m *MemoryStore) FlagForReview(ctx context.Context, transactionID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bankTxs[transactionID]; !ok {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", transactionID)
	}
	m.Flags[transactionID] = note
	return nil
}

// Tag attaches a tag to a bank transaction; repeats are no-ops
func (m *MemoryStore) Tag(ctx context.Context, transactionID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bankTxs[transactionID]; !ok {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", transactionID)
	}
	for _, t := range m.Tags[transactionID] {
		if t == tag {
			return nil
		}
	}
	m.Tags[transactionID] = append(m.Tags[transactionID], tag)
	return nil
}

// EnableAutoMatch marks a bank transaction eligible for automatic matching
func (m *MemoryStore) EnableAutoMatch(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bankTxs[transactionID]; !ok {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", transactionID)
	}
	m.AutoMatch[transactionID] = true
	return nil
}

// CreateSession stores a session
func (m *MemoryStore) CreateSession(ctx context.Context, session *models.ReconciliationSession) error {
	if err := session.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "session", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

// GetSession returns a session by id
func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.ReconciliationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, svcerrors.NotFoundError(svcerrors.CodeSessionNotFound, "session", id)
	}
	copied := *session
	return &copied, nil
}

// UpdateSession replaces a stored session
func (m *MemoryStore) UpdateSession(ctx context.Context, session *models.ReconciliationSession) error {
	if err := session.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "session", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return svcerrors.NotFoundError(svcerrors.CodeSessionNotFound, "session", session.ID)
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

// ListSessions returns a user's sessions, newest first
func (m *MemoryStore) ListSessions(ctx context.Context, userID, accountID string, limit, offset int) ([]*models.ReconciliationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var sessions []*models.ReconciliationSession
	for _, session := range m.sessions {
		if session.UserID != userID {
			continue
		}
		if accountID != "" && session.AccountID != accountID {
			continue
		}
		copied := *session
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})

	if offset >= len(sessions) {
		return nil, nil
	}
	sessions = sessions[offset:]
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// CreateMatch stores the match and marks both paired transactions reconciled
func (m *MemoryStore) CreateMatch(ctx context.Context, match *models.ReconciliationMatch) error {
	if err := match.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "match", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bank, ok := m.bankTxs[match.BankTransactionID]
	if !ok {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "bank transaction", match.BankTransactionID)
	}
	book, ok := m.bookTxs[match.BookTransactionID]
	if !ok {
		return svcerrors.NotFoundError(svcerrors.CodeTransactionNotFound, "book transaction", match.BookTransactionID)
	}

	copied := *match
	m.matches[match.ID] = &copied
	m.matchOrder = append(m.matchOrder, match.ID)
	bank.IsReconciled = true
	book.IsReconciled = true
	return nil
}

// ListMatches returns all matches for a session in creation order
func (m *MemoryStore) ListMatches(ctx context.Context, sessionID string) ([]*models.ReconciliationMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*models.ReconciliationMatch
	for _, id := range m.matchOrder {
		match := m.matches[id]
		if match.SessionID == sessionID {
			copied := *match
			matches = append(matches, &copied)
		}
	}
	return matches, nil
}

// CreateRule stores a rule after validation
func (m *MemoryStore) CreateRule(ctx context.Context, rule *rules.Rule) error {
	if err := rule.Validate(); err != nil {
		return svcerrors.ValidationError(svcerrors.CodeInvalidInput, "rule", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *rule
	m.ruleSet[rule.ID] = &copied
	return nil
}

// GetRule returns a rule by id
func (m *MemoryStore) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, ok := m.ruleSet[id]
	if !ok {
		return nil, svcerrors.NotFoundError(svcerrors.CodeRuleNotFound, "rule", id)
	}
	copied := *rule
	return &copied, nil
}

// ListActiveRules returns a user's active rules ordered by priority descending
func (m *MemoryStore) ListActiveRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	return m.listRules(userID, true), nil
}

// ListRules returns all of a user's rules ordered by priority descending
func (m *MemoryStore) ListRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	return m.listRules(userID, false), nil
}

func (m *MemoryStore) listRules(userID string, activeOnly bool) []*rules.Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ruleSet []*rules.Rule
	for _, rule := range m.ruleSet {
		if rule.UserID != userID {
			continue
		}
		if activeOnly && !rule.IsActive {
			continue
		}
		copied := *rule
		ruleSet = append(ruleSet, &copied)
	}
	sort.SliceStable(ruleSet, func(i, j int) bool {
		if ruleSet[i].Priority != ruleSet[j].Priority {
			return ruleSet[i].Priority > ruleSet[j].Priority
		}
		return ruleSet[i].CreatedAt.Before(ruleSet[j].CreatedAt)
	})
	return ruleSet
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error {
	return nil
}

func sortBankByDate(txs []*models.BankTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

func sortBookByDate(txs []*models.BookTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}
