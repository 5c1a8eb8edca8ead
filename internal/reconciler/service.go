// Package reconciler orchestrates reconciliation sessions. It owns the
// session state machine, drives the matching engine against stored
// transactions, and assembles reports on demand.
package reconciler

import (
	"context"
	"math"
	"time"

	"bookkeeping-reconciliation-service/internal/detector"
	"bookkeeping-reconciliation-service/internal/matcher"
	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/reporter"
	"bookkeeping-reconciliation-service/internal/rules"
	"bookkeeping-reconciliation-service/internal/storage"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"
	"bookkeeping-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// Service orchestrates reconciliation sessions over injected stores.
type Service struct {
	store       storage.Store
	engine      *matcher.MatchingEngine
	detector    *detector.Detector
	rulesEngine *rules.Engine
	logger      logger.Logger
	now         func() time.Time
}

// NewService creates an orchestrator over the given store. Nil configs fall
// back to defaults.
func NewService(store storage.Store, matchingConfig *matcher.MatchingConfig, detectorConfig *detector.Config) *Service {
	return &Service{
		store:       store,
		engine:      matcher.NewMatchingEngine(matchingConfig),
		detector:    detector.NewDetector(detectorConfig),
		rulesEngine: rules.NewEngine(&storeExecutor{store: store}),
		logger:      logger.GetGlobalLogger().WithComponent("reconciler"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// storeExecutor adapts the transaction store to the rule engine's action
// contract.
type storeExecutor struct {
	store storage.TransactionStore
}

func (e *storeExecutor) SetCategory(ctx context.Context, transactionID, category string) error {
	return e.store.SetCategory(ctx, transactionID, category)
}

func (e *storeExecutor) FlagForReview(ctx context.Context, transactionID, note string) error {
	return e.store.FlagForReview(ctx, transactionID, note)
}

func (e *storeExecutor) Tag(ctx context.Context, transactionID, tag string) error {
	return e.store.Tag(ctx, transactionID, tag)
}

func (e *storeExecutor) AutoMatch(ctx context.Context, transactionID string) error {
	return e.store.EnableAutoMatch(ctx, transactionID)
}

// CreateSession creates a new pending session for an account and period
func (s *Service) CreateSession(ctx context.Context, accountID, userID string, startDate, endDate time.Time) (*models.ReconciliationSession, error) {
	if startDate.After(endDate) {
		return nil, svcerrors.ValidationError(svcerrors.CodeInvalidDateRange,
			"startDate", startDate.Format("2006-01-02"))
	}

	session := &models.ReconciliationSession{
		ID:        uuid.NewString(),
		AccountID: accountID,
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    models.SessionPending,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"session_id": session.ID,
		"account_id": accountID,
		"user_id":    userID,
	}).Info("Created reconciliation session")
	return session, nil
}

// GetSession returns a session after verifying ownership
func (s *Service) GetSession(ctx context.Context, sessionID, userID string) (*models.ReconciliationSession, error) {
	return s.authorizedSession(ctx, sessionID, userID)
}

// ListSessions returns a user's sessions, newest first
func (s *Service) ListSessions(ctx context.Context, userID, accountID string, limit, offset int) ([]*models.ReconciliationSession, error) {
	return s.store.ListSessions(ctx, userID, accountID, limit, offset)
}

// PerformAutomatedReconciliation runs the matching engine over the session's
// account and period. The session moves to in_progress first and ends in
// completed or failed; a failed session keeps whatever counts were written
// before the failure.
func (s *Service) PerformAutomatedReconciliation(ctx context.Context, sessionID, userID string) (*models.ReconciliationSession, error) {
	session, err := s.authorizedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if !session.Status.CanTransitionTo(models.SessionInProgress) {
		return nil, svcerrors.New(svcerrors.CategoryValidation, svcerrors.CodeIllegalTransition,
			"session "+sessionID+" cannot start reconciliation from status "+session.Status.String())
	}

	session.Status = models.SessionInProgress
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	log := s.logger.WithField("session_id", sessionID)
	log.Info("Starting automated reconciliation")

	bankTxs, err := s.store.GetBankTransactions(ctx, session.AccountID, session.StartDate, session.EndDate)
	if err != nil {
		return nil, s.failSession(ctx, session, err)
	}
	bookTxs, err := s.store.GetBookTransactions(ctx, session.AccountID, session.StartDate, session.EndDate)
	if err != nil {
		return nil, s.failSession(ctx, session, err)
	}

	matchSet, err := s.engine.Match(ctx, bankTxs, bookTxs)
	if err != nil {
		return nil, s.failSession(ctx, session, err)
	}

	session.TotalTransactions = len(bankTxs)
	for _, candidate := range matchSet.Matches {
		match := &models.ReconciliationMatch{
			ID:                uuid.NewString(),
			SessionID:         sessionID,
			BankTransactionID: candidate.Bank.ID,
			BookTransactionID: candidate.Book.ID,
			Confidence:        candidate.Confidence,
			MatchType:         candidate.MatchType,
			Difference:        candidate.Difference,
			CreatedAt:         s.now(),
		}
		if err := s.store.CreateMatch(ctx, match); err != nil {
			return nil, s.failSession(ctx, session, err)
		}
		session.MatchedTransactions++
		session.UnmatchedTransactions = session.TotalTransactions - session.MatchedTransactions
	}

	session.UnmatchedTransactions = session.TotalTransactions - session.MatchedTransactions
	session.ReconciliationScore = reconciliationScore(session.MatchedTransactions, session.TotalTransactions)
	session.Status = models.SessionCompleted
	completedAt := s.now()
	session.CompletedAt = &completedAt

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"matched":   session.MatchedTransactions,
		"unmatched": session.UnmatchedTransactions,
		"score":     session.ReconciliationScore,
	}).Info("Completed automated reconciliation")
	return session, nil
}

// CreateManualMatch records a user-confirmed pairing at confidence 1.0,
// bypassing confidence scoring entirely
func (s *Service) CreateManualMatch(ctx context.Context, sessionID, userID, bankTxID, bookTxID, notes string) (*models.ReconciliationMatch, error) {
	if _, err := s.authorizedSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	bank, err := s.store.GetBankTransaction(ctx, bankTxID)
	if err != nil {
		return nil, err
	}
	book, err := s.store.GetBookTransaction(ctx, bookTxID)
	if err != nil {
		return nil, err
	}
	if bank.IsReconciled {
		return nil, svcerrors.ValidationError(svcerrors.CodeInvalidInput,
			"bankTransactionId", "transaction "+bankTxID+" is already reconciled")
	}
	if book.IsReconciled {
		return nil, svcerrors.ValidationError(svcerrors.CodeInvalidInput,
			"bookTransactionId", "transaction "+bookTxID+" is already reconciled")
	}

	match := &models.ReconciliationMatch{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		BankTransactionID: bank.ID,
		BookTransactionID: book.ID,
		Confidence:        1.0,
		MatchType:         models.MatchManual,
		Difference:        bank.Amount.Sub(book.Amount).Abs(),
		Notes:             notes,
		CreatedAt:         s.now(),
	}
	if err := s.store.CreateMatch(ctx, match); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"session_id": sessionID,
		"bank_tx":    bankTxID,
		"book_tx":    bookTxID,
	}).Info("Created manual match")
	return match, nil
}

// GenerateReport assembles a report from the session, its matches, and a
// fresh suspicious-transaction scan over the period's bank transactions
func (s *Service) GenerateReport(ctx context.Context, sessionID, userID string) (*models.ReconciliationReport, error) {
	session, err := s.authorizedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.ListMatches(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	bankTxs, err := s.store.GetBankTransactions(ctx, session.AccountID, session.StartDate, session.EndDate)
	if err != nil {
		return nil, err
	}
	suspicious := s.detector.Detect(bankTxs)

	return reporter.Build(session, matches, suspicious), nil
}

// ApplyRules runs the user's active rules against a single bank transaction
func (s *Service) ApplyRules(ctx context.Context, userID, transactionID string) (*rules.Result, error) {
	tx, err := s.store.GetBankTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	ruleSet, err := s.store.ListActiveRules(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.rulesEngine.Apply(ctx, tx, ruleSet)
}

// CreateRule validates and stores a rule for later application
func (s *Service) CreateRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := s.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules returns all of a user's rules ordered by priority
func (s *Service) ListRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	return s.store.ListRules(ctx, userID)
}

func (s *Service) authorizedSession(ctx context.Context, sessionID, userID string) (*models.ReconciliationSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, svcerrors.UnauthorizedError("session", sessionID, userID)
	}
	return session, nil
}

// failSession transitions the session to failed, keeping any counts already
// written, and returns the wrapped cause. Cancellation gets its own reason
// so callers can tell it apart from a matching failure.
func (s *Service) failSession(ctx context.Context, session *models.ReconciliationSession, cause error) error {
	session.Status = models.SessionFailed

	// The incoming ctx may already be cancelled; the status write uses a
	// fresh context so the failure is still recorded.
	if err := s.store.UpdateSession(context.WithoutCancel(ctx), session); err != nil {
		s.logger.WithError(err).WithField("session_id", session.ID).
			Error("Failed to mark session as failed")
	}

	if ctx.Err() != nil {
		return svcerrors.CancelledError(session.ID, cause)
	}
	return svcerrors.WrapIfNeeded(cause, svcerrors.CategoryReconciliation,
		svcerrors.CodeMatchingFailed, "automated reconciliation failed for session "+session.ID)
}

// reconciliationScore is round(matched / total * 100), defined as 100 when
// there are no transactions to reconcile
func reconciliationScore(matched, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(matched) / float64(total) * 100))
}
