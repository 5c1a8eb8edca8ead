package matcher

import (
	"context"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// CandidateMatch is an accepted pairing produced by the matching engine,
// before it is persisted as a ReconciliationMatch.
type CandidateMatch struct {
	Bank       *models.BankTransaction
	Book       *models.BookTransaction
	Confidence float64
	MatchType  models.MatchType
	Difference decimal.Decimal
}

// MatchSet is the complete outcome of one matching pass.
type MatchSet struct {
	Matches       []*CandidateMatch
	UnmatchedBank []string
	UnmatchedBook []string
}

// MatchingEngine pairs bank transactions with book transactions using
// greedy best-candidate selection in bank-transaction order.
type MatchingEngine struct {
	config *MatchingConfig
	calc   *ConfidenceCalculator
	logger logger.Logger
}

// NewMatchingEngine creates a new matching engine with the specified
// configuration
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &MatchingEngine{
		config: config,
		calc:   NewConfidenceCalculator(config),
		logger: logger.GetGlobalLogger().WithComponent("matching_engine"),
	}
}

// Config returns a copy of the engine configuration
func (me *MatchingEngine) Config() *MatchingConfig {
	return me.config.Clone()
}

// Match runs one greedy pass over the bank transactions in the order
// supplied, scanning all not-yet-consumed book transactions for the best
// candidate above the acceptance threshold. Each transaction is consumed by
// at most one match. Bank transactions already reconciled are skipped;
// reconciled book transactions are never offered as candidates.
//
// Ties are broken by book-transaction order: the first candidate reaching
// the maximum confidence wins, which keeps the outcome deterministic. The
// context is checked between bank-transaction iterations so long passes can
// be cancelled.
func (me *MatchingEngine) Match(ctx context.Context, bankTxs []*models.BankTransaction, bookTxs []*models.BookTransaction) (*MatchSet, error) {
	result := &MatchSet{}
	consumed := make(map[int]bool, len(bookTxs))

	for _, bank := range bankTxs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if bank.IsReconciled {
			continue
		}

		bestIdx := -1
		bestConfidence := 0.0
		for i, book := range bookTxs {
			if consumed[i] || book.IsReconciled {
				continue
			}
			confidence := me.calc.Confidence(bank, book)
			if confidence > bestConfidence {
				bestConfidence = confidence
				bestIdx = i
			}
		}

		if bestIdx < 0 || bestConfidence <= me.config.AcceptThreshold {
			result.UnmatchedBank = append(result.UnmatchedBank, bank.ID)
			continue
		}

		book := bookTxs[bestIdx]
		consumed[bestIdx] = true

		matchType := models.MatchFuzzy
		if bestConfidence > me.config.ExactThreshold {
			matchType = models.MatchExact
		}

		me.logger.WithFields(logger.Fields{
			"bank_transaction_id": bank.ID,
			"book_transaction_id": book.ID,
			"confidence":          bestConfidence,
			"match_type":          matchType.String(),
		}).Debug("Accepted match candidate")

		result.Matches = append(result.Matches, &CandidateMatch{
			Bank:       bank,
			Book:       book,
			Confidence: bestConfidence,
			MatchType:  matchType,
			Difference: bank.Amount.Sub(book.Amount).Abs(),
		})
	}

	for i, book := range bookTxs {
		if !consumed[i] && !book.IsReconciled {
			result.UnmatchedBook = append(result.UnmatchedBook, book.ID)
		}
	}

	me.logger.WithFields(logger.Fields{
		"matches":        len(result.Matches),
		"unmatched_bank": len(result.UnmatchedBank),
		"unmatched_book": len(result.UnmatchedBook),
	}).Info("Matching pass completed")

	return result, nil
}
