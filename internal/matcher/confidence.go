package matcher

import (
	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/similarity"
)

// ConfidenceCalculator scores how likely a bank transaction and a book
// transaction represent the same economic event.
type ConfidenceCalculator struct {
	config *MatchingConfig
}

// NewConfidenceCalculator creates a calculator with the given configuration
func NewConfidenceCalculator(config *MatchingConfig) *ConfidenceCalculator {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &ConfidenceCalculator{config: config}
}

// Confidence returns the weighted pair score in [0, 1]. The result is the
// sum of the amount, date, and description components; no rounding is
// applied, callers round only for display.
func (c *ConfidenceCalculator) Confidence(bank *models.BankTransaction, book *models.BookTransaction) float64 {
	return c.amountComponent(bank, book) +
		c.dateComponent(bank, book) +
		c.descriptionComponent(bank, book)
}

// amountComponent credits the full amount weight when the difference is
// within the exact tolerance, half the weight within the close tolerance,
// and nothing otherwise.
func (c *ConfidenceCalculator) amountComponent(bank *models.BankTransaction, book *models.BookTransaction) float64 {
	diff := bank.Amount.Sub(book.Amount).Abs()

	if diff.LessThan(c.config.AmountExactTolerance) {
		return c.config.Weights.AmountWeight
	}
	if diff.LessThan(c.config.AmountCloseTolerance) {
		return c.config.Weights.AmountWeight / 2
	}
	return 0.0
}

// dateComponent credits the full date weight inside the exact window and
// half the weight inside the close window.
func (c *ConfidenceCalculator) dateComponent(bank *models.BankTransaction, book *models.BookTransaction) float64 {
	diff := bank.Date.Sub(book.Date)
	if diff < 0 {
		diff = -diff
	}

	if diff < c.config.DateExactWindow {
		return c.config.Weights.DateWeight
	}
	if diff < c.config.DateCloseWindow {
		return c.config.Weights.DateWeight / 2
	}
	return 0.0
}

// descriptionComponent scales the description weight by the normalized
// edit-distance similarity of the two descriptions.
func (c *ConfidenceCalculator) descriptionComponent(bank *models.BankTransaction, book *models.BookTransaction) float64 {
	return similarity.Score(bank.Description, book.Description) * c.config.Weights.DescriptionWeight
}
