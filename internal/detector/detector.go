// Package detector flags suspicious bank transactions after matching
// completes, using amount, timing, and duplicate heuristics.
package detector

import (
	"fmt"

	"bookkeeping-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Config holds the heuristic thresholds.
type Config struct {
	// LargeAmountThreshold flags transactions whose absolute amount exceeds it
	LargeAmountThreshold decimal.Decimal `json:"large_amount_threshold"`

	// OffHoursStart and OffHoursEnd bound the normal business window; hours
	// strictly before the start or strictly after the end are off-hours
	OffHoursStart int `json:"off_hours_start"`
	OffHoursEnd   int `json:"off_hours_end"`

	// DuplicateTolerance is the maximum amount difference for two
	// transactions to count as potential duplicates
	DuplicateTolerance decimal.Decimal `json:"duplicate_tolerance"`
}

// DefaultConfig returns the production thresholds
func DefaultConfig() *Config {
	return &Config{
		LargeAmountThreshold: decimal.NewFromInt(10000),
		OffHoursStart:        6,
		OffHoursEnd:          22,
		DuplicateTolerance:   decimal.NewFromFloat(0.01),
	}
}

// Validate checks if the detector configuration is valid
func (c *Config) Validate() error {
	if c.LargeAmountThreshold.IsNegative() {
		return fmt.Errorf("large amount threshold cannot be negative: %s", c.LargeAmountThreshold)
	}
	if c.OffHoursStart < 0 || c.OffHoursStart > 23 {
		return fmt.Errorf("off-hours start must be an hour of day: %d", c.OffHoursStart)
	}
	if c.OffHoursEnd < c.OffHoursStart || c.OffHoursEnd > 23 {
		return fmt.Errorf("off-hours end must be an hour of day at or after start: %d", c.OffHoursEnd)
	}
	if c.DuplicateTolerance.IsNegative() {
		return fmt.Errorf("duplicate tolerance cannot be negative: %s", c.DuplicateTolerance)
	}
	return nil
}

// Detector evaluates the suspicious-transaction heuristics.
type Detector struct {
	config *Config
}

// NewDetector creates a detector with the given configuration
func NewDetector(config *Config) *Detector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Detector{config: config}
}

// Detect runs the heuristics independently over every bank transaction. A
// transaction may trigger more than one heuristic and then appears once per
// triggered reason. Output follows input order; no other ordering is
// guaranteed.
func (d *Detector) Detect(bankTxs []*models.BankTransaction) []models.SuspiciousTransaction {
	var findings []models.SuspiciousTransaction

	for i, tx := range bankTxs {
		if tx.Amount.Abs().GreaterThan(d.config.LargeAmountThreshold) {
			findings = append(findings, models.SuspiciousTransaction{
				TransactionID: tx.ID,
				Reason:        "Large transaction amount",
				Severity:      models.SeverityHigh,
			})
		}

		hour := tx.Date.Hour()
		if hour < d.config.OffHoursStart || hour > d.config.OffHoursEnd {
			findings = append(findings, models.SuspiciousTransaction{
				TransactionID: tx.ID,
				Reason:        "Unusual transaction timing",
				Severity:      models.SeverityMedium,
			})
		}

		if d.hasDuplicateAmount(bankTxs, i) {
			findings = append(findings, models.SuspiciousTransaction{
				TransactionID: tx.ID,
				Reason:        "Potential duplicate transaction",
				Severity:      models.SeverityMedium,
			})
		}
	}

	return findings
}

// hasDuplicateAmount reports whether any other transaction carries an
// amount within the duplicate tolerance of bankTxs[idx]
func (d *Detector) hasDuplicateAmount(bankTxs []*models.BankTransaction, idx int) bool {
	amount := bankTxs[idx].Amount
	for i, other := range bankTxs {
		if i == idx {
			continue
		}
		if other.Amount.Sub(amount).Abs().LessThan(d.config.DuplicateTolerance) {
			return true
		}
	}
	return false
}
