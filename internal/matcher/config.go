// Package matcher implements confidence scoring and the greedy matching
// engine that pairs bank transactions against book transactions.
//
// Scoring combines three independent components into one weighted
// confidence value:
//  1. Amount proximity, the dominant discriminator in financial data
//  2. Date proximity
//  3. Description similarity (normalized edit distance)
//
// The engine itself makes a single greedy pass in bank-transaction order,
// consuming each transaction into at most one match. Iteration order is
// never re-sorted so the outcome is deterministic for a given input order.
package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MatchingWeights defines the relative importance of the scoring
// components. Amount dominance is deliberate; weights may be recalibrated
// but the three-component structure stays fixed.
type MatchingWeights struct {
	AmountWeight      float64 `json:"amount_weight"`
	DateWeight        float64 `json:"date_weight"`
	DescriptionWeight float64 `json:"description_weight"`
}

// Validate checks if the matching weights are valid
func (mw *MatchingWeights) Validate() error {
	if mw.AmountWeight < 0.0 || mw.AmountWeight > 1.0 {
		return fmt.Errorf("amount weight must be between 0.0 and 1.0: %f", mw.AmountWeight)
	}
	if mw.DateWeight < 0.0 || mw.DateWeight > 1.0 {
		return fmt.Errorf("date weight must be between 0.0 and 1.0: %f", mw.DateWeight)
	}
	if mw.DescriptionWeight < 0.0 || mw.DescriptionWeight > 1.0 {
		return fmt.Errorf("description weight must be between 0.0 and 1.0: %f", mw.DescriptionWeight)
	}

	total := mw.AmountWeight + mw.DateWeight + mw.DescriptionWeight
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}
	return nil
}

// MatchingConfig holds the tolerances and thresholds for confidence scoring
// and match acceptance.
//
// An exact amount component is credited when the difference is below
// AmountExactTolerance; half credit when below AmountCloseTolerance. Dates
// follow the same two-band scheme with DateExactWindow and DateCloseWindow.
type MatchingConfig struct {
	// AmountExactTolerance is the maximum difference for full amount credit
	AmountExactTolerance decimal.Decimal `json:"amount_exact_tolerance"`

	// AmountCloseTolerance is the maximum difference for half amount credit
	AmountCloseTolerance decimal.Decimal `json:"amount_close_tolerance"`

	// DateExactWindow is the maximum date distance for full date credit
	DateExactWindow time.Duration `json:"date_exact_window"`

	// DateCloseWindow is the maximum date distance for half date credit
	DateCloseWindow time.Duration `json:"date_close_window"`

	// AcceptThreshold is the confidence a candidate must exceed to be
	// accepted as a match
	AcceptThreshold float64 `json:"accept_threshold"`

	// ExactThreshold is the confidence above which an accepted match is
	// classified exact rather than fuzzy
	ExactThreshold float64 `json:"exact_threshold"`

	// Weights are the relative component weights
	Weights MatchingWeights `json:"weights"`
}

// DefaultMatchingConfig returns the production configuration
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountExactTolerance: decimal.NewFromFloat(0.01),
		AmountCloseTolerance: decimal.NewFromFloat(1.00),
		DateExactWindow:      24 * time.Hour,
		DateCloseWindow:      7 * 24 * time.Hour,
		AcceptThreshold:      0.7,
		ExactThreshold:       0.95,
		Weights: MatchingWeights{
			AmountWeight:      0.4,
			DateWeight:        0.3,
			DescriptionWeight: 0.3,
		},
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.AmountExactTolerance.IsNegative() {
		return fmt.Errorf("amount exact tolerance cannot be negative: %s", mc.AmountExactTolerance)
	}
	if mc.AmountCloseTolerance.LessThan(mc.AmountExactTolerance) {
		return fmt.Errorf("amount close tolerance %s cannot be below exact tolerance %s",
			mc.AmountCloseTolerance, mc.AmountExactTolerance)
	}
	if mc.DateExactWindow < 0 {
		return fmt.Errorf("date exact window cannot be negative: %s", mc.DateExactWindow)
	}
	if mc.DateCloseWindow < mc.DateExactWindow {
		return fmt.Errorf("date close window %s cannot be below exact window %s",
			mc.DateCloseWindow, mc.DateExactWindow)
	}
	if mc.AcceptThreshold < 0.0 || mc.AcceptThreshold > 1.0 {
		return fmt.Errorf("accept threshold must be between 0.0 and 1.0: %f", mc.AcceptThreshold)
	}
	if mc.ExactThreshold < mc.AcceptThreshold || mc.ExactThreshold > 1.0 {
		return fmt.Errorf("exact threshold must be between accept threshold and 1.0: %f", mc.ExactThreshold)
	}
	if err := mc.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Accept: %.2f, Exact: %.2f, Weights: %.2f/%.2f/%.2f}",
		mc.AcceptThreshold, mc.ExactThreshold,
		mc.Weights.AmountWeight, mc.Weights.DateWeight, mc.Weights.DescriptionWeight)
}
