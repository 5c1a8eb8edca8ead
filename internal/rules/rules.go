// Package rules implements user-defined reconciliation automation: ordered
// condition sets evaluated against a single transaction, with associated
// actions executed on the first fully-matching rule.
//
// Operators and action types are closed enumerations. Unknown variants are
// rejected when a rule is created; rows that predate an enumeration change
// degrade to no-ops at evaluation time rather than failing a whole pass.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Operator is the comparison applied between a transaction field and a
// condition's expected value.
type Operator string

const (
	// OperatorEquals matches when the field equals the expected value,
	// case-insensitively
	OperatorEquals Operator = "equals"
	// OperatorContains matches when the field contains the expected value
	OperatorContains Operator = "contains"
	// OperatorStartsWith matches on a case-insensitive prefix
	OperatorStartsWith Operator = "starts_with"
	// OperatorEndsWith matches on a case-insensitive suffix
	OperatorEndsWith Operator = "ends_with"
	// OperatorRegex interprets the expected value as a regular expression
	OperatorRegex Operator = "regex"
	// OperatorAmountRange matches an amount against an inclusive "min-max"
	OperatorAmountRange Operator = "amount_range"
	// OperatorDateRange matches a date against an inclusive "start,end"
	OperatorDateRange Operator = "date_range"
)

// String returns the string representation of the operator
func (o Operator) String() string {
	return string(o)
}

// IsValid checks whether the operator is a known variant
func (o Operator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorContains, OperatorStartsWith, OperatorEndsWith,
		OperatorRegex, OperatorAmountRange, OperatorDateRange:
		return true
	}
	return false
}

// ParseOperator parses an operator, rejecting unknown variants
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if !op.IsValid() {
		return "", fmt.Errorf("unknown condition operator '%s'", s)
	}
	return op, nil
}

// ActionType identifies the side effect a matched rule performs.
type ActionType string

const (
	// ActionCategorize writes the transaction's category field
	ActionCategorize ActionType = "categorize"
	// ActionAutoMatch marks the transaction eligible for automatic matching
	ActionAutoMatch ActionType = "auto_match"
	// ActionFlagForReview queues the transaction for manual review
	ActionFlagForReview ActionType = "flag_for_review"
	// ActionTag attaches a free-form tag to the transaction
	ActionTag ActionType = "tag"
)

// String returns the string representation of the action type
func (a ActionType) String() string {
	return string(a)
}

// IsValid checks whether the action type is a known variant
func (a ActionType) IsValid() bool {
	switch a {
	case ActionCategorize, ActionAutoMatch, ActionFlagForReview, ActionTag:
		return true
	}
	return false
}

// ParseActionType parses an action type, rejecting unknown variants
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("unknown action type '%s'", s)
	}
	return a, nil
}

// Condition fields a rule may inspect.
const (
	FieldDescription = "description"
	FieldMerchant    = "merchant"
	FieldAmount      = "amount"
	FieldType        = "type"
	FieldDate        = "date"
)

// IsValidField checks whether a condition field name is recognized
func IsValidField(field string) bool {
	switch field {
	case FieldDescription, FieldMerchant, FieldAmount, FieldType, FieldDate:
		return true
	}
	return false
}

// Condition is one predicate in a rule's ordered condition list. All
// conditions in a rule must hold for the rule to apply.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
	Weight   float64  `json:"weight"`
}

// Validate performs creation-time validation on the condition
func (c *Condition) Validate() error {
	if !IsValidField(c.Field) {
		return fmt.Errorf("unknown condition field '%s'", c.Field)
	}
	if !c.Operator.IsValid() {
		return fmt.Errorf("unknown condition operator '%s'", c.Operator)
	}
	if strings.TrimSpace(c.Value) == "" {
		return fmt.Errorf("condition value cannot be empty")
	}

	switch c.Operator {
	case OperatorAmountRange:
		if _, _, err := parseAmountRange(c.Value); err != nil {
			return err
		}
	case OperatorDateRange:
		if _, _, err := parseDateRange(c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Action is one side effect executed when a rule matches.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// Validate performs creation-time validation on the action
func (a *Action) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("unknown action type '%s'", a.Type)
	}
	if a.Type == ActionCategorize && strings.TrimSpace(a.Value) == "" {
		return fmt.Errorf("categorize action requires a category value")
	}
	return nil
}

// Rule is a user-defined automation applied against single transactions,
// independently of any reconciliation session.
type Rule struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Action    `json:"actions"`
	IsActive    bool        `json:"isActive"`
	Priority    int         `json:"priority"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Validate rejects malformed rules at creation time. Unknown operators and
// action types fail here instead of silently no-op'ing during evaluation.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("rule user id cannot be empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule must have at least one condition")
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule must have at least one action")
	}

	for i, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	for i, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// parseAmountRange parses an inclusive "min-max" amount range
func parseAmountRange(value string) (decimal.Decimal, decimal.Decimal, error) {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("amount range must be 'min-max', got '%s'", value)
	}

	min, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid amount range minimum '%s': %w", parts[0], err)
	}
	max, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid amount range maximum '%s': %w", parts[1], err)
	}
	if max.LessThan(min) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("amount range maximum %s below minimum %s", max, min)
	}
	return min, max, nil
}

// parseDateRange parses an inclusive "start,end" timestamp range
func parseDateRange(value string) (time.Time, time.Time, error) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("date range must be 'start,end', got '%s'", value)
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date range start '%s': %w", parts[0], err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date range end '%s': %w", parts[1], err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range end before start")
	}
	return start, end, nil
}
