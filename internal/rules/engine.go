package rules

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/pkg/logger"
)

// ActionExecutor performs rule side effects against the transaction store.
// Every method must be idempotent: re-running an action against the same
// transaction leaves the store unchanged.
type ActionExecutor interface {
	SetCategory(ctx context.Context, transactionID, category string) error
	FlagForReview(ctx context.Context, transactionID, note string) error
	Tag(ctx context.Context, transactionID, tag string) error
	AutoMatch(ctx context.Context, transactionID string) error
}

// Result describes the outcome of applying a rule set to one transaction.
type Result struct {
	Applied         bool         `json:"applied"`
	RuleID          string       `json:"ruleId,omitempty"`
	RuleName        string       `json:"ruleName,omitempty"`
	ActionsExecuted []ActionType `json:"actionsExecuted"`
}

// Engine evaluates prioritized rules against single transactions.
type Engine struct {
	executor ActionExecutor
	logger   logger.Logger
}

// NewEngine creates a rule engine that executes actions through the given
// executor
func NewEngine(executor ActionExecutor) *Engine {
	return &Engine{
		executor: executor,
		logger:   logger.GetGlobalLogger().WithComponent("rule_engine"),
	}
}

// Apply evaluates the rules against one transaction. Rules are filtered to
// active ones and sorted by descending priority, ties keeping their
// original order. Within a rule every condition must hold; the first
// failing condition short-circuits that rule. The first fully-matching rule
// has its actions executed in list order and evaluation stops.
func (e *Engine) Apply(ctx context.Context, tx *models.BankTransaction, ruleSet []*Rule) (*Result, error) {
	active := make([]*Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	for _, rule := range active {
		if !e.ruleMatches(tx, rule) {
			continue
		}

		executed, err := e.executeActions(ctx, tx, rule)
		if err != nil {
			return nil, err
		}

		e.logger.WithFields(logger.Fields{
			"rule_id":        rule.ID,
			"rule_name":      rule.Name,
			"transaction_id": tx.ID,
			"actions":        len(executed),
		}).Info("Rule applied to transaction")

		return &Result{
			Applied:         true,
			RuleID:          rule.ID,
			RuleName:        rule.Name,
			ActionsExecuted: executed,
		}, nil
	}

	return &Result{Applied: false, ActionsExecuted: []ActionType{}}, nil
}

// ruleMatches reports whether every condition of the rule holds for the
// transaction
func (e *Engine) ruleMatches(tx *models.BankTransaction, rule *Rule) bool {
	for _, cond := range rule.Conditions {
		if !e.conditionMatches(tx, cond) {
			return false
		}
	}
	return true
}

// conditionMatches evaluates one condition against the transaction. A
// condition whose operator does not fit the extracted field (an amount
// range against a description, say) fails closed.
func (e *Engine) conditionMatches(tx *models.BankTransaction, cond Condition) bool {
	switch cond.Operator {
	case OperatorAmountRange:
		if cond.Field != FieldAmount {
			return false
		}
		min, max, err := parseAmountRange(cond.Value)
		if err != nil {
			return false
		}
		return tx.Amount.GreaterThanOrEqual(min) && tx.Amount.LessThanOrEqual(max)

	case OperatorDateRange:
		if cond.Field != FieldDate {
			return false
		}
		start, end, err := parseDateRange(cond.Value)
		if err != nil {
			return false
		}
		return !tx.Date.Before(start) && !tx.Date.After(end)

	case OperatorRegex:
		value, ok := stringField(tx, cond.Field)
		if !ok {
			return false
		}
		matched, err := regexp.MatchString(cond.Value, value)
		return err == nil && matched

	case OperatorEquals, OperatorContains, OperatorStartsWith, OperatorEndsWith:
		value, ok := stringField(tx, cond.Field)
		if !ok {
			return false
		}
		value = strings.ToLower(value)
		expected := strings.ToLower(cond.Value)
		switch cond.Operator {
		case OperatorEquals:
			return value == expected
		case OperatorContains:
			return strings.Contains(value, expected)
		case OperatorStartsWith:
			return strings.HasPrefix(value, expected)
		case OperatorEndsWith:
			return strings.HasSuffix(value, expected)
		}
	}

	return false
}

// stringField extracts a textual field value from the transaction
func stringField(tx *models.BankTransaction, field string) (string, bool) {
	switch field {
	case FieldDescription:
		return tx.Description, true
	case FieldMerchant:
		return tx.Merchant, true
	case FieldType:
		return tx.Type.String(), true
	case FieldAmount:
		return tx.Amount.String(), true
	case FieldDate:
		return tx.Date.Format("2006-01-02"), true
	}
	return "", false
}

// executeActions runs the rule's actions in list order. Action types the
// executor does not understand are skipped, not errors; rows written before
// the enumeration grew must not fail the pass.
func (e *Engine) executeActions(ctx context.Context, tx *models.BankTransaction, rule *Rule) ([]ActionType, error) {
	executed := make([]ActionType, 0, len(rule.Actions))

	for _, action := range rule.Actions {
		var err error
		switch action.Type {
		case ActionCategorize:
			err = e.executor.SetCategory(ctx, tx.ID, action.Value)
		case ActionFlagForReview:
			err = e.executor.FlagForReview(ctx, tx.ID, action.Value)
		case ActionTag:
			err = e.executor.Tag(ctx, tx.ID, action.Value)
		case ActionAutoMatch:
			err = e.executor.AutoMatch(ctx, tx.ID)
		default:
			e.logger.WithFields(logger.Fields{
				"rule_id":     rule.ID,
				"action_type": action.Type.String(),
			}).Warn("Skipping unknown action type")
			continue
		}
		if err != nil {
			return executed, err
		}
		executed = append(executed, action.Type)
	}

	return executed, nil
}
