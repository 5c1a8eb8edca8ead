// Package models defines the core domain entities for bank-to-book
// reconciliation: bank and book transactions, reconciliation sessions,
// confirmed matches, and the derived reconciliation report.
//
// Amounts are represented with shopspring/decimal throughout; float64 is
// reserved for confidence scores. Timestamps are stored in UTC.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a transaction
type TransactionType string

const (
	// TransactionTypeDebit represents a debit transaction
	TransactionTypeDebit TransactionType = "debit"
	// TransactionTypeCredit represents a credit transaction
	TransactionTypeCredit TransactionType = "credit"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeDebit || t == TransactionTypeCredit
}

// ParseTransactionType parses and validates a transaction type from string
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit", "d", "dr":
		return TransactionTypeDebit, nil
	case "credit", "c", "cr":
		return TransactionTypeCredit, nil
	default:
		return "", fmt.Errorf("invalid transaction type '%s': must be debit or credit", s)
	}
}

// BankTransaction is a transaction record sourced from a bank feed.
type BankTransaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	Merchant     string          `json:"merchant,omitempty"`
	Type         TransactionType `json:"type,omitempty"`
	Category     *string         `json:"category,omitempty"`
	IsReconciled bool            `json:"isReconciled"`
}

// Validate performs basic validation on the BankTransaction
func (t *BankTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("bank transaction id cannot be empty")
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("bank transaction account id cannot be empty")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("bank transaction date cannot be zero")
	}
	return nil
}

// String returns a string representation of the BankTransaction
func (t *BankTransaction) String() string {
	return fmt.Sprintf("BankTransaction{ID: %s, Amount: %s, Date: %s, Description: %q}",
		t.ID, t.Amount.String(), t.Date.Format(time.RFC3339), t.Description)
}

// BookTransaction is a transaction record from the organization's own ledger.
type BookTransaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	Merchant     string          `json:"merchant,omitempty"`
	Type         TransactionType `json:"type,omitempty"`
	Category     *string         `json:"category,omitempty"`
	IsReconciled bool            `json:"isReconciled"`
}

// Validate performs basic validation on the BookTransaction
func (t *BookTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("book transaction id cannot be empty")
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("book transaction account id cannot be empty")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("book transaction date cannot be zero")
	}
	return nil
}

// String returns a string representation of the BookTransaction
func (t *BookTransaction) String() string {
	return fmt.Sprintf("BookTransaction{ID: %s, Amount: %s, Date: %s, Description: %q}",
		t.ID, t.Amount.String(), t.Date.Format(time.RFC3339), t.Description)
}

// SessionStatus represents the lifecycle state of a reconciliation session.
// Sessions move pending -> in_progress -> completed|failed; completed and
// failed are terminal.
type SessionStatus string

const (
	// SessionPending is the initial state of a newly created session
	SessionPending SessionStatus = "pending"
	// SessionInProgress indicates automated matching has started
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted indicates the session finished successfully (terminal)
	SessionCompleted SessionStatus = "completed"
	// SessionFailed indicates the session aborted with an error (terminal)
	SessionFailed SessionStatus = "failed"
)

// String returns the string representation of SessionStatus
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid checks if the session status is a known state
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionPending, SessionInProgress, SessionCompleted, SessionFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// CanTransitionTo reports whether a transition from s to next is legal
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case SessionPending:
		return next == SessionInProgress || next == SessionFailed
	case SessionInProgress:
		return next == SessionCompleted || next == SessionFailed
	}
	return false
}

// ReconciliationSession is one reconciliation attempt for an account over a
// date range. It is owned by the session orchestrator and mutated only
// through its operations.
type ReconciliationSession struct {
	ID                    string        `json:"id"`
	AccountID             string        `json:"accountId"`
	UserID                string        `json:"userId"`
	StartDate             time.Time     `json:"startDate"`
	EndDate               time.Time     `json:"endDate"`
	Status                SessionStatus `json:"status"`
	TotalTransactions     int           `json:"totalTransactions"`
	MatchedTransactions   int           `json:"matchedTransactions"`
	UnmatchedTransactions int           `json:"unmatchedTransactions"`
	ReconciliationScore   int           `json:"reconciliationScore"`
	CreatedAt             time.Time     `json:"createdAt"`
	CompletedAt           *time.Time    `json:"completedAt,omitempty"`
}

// Validate performs basic validation on the session
func (s *ReconciliationSession) Validate() error {
	if strings.TrimSpace(s.AccountID) == "" {
		return fmt.Errorf("session account id cannot be empty")
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("session user id cannot be empty")
	}
	if s.StartDate.After(s.EndDate) {
		return fmt.Errorf("session start date %s is after end date %s",
			s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid session status: %s", s.Status)
	}
	if s.Status == SessionCompleted && s.MatchedTransactions+s.UnmatchedTransactions != s.TotalTransactions {
		return fmt.Errorf("completed session counts are inconsistent: %d matched + %d unmatched != %d total",
			s.MatchedTransactions, s.UnmatchedTransactions, s.TotalTransactions)
	}
	return nil
}

// String returns a string representation of the session
func (s *ReconciliationSession) String() string {
	return fmt.Sprintf("ReconciliationSession{ID: %s, Account: %s, Status: %s, Score: %d}",
		s.ID, s.AccountID, s.Status, s.ReconciliationScore)
}

// MatchType classifies how a reconciliation match was established.
type MatchType string

const (
	// MatchExact is an automated match with confidence above the exact threshold
	MatchExact MatchType = "exact"
	// MatchFuzzy is an automated match above the acceptance threshold but
	// below the exact threshold
	MatchFuzzy MatchType = "fuzzy"
	// MatchManual is a user-confirmed match, always recorded at confidence 1.0
	MatchManual MatchType = "manual"
)

// String returns the string representation of MatchType
func (m MatchType) String() string {
	return string(m)
}

// IsValid checks if the match type is valid
func (m MatchType) IsValid() bool {
	return m == MatchExact || m == MatchFuzzy || m == MatchManual
}

// ReconciliationMatch is a confirmed 1:1 pairing of a bank transaction and a
// book transaction within a session.
type ReconciliationMatch struct {
	ID                string          `json:"id"`
	SessionID         string          `json:"sessionId"`
	BankTransactionID string          `json:"bankTransactionId"`
	BookTransactionID string          `json:"bookTransactionId"`
	Confidence        float64         `json:"confidence"`
	MatchType         MatchType       `json:"matchType"`
	Difference        decimal.Decimal `json:"difference"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Validate performs basic validation on the match
func (m *ReconciliationMatch) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return fmt.Errorf("match session id cannot be empty")
	}
	if strings.TrimSpace(m.BankTransactionID) == "" {
		return fmt.Errorf("match bank transaction id cannot be empty")
	}
	if strings.TrimSpace(m.BookTransactionID) == "" {
		return fmt.Errorf("match book transaction id cannot be empty")
	}
	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return fmt.Errorf("match confidence must be between 0.0 and 1.0: %f", m.Confidence)
	}
	if !m.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", m.MatchType)
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling so the difference renders as
// a plain decimal string
func (m *ReconciliationMatch) MarshalJSON() ([]byte, error) {
	type Alias ReconciliationMatch
	return json.Marshal(&struct {
		Difference string `json:"difference"`
		*Alias
	}{
		Difference: m.Difference.String(),
		Alias:      (*Alias)(m),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for ReconciliationMatch
func (m *ReconciliationMatch) UnmarshalJSON(data []byte) error {
	type Alias ReconciliationMatch
	aux := &struct {
		Difference string `json:"difference"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Difference == "" {
		m.Difference = decimal.Zero
		return nil
	}

	var err error
	m.Difference, err = decimal.NewFromString(aux.Difference)
	if err != nil {
		return fmt.Errorf("invalid difference format: %w", err)
	}
	return nil
}

// Severity grades a suspicious-transaction finding.
type Severity string

const (
	// SeverityMedium marks findings that warrant review
	SeverityMedium Severity = "medium"
	// SeverityHigh marks findings that warrant immediate review
	SeverityHigh Severity = "high"
)

// SuspiciousTransaction is a single heuristic finding against a bank
// transaction. The same transaction may appear more than once, once per
// triggered heuristic.
type SuspiciousTransaction struct {
	TransactionID string   `json:"transactionId"`
	Reason        string   `json:"reason"`
	Severity      Severity `json:"severity"`
}

// ReportPeriod is the date range a report covers.
type ReportPeriod struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// ReportSummary carries the aggregate counts and score for a session.
type ReportSummary struct {
	TotalTransactions     int `json:"totalTransactions"`
	MatchedTransactions   int `json:"matchedTransactions"`
	UnmatchedTransactions int `json:"unmatchedTransactions"`
	ReconciliationScore   int `json:"reconciliationScore"`
}

// ReconciliationReport is a derived, read-only summary assembled per
// session. It has no independent lifecycle and is rebuilt on demand from
// session and match data.
type ReconciliationReport struct {
	SessionID               string                  `json:"sessionId"`
	Period                  ReportPeriod            `json:"period"`
	Summary                 ReportSummary           `json:"summary"`
	Matches                 []*ReconciliationMatch  `json:"matches"`
	SuspiciousTransactions  []SuspiciousTransaction `json:"suspiciousTransactions"`
	Recommendations         []string                `json:"recommendations"`
	GeneratedAt             time.Time               `json:"generatedAt"`
}

// ParseAmount parses a decimal amount from string, tolerating currency
// symbols and thousand separators commonly present in exported data
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	return d, nil
}

// ParseTimeWithFormats attempts to parse a timestamp using the formats
// commonly seen in exported transaction data
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
