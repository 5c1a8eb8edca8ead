// Package reporter assembles and renders reconciliation reports. Reports
// are derived entirely from session, match, and detector data and carry no
// state of their own.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
)

// Thresholds that trigger report recommendations.
const (
	lowScoreThreshold      = 80
	unmatchedRatioCritical = 0.10
)

// Build assembles a report for a session from its matches and a fresh
// suspicious-transaction scan
func Build(session *models.ReconciliationSession, matches []*models.ReconciliationMatch, suspicious []models.SuspiciousTransaction) *models.ReconciliationReport {
	return &models.ReconciliationReport{
		SessionID: session.ID,
		Period: models.ReportPeriod{
			StartDate: session.StartDate,
			EndDate:   session.EndDate,
		},
		Summary: models.ReportSummary{
			TotalTransactions:     session.TotalTransactions,
			MatchedTransactions:   session.MatchedTransactions,
			UnmatchedTransactions: session.UnmatchedTransactions,
			ReconciliationScore:   session.ReconciliationScore,
		},
		Matches:                matches,
		SuspiciousTransactions: suspicious,
		Recommendations:        recommendations(session, matches, suspicious),
		GeneratedAt:            time.Now().UTC(),
	}
}

func recommendations(session *models.ReconciliationSession, matches []*models.ReconciliationMatch, suspicious []models.SuspiciousTransaction) []string {
	var recs []string

	if session.ReconciliationScore < lowScoreThreshold {
		recs = append(recs, "Reconciliation score is below 80. Review unmatched transactions for missing or duplicated ledger entries.")
	}
	if len(suspicious) > 0 {
		recs = append(recs, fmt.Sprintf("%d suspicious transaction finding(s) detected. Escalate for fraud review before closing the period.", len(suspicious)))
	}

	fuzzyCount := 0
	for _, match := range matches {
		if match.MatchType == models.MatchFuzzy {
			fuzzyCount++
		}
	}
	if fuzzyCount > 0 {
		recs = append(recs, fmt.Sprintf("%d match(es) were made on fuzzy confidence. Verify their accuracy manually.", fuzzyCount))
	}

	if session.TotalTransactions > 0 {
		ratio := float64(session.UnmatchedTransactions) / float64(session.TotalTransactions)
		if ratio > unmatchedRatioCritical {
			recs = append(recs, "More than 10% of transactions are unmatched. Consider adjusting matching rules or tolerances.")
		}
	}

	return recs
}

// WriteJSON renders the report as indented JSON
func WriteJSON(w io.Writer, report *models.ReconciliationReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteConsole renders a human-readable summary of the report
func WriteConsole(w io.Writer, report *models.ReconciliationReport) error {
	var err error
	p := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("Reconciliation Report\n")
	p("=====================\n")
	p("Session:  %s\n", report.SessionID)
	p("Period:   %s to %s\n",
		report.Period.StartDate.Format("2006-01-02"),
		report.Period.EndDate.Format("2006-01-02"))
	p("Score:    %d%%\n\n", report.Summary.ReconciliationScore)

	p("Summary\n")
	p("-------\n")
	p("Total transactions:     %d\n", report.Summary.TotalTransactions)
	p("Matched transactions:   %d\n", report.Summary.MatchedTransactions)
	p("Unmatched transactions: %d\n\n", report.Summary.UnmatchedTransactions)

	if len(report.Matches) > 0 {
		p("Matches\n")
		p("-------\n")
		for _, match := range report.Matches {
			p("  %s <-> %s  type=%s confidence=%.2f difference=%s\n",
				match.BankTransactionID, match.BookTransactionID,
				match.MatchType, match.Confidence, match.Difference.StringFixed(2))
		}
		p("\n")
	}

	if len(report.SuspiciousTransactions) > 0 {
		p("Suspicious Transactions\n")
		p("-----------------------\n")
		for _, finding := range report.SuspiciousTransactions {
			p("  [%s] %s: %s\n", finding.Severity, finding.TransactionID, finding.Reason)
		}
		p("\n")
	}

	if len(report.Recommendations) > 0 {
		p("Recommendations\n")
		p("---------------\n")
		for _, rec := range report.Recommendations {
			p("  - %s\n", rec)
		}
	}

	p("\nGenerated at %s\n", report.GeneratedAt.Format(time.RFC3339))
	return err
}
