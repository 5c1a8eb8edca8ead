package detector

import (
	"testing"
	"time"

	"bookkeeping-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func tx(id string, amount float64, date time.Time) *models.BankTransaction {
	return &models.BankTransaction{
		ID:        id,
		AccountID: "acct-1",
		Amount:    decimal.NewFromFloat(amount),
		Date:      date,
	}
}

func findingsFor(findings []models.SuspiciousTransaction, id string) []models.SuspiciousTransaction {
	var out []models.SuspiciousTransaction
	for _, f := range findings {
		if f.TransactionID == id {
			out = append(out, f)
		}
	}
	return out
}

func TestDetectLargeAmount(t *testing.T) {
	d := NewDetector(nil)
	noon := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	findings := d.Detect([]*models.BankTransaction{
		tx("big", 10000.01, noon),
		tx("boundary", 10000.00, noon.Add(time.Hour)),
		tx("negative-big", -15000.00, noon.Add(2*time.Hour)),
	})

	big := findingsFor(findings, "big")
	if len(big) != 1 || big[0].Severity != models.SeverityHigh || big[0].Reason != "Large transaction amount" {
		t.Errorf("expected one high-severity large-amount finding for 'big', got %v", big)
	}
	if len(findingsFor(findings, "boundary")) != 0 {
		t.Error("amount exactly at the threshold must not be flagged")
	}
	if len(findingsFor(findings, "negative-big")) != 1 {
		t.Error("large negative amounts are flagged by absolute value")
	}
}

func TestDetectOffHours(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		hour     int
		expected bool
	}{
		{5, true},
		{6, false},
		{12, false},
		{22, false},
		{23, true},
		{0, true},
	}

	for _, tt := range tests {
		date := time.Date(2024, 1, 10, tt.hour, 30, 0, 0, time.UTC)
		findings := d.Detect([]*models.BankTransaction{tx("t", 50.00, date)})

		flagged := len(findingsFor(findings, "t")) == 1
		if flagged != tt.expected {
			t.Errorf("hour %d: flagged=%v, expected %v", tt.hour, flagged, tt.expected)
		}
		if flagged && findings[0].Severity != models.SeverityMedium {
			t.Errorf("hour %d: expected medium severity", tt.hour)
		}
	}
}

func TestDetectDuplicateAmounts(t *testing.T) {
	d := NewDetector(nil)
	noon := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	findings := d.Detect([]*models.BankTransaction{
		tx("a", 45.00, noon),
		tx("b", 45.005, noon.Add(time.Hour)),
		tx("c", 46.00, noon.Add(2*time.Hour)),
	})

	if len(findingsFor(findings, "a")) != 1 || len(findingsFor(findings, "b")) != 1 {
		t.Error("both near-identical amounts must be flagged as potential duplicates")
	}
	if len(findingsFor(findings, "c")) != 0 {
		t.Error("distinct amount must not be flagged")
	}
}

func TestDetectMultipleReasonsPerTransaction(t *testing.T) {
	d := NewDetector(nil)
	night := time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC)

	findings := d.Detect([]*models.BankTransaction{
		tx("x", 20000.00, night),
		tx("y", 20000.00, night.Add(time.Minute)),
	})

	x := findingsFor(findings, "x")
	if len(x) != 3 {
		t.Fatalf("expected large+timing+duplicate findings for 'x', got %d: %v", len(x), x)
	}
}

func TestDetectEmptyInput(t *testing.T) {
	d := NewDetector(nil)
	if findings := d.Detect(nil); len(findings) != 0 {
		t.Errorf("expected no findings for empty input, got %v", findings)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.OffHoursStart = 25
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range off-hours start")
	}

	bad = DefaultConfig()
	bad.DuplicateTolerance = decimal.NewFromFloat(-0.01)
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative duplicate tolerance")
	}
}
