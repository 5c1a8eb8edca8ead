// Package importer loads bank and book transactions from CSV exports into
// the transaction store.
//
// Real-world exports vary in header naming, date formats, and amount
// representations (currency symbols, thousand separators); the importer
// resolves headers by alias and delegates value parsing to the models
// package helpers.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/storage"
	"bookkeeping-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// headerAliases maps the canonical column names to the spellings seen in
// common bank and accounting exports.
var headerAliases = map[string][]string{
	"id":          {"id", "transaction_id", "txn_id", "reference"},
	"date":        {"date", "transaction_date", "posted_date", "timestamp"},
	"amount":      {"amount", "value", "transaction_amount"},
	"description": {"description", "memo", "details", "narrative"},
	"merchant":    {"merchant", "payee", "vendor", "counterparty"},
	"type":        {"type", "transaction_type", "dr_cr", "direction"},
}

// ParseError is a row-level failure with enough position information to fix
// the source file.
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d (%s=%q): %s: %v",
			e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d (%s=%q): %s", e.Line, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Stats summarizes one import run.
type Stats struct {
	Imported int
	Skipped  int
	Errors   []error
}

// Importer reads CSV exports and writes transactions through the store.
type Importer struct {
	store  storage.TransactionStore
	logger logger.Logger
}

// NewImporter creates an importer over the given transaction store
func NewImporter(store storage.TransactionStore) *Importer {
	return &Importer{
		store:  store,
		logger: logger.GetGlobalLogger().WithComponent("importer"),
	}
}

// ImportBankCSV imports bank transactions from the file at path into the
// given account. Malformed rows are skipped and reported in the stats, not
// fatal.
func (i *Importer) ImportBankCSV(ctx context.Context, path, accountID string) (*Stats, error) {
	return i.importCSV(ctx, path, accountID, func(ctx context.Context, tx *models.BankTransaction) error {
		return i.store.CreateBankTransaction(ctx, tx)
	})
}

// ImportBookCSV imports book transactions from the file at path into the
// given account
func (i *Importer) ImportBookCSV(ctx context.Context, path, accountID string) (*Stats, error) {
	return i.importCSV(ctx, path, accountID, func(ctx context.Context, tx *models.BankTransaction) error {
		return i.store.CreateBookTransaction(ctx, &models.BookTransaction{
			ID:          tx.ID,
			AccountID:   tx.AccountID,
			Amount:      tx.Amount,
			Date:        tx.Date,
			Description: tx.Description,
			Merchant:    tx.Merchant,
			Type:        tx.Type,
		})
	})
}

func (i *Importer) importCSV(ctx context.Context, path, accountID string, persist func(context.Context, *models.BankTransaction) error) (*Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	stats, err := i.importReader(ctx, file, accountID, persist)
	if err != nil {
		return nil, err
	}

	i.logger.WithFields(logger.Fields{
		"file":     path,
		"imported": stats.Imported,
		"skipped":  stats.Skipped,
	}).Info("Finished CSV import")
	return stats, nil
}

func (i *Importer) importReader(ctx context.Context, r io.Reader, accountID string, persist func(context.Context, *models.BankTransaction) error) (*Stats, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		tx, perr := buildTransaction(record, columns, accountID, line)
		if perr != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, perr)
			i.logger.WithError(perr).Warn("Skipping malformed row")
			continue
		}

		if err := persist(ctx, tx); err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		stats.Imported++
	}

	return stats, nil
}

// resolveColumns maps canonical field names to column indexes using the
// alias table. Date and amount are required; everything else is optional.
func resolveColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for idx, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		for canonical, aliases := range headerAliases {
			for _, alias := range aliases {
				if normalized == alias {
					if _, taken := columns[canonical]; !taken {
						columns[canonical] = idx
					}
				}
			}
		}
	}

	for _, required := range []string{"date", "amount"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required column %q in header %v", required, header)
		}
	}
	return columns, nil
}

func buildTransaction(record []string, columns map[string]int, accountID string, line int) (*models.BankTransaction, *ParseError) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	amount, err := models.ParseAmount(field("amount"))
	if err != nil {
		return nil, &ParseError{Line: line, Field: "amount", Value: field("amount"),
			Message: "invalid amount", Err: err}
	}

	date, err := models.ParseTimeWithFormats(field("date"))
	if err != nil {
		return nil, &ParseError{Line: line, Field: "date", Value: field("date"),
			Message: "invalid date", Err: err}
	}

	tx := &models.BankTransaction{
		ID:          field("id"),
		AccountID:   accountID,
		Amount:      amount,
		Date:        date,
		Description: field("description"),
		Merchant:    field("merchant"),
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	if raw := field("type"); raw != "" {
		txType, err := models.ParseTransactionType(raw)
		if err != nil {
			return nil, &ParseError{Line: line, Field: "type", Value: raw,
				Message: "invalid transaction type", Err: err}
		}
		tx.Type = txType
	}

	return tx, nil
}
