package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookkeeping-reconciliation-service/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportBankCSV(t *testing.T) {
	store := storage.NewMemoryStore()
	imp := NewImporter(store)

	path := writeCSV(t, `id,date,amount,description,merchant,type
bank-1,2024-01-01,100.00,Rent payment,Acme Properties,debit
bank-2,2024-01-05,"$1,250.50",Invoice payout,,credit
`)

	stats, err := imp.ImportBankCSV(context.Background(), path, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 0, stats.Skipped)

	tx, err := store.GetBankTransaction(context.Background(), "bank-2")
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("1250.50")))
	assert.Equal(t, "acct-1", tx.AccountID)
	assert.True(t, tx.Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestImportResolvesHeaderAliases(t *testing.T) {
	store := storage.NewMemoryStore()
	imp := NewImporter(store)

	path := writeCSV(t, `Transaction_ID,Posted_Date,Value,Memo,Payee
bank-1,2024-02-10,42.00,Office supplies,Staples
`)

	stats, err := imp.ImportBankCSV(context.Background(), path, "acct-1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Imported)

	tx, err := store.GetBankTransaction(context.Background(), "bank-1")
	require.NoError(t, err)
	assert.Equal(t, "Office supplies", tx.Description)
	assert.Equal(t, "Staples", tx.Merchant)
}

func TestImportSkipsMalformedRows(t *testing.T) {
	store := storage.NewMemoryStore()
	imp := NewImporter(store)

	path := writeCSV(t, `id,date,amount,description
bank-1,2024-01-01,100.00,Good row
bank-2,not-a-date,50.00,Bad date
bank-3,2024-01-03,not-an-amount,Bad amount
bank-4,2024-01-04,25.00,Another good row
`)

	stats, err := imp.ImportBankCSV(context.Background(), path, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 2, stats.Skipped)
	assert.Len(t, stats.Errors, 2)
}

func TestImportGeneratesMissingIDs(t *testing.T) {
	store := storage.NewMemoryStore()
	imp := NewImporter(store)

	path := writeCSV(t, `date,amount,description
2024-01-01,10.00,No id row
`)

	stats, err := imp.ImportBankCSV(context.Background(), path, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	txs, err := store.GetBankTransactions(context.Background(), "acct-1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.NotEmpty(t, txs[0].ID)
}

func TestImportRequiresAmountAndDateColumns(t *testing.T) {
	store := storage.NewMemoryStore()
	imp := NewImporter(store)

	path := writeCSV(t, `id,description
bank-1,No useful columns
`)

	_, err := imp.ImportBankCSV(context.Background(), path, "acct-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestImportBookCSV(t *testing.T) {
	store := storage.NewMemoryStore()
	imp := NewImporter(store)

	path := writeCSV(t, `id,date,amount,description
book-1,2024-01-01,100.00,Rent ledger entry
`)

	stats, err := imp.ImportBookCSV(context.Background(), path, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	tx, err := store.GetBookTransaction(context.Background(), "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Rent ledger entry", tx.Description)
}
