package cmd

import (
	"fmt"
	"os"

	"bookkeeping-reconciliation-service/internal/importer"
	"bookkeeping-reconciliation-service/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	importBankFile string
	importBookFile string
	importAccount  string
)

// importCmd loads CSV exports into the transaction store
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bank and book transactions from CSV files",
	Long: `Import reads CSV exports of bank feed transactions and bookkeeping
ledger entries into the local database. Column headers are matched
case-insensitively against common export spellings; date and amount
columns are required.

Examples:
  reconciler import --bank-file feed.csv --account acct-1
  reconciler import --book-file ledger.csv --account acct-1
  reconciler import --bank-file feed.csv --book-file ledger.csv --account acct-1`,
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importBankFile, "bank-file", "", "path to bank transaction CSV")
	importCmd.Flags().StringVar(&importBookFile, "book-file", "", "path to book transaction CSV")
	importCmd.Flags().StringVar(&importAccount, "account", "", "account id to import into (required)")

	importCmd.MarkFlagRequired("account")
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if importBankFile == "" && importBookFile == "" {
		return fmt.Errorf("at least one of --bank-file or --book-file is required")
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSQLiteStore(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	imp := importer.NewImporter(store)
	ctx := cmd.Context()

	if importBankFile != "" {
		stats, err := imp.ImportBankCSV(ctx, importBankFile, importAccount)
		if err != nil {
			return err
		}
		printImportStats("bank", importBankFile, stats)
	}

	if importBookFile != "" {
		stats, err := imp.ImportBookCSV(ctx, importBookFile, importAccount)
		if err != nil {
			return err
		}
		printImportStats("book", importBookFile, stats)
	}

	return nil
}

func printImportStats(kind, path string, stats *importer.Stats) {
	fmt.Printf("Imported %d %s transaction(s) from %s (%d skipped)\n",
		stats.Imported, kind, path, stats.Skipped)
	for _, err := range stats.Errors {
		fmt.Fprintf(os.Stderr, "  warning: %v\n", err)
	}
}
