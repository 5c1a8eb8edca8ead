package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"bookkeeping-reconciliation-service/cmd/reconciler/config"
	"bookkeeping-reconciliation-service/internal/reconciler"
	"bookkeeping-reconciliation-service/internal/reporter"
	"bookkeeping-reconciliation-service/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	reconcileAccount string
	reconcileUser    string
	startDate        string
	endDate          string
	outputFormat     string
	outputFile       string
)

// reconcileCmd creates a session, runs automated reconciliation, and prints
// the resulting report
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run automated reconciliation for an account and period",
	Long: `Reconcile creates a session over the given account and date range, runs
the automated matching pass against previously imported transactions, and
prints a reconciliation report.

Examples:
  # Basic reconciliation over January
  reconciler reconcile --account acct-1 --user alice \
    --start-date 2024-01-01 --end-date 2024-01-31

  # Emit the report as JSON to a file
  reconciler reconcile --account acct-1 --user alice \
    --start-date 2024-01-01 --end-date 2024-01-31 \
    --output-format json --output-file report.json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileAccount, "account", "", "account id to reconcile (required)")
	reconcileCmd.Flags().StringVar(&reconcileUser, "user", "", "user id owning the session (required)")
	reconcileCmd.Flags().StringVar(&startDate, "start-date", "", "period start (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVar(&endDate, "end-date", "", "period end (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	reconcileCmd.MarkFlagRequired("account")
	reconcileCmd.MarkFlagRequired("user")
	reconcileCmd.MarkFlagRequired("start-date")
	reconcileCmd.MarkFlagRequired("end-date")
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if _, err := time.Parse("2006-01-02", startDate); err != nil {
		return fmt.Errorf("invalid --start-date %q: expected YYYY-MM-DD", startDate)
	}
	if _, err := time.Parse("2006-01-02", endDate); err != nil {
		return fmt.Errorf("invalid --end-date %q: expected YYYY-MM-DD", endDate)
	}
	if outputFormat != "console" && outputFormat != "json" {
		return fmt.Errorf("invalid --output-format %q: expected console or json", outputFormat)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSQLiteStore(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	matchingConfig, err := config.CreateMatchingConfig()
	if err != nil {
		return err
	}
	detectorConfig, err := config.CreateDetectorConfig()
	if err != nil {
		return err
	}
	service := reconciler.NewService(store, matchingConfig, detectorConfig)

	ctx := cmd.Context()
	start, _ := time.Parse("2006-01-02", startDate)
	end, _ := time.Parse("2006-01-02", endDate)
	end = end.Add(24*time.Hour - time.Second)

	session, err := service.CreateSession(ctx, reconcileAccount, reconcileUser, start, end)
	if err != nil {
		return err
	}

	if _, err := service.PerformAutomatedReconciliation(ctx, session.ID, reconcileUser); err != nil {
		return err
	}

	report, err := service.GenerateReport(ctx, session.ID, reconcileUser)
	if err != nil {
		return err
	}

	out, cleanup, err := openOutput()
	if err != nil {
		return err
	}
	defer cleanup()

	if outputFormat == "json" {
		return reporter.WriteJSON(out, report)
	}
	return reporter.WriteConsole(out, report)
}

func openOutput() (io.Writer, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}
