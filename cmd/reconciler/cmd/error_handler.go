package cmd

import (
	"fmt"
	"os"

	svcerrors "bookkeeping-reconciliation-service/pkg/errors"
	"bookkeeping-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler converts errors into user-facing messages and process
// exit codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message and returns the exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if serviceErr, ok := svcerrors.AsServiceError(err); ok {
		return h.handleServiceError(serviceErr)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func (h *CLIErrorHandler) handleServiceError(err *svcerrors.ServiceError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func categoryHelp(category svcerrors.Category) string {
	switch category {
	case svcerrors.CategoryValidation:
		return `Validation error help:
• Check that all required flags have values
• Verify date formats use YYYY-MM-DD and start-date is not after end-date
• Ensure amounts are decimal numbers without currency symbols`

	case svcerrors.CategoryNotFound, svcerrors.CategoryUnauthorized:
		return `Lookup error help:
• Verify the session, transaction, or rule id
• Check that the --user flag matches the owner of the session
• Use 'reconciler reconcile --help' to see how sessions are created`

	case svcerrors.CategoryStorage:
		return `Storage error help:
• Check the --db path and its directory permissions
• Make sure no other process holds the database open
• Verify available disk space`

	case svcerrors.CategoryReconciliation:
		return `Reconciliation error help:
• Check data quality in the imported transactions
• Verify that the period actually contains transactions
• Re-run with --verbose for more detail`

	case svcerrors.CategoryConfiguration:
		return `Configuration error help:
• Review command-line flags and arguments
• Verify configuration file syntax if using --config
• Try running with default settings first`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use --verbose for detailed error information`
	}
}
