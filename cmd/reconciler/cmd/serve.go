package cmd

import (
	"fmt"

	"bookkeeping-reconciliation-service/cmd/reconciler/config"
	"bookkeeping-reconciliation-service/internal/api"
	"bookkeeping-reconciliation-service/internal/reconciler"
	"bookkeeping-reconciliation-service/internal/storage"
	"bookkeeping-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var servePort int

// serveCmd starts the HTTP API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP API",
	Long: `Serve exposes session, matching, rule, and reporting operations over
HTTP. Callers identify themselves with the X-User-ID header.

Examples:
  reconciler serve
  reconciler serve --port 9090 --db /var/lib/reconciler/data.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
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
	server := api.NewServer(service)

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	logger.GetGlobalLogger().WithField("addr", addr).Info("Starting API server")
	return server.Router().Run(addr)
}
