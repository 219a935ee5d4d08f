package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiberline/backoffice/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the back-office API server",
	Long: `Start the back-office API server.

The server will:
  - Load configuration from backoffice.yaml (or --config)
  - Apply BACKOFFICE_* environment variable overrides
  - Open the database and run pending migrations
  - Serve the operator API and, when enabled, /metrics

Environment variables (for Docker deployments):
  BACKOFFICE_DATABASE_DSN    - Database path (default: backoffice.db)
  BACKOFFICE_SERVER_PORT     - Server port (default: 8080)
  BACKOFFICE_AUTH_JWT_SECRET - Session token signing secret
  BACKOFFICE_ADMIN_EMAIL     - Admin email for first-run bootstrap
  BACKOFFICE_ADMIN_PASSWORD  - Admin password for first-run bootstrap
  BACKOFFICE_LOG_LEVEL       - Log level: debug, info, warn, error

Examples:
  backoffice serve
  backoffice serve --config /etc/backoffice/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
