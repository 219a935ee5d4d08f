package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "ISP back-office with recurring billing, intake, and postponements",
	Long: `Backoffice is the administrative system for a small ISP.

It handles client intake with identity deduplication, monthly recurring
billing anchored to each installation's start date, payment postponement
commitments, and reconciliation against the provisioning system.

Quick start:
  backoffice migrate   # Create or upgrade the database schema
  backoffice serve     # Start the API server

Maintenance:
  backoffice reconcile # One-shot remote status reconciliation
  backoffice version   # Print version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "backoffice.yaml", "config file path")
}
