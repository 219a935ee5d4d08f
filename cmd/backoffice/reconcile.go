package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiberline/backoffice/bootstrap"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one remote status reconciliation and exit",
	Long: `Trigger a bulk payment status reconciliation against the
provisioning system and print the result.

Requires reconcile.enabled (or BACKOFFICE_RECONCILE_URL) in the
configuration.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Shutdown()

	result, err := app.Billing.TriggerReconcile(context.Background())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	fmt.Printf("Reconciliation complete\n")
	fmt.Printf("  checked:    %d\n", result.Checked)
	fmt.Printf("  reconciled: %d\n", result.Reconciled)
	return nil
}
