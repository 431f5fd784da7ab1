package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Perform a single full sweep and exit",
	Long: `Reconcile every task once and exit.

This performs one full sweep:
  1. Lists all local tasks plus all mapped Planner IDs
  2. Conditionally fetches each mapped Planner task against its cached ETag
  3. Uploads, downloads, deletes, or skips per task
  4. Prints a summary

Example usage:
  planner-bridge sync --config bridge.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[bridge] ")

		ctx := context.Background()
		b, err := buildBridge(ctx, cfg, logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer b.close()

		fmt.Printf("Syncing plan %s...\n", cfg.Graph.PlanID)
		report, err := b.engine.RunOnce(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sweep: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Sweep complete in %v\n", report.Duration.Round(time.Millisecond))
		fmt.Printf("   Scanned:   %d\n", report.Scanned)
		fmt.Printf("   Uploads:   %d\n", report.Uploads)
		fmt.Printf("   Downloads: %d\n", report.Downloads)
		fmt.Printf("   Deletes:   %d\n", report.Deletes)
		fmt.Printf("   Skips:     %d\n", report.Skips)
		if report.Conflicts > 0 {
			fmt.Printf("   Conflicts: %d (deferred to next run)\n", report.Conflicts)
		}
		if report.Errors > 0 {
			fmt.Printf("   Errors:    %d (see journal)\n", report.Errors)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
