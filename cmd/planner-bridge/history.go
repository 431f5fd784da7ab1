package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/annikahq/planner-bridge/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "Show recent sync journal entries",
	Long: `Show the reconciliation journal, newest first.

Without arguments the most recent entries across all tasks are shown.
With a task ID, only that task's history is shown.

Example usage:
  planner-bridge history               # Last 20 entries
  planner-bridge history -n 100        # Last 100 entries
  planner-bridge history task-42       # One task's history`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg := loadConfig()

		jrnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer jrnl.Close()

		ctx := context.Background()

		var entries []journal.Entry
		if len(args) == 1 {
			entries, err = jrnl.ByTask(ctx, args[0], limit)
		} else {
			entries, err = jrnl.Recent(ctx, limit)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Println("No journal entries")
			return
		}

		for _, e := range entries {
			line := fmt.Sprintf("%s  %-9s %-7s %s",
				e.At.Format("2006-01-02 15:04:05"), e.Action, e.Outcome, e.TaskID)
			if e.PlannerID != "" {
				line += " -> " + e.PlannerID
			}
			if e.Detail != "" {
				line += "  (" + e.Detail + ")"
			}
			fmt.Println(line)
		}
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum entries to show")
	rootCmd.AddCommand(historyCmd)
}
