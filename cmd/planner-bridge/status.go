package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/annikahq/planner-bridge/internal/journal"
	"github.com/annikahq/planner-bridge/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store connectivity and sync statistics",
	Long: `Display the current state of the bridge.

Shows:
  - Redis connectivity and task / mapping counts
  - Journal location and accumulated sync statistics

This command needs no Graph credentials; it only reads local state.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		st, err := store.NewRedis(ctx, store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		taskIDs, err := st.ListTaskIDs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing tasks: %v\n", err)
			os.Exit(1)
		}
		plannerIDs, err := st.ListMappedPlannerIDs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing mappings: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\nRedis:    %s (namespace %q)\n", cfg.Redis.Addr, cfg.Redis.Namespace)
		fmt.Printf("   Tasks:    %d\n", len(taskIDs))
		fmt.Printf("   Mappings: %d\n", len(plannerIDs))

		jrnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			fmt.Printf("\nJournal:  %s (unavailable: %v)\n", cfg.Journal.Path, err)
			return
		}
		defer jrnl.Close()

		stats, err := jrnl.GetStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading journal stats: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\nJournal:  %s\n", cfg.Journal.Path)
		fmt.Printf("   Entries:   %d\n", stats.Total)
		for _, action := range []journal.Action{
			journal.ActionUpload, journal.ActionDownload, journal.ActionDelete,
			journal.ActionSkip, journal.ActionConflict,
		} {
			if n := stats.ByAction[action]; n > 0 {
				fmt.Printf("   %-10s %d\n", string(action)+":", n)
			}
		}
		if n := stats.ByOutcome[journal.OutcomeError]; n > 0 {
			fmt.Printf("   errors:    %d\n", n)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
