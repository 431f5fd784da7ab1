package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/annikahq/planner-bridge/internal/config"
	"github.com/annikahq/planner-bridge/internal/dashboard"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sync daemon",
	Long: `Start the bridge daemon: an initial full sweep, then continuous
reconciliation driven by change signals on the Redis update channel and
periodic full sweeps.

The daemon also starts the WebSocket dashboard unless --no-dashboard is
given, and reloads the mutable config subset when the config file
changes on disk.

Example usage:
  planner-bridge run --config bridge.yaml
  planner-bridge run --no-dashboard

Stop with Ctrl+C or SIGTERM; in-flight operations are drained before
exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")

		cfg := loadConfig()
		logger := newLogger(cfg, "[bridge] ")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		b, err := buildBridge(ctx, cfg, logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer b.close()

		if !noDashboard {
			dash := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Stats:  b.journal,
				Logger: logger,
			})
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() { _ = dash.Stop() }()
			b.engine.SetEvents(dash)
		}

		if configPath != "" {
			watcher, werr := config.NewWatcher(configPath, func(next *config.Config) {
				b.engine.SetSweepInterval(next.Sync.Interval)
			}, logger)
			if werr != nil {
				logger.Printf("Warning: config watch unavailable: %v", werr)
			} else if werr := watcher.Start(ctx); werr != nil {
				logger.Printf("Warning: config watch failed to start: %v", werr)
			} else {
				defer func() { _ = watcher.Stop() }()
			}
		}

		logger.Printf("Bridge daemon starting (plan %s)", cfg.Graph.PlanID)
		if err := b.engine.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger.Println("Bridge daemon stopped")
	},
}

func init() {
	runCmd.Flags().Bool("no-dashboard", false, "Disable the WebSocket dashboard")
	rootCmd.AddCommand(runCmd)
}
