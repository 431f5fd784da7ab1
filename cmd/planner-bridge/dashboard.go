package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/annikahq/planner-bridge/internal/dashboard"
	"github.com/annikahq/planner-bridge/internal/journal"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the WebSocket monitoring dashboard standalone",
	Long: `Start the dashboard server without the sync daemon.

The standalone dashboard serves journal statistics and health but no
live sync events; those flow only when the dashboard runs inside
'planner-bridge run'.

WebSocket messages:
- sync_event: one reconciliation outcome for one task
- sweep_complete: a full-sweep summary

Example usage:
  planner-bridge dashboard                # Default port 8080
  planner-bridge dashboard --port 9000

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		cfg := loadConfig()
		if port == 0 {
			port = cfg.Dashboard.Port
		}
		logger := newLogger(cfg, "[dashboard] ")

		jrnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer jrnl.Close()

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Stats:  jrnl,
			Logger: logger,
		})

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Dashboard started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard stopped")
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
