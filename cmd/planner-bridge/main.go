// Command planner-bridge synchronizes the Annika task store in Redis
// with a Microsoft Planner plan.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/annikahq/planner-bridge/internal/config"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "planner-bridge",
	Short: "Bidirectional sync between the Annika task store and Microsoft Planner",
	Long: `planner-bridge keeps AI-agent tasks stored in Redis in step with a
Microsoft Planner plan, in both directions.

Local edits are pushed to Planner; edits made by humans in the Planner
UI are pulled back. Conditional requests against cached ETags keep
unchanged tasks off the wire, and If-Match preconditions on writes turn
concurrent edits into detected conflicts instead of silent overwrites.

Commands:
  run        Start the sync daemon (change signals + periodic sweeps)
  sync       Perform a single full sweep and exit
  status     Show store connectivity and sync statistics
  dashboard  Start the WebSocket monitoring dashboard
  history    Show recent sync journal entries

Configuration is read from a YAML file (--config) merged with
PLANNER_BRIDGE_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")
}

// loadConfig reads the configuration for a command, exiting on failure.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the shared logger, adding rotating file output when
// configured.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}
	return log.New(out, prefix, log.LstdFlags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
