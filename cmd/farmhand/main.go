package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prismvfx/farmhand/cmd/farmhand/commands"
	"github.com/prismvfx/farmhand/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "farmhand",
	Short: "farmhand - render farm job orchestrator",
	Long: `farmhand - unified submission and tracking for render farm jobs.

farmhand validates render requests against each farm's advertised
capabilities, submits them through pluggable farm adapters, polls the
farms for status, and streams job lifecycle events to connected clients.

Available commands:
  serve   - Start the orchestrator and its HTTP/WebSocket API
  version - Print version information

Examples:
  farmhand serve                      # Start with defaults
  farmhand serve --config farm.toml   # Start with a config file`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
