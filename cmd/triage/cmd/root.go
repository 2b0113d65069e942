// Package cmd provides the CLI commands for the logtriage tool.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Incident-driven log collection and error triage",
	Long: `logtriage correlates Google Cloud Logging entries with an incident:
  - Derives a query window from an alerting incident file or a lookback
  - Collects and normalizes the matching log entries
  - Classifies errors, groups repeats, and builds a window timeline
  - Emits prioritized remediation recommendations

Reports are written to stdout as JSON; diagnostics go to stderr.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(setupCollectCmd())
	rootCmd.AddCommand(setupTriageCmd())
	rootCmd.AddCommand(setupServeCmd())
}
