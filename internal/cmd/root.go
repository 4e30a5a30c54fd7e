package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "keytrace",
	Short: "Local input telemetry collector",
	Long:  "Observe keyboard and mouse activity, persist privacy-masked session logs, and sync closed sessions to remote storage.",
	RunE:  runCollector,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (json, console)")
}
