package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/keytrace/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the collector version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "keytrace %s\n", buildinfo.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
