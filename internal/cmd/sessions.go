package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/keytrace/pkg/catalog"
	"github.com/offlinefirst/keytrace/pkg/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runSessions,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(sessionsLimit)
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No sessions recorded.")
		return nil
	}

	fmt.Fprintf(stdout, "%-38s %-17s %-9s %7s %7s %7s %s\n",
		"SESSION", "START", "DURATION", "KEYS", "MOUSE", "DROPPED", "UPLOADED")
	for _, entry := range entries {
		uploaded := "pending"
		if entry.Uploaded {
			uploaded = entry.UploadedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(stdout, "%-38s %-17s %-9s %7d %7d %7d %s\n",
			entry.SessionID,
			entry.Start.Format("2006-01-02 15:04"),
			entry.End.Sub(entry.Start).Round(time.Second),
			entry.KeyRecords,
			entry.MouseRecords,
			entry.Dropped,
			uploaded,
		)
	}
	return nil
}
