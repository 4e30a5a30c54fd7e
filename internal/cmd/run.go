package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/keytrace/internal/buildinfo"
	"github.com/offlinefirst/keytrace/pkg/catalog"
	"github.com/offlinefirst/keytrace/pkg/config"
	"github.com/offlinefirst/keytrace/pkg/dispatch"
	"github.com/offlinefirst/keytrace/pkg/keymask"
	"github.com/offlinefirst/keytrace/pkg/logging"
	"github.com/offlinefirst/keytrace/pkg/session"
	"github.com/offlinefirst/keytrace/pkg/source"
	"github.com/offlinefirst/keytrace/pkg/tracker"
	"github.com/offlinefirst/keytrace/pkg/upload"
)

var (
	flagLogLevel string
	flagDevices  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start capturing input events",
	RunE:  runCollector,
}

func init() {
	// Running bare `keytrace` is shorthand for `keytrace run`, so the
	// capture flags live on both commands.
	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().StringVar(&flagLogLevel, "log", "", "Log level (debug, info, warn, error); debug also shortens sessions")
		cmd.Flags().StringVar(&flagDevices, "dev", "both", "Device streams to capture (key, mouse, both)")
	}
	rootCmd.AddCommand(runCmd)
}

func runCollector(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	format := cfg.Logging.Format
	if flagLogFormat != "" {
		format = flagLogFormat
	}

	logger, err := logging.New(logging.Options{Level: level, Format: format})
	if err != nil {
		return err
	}

	streams, err := parseDevices(flagDevices)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", buildinfo.Version()).
		Str("config_source", cfg.Source).
		Str("devices", flagDevices).
		Str("level", level).
		Msg("collector starting")

	// A denied input permission is fatal at startup: running blind would
	// silently record nothing.
	if streams.Key {
		env := source.DetectEnvironment(source.DeviceKey)
		logger.Info().Str("device", "key").Str("provider", env.Provider).Str("permission", env.Permission).Msg("input environment")
		if !env.Available {
			if env.Guidance != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), env.Guidance)
			}
			return fmt.Errorf("keyboard capture unavailable: %s: %w", env.Message, source.ErrInputPermission)
		}
	}
	if streams.Mouse {
		env := source.DetectEnvironment(source.DeviceMouse)
		logger.Info().Str("device", "mouse").Str("provider", env.Provider).Str("permission", env.Permission).Msg("input environment")
		if !env.Available {
			if env.Guidance != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), env.Guidance)
			}
			return fmt.Errorf("mouse capture unavailable: %s: %w", env.Message, source.ErrInputPermission)
		}
	}

	store, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := session.NewManager(session.Options{
		RootDir: cfg.Paths.SaveDir,
		Length:  cfg.SessionLength(level),
		Streams: streams,
		Logger:  logger,
		OnClosed: func(closed session.Closed) {
			err := store.Add(catalog.Entry{
				SessionID:    closed.ID,
				Dir:          closed.Dir,
				Start:        closed.Start,
				End:          closed.End,
				KeyRecords:   closed.Meta.KeyRecords,
				MouseRecords: closed.Meta.MouseRecords,
				Dropped:      closed.Meta.DroppedReleases,
			})
			if err != nil {
				logger.Error().Err(err).Str("session_id", closed.ID).Msg("session not recorded in catalog")
			}
		},
	})
	if err != nil {
		return err
	}

	groups := cfg.MaskingGroups()
	if groups == nil {
		groups = keymask.DefaultGroups()
	}
	mask := keymask.NewPolicy(groups)

	opts := dispatch.Options{
		Sessions:  sessions,
		Logger:    logger,
		QueueSize: cfg.Record.QueueSize,
	}
	if streams.Key {
		opts.Keys = tracker.NewKeyTracker(mask, cfg.Record.PressEvents)
		opts.KeySource = source.NewSyntheticKeySource(source.SyntheticOptions{})
	}
	if streams.Mouse {
		opts.Mouse = tracker.NewMouseTracker()
		opts.MouseSource = source.NewSyntheticMouseSource(source.SyntheticOptions{})
	}

	dispatcher, err := dispatch.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := dispatcher.Run(ctx)

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Captured %d key records and %d mouse records across %d sessions\n",
		summary.KeyRecords, summary.MouseRecords, len(summary.Sessions))
	if summary.Dropped > 0 {
		fmt.Fprintf(stdout, "Unmatched releases dropped: %d\n", summary.Dropped)
	}
	if summary.Rotations > 0 {
		fmt.Fprintf(stdout, "Session rotations: %d\n", summary.Rotations)
	}
	for _, closed := range summary.Sessions {
		fmt.Fprintf(stdout, "  session %s -> %s\n", closed.ID, closed.Dir)
	}

	if cfg.Upload.Enabled {
		if err := syncPending(store, cfg, logger); err != nil {
			logger.Error().Err(err).Msg("shutdown sync incomplete, sessions stay pending")
		}
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("capture run failed")
		return runErr
	}
	logger.Info().Msg("collector stopped")
	return nil
}

// syncPending uploads every not-yet-synced session, including leftovers
// from earlier runs. Uses a fresh context: shutdown cancellation must not
// abort the sync it triggered.
func syncPending(store *catalog.Store, cfg config.Config, logger zerolog.Logger) error {
	pending, err := store.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info().Msg("no sessions pending upload")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uploader, err := upload.New(ctx, upload.Options{
		Bucket:  cfg.Upload.Bucket,
		Prefix:  cfg.Upload.Prefix,
		Region:  cfg.Upload.Region,
		Retries: cfg.Upload.Retries,
		Timeout: cfg.Upload.Timeout.Std(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info().Int("sessions", len(pending)).Msg("syncing closed sessions")
	return uploader.Sync(ctx, pending, store.MarkUploaded)
}

func parseDevices(value string) (session.Streams, error) {
	switch value {
	case "key":
		return session.Streams{Key: true}, nil
	case "mouse":
		return session.Streams{Mouse: true}, nil
	case "both", "":
		return session.Streams{Key: true, Mouse: true}, nil
	default:
		return session.Streams{}, fmt.Errorf("unknown device selection %q (want key, mouse or both)", value)
	}
}
