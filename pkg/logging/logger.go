package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/offlinefirst/keytrace/pkg/config"
)

// Options describe how to configure a logger instance.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a structured zerolog logger. JSON output goes to analysis
// pipelines; console output is for watching a dev run in a terminal.
func New(opts Options) (zerolog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	format, err := config.NormalizeFormat(opts.Format)
	if err != nil {
		return zerolog.Nop(), err
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "keytrace").
		Logger()
	return logger, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	normalized, err := config.NormalizeLogLevel(level)
	if err != nil {
		return zerolog.NoLevel, err
	}
	parsed, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unhandled log level %q", normalized)
	}
	return parsed, nil
}
