package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is the config file picked up from the working directory
// when no explicit path is supplied.
const DefaultFileName = "config.toml"

// Duration wraps time.Duration so intervals read naturally in TOML
// ("30s", "1h").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config captures the user-adjustable knobs for the collector.
type Config struct {
	Paths   PathsConfig   `toml:"paths"`
	Session SessionConfig `toml:"session"`
	Record  RecordConfig  `toml:"record"`
	Masking MaskingConfig `toml:"masking"`
	Upload  UploadConfig  `toml:"upload"`
	Logging LoggingConfig `toml:"logging"`

	// Source indicates where the configuration originated (defaults or a
	// file path).
	Source string `toml:"-"`
}

// PathsConfig controls filesystem locations.
type PathsConfig struct {
	SaveDir     string `toml:"save_dir"`
	CatalogPath string `toml:"catalog_path"`
}

// SessionConfig controls rotation timing.
type SessionConfig struct {
	Length      Duration `toml:"length"`
	DebugLength Duration `toml:"debug_length"`
}

// RecordConfig controls record persistence policy.
type RecordConfig struct {
	// PressEvents persists duration-less press records alongside release
	// records. Off by default: release records carry the analytical
	// payload.
	PressEvents bool `toml:"press_events"`
	// QueueSize bounds the dispatcher's event channel.
	QueueSize int `toml:"queue_size"`
}

// MaskingConfig overrides the key classification tables. An empty map
// keeps the built-in left/right alphanumeric split.
type MaskingConfig struct {
	Groups map[string][]string `toml:"groups"`
}

// UploadConfig controls the shutdown sync of closed sessions.
type UploadConfig struct {
	Enabled bool     `toml:"enabled"`
	Bucket  string   `toml:"bucket"`
	Prefix  string   `toml:"prefix"`
	Region  string   `toml:"region"`
	Retries int      `toml:"retries"`
	Timeout Duration `toml:"timeout"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the baseline configuration used when no overrides are
// supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			SaveDir:     "sessions",
			CatalogPath: filepath.Join("sessions", "catalog.db"),
		},
		Session: SessionConfig{
			Length:      Duration(time.Hour),
			DebugLength: Duration(30 * time.Second),
		},
		Record: RecordConfig{
			PressEvents: false,
			QueueSize:   1024,
		},
		Upload: UploadConfig{
			Enabled: false,
			Prefix:  "keytrace",
			Retries: 3,
			Timeout: Duration(5 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning
// defaults. When path is empty the loader attempts ./config.toml but
// tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return cfg, fmt.Errorf("config file %q not found", candidate)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file %q: %w", candidate, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config file %q: %w", candidate, err)
	}
	cfg.Source = candidate
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.SaveDir) == "" {
		return errors.New("paths.save_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must not be empty")
	}
	if c.Session.Length.Std() <= 0 {
		return errors.New("session.length must be positive")
	}
	if c.Session.DebugLength.Std() <= 0 {
		return errors.New("session.debug_length must be positive")
	}
	if c.Record.QueueSize <= 0 {
		return errors.New("record.queue_size must be positive")
	}
	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}
	if c.Upload.Enabled {
		if strings.TrimSpace(c.Upload.Bucket) == "" {
			return errors.New("upload.bucket must not be empty when upload is enabled")
		}
		if strings.TrimSpace(c.Upload.Region) == "" {
			return errors.New("upload.region must not be empty when upload is enabled")
		}
		if c.Upload.Retries <= 0 {
			return errors.New("upload.retries must be positive")
		}
		if c.Upload.Timeout.Std() <= 0 {
			return errors.New("upload.timeout must be positive")
		}
	}
	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.SaveDir = filepath.Clean(strings.TrimSpace(c.Paths.SaveDir))
	if c.Paths.SaveDir == "." || c.Paths.SaveDir == "" {
		c.Paths.SaveDir = defaults.Paths.SaveDir
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = filepath.Join(c.Paths.SaveDir, "catalog.db")
	}
	if c.Session.Length.Std() <= 0 {
		c.Session.Length = defaults.Session.Length
	}
	if c.Session.DebugLength.Std() <= 0 {
		c.Session.DebugLength = defaults.Session.DebugLength
	}
	if c.Record.QueueSize <= 0 {
		c.Record.QueueSize = defaults.Record.QueueSize
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if strings.TrimSpace(c.Upload.Prefix) == "" {
		c.Upload.Prefix = defaults.Upload.Prefix
	}
	if c.Upload.Retries <= 0 {
		c.Upload.Retries = defaults.Upload.Retries
	}
	if c.Upload.Timeout.Std() <= 0 {
		c.Upload.Timeout = defaults.Upload.Timeout
	}
}

// SessionLength picks the rotation interval for the given log level: debug
// runs rotate on the short interval so rotation behavior is observable.
func (c Config) SessionLength(level string) time.Duration {
	if normalized, err := NormalizeLogLevel(level); err == nil && normalized == "debug" {
		return c.Session.DebugLength.Std()
	}
	return c.Session.Length.Std()
}

// MaskingGroups returns the configured classification tables, or nil when
// the built-in defaults should apply.
func (c Config) MaskingGroups() map[string][]string {
	if len(c.Masking.Groups) == 0 {
		return nil
	}
	return c.Masking.Groups
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
