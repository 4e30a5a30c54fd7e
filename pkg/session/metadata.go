package session

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// SchemaVersion captures the metadata version for compatibility checks.
const SchemaVersion = 1

// MetadataFileName is the companion file written into each closed session
// directory.
const MetadataFileName = "metadata.json"

// Metadata is the durable description of one closed session.
type Metadata struct {
	SchemaVersion   int       `json:"schema_version"`
	SessionID       string    `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	KeyLog          string    `json:"key_log,omitempty"`
	MouseLog        string    `json:"mouse_log,omitempty"`
	KeyRecords      int       `json:"key_records"`
	MouseRecords    int       `json:"mouse_records"`
	DroppedReleases int       `json:"dropped_releases"`
}

// Duration reports the closed session's wall-clock span.
func (m Metadata) Duration() time.Duration {
	return m.EndTime.Sub(m.StartTime)
}

func saveMetadata(meta Metadata, path string) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads a session metadata file from disk.
func LoadMetadata(path string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read session metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode session metadata: %w", err)
	}
	return meta, nil
}
