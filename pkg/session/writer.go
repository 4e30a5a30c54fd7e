package session

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/offlinefirst/keytrace/pkg/tracker"
)

// Column headers written as the first line of each stream file, matching
// the established log format for offline analysis tooling.
const (
	KeyHeader   = "key_type,key_name,timestamp,duration"
	MouseHeader = "mouse_type,timestamp,x,y,button,pressed,dx,dy"
)

// recordWriter appends delimited lines to one stream file through a buffer,
// so per-record writes never wait on disk. Flushing happens at rotation and
// shutdown boundaries only.
type recordWriter struct {
	path  string
	file  *os.File
	buf   *bufio.Writer
	count int
}

func newRecordWriter(path, header string) (*recordWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create stream file: %w", err)
	}
	buf := bufio.NewWriter(file)
	if _, err := buf.WriteString(header + "\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("write stream header: %w", err)
	}
	return &recordWriter{path: path, file: file, buf: buf}, nil
}

func (w *recordWriter) append(line string) error {
	if _, err := w.buf.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	w.count++
	return nil
}

func (w *recordWriter) close() error {
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush stream %s: %w", w.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close stream %s: %w", w.path, closeErr)
	}
	return nil
}

// FormatKeyRecord renders one key record as a delimited line. Press records
// leave the duration column empty rather than inventing a zero.
func FormatKeyRecord(rec tracker.KeyRecord) string {
	duration := ""
	if rec.HasDuration() {
		duration = strconv.FormatFloat(rec.Duration.Seconds(), 'f', 6, 64)
	}
	return string(rec.Action) + "," + rec.Key + "," + formatTimestamp(rec.Time) + "," + duration
}

// FormatMouseRecord renders one mouse record as a delimited line. Columns
// that do not apply to the action stay empty.
func FormatMouseRecord(rec tracker.MouseRecord) string {
	button, pressed, dx, dy := "", "", "", ""
	switch rec.Action {
	case tracker.MouseActionClick:
		button = rec.Button
		pressed = strconv.FormatBool(rec.Pressed)
	case tracker.MouseActionScroll:
		dx = formatCoordinate(rec.DX)
		dy = formatCoordinate(rec.DY)
	}
	return string(rec.Action) + "," + formatTimestamp(rec.Time) + "," +
		formatCoordinate(rec.X) + "," + formatCoordinate(rec.Y) + "," +
		button + "," + pressed + "," + dx + "," + dy
}

// formatTimestamp renders seconds since epoch with microsecond precision,
// avoiding float64 rounding at nanosecond magnitudes.
func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
