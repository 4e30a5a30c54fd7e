package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/offlinefirst/keytrace/pkg/tracker"
)

func newTestManager(t *testing.T, length time.Duration, streams Streams) *Manager {
	t.Helper()
	mgr, err := NewManager(Options{
		RootDir: t.TempDir(),
		Length:  length,
		Streams: streams,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Options{Length: time.Hour, Streams: Streams{Key: true}}); err == nil {
		t.Fatalf("expected error for empty root dir")
	}
	if _, err := NewManager(Options{RootDir: "x", Streams: Streams{Key: true}}); err == nil {
		t.Fatalf("expected error for zero length")
	}
	if _, err := NewManager(Options{RootDir: "x", Length: time.Hour}); err == nil {
		t.Fatalf("expected error when no stream is enabled")
	}
}

func TestOpenCreatesStreamFilesWithHeaders(t *testing.T) {
	mgr := newTestManager(t, time.Hour, Streams{Key: true, Mouse: true})
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := mgr.Open(start); err != nil {
		t.Fatalf("open: %v", err)
	}
	sess := mgr.Active()
	if sess == nil {
		t.Fatalf("expected active session")
	}
	if sess.ID == "" {
		t.Fatalf("expected session id")
	}
	if !strings.Contains(sess.Dir, "2024-06-03") {
		t.Fatalf("expected date-partitioned dir, got %q", sess.Dir)
	}

	closed, ok, err := mgr.Close(start.Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("close: ok=%t err=%v", ok, err)
	}

	keyData, err := os.ReadFile(filepath.Join(closed.Dir, KeyLogFileName))
	if err != nil {
		t.Fatalf("read key log: %v", err)
	}
	if !strings.HasPrefix(string(keyData), KeyHeader+"\n") {
		t.Fatalf("missing key header in %q", string(keyData))
	}
	mouseData, err := os.ReadFile(filepath.Join(closed.Dir, MouseLogFileName))
	if err != nil {
		t.Fatalf("read mouse log: %v", err)
	}
	if !strings.HasPrefix(string(mouseData), MouseHeader+"\n") {
		t.Fatalf("missing mouse header in %q", string(mouseData))
	}
}

func TestRotationClosesExpiredSessions(t *testing.T) {
	length := time.Minute
	mgr := newTestManager(t, length, Streams{Key: true})
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := mgr.Open(start); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Drive 3.5 session lengths of ticks: floor(D/L) rotations expected.
	var rotations int
	for elapsed := time.Second; elapsed <= 3*length+30*time.Second; elapsed += time.Second {
		rotated, err := mgr.RotateIfDue(start.Add(elapsed))
		if err != nil {
			t.Fatalf("rotate at %v: %v", elapsed, err)
		}
		if rotated {
			rotations++
		}
	}

	if rotations != 3 {
		t.Fatalf("expected 3 rotations, got %d", rotations)
	}
	if got := len(mgr.ClosedSessions()); got != 3 {
		t.Fatalf("expected 3 closed sessions, got %d", got)
	}
	for _, closed := range mgr.ClosedSessions() {
		if closed.End.Sub(closed.Start) < length {
			t.Fatalf("session shorter than rotation length: %v", closed.End.Sub(closed.Start))
		}
	}
	if mgr.Active() == nil {
		t.Fatalf("expected a fresh active session after rotation")
	}
}

func TestRecordsLandInTheSessionActiveAtWriteTime(t *testing.T) {
	length := time.Minute
	mgr := newTestManager(t, length, Streams{Key: true})
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := mgr.Open(start); err != nil {
		t.Fatalf("open: %v", err)
	}

	first := tracker.KeyRecord{Action: tracker.KeyRelease, Key: "masked", Time: start.Add(10 * time.Second), Duration: 80 * time.Millisecond}
	if err := mgr.WriteKey(first); err != nil {
		t.Fatalf("write first: %v", err)
	}

	if _, err := mgr.RotateIfDue(start.Add(length)); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	second := tracker.KeyRecord{Action: tracker.KeyRelease, Key: "shift", Time: start.Add(length + 10*time.Second), Duration: 50 * time.Millisecond}
	if err := mgr.WriteKey(second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	closedFirst := mgr.ClosedSessions()[0]
	if closedFirst.Meta.KeyRecords != 1 {
		t.Fatalf("expected one record in first session, got %d", closedFirst.Meta.KeyRecords)
	}

	data, err := os.ReadFile(filepath.Join(closedFirst.Dir, KeyLogFileName))
	if err != nil {
		t.Fatalf("read first log: %v", err)
	}
	if !strings.Contains(string(data), "masked") || strings.Contains(string(data), "shift") {
		t.Fatalf("record attribution wrong: %q", string(data))
	}
}

func TestCloseWritesMetadata(t *testing.T) {
	mgr := newTestManager(t, time.Hour, Streams{Key: true, Mouse: true})
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	var notified []Closed
	mgr.onClosed = func(c Closed) { notified = append(notified, c) }

	if err := mgr.Open(start); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := mgr.WriteKey(tracker.KeyRecord{Action: tracker.KeyRelease, Key: "masked", Time: start, Duration: time.Millisecond}); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := mgr.WriteMouse(tracker.MouseRecord{Action: tracker.MouseActionMove, Time: start, X: 1, Y: 2}); err != nil {
		t.Fatalf("write mouse: %v", err)
	}
	mgr.NoteDropped()

	closed, ok, err := mgr.Close(end)
	if err != nil || !ok {
		t.Fatalf("close: ok=%t err=%v", ok, err)
	}

	meta, err := LoadMetadata(closed.MetadataPath)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if meta.SessionID != closed.ID {
		t.Fatalf("metadata id mismatch: %q vs %q", meta.SessionID, closed.ID)
	}
	if meta.KeyRecords != 1 || meta.MouseRecords != 1 || meta.DroppedReleases != 1 {
		t.Fatalf("unexpected counts: %+v", meta)
	}
	if meta.Duration() != 30*time.Minute {
		t.Fatalf("unexpected duration %v", meta.Duration())
	}
	if len(notified) != 1 || notified[0].ID != closed.ID {
		t.Fatalf("expected close notification")
	}
}

func TestShutdownWithNoEventsClosesEmptySession(t *testing.T) {
	mgr := newTestManager(t, time.Hour, Streams{Key: true})
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := mgr.Open(start); err != nil {
		t.Fatalf("open: %v", err)
	}
	closed, ok, err := mgr.Close(start.Add(time.Second))
	if err != nil || !ok {
		t.Fatalf("close empty: ok=%t err=%v", ok, err)
	}
	if closed.Meta.KeyRecords != 0 {
		t.Fatalf("expected empty session, got %d records", closed.Meta.KeyRecords)
	}

	// A second close is a no-op, so shutdown is idempotent.
	if _, ok, err := mgr.Close(start.Add(2 * time.Second)); ok || err != nil {
		t.Fatalf("second close must be a no-op: ok=%t err=%v", ok, err)
	}
}

func TestWriteWithoutActiveSessionFails(t *testing.T) {
	mgr := newTestManager(t, time.Hour, Streams{Key: true})
	err := mgr.WriteKey(tracker.KeyRecord{Action: tracker.KeyRelease, Key: "masked"})
	if err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestDisabledStreamRejectsRecords(t *testing.T) {
	mgr := newTestManager(t, time.Hour, Streams{Key: true})
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	if err := mgr.Open(start); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := mgr.WriteMouse(tracker.MouseRecord{Action: tracker.MouseActionMove, Time: start}); err != ErrStreamDisabled {
		t.Fatalf("expected ErrStreamDisabled, got %v", err)
	}
}
