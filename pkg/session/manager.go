package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/offlinefirst/keytrace/pkg/tracker"
)

// Stream file names inside a session directory.
const (
	KeyLogFileName   = "key_log.csv"
	MouseLogFileName = "mouse_log.csv"
)

// ErrNoActiveSession reports a record arriving while no session is open,
// which happens only between a failed reopen and the next rotation tick.
var ErrNoActiveSession = errors.New("no active session")

// ErrStreamDisabled reports a record for a device stream this manager was
// not configured to persist.
var ErrStreamDisabled = errors.New("device stream disabled")

// Streams selects which device streams a session persists.
type Streams struct {
	Key   bool
	Mouse bool
}

// Session is the active capture window. Exactly one session is active per
// manager; closed sessions are immutable upload candidates.
type Session struct {
	ID    string
	Dir   string
	Start time.Time

	key     *recordWriter
	mouse   *recordWriter
	dropped int
}

// Closed summarises an immutable, fully flushed session.
type Closed struct {
	ID           string
	Dir          string
	Start        time.Time
	End          time.Time
	MetadataPath string
	Files        []string
	Meta         Metadata
}

// Options configures a session manager.
type Options struct {
	// RootDir is the base directory; sessions are created under
	// RootDir/<date>/ like the established on-disk layout.
	RootDir string
	// Length is the rotation interval.
	Length time.Duration
	// Streams selects the persisted device streams.
	Streams Streams
	Clock   func() time.Time
	Logger  zerolog.Logger
	// OnClosed, when set, is invoked with every closed session, after its
	// metadata has been written.
	OnClosed func(Closed)
}

// Manager owns the active session and its rotation lifecycle. It is not
// safe for concurrent use; the dispatcher serializes all calls.
type Manager struct {
	rootDir  string
	length   time.Duration
	streams  Streams
	clock    func() time.Time
	logger   zerolog.Logger
	onClosed func(Closed)

	active *Session
	closed []Closed
}

// NewManager validates options and constructs a manager with no active
// session; Open starts the first one.
func NewManager(opts Options) (*Manager, error) {
	if opts.RootDir == "" {
		return nil, errors.New("session root directory must not be empty")
	}
	if opts.Length <= 0 {
		return nil, errors.New("session length must be positive")
	}
	if !opts.Streams.Key && !opts.Streams.Mouse {
		return nil, errors.New("at least one device stream must be enabled")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		rootDir:  opts.RootDir,
		length:   opts.Length,
		streams:  opts.Streams,
		clock:    clock,
		logger:   opts.Logger,
		onClosed: opts.OnClosed,
	}, nil
}

// Open starts a new session at now. Any previously active session must
// already be closed.
func (m *Manager) Open(now time.Time) error {
	if m.active != nil {
		return errors.New("session already active")
	}

	dir, err := resolveSessionDir(m.rootDir, now)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	sess := &Session{
		ID:    uuid.NewString(),
		Dir:   dir,
		Start: now,
	}

	if m.streams.Key {
		writer, err := newRecordWriter(filepath.Join(dir, KeyLogFileName), KeyHeader)
		if err != nil {
			return fmt.Errorf("open key stream: %w", err)
		}
		sess.key = writer
	}
	if m.streams.Mouse {
		writer, err := newRecordWriter(filepath.Join(dir, MouseLogFileName), MouseHeader)
		if err != nil {
			if sess.key != nil {
				sess.key.close()
			}
			return fmt.Errorf("open mouse stream: %w", err)
		}
		sess.mouse = writer
	}

	m.active = sess
	m.logger.Info().Str("session_id", sess.ID).Str("dir", dir).Msg("session opened")
	return nil
}

// Active returns the active session, or nil after a failed reopen.
func (m *Manager) Active() *Session {
	return m.active
}

// Length returns the configured rotation interval.
func (m *Manager) Length() time.Duration {
	return m.length
}

// RotateIfDue closes and reopens the active session once its configured
// length has elapsed. With no active session (an earlier reopen failed) it
// simply retries the open. The bool reports whether a rotation happened.
func (m *Manager) RotateIfDue(now time.Time) (bool, error) {
	if m.active == nil {
		if err := m.Open(now); err != nil {
			return false, fmt.Errorf("reopen session: %w", err)
		}
		return false, nil
	}
	if now.Sub(m.active.Start) < m.length {
		return false, nil
	}

	if _, err := m.closeActive(now); err != nil {
		// The closed session's data may be incomplete, but capture goes
		// on: surface the failure and open the next window.
		m.logger.Error().Err(err).Msg("session close failed during rotation")
	}
	if err := m.Open(now); err != nil {
		return true, fmt.Errorf("open next session: %w", err)
	}
	return true, nil
}

// Close finalizes the active session at shutdown. Closing with no active
// session is a no-op, so shutdown stays idempotent.
func (m *Manager) Close(now time.Time) (Closed, bool, error) {
	if m.active == nil {
		return Closed{}, false, nil
	}
	closed, err := m.closeActive(now)
	return closed, true, err
}

// WriteKey appends a key record to the active session's key stream.
func (m *Manager) WriteKey(rec tracker.KeyRecord) error {
	if m.active == nil {
		return ErrNoActiveSession
	}
	if m.active.key == nil {
		return ErrStreamDisabled
	}
	return m.active.key.append(FormatKeyRecord(rec))
}

// WriteMouse appends a mouse record to the active session's mouse stream.
func (m *Manager) WriteMouse(rec tracker.MouseRecord) error {
	if m.active == nil {
		return ErrNoActiveSession
	}
	if m.active.mouse == nil {
		return ErrStreamDisabled
	}
	return m.active.mouse.append(FormatMouseRecord(rec))
}

// NoteDropped attributes one benign release drop to the active session.
func (m *Manager) NoteDropped() {
	if m.active != nil {
		m.active.dropped++
	}
}

// ClosedSessions lists the sessions closed by this manager, oldest first.
func (m *Manager) ClosedSessions() []Closed {
	return m.closed
}

func (m *Manager) closeActive(now time.Time) (Closed, error) {
	sess := m.active
	m.active = nil

	var closeErr error
	meta := Metadata{
		SchemaVersion:   SchemaVersion,
		SessionID:       sess.ID,
		StartTime:       sess.Start.UTC(),
		EndTime:         now.UTC(),
		DroppedReleases: sess.dropped,
	}

	var files []string
	if sess.key != nil {
		if err := sess.key.close(); err != nil && closeErr == nil {
			closeErr = err
		}
		meta.KeyLog = KeyLogFileName
		meta.KeyRecords = sess.key.count
		files = append(files, sess.key.path)
	}
	if sess.mouse != nil {
		if err := sess.mouse.close(); err != nil && closeErr == nil {
			closeErr = err
		}
		meta.MouseLog = MouseLogFileName
		meta.MouseRecords = sess.mouse.count
		files = append(files, sess.mouse.path)
	}

	metaPath := filepath.Join(sess.Dir, MetadataFileName)
	if err := saveMetadata(meta, metaPath); err != nil && closeErr == nil {
		closeErr = err
	}

	closed := Closed{
		ID:           sess.ID,
		Dir:          sess.Dir,
		Start:        sess.Start,
		End:          now,
		MetadataPath: metaPath,
		Files:        files,
		Meta:         meta,
	}
	m.closed = append(m.closed, closed)

	m.logger.Info().
		Str("session_id", sess.ID).
		Int("key_records", meta.KeyRecords).
		Int("mouse_records", meta.MouseRecords).
		Int("dropped_releases", meta.DroppedReleases).
		Msg("session closed")

	if m.onClosed != nil {
		m.onClosed(closed)
	}
	return closed, closeErr
}

// resolveSessionDir derives a date-partitioned, collision-free directory
// name from the session start time.
func resolveSessionDir(rootDir string, now time.Time) (string, error) {
	day := now.UTC().Format("2006-01-02")
	base := "session_" + now.UTC().Format("2006-01-02_15-04-05")

	candidate := filepath.Join(rootDir, day, base)
	suffix := 1
	for {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("inspect session directory: %w", err)
		}
		candidate = filepath.Join(rootDir, day, fmt.Sprintf("%s_%02d", base, suffix))
		suffix++
	}
}
