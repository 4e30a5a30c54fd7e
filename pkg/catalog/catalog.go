// Package catalog tracks closed sessions in a local SQLite database so
// shutdown sync knows what still needs uploading, across process restarts.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Entry is one closed session as recorded in the catalog.
type Entry struct {
	SessionID    string
	Dir          string
	Start        time.Time
	End          time.Time
	KeyRecords   int
	MouseRecords int
	Dropped      int
	Uploaded     bool
	UploadedAt   time.Time
}

// Store persists session entries. Safe for use from a single process; the
// busy timeout covers a concurrent reader inspecting the catalog.
type Store struct {
	db *sql.DB
}

// Open creates or opens the catalog database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions(
	  id            TEXT    PRIMARY KEY,
	  dir           TEXT    NOT NULL,
	  start_utc     INTEGER NOT NULL,
	  end_utc       INTEGER NOT NULL,
	  key_records   INTEGER NOT NULL DEFAULT 0,
	  mouse_records INTEGER NOT NULL DEFAULT 0,
	  dropped       INTEGER NOT NULL DEFAULT 0,
	  uploaded      INTEGER NOT NULL DEFAULT 0,
	  uploaded_utc  INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_uploaded ON sessions(uploaded);
	CREATE INDEX IF NOT EXISTS idx_sessions_start    ON sessions(start_utc);
	`)
	if err != nil {
		return fmt.Errorf("create catalog tables: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records a closed session. Re-adding the same session id overwrites
// the previous row, so a retried close stays consistent.
func (s *Store) Add(entry Entry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("catalog entry needs a session id")
	}
	if entry.Dir == "" {
		return fmt.Errorf("catalog entry needs a session directory")
	}
	_, err := s.db.Exec(`
	INSERT INTO sessions(id, dir, start_utc, end_utc, key_records, mouse_records, dropped, uploaded, uploaded_utc)
	VALUES(?,?,?,?,?,?,?,0,NULL)
	ON CONFLICT(id) DO UPDATE SET
	  dir=excluded.dir, start_utc=excluded.start_utc, end_utc=excluded.end_utc,
	  key_records=excluded.key_records, mouse_records=excluded.mouse_records,
	  dropped=excluded.dropped`,
		entry.SessionID, entry.Dir, entry.Start.UTC().Unix(), entry.End.UTC().Unix(),
		entry.KeyRecords, entry.MouseRecords, entry.Dropped)
	if err != nil {
		return fmt.Errorf("record session %s: %w", entry.SessionID, err)
	}
	return nil
}

// Pending lists sessions not yet uploaded, oldest first. Sessions that
// failed to sync on a previous shutdown show up here again.
func (s *Store) Pending() ([]Entry, error) {
	rows, err := s.db.Query(`
	SELECT id, dir, start_utc, end_utc, key_records, mouse_records, dropped, uploaded, uploaded_utc
	FROM sessions WHERE uploaded = 0 ORDER BY start_utc ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending sessions: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// MarkUploaded flags a session as synced.
func (s *Store) MarkUploaded(sessionID string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE sessions SET uploaded = 1, uploaded_utc = ? WHERE id = ?`,
		at.UTC().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("mark session %s uploaded: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark session %s uploaded: %w", sessionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s not in catalog", sessionID)
	}
	return nil
}

// List returns the most recent sessions, newest first, up to limit.
// A non-positive limit returns everything.
func (s *Store) List(limit int) ([]Entry, error) {
	query := `
	SELECT id, dir, start_utc, end_utc, key_records, mouse_records, dropped, uploaded, uploaded_utc
	FROM sessions ORDER BY start_utc DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var start, end int64
		var uploaded int
		var uploadedAt sql.NullInt64
		if err := rows.Scan(&entry.SessionID, &entry.Dir, &start, &end,
			&entry.KeyRecords, &entry.MouseRecords, &entry.Dropped,
			&uploaded, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		entry.Start = time.Unix(start, 0).UTC()
		entry.End = time.Unix(end, 0).UTC()
		entry.Uploaded = uploaded != 0
		if uploadedAt.Valid {
			entry.UploadedAt = time.Unix(uploadedAt.Int64, 0).UTC()
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return entries, nil
}
