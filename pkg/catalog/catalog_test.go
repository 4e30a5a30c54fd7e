package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEntry(id string, start time.Time) Entry {
	return Entry{
		SessionID:    id,
		Dir:          "/tmp/sessions/" + id,
		Start:        start,
		End:          start.Add(time.Hour),
		KeyRecords:   12,
		MouseRecords: 40,
		Dropped:      1,
	}
}

func TestAddAndPending(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := store.Add(sampleEntry("s1", start)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(sampleEntry("s2", start.Add(time.Hour))); err != nil {
		t.Fatalf("add: %v", err)
	}

	pending, err := store.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].SessionID != "s1" {
		t.Fatalf("pending must be oldest first, got %q", pending[0].SessionID)
	}
	if pending[0].KeyRecords != 12 || pending[0].Dropped != 1 {
		t.Fatalf("counts not round-tripped: %+v", pending[0])
	}
}

func TestMarkUploadedRemovesFromPending(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := store.Add(sampleEntry("s1", start)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.MarkUploaded("s1", start.Add(2*time.Hour)); err != nil {
		t.Fatalf("mark uploaded: %v", err)
	}

	pending, err := store.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending sessions, got %d", len(pending))
	}

	entries, err := store.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || !entries[0].Uploaded {
		t.Fatalf("expected one uploaded entry, got %+v", entries)
	}
	if entries[0].UploadedAt.IsZero() {
		t.Fatalf("uploaded timestamp not recorded")
	}
}

func TestMarkUploadedUnknownSessionFails(t *testing.T) {
	store := openTestStore(t)
	if err := store.MarkUploaded("absent", time.Now()); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestReAddSameSessionOverwrites(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := store.Add(sampleEntry("s1", start)); err != nil {
		t.Fatalf("add: %v", err)
	}
	updated := sampleEntry("s1", start)
	updated.KeyRecords = 99
	if err := store.Add(updated); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	entries, err := store.List(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].KeyRecords != 99 {
		t.Fatalf("expected overwrite, got %+v", entries)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Add(sampleEntry(id, start.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	entries, err := store.List(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].SessionID != "c" || entries[1].SessionID != "b" {
		t.Fatalf("unexpected ordering: %+v", entries)
	}
}

func TestAddValidation(t *testing.T) {
	store := openTestStore(t)
	if err := store.Add(Entry{Dir: "/x"}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
	if err := store.Add(Entry{SessionID: "s"}); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
