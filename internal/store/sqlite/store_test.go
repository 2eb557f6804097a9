package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/id"
	"github.com/listenupapp/stagehand/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// makeWork returns a work with fresh ID and timestamps.
func makeWork(key, title string, status domain.ImportStatus, importedAt time.Time) *domain.Work {
	w := &domain.Work{
		Record:      domain.Record{ID: id.MustGenerate(id.PrefixWork)},
		ExternalKey: key,
		Title:       title,
	}
	w.InitTimestamps(importedAt)
	w.Provenance = domain.Imported(status, "user-1", domain.ReasonRate, importedAt)
	return w
}

func makeContributor(key, name string, status domain.ImportStatus, importedAt time.Time) *domain.Contributor {
	c := &domain.Contributor{
		Record:      domain.Record{ID: id.MustGenerate(id.PrefixContributor)},
		ExternalKey: key,
		Name:        name,
	}
	c.InitTimestamps(importedAt)
	c.Provenance = domain.Imported(status, "user-1", domain.ReasonRate, importedAt)
	return c
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	for _, table := range []string{"works", "contributors", "tags", "work_contributors", "work_tags", "commitments"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	s2.Close()
}

func TestFormatTime_SortsAsText(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := formatTime(base)
	later := formatTime(base.Add(500 * time.Millisecond))

	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}

	parsed, err := parseTime(later)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("round trip: got %v", parsed)
	}
}

func TestPrefixed(t *testing.T) {
	got := prefixed("t", "id, slug,\n\tname")
	if got != "t.id, t.slug, t.name" {
		t.Errorf("prefixed: got %q", got)
	}
}

type recordingIndexer struct {
	indexed []string
	deleted []string
}

func (r *recordingIndexer) IndexWork(_ context.Context, w *domain.Work) error {
	r.indexed = append(r.indexed, w.ID)
	return nil
}

func (r *recordingIndexer) DeleteWorks(_ context.Context, ids []string) error {
	r.deleted = append(r.deleted, ids...)
	return nil
}

var _ store.SearchIndexer = (*recordingIndexer)(nil)
