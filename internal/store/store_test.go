package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/cyclelog/internal/event"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.InsertEvents(ctx, []event.Event{createTestEvent(1, 1), createTestEvent(1, 2)}); err != nil {
		t.Fatalf("InsertEvents() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	last, err := s2.MaxSequence(ctx, 1)
	if err != nil {
		t.Fatalf("MaxSequence() failed: %v", err)
	}
	if last != 2 {
		t.Errorf("MaxSequence() = %d, want 2", last)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := createTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	var name string
	err = s.db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_events_legacy_match'
	`).Scan(&name)
	if err != nil {
		t.Fatalf("legacy match index missing: %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.InsertEvents(ctx, []event.Event{createTestEvent(3, 1)}); err != nil {
		t.Fatalf("InsertEvents() failed: %v", err)
	}
	n, err := s.CountEvents(ctx, 3)
	if err != nil {
		t.Fatalf("CountEvents() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountEvents() = %d, want 1", n)
	}
}
