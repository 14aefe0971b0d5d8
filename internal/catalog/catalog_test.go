package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCatalog failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func completedEntry(dbPath string, createdAt time.Time) *Entry {
	return &Entry{
		DatabasePath: dbPath,
		DatabaseID:   "uuid-1",
		BackupPath:   "/backups/b1",
		NumPages:     8,
		SizeBytes:    8 * 4096,
		SHA256:       "deadbeef",
		RyuVersion:   "0.4.2",
		SnapshotTS:   17,
		Status:       StatusCompleted,
		CreatedAt:    createdAt,
		Duration:     1.5,
	}
}

func TestCatalogRecordAndList(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	entry := completedEntry("/data/graph.ryu", time.Now().UTC())
	if err := c.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("Record should set the entry ID")
	}

	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(entries))
	}

	got := entries[0]
	if got.DatabasePath != "/data/graph.ryu" {
		t.Errorf("DatabasePath = %s", got.DatabasePath)
	}
	if got.NumPages != 8 {
		t.Errorf("NumPages = %d", got.NumPages)
	}
	if got.SHA256 != "deadbeef" {
		t.Errorf("SHA256 = %s", got.SHA256)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %s", got.Status)
	}
	if got.SnapshotTS != 17 {
		t.Errorf("SnapshotTS = %d", got.SnapshotTS)
	}
}

func TestCatalogLatest(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)

	older := completedEntry("/data/graph.ryu", base)
	newer := completedEntry("/data/graph.ryu", base.Add(30*time.Minute))
	newer.BackupPath = "/backups/b2"
	failed := completedEntry("/data/graph.ryu", base.Add(45*time.Minute))
	failed.Status = StatusFailed
	failed.ErrorMessage = "backup cancelled by user"
	other := completedEntry("/data/other.ryu", base.Add(50*time.Minute))

	for _, e := range []*Entry{older, newer, failed, other} {
		if err := c.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	latest, err := c.Latest(ctx, "/data/graph.ryu")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil {
		t.Fatal("Latest returned nil")
	}
	// Failed backups never become "latest".
	if latest.BackupPath != "/backups/b2" {
		t.Errorf("Latest BackupPath = %s, want /backups/b2", latest.BackupPath)
	}

	missing, err := c.Latest(ctx, "/data/never-backed-up.ryu")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if missing != nil {
		t.Error("Latest for unknown database should be nil")
	}
}

func TestCatalogDelete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	entry := completedEntry("/data/graph.ryu", time.Now().UTC())
	if err := c.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := c.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List after delete returned %d entries", len(entries))
	}
}

func TestCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	ctx := context.Background()

	c, err := NewSQLiteCatalog(path)
	if err != nil {
		t.Fatalf("NewSQLiteCatalog failed: %v", err)
	}
	if err := c.Record(ctx, completedEntry("/data/graph.ryu", time.Now().UTC())); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c, err = NewSQLiteCatalog(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c.Close()

	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List after reopen returned %d entries, want 1", len(entries))
	}
}
