// Package catalog records completed and failed backups in a SQLite catalog
// so operators can answer "what backups exist and are they good" without
// walking the backup directory tree.
package catalog

import (
	"context"
	"time"
)

// Entry is a single backup in the catalog.
type Entry struct {
	ID           int64     `json:"id"`
	DatabasePath string    `json:"database_path"`
	DatabaseID   string    `json:"database_id"`
	BackupPath   string    `json:"backup_path"`
	NumPages     uint64    `json:"num_pages"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
	RyuVersion   string    `json:"ryu_version"`
	SnapshotTS   uint64    `json:"snapshot_ts"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Duration     float64   `json:"duration_seconds"`
}

// Status is the recorded outcome of a backup.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Catalog is the backup catalog interface.
type Catalog interface {
	// Record inserts an entry and sets its ID.
	Record(ctx context.Context, entry *Entry) error

	// List returns all entries, newest first.
	List(ctx context.Context) ([]*Entry, error)

	// Latest returns the newest completed entry for a database path, or
	// nil when none exists.
	Latest(ctx context.Context, databasePath string) (*Entry, error)

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id int64) error

	// Close releases the catalog store.
	Close() error
}
