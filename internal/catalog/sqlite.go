// Package catalog - SQLite storage implementation
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

// SQLiteCatalog implements Catalog with SQLite storage.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens (creating if needed) a SQLite-backed catalog.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	// WAL mode for concurrent readers, busy_timeout so a second process
	// waits instead of failing immediately.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCatalog{db: db, path: dbPath}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		database_path TEXT NOT NULL,
		database_id TEXT NOT NULL,
		backup_path TEXT NOT NULL,
		num_pages INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		sha256 TEXT,
		ryu_version TEXT,
		snapshot_ts INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		duration REAL
	);

	CREATE INDEX IF NOT EXISTS idx_backups_database_path ON backups(database_path);
	CREATE INDEX IF NOT EXISTS idx_backups_created_at ON backups(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_backups_status ON backups(status);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	INSERT OR IGNORE INTO catalog_meta (key, value) VALUES ('schema_version', '1');
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return nil
}

// Record inserts a new backup entry and sets its ID.
func (c *SQLiteCatalog) Record(ctx context.Context, entry *Entry) error {
	result, err := c.db.ExecContext(ctx, `
		INSERT INTO backups (
			database_path, database_id, backup_path, num_pages, size_bytes,
			sha256, ryu_version, snapshot_ts, status, error_message,
			created_at, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.DatabasePath, entry.DatabaseID, entry.BackupPath,
		int64(entry.NumPages), entry.SizeBytes, entry.SHA256,
		entry.RyuVersion, int64(entry.SnapshotTS), string(entry.Status),
		entry.ErrorMessage, entry.CreatedAt, entry.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to record catalog entry: %w", err)
	}

	id, _ := result.LastInsertId()
	entry.ID = id
	return nil
}

// List returns all entries, newest first.
func (c *SQLiteCatalog) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, database_path, database_id, backup_path, num_pages,
			size_bytes, sha256, ryu_version, snapshot_ts, status,
			error_message, created_at, duration
		FROM backups ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Latest returns the newest completed entry for a database path.
func (c *SQLiteCatalog) Latest(ctx context.Context, databasePath string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, database_path, database_id, backup_path, num_pages,
			size_bytes, sha256, ryu_version, snapshot_ts, status,
			error_message, created_at, duration
		FROM backups
		WHERE database_path = ? AND status = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, databasePath, string(StatusCompleted))

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// Delete removes an entry by ID.
func (c *SQLiteCatalog) Delete(ctx context.Context, id int64) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM backups WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	return nil
}

// Close closes the catalog database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var numPages, snapshotTS int64
	var status string
	err := row.Scan(
		&e.ID, &e.DatabasePath, &e.DatabaseID, &e.BackupPath, &numPages,
		&e.SizeBytes, &e.SHA256, &e.RyuVersion, &snapshotTS, &status,
		&e.ErrorMessage, &e.CreatedAt, &e.Duration,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
	}
	e.NumPages = uint64(numPages)
	e.SnapshotTS = uint64(snapshotTS)
	e.Status = Status(status)
	return &e, nil
}
