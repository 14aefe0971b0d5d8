package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/predictable-labs/ryu/internal/fs"
)

// WALSuffix is the canonical suffix of the write-ahead log next to a
// database file.
const WALSuffix = ".wal"

// Database is a handle to an embedded database directory: the main paged
// data file, its WAL segment, the buffer manager, and the transaction clock.
type Database struct {
	databasePath string
	databaseID   string

	dataFile      *DataFile
	bufferManager *BufferManager
	txManager     *TransactionManager
}

// OpenDatabase opens (creating if absent) the database at path with the
// given page size.
func OpenDatabase(path string, pageSize uint64) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path must not be empty")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	dataFile, err := OpenDataFile(path, pageSize)
	if err != nil {
		return nil, err
	}

	return &Database{
		databasePath:  path,
		databaseID:    uuid.NewString(),
		dataFile:      dataFile,
		bufferManager: NewBufferManager(dataFile),
		txManager:     NewTransactionManager(),
	}, nil
}

// DatabasePath returns the main data file path.
func (db *Database) DatabasePath() string {
	return db.databasePath
}

// DatabaseID returns the database identity carried into backup metadata.
func (db *Database) DatabaseID() string {
	return db.databaseID
}

// WALPath returns the canonical WAL segment path for this database.
func (db *Database) WALPath() string {
	return db.databasePath + WALSuffix
}

// DataFile returns the main data file handle.
func (db *Database) DataFile() *DataFile {
	return db.dataFile
}

// BufferManager returns the buffer manager.
func (db *Database) BufferManager() *BufferManager {
	return db.bufferManager
}

// TransactionManager returns the transaction clock.
func (db *Database) TransactionManager() *TransactionManager {
	return db.txManager
}

// Close syncs and closes the data file.
func (db *Database) Close() error {
	if err := db.dataFile.Sync(); err != nil {
		return err
	}
	return db.dataFile.Close()
}
