// Package storage implements the paged storage layer the backup engine runs
// against: a page-oriented data file handle, a buffer manager that funnels
// every page write, and a transaction timestamp source.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/predictable-labs/ryu/internal/fs"
)

// ErrPageOutOfRange is returned when a page index is past the end of the file.
var ErrPageOutOfRange = errors.New("page index out of range")

// DataFile is a page-oriented handle over a file in the VFS. The page size is
// fixed at open time and authoritative for all page I/O against this handle.
type DataFile struct {
	mu       sync.Mutex
	file     afero.File
	path     string
	pageSize uint64
	numPages uint64
}

// OpenDataFile opens (creating if absent) a paged data file. The existing
// file size must be a whole number of pages.
func OpenDataFile(path string, pageSize uint64) (*DataFile, error) {
	if pageSize == 0 {
		return nil, fmt.Errorf("open data file %s: page size must be positive", path)
	}

	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open data file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat data file %s: %w", path, err)
	}
	size := uint64(info.Size())
	if size%pageSize != 0 {
		_ = file.Close()
		return nil, fmt.Errorf("data file %s size %d is not page aligned (page size %d)",
			path, size, pageSize)
	}

	return &DataFile{
		file:     file,
		path:     path,
		pageSize: pageSize,
		numPages: size / pageSize,
	}, nil
}

// Path returns the file path.
func (df *DataFile) Path() string {
	return df.path
}

// PageSize returns the page size in bytes.
func (df *DataFile) PageSize() uint64 {
	return df.pageSize
}

// NumPages returns the current page count.
func (df *DataFile) NumPages() uint64 {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.numPages
}

// ReadPage reads page pageIdx into buf. buf must be at least one page long.
func (df *DataFile) ReadPage(pageIdx uint64, buf []byte) error {
	df.mu.Lock()
	defer df.mu.Unlock()

	if pageIdx >= df.numPages {
		return fmt.Errorf("read page %d of %s (have %d pages): %w",
			pageIdx, df.path, df.numPages, ErrPageOutOfRange)
	}
	if uint64(len(buf)) < df.pageSize {
		return fmt.Errorf("read page %d of %s: buffer too small (%d < %d)",
			pageIdx, df.path, len(buf), df.pageSize)
	}

	_, err := df.file.ReadAt(buf[:df.pageSize], int64(pageIdx*df.pageSize))
	if err != nil {
		return fmt.Errorf("read page %d of %s: %w", pageIdx, df.path, err)
	}
	return nil
}

// WritePage overwrites an existing page in place.
func (df *DataFile) WritePage(pageIdx uint64, data []byte) error {
	df.mu.Lock()
	defer df.mu.Unlock()

	if pageIdx >= df.numPages {
		return fmt.Errorf("write page %d of %s (have %d pages): %w",
			pageIdx, df.path, df.numPages, ErrPageOutOfRange)
	}
	return df.writePageLocked(pageIdx, data)
}

// AppendPage adds a page at the end of the file and returns its index.
func (df *DataFile) AppendPage(data []byte) (uint64, error) {
	df.mu.Lock()
	defer df.mu.Unlock()

	pageIdx := df.numPages
	if err := df.writePageLocked(pageIdx, data); err != nil {
		return 0, err
	}
	df.numPages++
	return pageIdx, nil
}

func (df *DataFile) writePageLocked(pageIdx uint64, data []byte) error {
	if uint64(len(data)) != df.pageSize {
		return fmt.Errorf("write page %d of %s: got %d bytes, page size is %d",
			pageIdx, df.path, len(data), df.pageSize)
	}
	if _, err := df.file.WriteAt(data, int64(pageIdx*df.pageSize)); err != nil {
		return fmt.Errorf("write page %d of %s: %w", pageIdx, df.path, err)
	}
	return nil
}

// Truncate shrinks or grows the file to exactly numPages pages.
func (df *DataFile) Truncate(numPages uint64) error {
	df.mu.Lock()
	defer df.mu.Unlock()

	if err := df.file.Truncate(int64(numPages * df.pageSize)); err != nil {
		return fmt.Errorf("truncate %s to %d pages: %w", df.path, numPages, err)
	}
	df.numPages = numPages
	return nil
}

// Sync flushes the file to stable storage.
func (df *DataFile) Sync() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.file.Sync()
}

// Close closes the underlying file.
func (df *DataFile) Close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.file.Close()
}
