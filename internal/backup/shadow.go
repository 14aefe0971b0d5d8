package backup

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/predictable-labs/ryu/internal/fs"
)

// ShadowFileSuffix marks the on-disk spill file next to a backup directory.
// Files with this suffix are transient and may be removed once a job reaches
// a terminal state.
const ShadowFileSuffix = ".shadow"

// ShadowFile preserves pre-images of pages overwritten on the main data file
// before the backup worker reached them. Pre-images are held in memory up to
// maxInMemoryBytes; past the cap they spill to <backupPath>.shadow. Once a
// page index is preserved, further preservations of the same index are
// no-ops, so the first image observed — the snapshot-time image — wins.
//
// All public operations are safe under concurrent invocation.
type ShadowFile struct {
	mu sync.Mutex

	pageSize         uint64
	maxInMemoryBytes uint64

	// In-memory pre-images, keyed by original page index.
	pages    map[uint64][]byte
	memBytes uint64

	// File-backed spill: original page index → slot in the spill file.
	spillPath  string
	spillFile  afero.File
	spillIndex map[uint64]uint64
	nextSlot   uint64
}

// NewShadowFile creates a shadow file for a backup targeting backupPath.
// pageSize is the runtime page size of the data file being backed up.
func NewShadowFile(backupPath string, pageSize, maxInMemoryBytes uint64) *ShadowFile {
	return &ShadowFile{
		pageSize:         pageSize,
		maxInMemoryBytes: maxInMemoryBytes,
		pages:            make(map[uint64][]byte),
		spillPath:        backupPath + ShadowFileSuffix,
		spillIndex:       make(map[uint64]uint64),
	}
}

// PreserveOriginalPage stores the pre-image of pageIdx. The bytes are copied;
// the caller's buffer is not retained. Preserving an already-preserved index
// is a silent no-op.
func (sf *ShadowFile) PreserveOriginalPage(pageIdx uint64, page []byte) error {
	if uint64(len(page)) < sf.pageSize {
		return fmt.Errorf("preserve page %d: got %d bytes, page size is %d",
			pageIdx, len(page), sf.pageSize)
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()

	if _, ok := sf.pages[pageIdx]; ok {
		return nil
	}
	if _, ok := sf.spillIndex[pageIdx]; ok {
		return nil
	}

	if sf.memBytes+sf.pageSize <= sf.maxInMemoryBytes {
		copied := make([]byte, sf.pageSize)
		copy(copied, page)
		sf.pages[pageIdx] = copied
		sf.memBytes += sf.pageSize
		return nil
	}

	return sf.spillLocked(pageIdx, page)
}

// spillLocked writes the pre-image to the next slot of the spill file.
func (sf *ShadowFile) spillLocked(pageIdx uint64, page []byte) error {
	if sf.spillFile == nil {
		f, err := fs.OpenFile(sf.spillPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("create shadow spill file %s: %w", sf.spillPath, err)
		}
		sf.spillFile = f
	}

	slot := sf.nextSlot
	if _, err := sf.spillFile.WriteAt(page[:sf.pageSize], int64(slot*sf.pageSize)); err != nil {
		return fmt.Errorf("spill page %d to %s: %w", pageIdx, sf.spillPath, err)
	}
	sf.spillIndex[pageIdx] = slot
	sf.nextSlot++
	return nil
}

// ReadPreservedPage copies the preserved bytes of pageIdx into buf.
func (sf *ShadowFile) ReadPreservedPage(pageIdx uint64, buf []byte) error {
	if uint64(len(buf)) < sf.pageSize {
		return fmt.Errorf("read preserved page %d: buffer too small (%d < %d)",
			pageIdx, len(buf), sf.pageSize)
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()

	if page, ok := sf.pages[pageIdx]; ok {
		copy(buf[:sf.pageSize], page)
		return nil
	}
	if slot, ok := sf.spillIndex[pageIdx]; ok {
		if _, err := sf.spillFile.ReadAt(buf[:sf.pageSize], int64(slot*sf.pageSize)); err != nil {
			return fmt.Errorf("read spilled page %d from %s: %w", pageIdx, sf.spillPath, err)
		}
		return nil
	}
	return fmt.Errorf("page %d: %w", pageIdx, ErrPageNotPreserved)
}

// HasPreservedPage reports whether pageIdx has a preserved pre-image.
func (sf *ShadowFile) HasPreservedPage(pageIdx uint64) bool {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if _, ok := sf.pages[pageIdx]; ok {
		return true
	}
	_, ok := sf.spillIndex[pageIdx]
	return ok
}

// NumPreservedPages returns how many pages are preserved.
func (sf *ShadowFile) NumPreservedPages() uint64 {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return uint64(len(sf.pages) + len(sf.spillIndex))
}

// Cleanup releases all preserved pages and removes the spill file if one was
// created. Safe to call more than once.
func (sf *ShadowFile) Cleanup() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.pages = make(map[uint64][]byte)
	sf.memBytes = 0
	sf.spillIndex = make(map[uint64]uint64)
	sf.nextSlot = 0

	if sf.spillFile != nil {
		_ = sf.spillFile.Close()
		sf.spillFile = nil
		if err := fs.RemoveIfExists(sf.spillPath); err != nil {
			return fmt.Errorf("remove shadow spill file %s: %w", sf.spillPath, err)
		}
	}
	return nil
}
