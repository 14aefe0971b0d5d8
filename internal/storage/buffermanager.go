package storage

import "sync"

// PageModificationObserver is notified immediately before an existing page is
// overwritten in place. The backup manager registers itself here for the
// duration of a backup so it can preserve pre-images.
type PageModificationObserver interface {
	NotifyPageModification(pageIdx uint64)
}

// BufferManager funnels every page write to the data file. It knows nothing
// about backups beyond the registered observer.
type BufferManager struct {
	dataFile *DataFile

	obsMu    sync.RWMutex
	observer PageModificationObserver
}

// NewBufferManager creates a buffer manager over a data file.
func NewBufferManager(dataFile *DataFile) *BufferManager {
	return &BufferManager{dataFile: dataFile}
}

// DataFile returns the managed data file handle.
func (bm *BufferManager) DataFile() *DataFile {
	return bm.dataFile
}

// RegisterObserver installs the page-modification observer. At most one
// observer is active at a time; registering replaces any previous one.
func (bm *BufferManager) RegisterObserver(obs PageModificationObserver) {
	bm.obsMu.Lock()
	defer bm.obsMu.Unlock()
	bm.observer = obs
}

// UnregisterObserver removes the observer.
func (bm *BufferManager) UnregisterObserver() {
	bm.obsMu.Lock()
	defer bm.obsMu.Unlock()
	bm.observer = nil
}

// WritePage overwrites an existing page. The observer, if any, is notified
// before the on-disk contents change, so it can still read the pre-image.
func (bm *BufferManager) WritePage(pageIdx uint64, data []byte) error {
	bm.obsMu.RLock()
	obs := bm.observer
	bm.obsMu.RUnlock()

	if obs != nil && pageIdx < bm.dataFile.NumPages() {
		obs.NotifyPageModification(pageIdx)
	}
	return bm.dataFile.WritePage(pageIdx, data)
}

// AppendPage adds a fresh page past the end of the file. Appends never
// overwrite snapshot state, so no observer notification is needed.
func (bm *BufferManager) AppendPage(data []byte) (uint64, error) {
	return bm.dataFile.AppendPage(data)
}
