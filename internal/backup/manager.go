package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/predictable-labs/ryu/internal/fs"
	"github.com/predictable-labs/ryu/internal/logger"
	"github.com/predictable-labs/ryu/internal/storage"
	"github.com/predictable-labs/ryu/internal/version"
)

// Progress milestones: the main data file copy spans [0, 0.7], the WAL copy
// ends at 0.9, and 1.0 is reached only on COMPLETED.
const (
	progressDataDone = 0.7
	progressWALDone  = 0.9

	progressEveryPages = 100
	yieldEveryPages    = 1000
)

// DefaultMaxShadowInMemoryBytes caps the shadow file's resident pre-image
// set when no limit is configured.
const DefaultMaxShadowInMemoryBytes = 256 << 20

// Manager orchestrates asynchronous snapshot backups of a live database.
// One worker goroutine exists per active job; client-facing calls never
// block on I/O. A manager runs at most one job over its lifetime: terminal
// states stay terminal.
type Manager struct {
	db  *storage.Database
	log logger.Logger

	state    atomic.Uint32
	progress atomic.Uint64 // math.Float64bits, monotonic within a job
	cancel   atomic.Bool

	// mu is the job lock. It guards the copied set, the shadow-vs-main
	// decision, the metadata record, and the error message. The worker's
	// "decide / read / mark copied" critical section and the observer's
	// "check copied / maybe preserve" critical section are mutually
	// exclusive under it.
	mu          sync.Mutex
	copiedPages map[uint64]struct{}
	shadow      *ShadowFile
	meta        Metadata
	errMessage  string

	backupPath      string
	checksum        string
	startTime       time.Time
	done            chan struct{}
	shadowMemoryCap uint64
}

// NewManager creates a backup manager bound to a database. The manager lives
// as long as the database; call Close before discarding it.
func NewManager(db *storage.Database, log logger.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database must not be nil", ErrInvalidArgument)
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Manager{db: db, log: log, shadowMemoryCap: DefaultMaxShadowInMemoryBytes}, nil
}

// SetShadowMemoryLimit overrides the in-memory shadow cap
// (config key max_shadow_in_memory_bytes). Takes effect on the next
// StartBackup.
func (m *Manager) SetShadowMemoryLimit(bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes > 0 {
		m.shadowMemoryCap = bytes
	}
}

// StartBackup begins an asynchronous backup into backupPath and returns
// immediately. Fails with ErrAlreadyRunning unless the manager is idle.
func (m *Manager) StartBackup(backupPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if State(m.state.Load()) != StateIdle {
		return ErrAlreadyRunning
	}
	if backupPath == "" {
		return fmt.Errorf("%w: backup path must not be empty", ErrInvalidArgument)
	}

	m.cancel.Store(false)
	m.progress.Store(0)
	m.errMessage = ""
	m.backupPath = backupPath
	m.startTime = time.Now()

	if exists, err := fs.Exists(backupPath); err != nil {
		return fmt.Errorf("check backup path %s: %w", backupPath, err)
	} else if !exists {
		if err := fs.MkdirAll(backupPath, 0755); err != nil {
			return fmt.Errorf("create backup directory %s: %w", backupPath, err)
		}
	}

	dataFile := m.db.DataFile()
	m.copiedPages = make(map[uint64]struct{})
	m.shadow = NewShadowFile(backupPath, dataFile.PageSize(), m.shadowMemoryCap)

	// Writers must observe IN_PROGRESS before the snapshot point is fixed.
	// A writer that slips in between registration and the timestamp capture
	// preserves a slightly-too-old pre-image, which WAL replay up to
	// snapshotTS makes whole; the reverse order would lose pre-images.
	m.state.Store(uint32(StateInProgress))
	m.db.BufferManager().RegisterObserver(m)

	snapshotTS := m.db.TransactionManager().CurrentTimestamp()
	m.meta = Metadata{
		SnapshotTS:      snapshotTS,
		DatabaseID:      m.db.DatabaseID(),
		DatabasePath:    m.db.DatabasePath(),
		BackupTimestamp: uint64(time.Now().Unix()),
		NumPages:        dataFile.NumPages(),
		RyuVersion:      version.Version,
	}

	m.done = make(chan struct{})
	go m.run()

	m.log.Info("backup started",
		"path", backupPath,
		"pages", m.meta.NumPages,
		"snapshot_ts", snapshotTS)
	return nil
}

// WaitForCompletion blocks until the worker has exited and returns the
// terminal state. Returns the current state immediately if no backup was
// ever started.
func (m *Manager) WaitForCompletion() State {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		<-done
	}
	return m.BackupState()
}

// BackupState returns a non-blocking snapshot of the current state.
func (m *Manager) BackupState() State {
	return State(m.state.Load())
}

// Progress returns a non-blocking snapshot of progress in [0.0, 1.0],
// monotonically non-decreasing within a job.
func (m *Manager) Progress() float64 {
	return math.Float64frombits(m.progress.Load())
}

// ErrorMessage returns the failure message of a FAILED job, or "".
func (m *Manager) ErrorMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMessage
}

// Checksum returns the SHA-256 of the backup data file, recorded once the
// copy phase has written every page (even if a later phase fails), or ""
// before that.
func (m *Manager) Checksum() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checksum
}

// Metadata returns a copy of the current job's metadata record.
func (m *Manager) Metadata() Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}

// CancelBackup requests cooperative cancellation. It does not join the
// worker; callers needing synchronous termination follow up with
// WaitForCompletion.
func (m *Manager) CancelBackup() {
	m.cancel.Store(true)
}

// NotifyPageModification is the buffer manager's observer callback, invoked
// immediately before a page is overwritten in place. If the worker has not
// yet copied pageIdx, the current on-disk contents are preserved in the
// shadow file.
func (m *Manager) NotifyPageModification(pageIdx uint64) {
	// Fast path: a single atomic load when no backup is running.
	if State(m.state.Load()) != StateInProgress {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if State(m.state.Load()) != StateInProgress {
		return
	}
	// Pages past the snapshot page count were appended after the snapshot
	// and are never read by the worker.
	if pageIdx >= m.meta.NumPages {
		return
	}
	if _, copied := m.copiedPages[pageIdx]; copied {
		return
	}
	if m.shadow.HasPreservedPage(pageIdx) {
		return
	}

	buf := make([]byte, m.db.DataFile().PageSize())
	if err := m.db.DataFile().ReadPage(pageIdx, buf); err != nil {
		m.log.Error("failed to read pre-image for shadow file",
			"page", pageIdx, "error", err)
		return
	}
	if err := m.shadow.PreserveOriginalPage(pageIdx, buf); err != nil {
		m.log.Error("failed to preserve pre-image",
			"page", pageIdx, "error", err)
	}
}

// Close cancels any in-progress backup, joins the worker, and releases the
// manager. Must run before the database handle is torn down: the worker
// holds references into it.
func (m *Manager) Close() error {
	if m.BackupState() == StateInProgress {
		m.CancelBackup()
	}
	m.WaitForCompletion()
	return nil
}

// run is the backup worker. All errors are caught here and converted into
// FAILED plus an error message; partial artefacts are left on disk for
// diagnosis.
func (m *Manager) run() {
	defer close(m.done)
	defer m.db.BufferManager().UnregisterObserver()
	defer m.cleanupShadow()

	if err := m.doBackup(); err != nil {
		m.handleBackupError(err)
		return
	}

	m.setProgress(1.0)
	m.state.Store(uint32(StateCompleted))
	m.log.Info("backup completed",
		"path", m.backupPath,
		"pages", m.meta.NumPages,
		"bytes", m.meta.BackupSizeBytes,
		"preserved_pages", m.shadow.NumPreservedPages(),
		"duration", time.Since(m.startTime).String())
}

func (m *Manager) doBackup() error {
	if err := m.copyMainDataFile(); err != nil {
		return err
	}
	if m.cancel.Load() {
		return ErrCancelled
	}

	if err := m.copyWALFile(); err != nil {
		return err
	}
	if m.cancel.Load() {
		return ErrCancelled
	}

	m.state.Store(uint32(StateFinalizing))
	if err := m.writeBackupMetadata(); err != nil {
		return err
	}
	return m.verifyBackupIntegrity()
}

// copyMainDataFile emits every snapshot page to the backup data file. For
// each page the job lock is held across the shadow-vs-main decision, the
// read, and the copied-set insert; the write to the backup file happens
// outside the lock, which is safe because later mutators see the page in
// the copied set and skip preservation.
func (m *Manager) copyMainDataFile() error {
	dataFile := m.db.DataFile()
	pageSize := dataFile.PageSize()
	totalPages := m.meta.NumPages

	backupDataPath := filepath.Join(m.backupPath, filepath.Base(m.meta.DatabasePath))
	out, err := fs.OpenFile(backupDataPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create backup data file %s: %w", backupDataPath, err)
	}
	defer func() { _ = out.Close() }()

	buf := make([]byte, pageSize)
	sum := sha256.New()

	for pageIdx := uint64(0); pageIdx < totalPages; pageIdx++ {
		if m.cancel.Load() {
			return ErrCancelled
		}

		if err := m.readSnapshotPage(pageIdx, buf); err != nil {
			return err
		}

		if _, err := out.WriteAt(buf, int64(pageIdx*pageSize)); err != nil {
			return fmt.Errorf("write page %d to %s: %w", pageIdx, backupDataPath, err)
		}
		sum.Write(buf)

		if pageIdx%progressEveryPages == 0 {
			m.setProgress(float64(pageIdx) / float64(totalPages) * progressDataDone)
		}
		if pageIdx%yieldEveryPages == 0 && pageIdx > 0 {
			runtime.Gosched()
		}
	}

	// Exact truncation makes the size check in verification sound even when
	// a previous artefact occupied this path.
	if err := out.Truncate(int64(totalPages * pageSize)); err != nil {
		return fmt.Errorf("truncate %s: %w", backupDataPath, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", backupDataPath, err)
	}

	m.mu.Lock()
	m.meta.BackupSizeBytes = totalPages * pageSize
	m.checksum = hex.EncodeToString(sum.Sum(nil))
	m.mu.Unlock()

	m.setProgress(progressDataDone)
	return nil
}

// readSnapshotPage reads the snapshot-time image of pageIdx into buf: the
// shadow pre-image if one was preserved, otherwise the live on-disk page.
// The page is marked copied before the lock is released.
func (m *Manager) readSnapshotPage(pageIdx uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.shadow.HasPreservedPage(pageIdx) {
		err = m.shadow.ReadPreservedPage(pageIdx, buf)
	} else {
		err = m.db.DataFile().ReadPage(pageIdx, buf)
	}
	if err != nil {
		return err
	}
	m.copiedPages[pageIdx] = struct{}{}
	return nil
}

// copyWALFile copies the WAL segment into the backup directory. Copying the
// whole segment is safe: restore replays at most up to snapshotTS, so
// trailing records past the snapshot are ignored.
func (m *Manager) copyWALFile() error {
	walPath := m.db.WALPath()

	exists, err := fs.Exists(walPath)
	if err != nil {
		return fmt.Errorf("check WAL %s: %w", walPath, err)
	}
	if !exists {
		m.setProgress(progressWALDone)
		return nil
	}
	size, err := fs.FileSize(walPath)
	if err != nil {
		return fmt.Errorf("stat WAL %s: %w", walPath, err)
	}
	if size == 0 {
		m.setProgress(progressWALDone)
		return nil
	}

	backupWALPath := filepath.Join(m.backupPath, filepath.Base(walPath))
	if err := fs.CopyFile(walPath, backupWALPath); err != nil {
		return fmt.Errorf("copy WAL to %s: %w", backupWALPath, err)
	}

	m.setProgress(progressWALDone)
	return nil
}

func (m *Manager) writeBackupMetadata() error {
	m.mu.Lock()
	meta := m.meta
	m.mu.Unlock()
	return meta.WriteToFile(filepath.Join(m.backupPath, MetadataFileName))
}

// verifyBackupIntegrity re-opens the backup directory and checks the written
// artefacts against the in-memory record: metadata round-trip, data file
// size, and the running checksum recorded during copy.
func (m *Manager) verifyBackupIntegrity() error {
	m.mu.Lock()
	meta := m.meta
	wantChecksum := m.checksum
	m.mu.Unlock()

	metadataPath := filepath.Join(m.backupPath, MetadataFileName)
	onDisk, err := ReadMetadataFile(metadataPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if onDisk.NumPages != meta.NumPages {
		return fmt.Errorf("%w: metadata page count mismatch: wrote %d, read back %d",
			ErrVerificationFailed, meta.NumPages, onDisk.NumPages)
	}

	backupDataPath := filepath.Join(m.backupPath, filepath.Base(meta.DatabasePath))
	size, err := fs.FileSize(backupDataPath)
	if err != nil {
		return fmt.Errorf("%w: backup data file missing: %v", ErrVerificationFailed, err)
	}
	expectedSize := int64(meta.NumPages * m.db.DataFile().PageSize())
	if size != expectedSize {
		return fmt.Errorf("%w: backup file size mismatch: expected %d but got %d",
			ErrVerificationFailed, expectedSize, size)
	}

	gotChecksum, err := checksumFile(backupDataPath)
	if err != nil {
		return fmt.Errorf("%w: re-reading backup data file: %v", ErrVerificationFailed, err)
	}
	if gotChecksum != wantChecksum {
		return fmt.Errorf("%w: checksum mismatch: copied %s, on disk %s",
			ErrVerificationFailed, wantChecksum, gotChecksum)
	}
	return nil
}

// handleBackupError records the message and enters FAILED; the shadow file
// is torn down by run's deferred cleanup. No retries are attempted.
func (m *Manager) handleBackupError(err error) {
	m.mu.Lock()
	m.errMessage = err.Error()
	m.mu.Unlock()

	m.state.Store(uint32(StateFailed))
	m.log.Error("backup failed", "path", m.backupPath, "error", err)
}

func (m *Manager) cleanupShadow() {
	m.mu.Lock()
	shadow := m.shadow
	m.mu.Unlock()

	if shadow != nil {
		if err := shadow.Cleanup(); err != nil {
			m.log.Warn("shadow file cleanup failed", "error", err)
		}
	}
}

// setProgress advances progress monotonically.
func (m *Manager) setProgress(p float64) {
	for {
		old := m.progress.Load()
		if math.Float64frombits(old) >= p {
			return
		}
		if m.progress.CompareAndSwap(old, math.Float64bits(p)) {
			return
		}
	}
}

// checksumFile hashes a file's entire contents, matching the running
// checksum the copy loop computes over contiguous pages.
func checksumFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
