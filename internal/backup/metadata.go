package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/predictable-labs/ryu/internal/fs"
)

// MetadataFileName is the metadata record's file name inside a backup
// directory.
const MetadataFileName = "backup_metadata.bin"

// Metadata identifies a backup. It is serialised little-endian in fixed
// field order: snapshotTS, databaseID, databasePath, backupTimestamp,
// numPages, backupSizeBytes, ryuVersion. Strings are u32-length-prefixed
// UTF-8.
type Metadata struct {
	SnapshotTS      uint64 // transaction-manager timestamp at snapshot
	DatabaseID      string // database identity, typically a UUID
	DatabasePath    string // original main data file path
	BackupTimestamp uint64 // Unix-epoch wall-clock stamp
	NumPages        uint64 // pages in the main data file at snapshot
	BackupSizeBytes uint64 // numPages × pageSize
	RyuVersion      string // engine version that wrote the backup
}

func (m *Metadata) encode() []byte {
	var buf bytes.Buffer
	writeUint64(&buf, m.SnapshotTS)
	writeString(&buf, m.DatabaseID)
	writeString(&buf, m.DatabasePath)
	writeUint64(&buf, m.BackupTimestamp)
	writeUint64(&buf, m.NumPages)
	writeUint64(&buf, m.BackupSizeBytes)
	writeString(&buf, m.RyuVersion)
	return buf.Bytes()
}

func decodeMetadata(data []byte) (Metadata, error) {
	r := &byteReader{data: data}

	var m Metadata
	var err error
	if m.SnapshotTS, err = r.readUint64(); err != nil {
		return Metadata{}, err
	}
	if m.DatabaseID, err = r.readString(); err != nil {
		return Metadata{}, err
	}
	if m.DatabasePath, err = r.readString(); err != nil {
		return Metadata{}, err
	}
	if m.BackupTimestamp, err = r.readUint64(); err != nil {
		return Metadata{}, err
	}
	if m.NumPages, err = r.readUint64(); err != nil {
		return Metadata{}, err
	}
	if m.BackupSizeBytes, err = r.readUint64(); err != nil {
		return Metadata{}, err
	}
	if m.RyuVersion, err = r.readString(); err != nil {
		return Metadata{}, err
	}
	if r.remaining() != 0 {
		return Metadata{}, fmt.Errorf("%w: %d trailing bytes", ErrCorruptMetadata, r.remaining())
	}
	return m, nil
}

// WriteToFile serialises the record to path, creating the file if absent and
// truncating it if present.
func (m *Metadata) WriteToFile(path string) error {
	if err := fs.WriteFile(path, m.encode(), 0644); err != nil {
		return fmt.Errorf("write backup metadata %s: %w", path, err)
	}
	return nil
}

// ReadMetadataFile reads and deserialises a metadata record.
func ReadMetadataFile(path string) (Metadata, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read backup metadata %s: %w", path, err)
	}
	m, err := decodeMetadata(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("decode backup metadata %s: %w", path, err)
	}
	return m, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
}

type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.off
}

func (r *byteReader) readUint64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: truncated u64 at offset %d", ErrCorruptMetadata, r.off)
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

func (r *byteReader) readString() (string, error) {
	if r.remaining() < 4 {
		return "", fmt.Errorf("%w: truncated string length at offset %d", ErrCorruptMetadata, r.off)
	}
	n := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	if n > math.MaxInt32 || int(n) > r.remaining() {
		return "", fmt.Errorf("%w: string length %d exceeds %d remaining bytes",
			ErrCorruptMetadata, n, r.remaining())
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}
