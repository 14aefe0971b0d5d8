package backup

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/predictable-labs/ryu/internal/fs"
)

func sampleMetadata() Metadata {
	return Metadata{
		SnapshotTS:      42,
		DatabaseID:      "uuid-1",
		DatabasePath:    "/d",
		BackupTimestamp: 1700000000,
		NumPages:        7,
		BackupSizeBytes: 28672,
		RyuVersion:      "0.1.0",
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := sampleMetadata()

	decoded, err := decodeMetadata(m.encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != m {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, m)
	}
}

func TestMetadataFileRoundTrip(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		m := sampleMetadata()

		if err := m.WriteToFile("/b/backup_metadata.bin"); err != nil {
			t.Fatalf("WriteToFile failed: %v", err)
		}

		decoded, err := ReadMetadataFile("/b/backup_metadata.bin")
		if err != nil {
			t.Fatalf("ReadMetadataFile failed: %v", err)
		}
		if decoded != m {
			t.Errorf("file round trip mismatch:\n got %+v\nwant %+v", decoded, m)
		}
	})
}

func TestMetadataWriteTruncatesExisting(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		if err := fs.WriteFile("/b/backup_metadata.bin", make([]byte, 10_000), 0644); err != nil {
			t.Fatalf("seed file failed: %v", err)
		}

		m := sampleMetadata()
		if err := m.WriteToFile("/b/backup_metadata.bin"); err != nil {
			t.Fatalf("WriteToFile failed: %v", err)
		}

		decoded, err := ReadMetadataFile("/b/backup_metadata.bin")
		if err != nil {
			t.Fatalf("ReadMetadataFile failed: %v", err)
		}
		if decoded != m {
			t.Errorf("metadata after overwrite mismatch: %+v", decoded)
		}
	})
}

func TestMetadataEmptyStrings(t *testing.T) {
	m := Metadata{}
	decoded, err := decodeMetadata(m.encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != m {
		t.Errorf("zero-value round trip mismatch: %+v", decoded)
	}
}

func TestMetadataCorruptTruncated(t *testing.T) {
	m := sampleMetadata()
	data := m.encode()

	for cut := 1; cut < len(data); cut += 7 {
		if _, err := decodeMetadata(data[:len(data)-cut]); !errors.Is(err, ErrCorruptMetadata) {
			t.Errorf("truncated by %d: err = %v, want ErrCorruptMetadata", cut, err)
		}
	}
}

func TestMetadataCorruptTrailingBytes(t *testing.T) {
	m := sampleMetadata()
	data := append(m.encode(), 0x00)
	if _, err := decodeMetadata(data); !errors.Is(err, ErrCorruptMetadata) {
		t.Errorf("err = %v, want ErrCorruptMetadata for trailing byte", err)
	}
}

func TestMetadataCorruptStringLength(t *testing.T) {
	m := sampleMetadata()
	data := m.encode()
	// The databaseID length prefix sits right after the u64 snapshot
	// timestamp; inflate it past the end of the buffer.
	binary.LittleEndian.PutUint32(data[8:12], 1<<30)
	if _, err := decodeMetadata(data); !errors.Is(err, ErrCorruptMetadata) {
		t.Errorf("err = %v, want ErrCorruptMetadata for oversized length", err)
	}
}

func TestReadMetadataFileMissing(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		if _, err := ReadMetadataFile("/nope/backup_metadata.bin"); err == nil {
			t.Error("expected error for missing metadata file")
		}
	})
}
