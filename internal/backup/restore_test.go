package backup

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/predictable-labs/ryu/internal/fs"
	"github.com/predictable-labs/ryu/internal/storage"
)

// makeBackup runs a full backup of a fresh database and returns its
// snapshot bytes.
func makeBackup(t *testing.T, dbPath, backupPath string, numPages int, withWAL bool) []byte {
	t.Helper()

	db := newTestDatabase(t, dbPath, numPages)
	defer db.Close()

	if withWAL {
		if err := fs.WriteFile(db.WALPath(), []byte("wal-segment"), 0644); err != nil {
			t.Fatalf("write WAL failed: %v", err)
		}
	}

	m := newTestManager(t, db)
	if err := m.StartBackup(backupPath); err != nil {
		t.Fatalf("StartBackup failed: %v", err)
	}
	if state := m.WaitForCompletion(); state != StateCompleted {
		t.Fatalf("backup state = %v (%s)", state, m.ErrorMessage())
	}
	return snapshotPages(t, db)
}

func TestRestoreRoundTrip(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		want := makeBackup(t, "/data/graph.ryu", "/backups/r1", 8, true)

		if err := RestoreFromBackup("/backups/r1", "/restored/one"); err != nil {
			t.Fatalf("RestoreFromBackup failed: %v", err)
		}

		got, err := fs.ReadFile("/restored/one/graph.ryu")
		if err != nil {
			t.Fatalf("restored data file missing: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Error("restored data file differs from snapshot")
		}

		wal, err := fs.ReadFile("/restored/one/graph.ryu.wal")
		if err != nil {
			t.Fatalf("restored WAL missing: %v", err)
		}
		if string(wal) != "wal-segment" {
			t.Error("restored WAL contents mismatch")
		}

		// Metadata and shadow residue are not part of a restored database.
		if exists, _ := fs.Exists("/restored/one/" + MetadataFileName); exists {
			t.Error("metadata file should not be restored")
		}

		// The restored directory opens as a database.
		db, err := storage.OpenDatabase("/restored/one/graph.ryu", testPageSize)
		if err != nil {
			t.Fatalf("restored database does not open: %v", err)
		}
		defer db.Close()
		if db.DataFile().NumPages() != 8 {
			t.Errorf("restored NumPages = %d, want 8", db.DataFile().NumPages())
		}
	})
}

func TestRestoreWithoutWAL(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		makeBackup(t, "/data/graph.ryu", "/backups/r2", 4, false)

		if err := RestoreFromBackup("/backups/r2", "/restored/two"); err != nil {
			t.Fatalf("RestoreFromBackup failed: %v", err)
		}
		if exists, _ := fs.Exists("/restored/two/graph.ryu.wal"); exists {
			t.Error("no WAL should be restored when the backup has none")
		}
	})
}

func TestRestoreDeterministic(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		makeBackup(t, "/data/graph.ryu", "/backups/r3", 6, true)

		if err := RestoreFromBackup("/backups/r3", "/restored/a"); err != nil {
			t.Fatalf("first restore failed: %v", err)
		}
		if err := RestoreFromBackup("/backups/r3", "/restored/b"); err != nil {
			t.Fatalf("second restore failed: %v", err)
		}

		for _, name := range []string{"graph.ryu", "graph.ryu.wal"} {
			a, err := fs.ReadFile("/restored/a/" + name)
			if err != nil {
				t.Fatalf("read %s from first restore: %v", name, err)
			}
			b, err := fs.ReadFile("/restored/b/" + name)
			if err != nil {
				t.Fatalf("read %s from second restore: %v", name, err)
			}
			if !bytes.Equal(a, b) {
				t.Errorf("%s differs between restores", name)
			}
		}
	})
}

func TestRestoreBackupMissing(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		err := RestoreFromBackup("/tmp/nope", "/tmp/new")
		if !errors.Is(err, ErrBackupMissing) {
			t.Errorf("err = %v, want ErrBackupMissing", err)
		}
	})
}

func TestRestoreTargetExists(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		makeBackup(t, "/data/graph.ryu", "/backups/r4", 2, false)

		if err := fs.WriteFile("/tmp/existing/stuff", []byte("x"), 0644); err != nil {
			t.Fatalf("seed target failed: %v", err)
		}

		err := RestoreFromBackup("/backups/r4", "/tmp/existing")
		if !errors.Is(err, ErrTargetExists) {
			t.Errorf("err = %v, want ErrTargetExists", err)
		}
	})
}

func TestRestoreCorruptMetadata(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		if err := fs.WriteFile("/backups/bad/"+MetadataFileName, []byte{1, 2, 3}, 0644); err != nil {
			t.Fatalf("seed backup failed: %v", err)
		}

		err := RestoreFromBackup("/backups/bad", "/restored/bad")
		if !errors.Is(err, ErrCorruptMetadata) {
			t.Errorf("err = %v, want ErrCorruptMetadata", err)
		}
	})
}

func TestRestoreMissingDataFile(t *testing.T) {
	fs.WithMemFs(func(memFs afero.Fs) {
		meta := Metadata{
			SnapshotTS:      1,
			DatabaseID:      "id",
			DatabasePath:    "/data/graph.ryu",
			NumPages:        2,
			BackupSizeBytes: 2 * testPageSize,
			RyuVersion:      "0.0.0",
		}
		if err := fs.MkdirAll("/backups/hollow", 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := meta.WriteToFile("/backups/hollow/" + MetadataFileName); err != nil {
			t.Fatalf("WriteToFile failed: %v", err)
		}

		if err := RestoreFromBackup("/backups/hollow", "/restored/hollow"); err == nil {
			t.Error("expected error for backup without a data file")
		}
	})
}
