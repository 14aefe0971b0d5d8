package backup

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/predictable-labs/ryu/internal/fs"
	"github.com/predictable-labs/ryu/internal/storage"
)

// RestoreFromBackup materialises the backup at backupPath into a fresh
// database directory at targetPath. No live database instance is required.
// On failure the partially-populated target is left in place; the caller is
// expected to remove it.
func RestoreFromBackup(backupPath, targetPath string) error {
	exists, err := fs.Exists(backupPath)
	if err != nil {
		return fmt.Errorf("check backup path %s: %w", backupPath, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBackupMissing, backupPath)
	}

	exists, err = fs.Exists(targetPath)
	if err != nil {
		return fmt.Errorf("check target path %s: %w", targetPath, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTargetExists, targetPath)
	}

	meta, err := ReadMetadataFile(filepath.Join(backupPath, MetadataFileName))
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(targetPath, 0755); err != nil {
		return fmt.Errorf("create restore target %s: %w", targetPath, err)
	}

	if err := copyBackupToTarget(backupPath, targetPath, meta); err != nil {
		return err
	}

	return verifyRestoreIntegrity(targetPath, meta)
}

// copyBackupToTarget copies the main data file and the WAL segment (if
// present) into their canonical locations under targetPath. The metadata
// record and any shadow residue stay behind.
func copyBackupToTarget(backupPath, targetPath string, meta Metadata) error {
	dataFileName := filepath.Base(meta.DatabasePath)

	filesToCopy := []string{dataFileName}
	walFileName := dataFileName + storage.WALSuffix
	if exists, err := fs.Exists(filepath.Join(backupPath, walFileName)); err != nil {
		return fmt.Errorf("check backup WAL: %w", err)
	} else if exists {
		filesToCopy = append(filesToCopy, walFileName)
	}

	for _, name := range filesToCopy {
		if name == MetadataFileName || strings.HasSuffix(name, ShadowFileSuffix) {
			continue
		}
		src := filepath.Join(backupPath, name)
		dst := filepath.Join(targetPath, name)
		if err := fs.CopyFile(src, dst); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}
	return nil
}

// verifyRestoreIntegrity checks the restored directory: the main data file
// must exist and, when the metadata recorded a size, match it exactly.
// All failed checks are reported together.
func verifyRestoreIntegrity(targetPath string, meta Metadata) error {
	var result *multierror.Error

	dataPath := filepath.Join(targetPath, filepath.Base(meta.DatabasePath))
	exists, err := fs.Exists(dataPath)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("check restored data file: %w", err))
	} else if !exists {
		result = multierror.Append(result,
			fmt.Errorf("restored data file not found at %s", dataPath))
	} else if meta.BackupSizeBytes > 0 {
		size, err := fs.FileSize(dataPath)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("stat restored data file: %w", err))
		} else if uint64(size) != meta.BackupSizeBytes {
			result = multierror.Append(result,
				fmt.Errorf("restored data file size mismatch: expected %d but got %d",
					meta.BackupSizeBytes, size))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("restore verification failed for %s: %w", targetPath, err)
	}
	return nil
}
