package cmd

import (
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/predictable-labs/ryu/internal/backup"
	"github.com/predictable-labs/ryu/internal/logger"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-path> <target-path>",
	Short: "Restore a backup into a new database directory",
	Long: `Materialise a backup into a fresh database directory.

The target must not exist; restore never overwrites. On failure the
partially-populated target is left behind for inspection and should be
removed before retrying.

Examples:
  ryu-backup restore /backups/nightly /data/restored`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRestore(args[0], args[1])
	},
}

func runRestore(backupPath, targetPath string) error {
	meta, metaErr := backup.ReadMetadataFile(filepath.Join(backupPath, backup.MetadataFileName))
	if metaErr == nil {
		logger.Info("Restoring backup of %s (snapshot %d, %s)",
			meta.DatabasePath, meta.SnapshotTS, humanize.Bytes(meta.BackupSizeBytes))
	}

	start := time.Now()
	if err := backup.RestoreFromBackup(backupPath, targetPath); err != nil {
		logger.Error("Restore failed: %v", err)
		return err
	}

	logger.Success("Restore completed in %s", time.Since(start).Round(time.Millisecond))
	if metaErr == nil {
		logger.StatusLine("Database", filepath.Join(targetPath, filepath.Base(meta.DatabasePath)))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
