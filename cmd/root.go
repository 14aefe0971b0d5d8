// Package cmd implements the ryu-backup command-line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/predictable-labs/ryu/internal/config"
	"github.com/predictable-labs/ryu/internal/logger"
)

var (
	cfg *config.Config
	log logger.Logger
)

// Flag targets; copied into cfg when set (environment supplies the defaults).
var (
	flagBackupDir   string
	flagCatalogPath string
	flagPageSize    uint64
	flagShadowCap   uint64
	flagLogLevel    string
	flagLogFormat   string
	flagNoColor     bool
	flagDebug       bool
)

var rootCmd = &cobra.Command{
	Use:   "ryu-backup",
	Short: "Online backup and restore for ryu databases",
	Long: `ryu-backup creates point-in-time consistent backups of a live ryu
database without stopping writers, and restores them into fresh
database directories.

A backup directory contains the full data file copy, the WAL segment
current at snapshot time, and a binary metadata record:

  <backup>/
    <database-file>        full copy of the main data file
    <database-file>.wal    WAL segment (if any)
    backup_metadata.bin    snapshot timestamp, identity, page count`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyFlags(cmd)
		if cfg.NoColor {
			logger.DisableColors()
		}
	},
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("backup-dir") {
		cfg.BackupDir = flagBackupDir
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath = flagCatalogPath
	}
	if flags.Changed("page-size") {
		cfg.PageSize = flagPageSize
	}
	if flags.Changed("max-shadow-memory") {
		cfg.MaxShadowInMemoryBytes = flagShadowCap
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("no-color") {
		cfg.NoColor = flagNoColor
	}
	if flags.Changed("debug") {
		cfg.Debug = flagDebug
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
	}
	if flags.Changed("log-level") || flags.Changed("log-format") || flags.Changed("debug") {
		log = logger.New(cfg.LogLevel, cfg.LogFormat)
	}
}

// Execute runs the root command with the given configuration and logger.
func Execute(ctx context.Context, c *config.Config, l logger.Logger) error {
	cfg = c
	log = l
	rootCmd.Version = cfg.Version
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBackupDir, "backup-dir", "", "default directory for new backups (env RYU_BACKUP_DIR)")
	pf.StringVar(&flagCatalogPath, "catalog", "", "backup catalog location (env RYU_CATALOG_PATH)")
	pf.Uint64Var(&flagPageSize, "page-size", 0, "page size for opening databases (env RYU_PAGE_SIZE)")
	pf.Uint64Var(&flagShadowCap, "max-shadow-memory", 0, "in-memory shadow cap in bytes before spilling to disk")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")
}
