// Package config holds runtime configuration for the backup engine.
// Defaults come from the environment (RYU_* variables) and system memory
// detection; command-line flags override them.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultPageSize is the page size used when a database is created without
// an explicit page size. The data-file handle's page size is authoritative
// everywhere else.
const DefaultPageSize = 4096

// Shadow spill cap bounds. The cap itself is sized from available memory.
const (
	minShadowInMemoryBytes = 64 << 20  // 64 MiB
	maxShadowInMemoryBytes = 1 << 30   // 1 GiB
	shadowMemoryFraction   = 0.10
)

// Config holds all configuration options.
type Config struct {
	// Version information (set by ldflags via main)
	Version   string
	BuildTime string
	GitCommit string

	// Paths
	BackupDir   string // default target directory for backups
	CatalogPath string // SQLite backup catalog location

	// Storage
	PageSize uint64 // page size used to open databases

	// MaxShadowInMemoryBytes caps the shadow file's resident pre-image set;
	// beyond it, pre-images spill to the on-disk shadow file.
	MaxShadowInMemoryBytes uint64

	// PollInterval is how often the CLI samples backup progress.
	PollInterval time.Duration

	// Output options
	NoColor   bool
	Debug     bool
	LogLevel  string
	LogFormat string
}

// New creates a configuration with environment defaults.
func New() *Config {
	backupDir := getEnvString("RYU_BACKUP_DIR", defaultBackupDir())

	return &Config{
		BackupDir:   backupDir,
		CatalogPath: getEnvString("RYU_CATALOG_PATH", filepath.Join(backupDir, "catalog.db")),

		PageSize: uint64(getEnvInt("RYU_PAGE_SIZE", DefaultPageSize)),

		MaxShadowInMemoryBytes: uint64(getEnvInt64("RYU_MAX_SHADOW_IN_MEMORY_BYTES",
			detectShadowCap())),

		PollInterval: time.Duration(getEnvInt("RYU_POLL_INTERVAL_MS", 200)) * time.Millisecond,

		NoColor:   getEnvBool("NO_COLOR", false),
		Debug:     getEnvBool("RYU_DEBUG", false),
		LogLevel:  getEnvString("RYU_LOG_LEVEL", "info"),
		LogFormat: getEnvString("RYU_LOG_FORMAT", "text"),
	}
}

// detectShadowCap sizes the in-memory shadow cap from available system
// memory: a tenth of what is free, clamped to [64 MiB, 1 GiB]. Falls back to
// 256 MiB when detection fails (containers without /proc, exotic platforms).
func detectShadowCap() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return 256 << 20
	}
	limit := int64(float64(vm.Available) * shadowMemoryFraction)
	if limit < minShadowInMemoryBytes {
		limit = minShadowInMemoryBytes
	}
	if limit > maxShadowInMemoryBytes {
		limit = maxShadowInMemoryBytes
	}
	return limit
}

func defaultBackupDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "ryu-backups")
	}
	return "./ryu-backups"
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
