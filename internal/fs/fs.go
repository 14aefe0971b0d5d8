// Package fs is the virtual filesystem layer, built on spf13/afero.
// Every file the engine touches goes through this package, so tests can swap
// in an in-memory filesystem and exercise the full backup/restore path
// without touching disk.
package fs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FS is the process-wide filesystem. Defaults to the real OS filesystem;
// tests replace it with afero.NewMemMapFs().
var FS afero.Fs = afero.NewOsFs()

// SetFS swaps the active filesystem.
func SetFS(fs afero.Fs) {
	FS = fs
}

// ResetFS restores the real OS filesystem.
func ResetFS() {
	FS = afero.NewOsFs()
}

// Open opens a file for reading.
func Open(name string) (afero.File, error) {
	return FS.Open(name)
}

// OpenFile opens a file with the given flags and permissions.
func OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return FS.OpenFile(name, flag, perm)
}

// Create creates or truncates a file.
func Create(name string) (afero.File, error) {
	return FS.Create(name)
}

// Remove removes a file or empty directory.
func Remove(name string) error {
	return FS.Remove(name)
}

// RemoveAll removes a path and everything under it.
func RemoveAll(path string) error {
	return FS.RemoveAll(path)
}

// RemoveIfExists removes a file if present; a missing file is not an error.
func RemoveIfExists(name string) error {
	err := FS.Remove(name)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Stat returns file info.
func Stat(name string) (os.FileInfo, error) {
	return FS.Stat(name)
}

// MkdirAll creates a directory and any missing parents.
func MkdirAll(path string, perm os.FileMode) error {
	return FS.MkdirAll(path, perm)
}

// ReadDir reads a directory.
func ReadDir(dirname string) ([]os.FileInfo, error) {
	return afero.ReadDir(FS, dirname)
}

// ReadFile reads an entire file.
func ReadFile(filename string) ([]byte, error) {
	return afero.ReadFile(FS, filename)
}

// WriteFile writes data to a file, creating or truncating it.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(FS, filename, data, perm)
}

// Exists reports whether a file or directory exists.
func Exists(path string) (bool, error) {
	return afero.Exists(FS, path)
}

// DirExists reports whether a directory exists.
func DirExists(path string) (bool, error) {
	return afero.DirExists(FS, path)
}

// FileSize returns the size of a file in bytes.
func FileSize(path string) (int64, error) {
	info, err := FS.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CopyFile copies src to dst byte-for-byte, preserving the source mode.
func CopyFile(src, dst string) error {
	srcFile, err := FS.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := FS.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = dstFile.Close() }()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// --- Testing helpers ---

// WithMemFs runs fn against a fresh in-memory filesystem, restoring the
// previous filesystem afterwards.
func WithMemFs(fn func(fs afero.Fs)) {
	original := FS
	memFs := afero.NewMemMapFs()
	FS = memFs
	defer func() { FS = original }()
	fn(memFs)
}

// SetupTestDir builds an in-memory filesystem pre-populated with files.
func SetupTestDir(files map[string]string) afero.Fs {
	memFs := afero.NewMemMapFs()
	for path, content := range files {
		dir := filepath.Dir(path)
		if dir != "." && dir != "/" {
			_ = memFs.MkdirAll(dir, 0755)
		}
		_ = afero.WriteFile(memFs, path, []byte(content), 0644)
	}
	return memFs
}
