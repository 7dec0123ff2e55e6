package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// EnsureWritableRoot makes sure dir exists, is a directory and accepts new
// files, creating it if it is missing
func EnsureWritableRoot(fsys afero.Fs, dir string) error {
	// first check if directory exists
	info, err := fsys.Stat(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			// error other than "not exists" occurred
			return fmt.Errorf("failed to check directory %s: %w", dir, err)
		}

		// directory doesn't exist, try to create it
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		return nil
	}

	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dir)
	}

	// try to create a temporary file to test writeability
	probe := filepath.Join(dir, ".write_test")
	f, err := fsys.Create(probe)
	if err != nil {
		return fmt.Errorf("directory %s exists but is not writable: %w", dir, err)
	}
	f.Close()
	fsys.Remove(probe)

	return nil
}

// CheckRoot verifies that dir exists and is a directory without modifying
// anything. it is used for read-only runs against an existing shard tree.
func CheckRoot(fsys afero.Fs, dir string) error {
	info, err := fsys.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("directory %s does not exist", dir)
		}
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dir)
	}

	return nil
}
