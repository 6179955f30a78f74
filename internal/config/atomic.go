package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriteFile replaces path with data through a synced temp file in the
// same directory. Readers never observe a partially written config.
func atomicWriteFile(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write staged config: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("flush staged config: %w", err)
	}
	// the temp file must be closed before the rename on Windows
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close staged config: %w", err)
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod staged config: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
