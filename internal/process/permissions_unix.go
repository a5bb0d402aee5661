//go:build !windows

package process

import (
	"fmt"
	"os"
)

// EnsureExecutable adds execute bits when the owner cannot execute path.
func (l *OSLauncher) EnsureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: binary not found at: %s", ErrValidation, path)
	}
	mode := info.Mode().Perm()
	if mode&0o100 != 0 {
		l.logger.Debug("binary already has execute permissions", "bin", path)
		return nil
	}
	l.logger.Info("binary does not have execute permissions, adding them", "bin", path)
	if err := os.Chmod(path, mode|0o755); err != nil {
		return fmt.Errorf("%w: set execute permissions for %s: %w", ErrSpawn, path, err)
	}
	return nil
}
