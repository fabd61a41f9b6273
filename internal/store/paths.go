package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalKuramapPath returns the path to the global .kuramap directory.
// On Unix: ~/.kuramap
// On Windows: %USERPROFILE%\.kuramap
func GlobalKuramapPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".kuramap"), nil
}

// DefaultDBPath returns the default run-history database path,
// ~/.kuramap/runs.db.
func DefaultDBPath() (string, error) {
	dir, err := GlobalKuramapPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}
