package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project data directory.
const DirName = ".sdrsweep"

// GlobalPath returns the path to the global data directory.
// On Unix: ~/.sdrsweep
// On Windows: %USERPROFILE%\.sdrsweep
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalPath returns the data directory for the given project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}
