package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the per-user and per-project data directory.
const DirName = ".brunel"

// DatabaseName is the file name of the run database inside DirName.
const DatabaseName = "runs.db"

// GlobalBrunelPath returns the path to the global .brunel directory.
// On Unix: ~/.brunel
// On Windows: %USERPROFILE%\.brunel
func GlobalBrunelPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalBrunelPath returns the path to the .brunel directory under root.
func LocalBrunelPath(root string) string {
	return filepath.Join(root, DirName)
}

// DatabasePath returns the run database location inside dir.
func DatabasePath(dir string) string {
	return filepath.Join(dir, DatabaseName)
}
