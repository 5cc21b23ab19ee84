// Package pathutil confines file operations to permitted directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/brunel/internal/store"
)

// BackupDirName is the backup directory inside a .brunel directory.
const BackupDirName = "backups"

// RedactPath shortens path to .../<parent>/<base> for error messages,
// e.g. "/home/user/.brunel/runs.db" becomes ".../.brunel/runs.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath returns an error unless path, once cleaned and with
// symlinks in its existing ancestors resolved, lies inside one of
// allowedDirs. The file itself need not exist.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return errors.New("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return errors.New("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, 0):
		return errors.New("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}
	parent, err := resolve(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	target := filepath.Join(parent, filepath.Base(abs))

	for _, dir := range allowedDirs {
		allowedAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		allowed, err := resolve(allowedAbs)
		if err != nil {
			continue
		}
		if within(target, allowed) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(abs))
}

// AllowedBackupDirs returns the directories backups may be written to and
// restored from: ~/.brunel/backups, <root>/.brunel/backups and, when set,
// the configured backup directory.
func AllowedBackupDirs(root, configured string) ([]string, error) {
	global, err := store.GlobalBrunelPath()
	if err != nil {
		return nil, err
	}
	dirs := []string{
		filepath.Join(global, BackupDirName),
		filepath.Join(store.LocalBrunelPath(root), BackupDirName),
	}
	if configured != "" {
		dirs = append(dirs, configured)
	}
	return dirs, nil
}

// resolve evaluates symlinks in the deepest existing ancestor of dir and
// appends the parts that do not exist yet.
func resolve(dir string) (string, error) {
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		up := filepath.Dir(dir)
		if up == dir {
			return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
		}
		missing = append(missing, filepath.Base(dir))
		dir = up
	}
}

func within(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
