// Package pathutil validates user-supplied file paths before sdrsweep writes
// or reads them on a caller's behalf.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned when a path escapes every allowed directory.
var ErrOutsideAllowed = errors.New("path is outside allowed directories")

// RedactPath shortens a path to .../<parent>/<base> for error messages.
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

// ValidatePath checks that path resolves to a location inside one of
// allowedDirs. Symlinks in existing ancestors are resolved first, so a link
// inside an allowed directory cannot point outside it. The target itself does
// not need to exist.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	resolved, err := resolve(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	for _, dir := range allowedDirs {
		base, err := resolve(dir)
		if err != nil {
			continue
		}
		if isSubpath(resolved, base) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q: %w", RedactPath(resolved), ErrOutsideAllowed)
}

// resolve returns the absolute, symlink-free form of path.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	return resolveExisting(abs)
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of p and
// re-appends the missing tail.
func resolveExisting(p string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(p)
	if parent == p {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(p))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(p)), nil
}

// isSubpath reports whether path equals base or lies beneath it.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(base, string(os.PathSeparator))+string(os.PathSeparator))
}

// AllowedExportDirs returns the directories results may be exported to or
// imported from: ~/.sdrsweep/exports and, if projectRoot is set,
// <projectRoot>/.sdrsweep/exports.
func AllowedExportDirs(projectRoot string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(homeDir, ".sdrsweep", "exports")}
	if projectRoot != "" {
		dirs = append(dirs, filepath.Join(projectRoot, ".sdrsweep", "exports"))
	}
	return dirs, nil
}
