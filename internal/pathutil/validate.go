// Package pathutil confines file access requested by untrusted callers to
// a set of allowed directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/kuramap/internal/store"
)

// RedactPath shortens a path to .../<parent>/<basename> for error messages
// that may leave the machine.
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

// Resolve returns the absolute, symlink-resolved form of path if it lies
// inside one of allowedDirs. The file itself need not exist.
func Resolve(path string, allowedDirs []string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("path validation failed: path is empty")
	case strings.ContainsRune(path, '\x00'):
		return "", fmt.Errorf("path validation failed: path contains null byte")
	case len(allowedDirs) == 0:
		return "", fmt.Errorf("path validation failed: no allowed directories configured")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		root, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if root, err = resolveExisting(root); err != nil {
			continue
		}
		if within(resolved, root) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(abs))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// dir and re-attaches the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path is root or below it.
func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator))
}

// DefaultAllowedDataDirs returns the directories data files may be read
// from: ~/.kuramap/data/ and, when set, workDir.
func DefaultAllowedDataDirs(workDir string) ([]string, error) {
	home, err := store.GlobalKuramapPath()
	if err != nil {
		return nil, err
	}
	dirs := []string{filepath.Join(home, "data")}
	if workDir != "" {
		dirs = append(dirs, workDir)
	}
	return dirs, nil
}
