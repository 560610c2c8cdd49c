package safefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateInRoot resolves path (following symlinks) and returns its resolved
// absolute form, or a PathJailError when it is neither root itself nor a
// descendant of root. Containment requires the separator boundary, so
// /project2 never passes against root /project.
//
// Call it on the final destination path, after the last join or rename, and
// before any mutating filesystem call.
func ValidateInRoot(path, root string) (string, error) {
	if strings.TrimSpace(path) == "" || strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("%w: empty path or root", ErrInvalidInput)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	resolved, err := resolveExisting(absPath)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(os.PathSeparator)) {
		return "", &PathJailError{Path: path, Resolved: resolved, Root: resolvedRoot}
	}
	return resolved, nil
}

// resolveExisting follows symlinks on the deepest existing ancestor of path
// and rejoins the not-yet-created remainder, so destinations can be checked
// before they are written.
func resolveExisting(path string) (string, error) {
	suffix := ""
	current := filepath.Clean(path)
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if suffix == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, suffix), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		if suffix == "" {
			suffix = filepath.Base(current)
		} else {
			suffix = filepath.Join(filepath.Base(current), suffix)
		}
		current = parent
	}
}
