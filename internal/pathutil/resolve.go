// Package pathutil provides local path resolution for user-typed input.
// Shared by the CLI session and the preferences loader so paths resolve the
// same way regardless of entry point.
package pathutil

import (
	"os"
	"path/filepath"
)

// ResolveAbsolutePath turns user input into an absolute local path. "~"
// expands to the home directory, relative paths resolve against the working
// directory, and symlinks in the EXISTING portion of the path are resolved
// before any non-existent components are appended. The last part matters for
// navigation: a target under a symlinked ancestor must still land in a
// stable, comparable form even when the leaf does not exist yet.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	// Fast path: the whole path exists.
	resolved, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		return resolved, nil
	}

	// Find the deepest existing ancestor, resolve it, then append the
	// non-existent remainder.
	current := absPath
	var remainder []string

	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}
