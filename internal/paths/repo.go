// Package paths provides path resolution utilities.
package paths

import (
	"os"
	"path/filepath"
)

// RegistryDir is the repository-relative directory holding the registry.
const RegistryDir = "modules/registry"

// ResolveRepoRoot finds the repository root that default paths hang off.
//
// Resolution order:
//   - override, when non-empty (made absolute against start)
//   - the nearest ancestor of start (start included) containing modules/registry
//   - start itself
//
// An empty start means the current working directory.
func ResolveRepoRoot(override, start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = wd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	if override != "" {
		return Anchor(start, override), nil
	}

	for dir := start; ; {
		if isDir(filepath.Join(dir, RegistryDir)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

// Anchor resolves path against base unless it is already absolute.
func Anchor(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
