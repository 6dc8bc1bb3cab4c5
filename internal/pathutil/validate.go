// Package pathutil confines file paths received from MCP clients to the data
// directories the server was started with.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/sims/round2.zip" becomes ".../sims/round2.zip".
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

// ValidatePath checks that path lies inside one of roots after cleaning and
// symlink resolution. The path itself need not exist yet, so output files
// can be validated before they are created.
func ValidatePath(path string, roots []string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if len(roots) == 0 {
		return fmt.Errorf("path validation failed: no data roots configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}
	resolved, err := resolve(abs)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	for _, root := range roots {
		rootAbs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			continue
		}
		rootResolved, err := resolve(rootAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolved, rootResolved) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside the data roots", RedactPath(abs))
}

// resolve evaluates symlinks on the deepest existing ancestor of path and
// re-appends the components that do not exist yet.
func resolve(path string) (string, error) {
	var tail []string
	cur := path
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("cannot resolve %s", RedactPath(path))
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/data/sims" must not match "/data/sims2"
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// DataRoots returns the absolute, de-duplicated set of directories the MCP
// server may read inputs from and write outputs to: workdir plus any extra
// directories. Empty entries are ignored.
func DataRoots(workdir string, extra ...string) ([]string, error) {
	seen := make(map[string]bool)
	var roots []string
	for _, dir := range append([]string{workdir}, extra...) {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving data root %s: %w", RedactPath(dir), err)
		}
		if !seen[abs] {
			seen[abs] = true
			roots = append(roots, abs)
		}
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no data roots")
	}
	return roots, nil
}
