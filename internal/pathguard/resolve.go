package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxSymlinkExpansions bounds symlink expansions during resolution.
const MaxSymlinkExpansions = 40

var errTooManyLinks = errors.New("too many levels of symbolic links")

// resolve canonicalizes an absolute path one component at a time, expanding
// every symlink on the way. A component that cannot be inspected is appended
// lexically and resolution continues, so a later ".." that lands back on an
// existing directory still has its symlinks expanded.
func resolve(abs string) (string, error) {
	resolved := string(filepath.Separator)
	rest := splitPath(abs)
	expansions := 0

	for len(rest) > 0 {
		c := rest[0]
		rest = rest[1:]

		switch c {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, c)
		info, err := os.Lstat(next)
		if err != nil {
			resolved = next
			continue
		}
		if info.Mode()&os.ModeSymlink == 0 {
			resolved = next
			continue
		}

		expansions++
		if expansions > MaxSymlinkExpansions {
			return "", errTooManyLinks
		}
		target, err := os.Readlink(next)
		if err != nil {
			return "", fmt.Errorf("readlink %s: %w", next, err)
		}
		if filepath.IsAbs(target) {
			resolved = string(filepath.Separator)
		}
		rest = append(splitPath(target), rest...)
	}
	return resolved, nil
}

func splitPath(p string) []string {
	return strings.Split(p, string(filepath.Separator))
}

// within reports whether path equals root or is nested under it. Both must
// be clean absolute paths.
func within(path, root string) bool {
	if root == string(filepath.Separator) {
		return true
	}
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

func withinAny(path string, roots []string) bool {
	for _, r := range roots {
		if within(path, r) {
			return true
		}
	}
	return false
}
