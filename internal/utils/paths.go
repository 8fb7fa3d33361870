package utils

import (
	"os"
	"path/filepath"
	"strings"
)

func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// ExpandHome replaces a leading "~" with the user's home directory.
// Paths of the form "~user" are returned unchanged.
func ExpandHome(path string) string {
	return ExpandHomeWith(path, HomeDir())
}

// ExpandHomeWith is like ExpandHome but uses the given home directory.
func ExpandHomeWith(path, home string) string {
	switch {
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	default:
		return path
	}
}

// ExpandPaths expands "~" in each path.
func ExpandPaths(paths []string) []string {
	home := HomeDir()
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		result = append(result, ExpandHomeWith(p, home))
	}
	return result
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Exists reports whether anything, including a dangling symlink, is at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
