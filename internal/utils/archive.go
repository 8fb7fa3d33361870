package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArchivePath returns a free sibling of path stamped with day, such as
// audit.20261018.jsonl. A taken name gets a -1, -2, ... suffix.
func ArchivePath(path string, day time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	base := stem + "." + day.Format("20060102")
	candidate := base + ext
	for i := 1; Exists(candidate); i++ {
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	return candidate
}

// Archive renames path to ArchivePath(path, day) and returns the new name.
func Archive(path string, day time.Time) (string, error) {
	dst := ArchivePath(path, day)
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return dst, nil
}
