// Package scancache remembers the last scan so the next one can report
// what changed.
package scancache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zhengda-lu/devsweep/internal/scanner"
)

// Snapshot captures the state of a scan at a point in time.
type Snapshot struct {
	Timestamp   time.Time          `json:"timestamp"`
	Roots       []string           `json:"roots,omitempty"`
	Categories  []CategorySnapshot `json:"categories"`
	TotalSize   int64              `json:"total_size"`
	Fingerprint string             `json:"fingerprint"`
}

// CategorySnapshot captures the size and item count for a single category.
type CategorySnapshot struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Items int    `json:"items"`
}

// CategoryDiff describes how a category changed between two snapshots.
type CategoryDiff struct {
	PreviousSize int64 `json:"previous_size"`
	CurrentSize  int64 `json:"current_size"`
	Delta        int64 `json:"delta"`
	IsNew        bool  `json:"is_new,omitempty"`
}

// Removed reports whether the category disappeared.
func (d CategoryDiff) Removed() bool { return d.CurrentSize == 0 && d.PreviousSize > 0 && !d.IsNew }

// DiffResult describes the differences between two snapshots.
type DiffResult struct {
	PreviousTimestamp time.Time               `json:"previous_timestamp"`
	TotalDelta        int64                   `json:"total_delta"`
	Categories        map[string]CategoryDiff `json:"categories"`
	// Unchanged is set when both snapshots have the same fingerprint.
	Unchanged bool `json:"unchanged"`
}

// DefaultPath returns the default scan cache file location:
// ~/.local/share/devsweep/last-scan.json
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "last-scan.json"
	}
	return filepath.Join(home, ".local", "share", "devsweep", "last-scan.json")
}

// Save writes a snapshot to the given path as indented JSON.
// It creates parent directories if they don't exist.
func Save(path string, snap Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scan cache directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scan cache file: %w", err)
	}

	return nil
}

// Load reads a snapshot from the given path.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read scan cache file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse scan cache file: %w", err)
	}

	return snap, nil
}

// Diff computes per-category differences between two snapshots.
// New categories in curr get IsNew: true. Categories present in prev
// but absent in curr get a negative delta.
func Diff(prev, curr Snapshot) DiffResult {
	result := DiffResult{
		PreviousTimestamp: prev.Timestamp,
		TotalDelta:        curr.TotalSize - prev.TotalSize,
		Categories:        make(map[string]CategoryDiff),
		Unchanged:         prev.Fingerprint != "" && prev.Fingerprint == curr.Fingerprint,
	}

	// Index previous categories by name.
	prevMap := make(map[string]int64, len(prev.Categories))
	for _, c := range prev.Categories {
		prevMap[c.Name] = c.Size
	}

	// Process current categories.
	for _, c := range curr.Categories {
		prevSize, existed := prevMap[c.Name]
		result.Categories[c.Name] = CategoryDiff{
			PreviousSize: prevSize,
			CurrentSize:  c.Size,
			Delta:        c.Size - prevSize,
			IsNew:        !existed,
		}
		delete(prevMap, c.Name)
	}

	// Remaining entries in prevMap are categories that were removed.
	for name, prevSize := range prevMap {
		result.Categories[name] = CategoryDiff{
			PreviousSize: prevSize,
			CurrentSize:  0,
			Delta:        -prevSize,
		}
	}

	return result
}

// FromCatalog builds a snapshot of c. Categories keep the catalog's order,
// largest first.
func FromCatalog(c *scanner.Catalog) Snapshot {
	snap := Snapshot{
		Timestamp:   c.ScannedAt,
		Roots:       c.Roots,
		TotalSize:   c.TotalSize(),
		Fingerprint: Fingerprint(c),
	}
	for _, name := range c.Categories() {
		t := c.Totals[name]
		snap.Categories = append(snap.Categories, CategorySnapshot{Name: name, Size: t.Bytes, Items: t.Count})
	}
	return snap
}

// Fingerprint hashes the catalog's artifacts: path, size and modification
// time, in path order. Two scans of an untouched tree agree.
func Fingerprint(c *scanner.Catalog) string {
	d := xxhash.New()
	var buf []byte
	for _, a := range c.Artifacts {
		buf = buf[:0]
		buf = append(buf, a.Path...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, a.Size, 10)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, a.Identity.ModTime.UnixNano(), 10)
		buf = append(buf, '\n')
		d.Write(buf)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
