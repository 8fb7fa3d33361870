package scanner

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// WarningKind classifies a non-fatal scan problem.
type WarningKind int

const (
	PermissionDenied WarningKind = iota
	MaxDepthExceeded
	SymlinkEscape
	Unreadable
	// Rejected marks a match that failed re-validation.
	Rejected
)

func (k WarningKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case MaxDepthExceeded:
		return "max_depth_exceeded"
	case SymlinkEscape:
		return "symlink_escape"
	case Unreadable:
		return "unreadable"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Warning is a per-entry problem that did not stop the scan.
type Warning struct {
	Path string
	Kind WarningKind
	Err  error
}

func (w Warning) Error() string {
	if w.Err == nil {
		return fmt.Sprintf("%s: %s", w.Kind, w.Path)
	}
	return fmt.Sprintf("%s: %s: %v", w.Kind, w.Path, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

func (w Warning) MarshalJSON() ([]byte, error) {
	out := struct {
		Path  string      `json:"path"`
		Kind  WarningKind `json:"kind"`
		Error string      `json:"error,omitempty"`
	}{Path: w.Path, Kind: w.Kind}
	if w.Err != nil {
		out.Error = w.Err.Error()
	}
	return json.Marshal(out)
}

func readWarning(path string, err error) Warning {
	if errors.Is(err, fs.ErrPermission) {
		return Warning{Path: path, Kind: PermissionDenied, Err: err}
	}
	return Warning{Path: path, Kind: Unreadable, Err: err}
}

// Total aggregates one category.
type Total struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Catalog is the result of a scan. Artifacts are sorted by path and never
// nested inside one another.
type Catalog struct {
	Roots     []string         `json:"roots"`
	ScannedAt time.Time        `json:"scanned_at"`
	Artifacts []Artifact       `json:"artifacts"`
	Totals    map[string]Total `json:"totals"`
	Warnings  []Warning        `json:"warnings,omitempty"`
}

// NewCatalog builds a catalog from artifacts in any order. Duplicate paths
// collapse to one entry and artifacts inside another artifact are dropped.
func NewCatalog(roots []string, artifacts []Artifact, warnings []Warning) *Catalog {
	sorted := slices.Clone(artifacts)
	slices.SortStableFunc(sorted, func(a, b Artifact) int { return strings.Compare(a.Path, b.Path) })

	kept := make([]Artifact, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, a := range sorted {
		if underAny(a.Path, seen) {
			continue
		}
		seen[a.Path] = true
		kept = append(kept, a)
	}

	totals := make(map[string]Total)
	for _, a := range kept {
		t := totals[a.Category]
		t.Count++
		t.Bytes += a.Size
		totals[a.Category] = t
	}

	ws := slices.Clone(warnings)
	slices.SortStableFunc(ws, func(a, b Warning) int {
		return cmp.Or(strings.Compare(a.Path, b.Path), cmp.Compare(a.Kind, b.Kind))
	})

	rs := slices.Clone(roots)
	slices.Sort(rs)
	return &Catalog{
		Roots:     slices.Compact(rs),
		ScannedAt: time.Now(),
		Artifacts: kept,
		Totals:    totals,
		Warnings:  ws,
	}
}

// nested reports whether path equals or sits below parent.
func nested(path, parent string) bool {
	return path == parent || strings.HasPrefix(path, parent+string(filepath.Separator))
}

// underAny reports whether path or one of its ancestors is in set.
func underAny(path string, set map[string]bool) bool {
	for {
		if set[path] {
			return true
		}
		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		path = parent
	}
}

// Merge combines catalogs from several roots.
func Merge(cats ...*Catalog) *Catalog {
	var (
		roots     []string
		artifacts []Artifact
		warnings  []Warning
	)
	for _, c := range cats {
		if c == nil {
			continue
		}
		roots = append(roots, c.Roots...)
		artifacts = append(artifacts, c.Artifacts...)
		warnings = append(warnings, c.Warnings...)
	}
	return NewCatalog(roots, artifacts, warnings)
}

func (c *Catalog) TotalSize() int64 {
	var n int64
	for _, a := range c.Artifacts {
		n += a.Size
	}
	return n
}

// Top returns the n largest artifacts, largest first. Ties keep path order.
func (c *Catalog) Top(n int) []Artifact {
	top := slices.Clone(c.Artifacts)
	slices.SortStableFunc(top, func(a, b Artifact) int { return cmp.Compare(b.Size, a.Size) })
	if n >= 0 && n < len(top) {
		top = top[:n]
	}
	return top
}

func (c *Catalog) Paths() []string {
	paths := make([]string, len(c.Artifacts))
	for i, a := range c.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Categories returns category names, largest total first.
func (c *Catalog) Categories() []string {
	names := make([]string, 0, len(c.Totals))
	for name := range c.Totals {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(c.Totals[b].Bytes, c.Totals[a].Bytes), strings.Compare(a, b))
	})
	return names
}

// ByCategory returns the artifacts of one category in path order.
func (c *Catalog) ByCategory(category string) []Artifact {
	var out []Artifact
	for _, a := range c.Artifacts {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// accumulator collects concurrent walk results keyed by canonical path.
type accumulator struct {
	mu        sync.Mutex
	artifacts map[string]Artifact
	warnings  []Warning
}

func newAccumulator() *accumulator {
	return &accumulator{artifacts: make(map[string]Artifact)}
}

func (a *accumulator) add(art Artifact) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// The same directory can be reached through several followed links.
	if prev, ok := a.artifacts[art.Path]; ok && prev.Depth <= art.Depth {
		return
	}
	a.artifacts[art.Path] = art
}

func (a *accumulator) warn(w Warning) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.warnings = append(a.warnings, w)
}

func (a *accumulator) catalog(root string) *Catalog {
	a.mu.Lock()
	defer a.mu.Unlock()
	arts := make([]Artifact, 0, len(a.artifacts))
	for _, art := range a.artifacts {
		arts = append(arts, art)
	}
	return NewCatalog([]string{root}, arts, a.warnings)
}
