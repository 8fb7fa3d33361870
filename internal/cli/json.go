package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/zhengda-lu/devsweep/internal/audit"
	"github.com/zhengda-lu/devsweep/internal/dupes"
	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/scancache"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/trends"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Scan JSON types
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version    string                `json:"version"`
	Timestamp  time.Time             `json:"timestamp"`
	Roots      []string              `json:"roots"`
	Categories []scanCategoryJSON    `json:"categories"`
	TotalSize  int64                 `json:"total_size"`
	TotalItems int                   `json:"total_items"`
	Warnings   []scanner.Warning     `json:"warnings,omitempty"`
	Diff       *scancache.DiffResult `json:"diff,omitempty"`
	Dupes      []dupeGroupJSON       `json:"dupes,omitempty"`
}

type scanCategoryJSON struct {
	Name      string             `json:"name"`
	Size      int64              `json:"size"`
	Items     int                `json:"items"`
	Artifacts []scanner.Artifact `json:"artifacts"`
}

// buildScanJSON lays the catalog out by category, largest first.
func buildScanJSON(c *scanner.Catalog, diff *scancache.DiffResult) scanJSON {
	categories := make([]scanCategoryJSON, 0, len(c.Totals))
	for _, name := range c.Categories() {
		t := c.Totals[name]
		categories = append(categories, scanCategoryJSON{
			Name:      name,
			Size:      t.Bytes,
			Items:     t.Count,
			Artifacts: c.ByCategory(name),
		})
	}
	return scanJSON{
		Version:    version,
		Timestamp:  c.ScannedAt.UTC(),
		Roots:      c.Roots,
		Categories: categories,
		TotalSize:  c.TotalSize(),
		TotalItems: len(c.Artifacts),
		Warnings:   c.Warnings,
		Diff:       diff,
	}
}

// ---------------------------------------------------------------------------
// Clean JSON type
// ---------------------------------------------------------------------------

type cleanJSON struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"run_id"`
	Mode      nuker.Mode      `json:"mode"`
	Outcomes  []nuker.Outcome `json:"outcomes"`
	Summary   nuker.Summary   `json:"summary"`
	Error     string          `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Dupes JSON types
// ---------------------------------------------------------------------------

type dupesJSON struct {
	Version    string          `json:"version"`
	Timestamp  time.Time       `json:"timestamp"`
	Groups     []dupeGroupJSON `json:"groups"`
	TotalItems int             `json:"total_items"`
	TotalWaste int64           `json:"total_waste"`
}

type dupeGroupJSON struct {
	Pattern string   `json:"pattern"`
	Size    int64    `json:"size"`
	Hash    string   `json:"hash"`
	Wasted  int64    `json:"wasted"`
	Paths   []string `json:"paths"`
}

func buildDupeGroups(groups []dupes.Group) []dupeGroupJSON {
	out := make([]dupeGroupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, dupeGroupJSON{
			Pattern: g.Pattern,
			Size:    g.Size,
			Hash:    g.Hash,
			Wasted:  g.Wasted(),
			Paths:   g.Paths,
		})
	}
	return out
}

// buildDupesJSON converts duplicate groups into a JSON-serializable structure.
func buildDupesJSON(groups []dupes.Group) dupesJSON {
	var items int
	var waste int64
	for _, g := range groups {
		items += len(g.Paths)
		waste += g.Wasted()
	}
	return dupesJSON{
		Version:    version,
		Timestamp:  time.Now().UTC(),
		Groups:     buildDupeGroups(groups),
		TotalItems: items,
		TotalWaste: waste,
	}
}

// ---------------------------------------------------------------------------
// Stats JSON type
// ---------------------------------------------------------------------------

type statsJSON struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	audit.Stats
}

// ---------------------------------------------------------------------------
// Status JSON type
// ---------------------------------------------------------------------------

type statusJSON struct {
	Version   string              `json:"version"`
	Timestamp time.Time           `json:"timestamp"`
	Disk      *diskJSON           `json:"disk,omitempty"`
	Schedule  scheduleStatusJSON  `json:"schedule"`
	Audit     auditStatusJSON     `json:"audit"`
	LastScan  *scancache.Snapshot `json:"last_scan,omitempty"`
	Forecast  *trends.Forecast    `json:"forecast,omitempty"`
	Samples   int                 `json:"samples,omitempty"`
}

type diskJSON struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

type scheduleStatusJSON struct {
	Installed bool       `json:"installed"`
	Enabled   bool       `json:"enabled"`
	Interval  string     `json:"interval"`
	Time      string     `json:"time"`
	Mode      string     `json:"mode"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

type auditStatusJSON struct {
	Path          string `json:"path"`
	TotalFreed    int64  `json:"total_freed"`
	TotalCleanups int    `json:"total_cleanups"`
	Runs          int    `json:"runs"`
}

// ---------------------------------------------------------------------------
// Watch JSON type
// ---------------------------------------------------------------------------

type watchAlertJSON struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	FreeBytes uint64    `json:"free_bytes"`
	Threshold int64     `json:"threshold"`
	Alert     bool      `json:"alert"`
	Message   string    `json:"message"`
}
