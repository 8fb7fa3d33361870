// Package audit keeps an append-only JSON Lines record of deletion
// outcomes.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// Entry is one line of the audit log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Freed     int64     `json:"freed"`
	Category  string    `json:"category"`
	Mode      string    `json:"mode"`
	Reason    string    `json:"reason,omitempty"`
}

// CategoryStats holds aggregate statistics for a single category.
type CategoryStats struct {
	BytesFreed int64 `json:"bytes_freed"`
	Cleanups   int   `json:"cleanups"`
}

// Stats holds aggregate cleanup statistics. Only deletions count toward
// the totals; Recent lists the latest entries of any action.
type Stats struct {
	TotalFreed    int64                    `json:"total_freed"`
	TotalCleanups int                      `json:"total_cleanups"`
	Runs          int                      `json:"runs"`
	ByCategory    map[string]CategoryStats `json:"by_category"`
	Recent        []Entry                  `json:"recent"`
}

// RecentLimit is how many entries Stats reports in Recent.
const RecentLimit = 5

// Log appends the outcomes of one run to the audit file.
type Log struct {
	path  string
	runID string
	mode  nuker.Mode
	now   func() time.Time

	mu sync.Mutex
}

// New creates a Log for a run in the given mode. Each Log gets a fresh
// run ID.
func New(path string, mode nuker.Mode) *Log {
	return &Log{path: path, runID: uuid.NewString(), mode: mode, now: time.Now}
}

// DefaultPath returns the default audit file location:
// ~/.local/share/devsweep/audit.jsonl
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "audit.jsonl"
	}
	return filepath.Join(home, ".local", "share", "devsweep", "audit.jsonl")
}

func (l *Log) Path() string  { return l.path }
func (l *Log) RunID() string { return l.runID }

func (l *Log) entry(o nuker.Outcome) Entry {
	e := Entry{
		Timestamp: l.now().UTC(),
		RunID:     l.runID,
		Action:    o.Kind.String(),
		Path:      o.Artifact.Path,
		Size:      o.Artifact.Size,
		Freed:     o.Freed,
		Category:  o.Artifact.Category,
		Mode:      l.mode.String(),
	}
	if o.Reason != nil {
		e.Reason = o.Reason.Error()
	}
	return e
}

// Record appends one line per outcome. The file is created 0600 and only
// ever appended to.
func (l *Log) Record(outs ...nuker.Outcome) error {
	if len(outs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, o := range outs {
		if err := enc.Encode(l.entry(o)); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return f.Close()
}

// Load reads all entries from the audit file at path. A missing file is
// an empty log. A torn final line, left by an interrupted write, is
// ignored; a malformed line anywhere else is an error.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	var (
		entries []Entry
		bad     error
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		if bad != nil {
			return nil, bad
		}
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			bad = fmt.Errorf("failed to parse audit log line %d: %w", line, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// Rotate archives the audit file at path once its oldest entry is older
// than retention. The file is renamed whole, so entries are never rewritten,
// and the next Record starts a fresh file. It returns the archive path, or
// "" when nothing was rotated. A zero retention disables rotation.
func Rotate(path string, retention time.Duration, now time.Time) (string, error) {
	if retention <= 0 {
		return "", nil
	}
	oldest, err := oldestEntry(path)
	if err != nil || oldest.IsZero() {
		return "", err
	}
	if !oldest.Before(now.Add(-retention)) {
		return "", nil
	}
	return utils.Archive(path, oldest)
}

// oldestEntry returns the timestamp of the first entry. Entries are
// appended in time order.
func oldestEntry(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return time.Time{}, fmt.Errorf("failed to parse first audit entry: %w", err)
		}
		return e.Timestamp, nil
	}
	return time.Time{}, sc.Err()
}

// Load reads the entries of this log's file.
func (l *Log) Load() ([]Entry, error) {
	return Load(l.path)
}

// Compute aggregates entries.
func Compute(entries []Entry) Stats {
	s := Stats{ByCategory: make(map[string]CategoryStats)}
	runs := make(map[string]bool)

	for _, e := range entries {
		runs[e.RunID] = true
		if e.Action != nuker.Deleted.String() {
			continue
		}
		s.TotalCleanups++
		s.TotalFreed += e.Freed

		cs := s.ByCategory[e.Category]
		cs.BytesFreed += e.Freed
		cs.Cleanups++
		s.ByCategory[e.Category] = cs
	}
	s.Runs = len(runs)

	// Sort entries by timestamp descending for recent list.
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	s.Recent = sorted[:min(RecentLimit, len(sorted))]

	return s
}

// Stats computes aggregate statistics from the audit file. An unreadable
// log yields empty stats.
func (l *Log) Stats() Stats {
	entries, err := l.Load()
	if err != nil {
		return Compute(nil)
	}
	return Compute(entries)
}
