// Package trends keeps a history of free-space samples for the volume
// devsweep cleans and projects when it will fill up.
package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

// Events that record a sample.
const (
	EventScan   = "scan"
	EventClean  = "clean"
	EventStatus = "status"
)

// Sample is the disk usage of one volume at a point in time.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	Event       string    `json:"event"`
	Path        string    `json:"path"`
	Total       uint64    `json:"total"`
	Used        uint64    `json:"used"`
	Free        uint64    `json:"free"`
	UsedPercent float64   `json:"used_percent"`
	// Reclaimable is the catalog total of the scan that took the sample.
	Reclaimable int64 `json:"reclaimable,omitempty"`
	// Freed is what the clean that took the sample deleted.
	Freed int64 `json:"freed,omitempty"`
}

// Forecast projects when the volume fills up at the observed rate.
type Forecast struct {
	GrowthPerDay  int64  `json:"growth_per_day"`
	DaysUntilFull int    `json:"days_until_full"` // -1 when usage is not growing
	ProjectedDate string `json:"projected_date,omitempty"`
	Confidence    string `json:"confidence"` // high, medium, low
}

// MaxSamples bounds the store; the oldest samples are dropped first.
const MaxSamples = 365

// Take samples the volume holding path.
func Take(ctx context.Context, path, event string) (Sample, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read disk usage for %s: %w", path, err)
	}
	return Sample{
		Timestamp:   time.Now().UTC(),
		Event:       event,
		Path:        path,
		Total:       u.Total,
		Used:        u.Used,
		Free:        u.Free,
		UsedPercent: u.UsedPercent,
	}, nil
}

// Store persists samples as a JSON array.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns ~/.local/share/devsweep/disk-trends.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "disk-trends.json"
	}
	return filepath.Join(home, ".local", "share", "devsweep", "disk-trends.json")
}

func (s *Store) Path() string { return s.path }

// Append adds a sample, keeping at most MaxSamples. An unreadable store
// is started over.
func (s *Store) Append(sample Sample) error {
	samples, err := s.Load()
	if err != nil {
		samples = nil
	}
	samples = append(samples, sample)
	if len(samples) > MaxSamples {
		samples = samples[len(samples)-MaxSamples:]
	}
	return s.save(samples)
}

// Load returns every stored sample, oldest first. A missing store is empty.
func (s *Store) Load() ([]Sample, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read disk trends: %w", err)
	}
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse disk trends: %w", err)
	}
	return samples, nil
}

// Since returns the samples no older than d before now.
func (s *Store) Since(d time.Duration, now time.Time) ([]Sample, error) {
	samples, err := s.Load()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-d)
	var out []Sample
	for _, sample := range samples {
		if !sample.Timestamp.Before(cutoff) {
			out = append(out, sample)
		}
	}
	return out, nil
}

func (s *Store) save(samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal disk trends: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write disk trends: %w", err)
	}
	return nil
}

// Predict computes the daily growth of used space between the first and
// last sample and projects the fill date from the last sample's free
// space. Fewer than two samples, or samples less than about fifteen
// minutes apart, give a low-confidence "not growing" forecast.
func Predict(samples []Sample, now time.Time) Forecast {
	flat := Forecast{DaysUntilFull: -1, Confidence: "low"}
	if len(samples) < 2 {
		return flat
	}

	first, last := samples[0], samples[len(samples)-1]
	days := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	if days < 0.01 {
		return flat
	}

	growth := int64(float64(int64(last.Used)-int64(first.Used)) / days)
	f := Forecast{GrowthPerDay: growth, Confidence: "low"}
	switch {
	case len(samples) > 30:
		f.Confidence = "high"
	case len(samples) >= 7:
		f.Confidence = "medium"
	}

	if growth <= 0 {
		f.DaysUntilFull = -1
		return f
	}
	f.DaysUntilFull = int(int64(last.Free) / growth)
	f.ProjectedDate = now.UTC().AddDate(0, 0, f.DaysUntilFull).Format("2006-01-02")
	return f
}

// ParseDuration accepts day counts such as "30d" as well as anything
// time.ParseDuration does.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q: %w", n, err)
		}
		if days < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
