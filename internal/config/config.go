package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/threshold"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// Config holds all devsweep configuration.
type Config struct {
	SafetyMode     string           `yaml:"safety_mode"`
	SizeThresholds ThresholdsConfig `yaml:"size_thresholds"`
	WhitelistPaths []string         `yaml:"whitelist_paths"`
	ScopeRoots     []string         `yaml:"scope_roots"`
	ScanRoots      []string         `yaml:"scan_roots"`
	Exclude        []string         `yaml:"exclude"`
	MaxDepth       int              `yaml:"max_depth"`
	Workers        int              `yaml:"workers"`
	FollowSymlinks bool             `yaml:"follow_symlinks"`
	GlobalCaches   bool             `yaml:"global_caches"`
	PatternsFile   string           `yaml:"patterns_file"`
	Logging        LoggingConfig    `yaml:"logging"`
	Audit          AuditConfig      `yaml:"audit"`
	Schedule       ScheduleConfig   `yaml:"schedule"`
	// RetentionDays is how long the log and audit files grow before they
	// are archived. Zero disables rotation.
	RetentionDays int `yaml:"retention_days"`
}

// ThresholdsConfig holds size strings such as "50MB". Values are decoded
// untyped so that numbers can be refused rather than silently accepted.
type ThresholdsConfig struct {
	MinimumFolderSize any `yaml:"minimum_folder_size"`
	MinimumFileSize   any `yaml:"minimum_file_size"`
	Maximum           any `yaml:"maximum,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

type AuditConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig controls automated/scheduled cleaning.
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Time     string `yaml:"time"`
	Mode     string `yaml:"mode"`
	Notify   bool   `yaml:"notify"`
}

// Default returns a Config with all default values populated.
func Default() *Config {
	return &Config{
		SafetyMode: "safe",
		SizeThresholds: ThresholdsConfig{
			MinimumFolderSize: "50MB",
			MinimumFileSize:   "1MB",
		},
		WhitelistPaths: []string{},
		ScopeRoots:     []string{"~"},
		ScanRoots:      []string{"~"},
		Exclude:        []string{},
		MaxDepth:       32,
		Workers:        4,
		GlobalCaches:   true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Path:   "~/.local/share/devsweep/devsweep.log",
		},
		Audit: AuditConfig{
			Path: "~/.local/share/devsweep/audit.jsonl",
		},
		Schedule: ScheduleConfig{
			Enabled:  false,
			Interval: "weekly",
			Time:     "03:30",
			Mode:     "safe",
			Notify:   true,
		},
		RetentionDays: 90,
	}
}

// DefaultPath is ~/.config/devsweep/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "devsweep", "config.yaml"), nil
}

// Load loads config from the given path. If path is empty, it uses the
// default location. If the file does not exist, it creates it with
// default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFrom(path)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Thresholds are parsed byte counts.
type Thresholds struct {
	MinFolderSize int64
	MinFileSize   int64
	Max           int64
}

// Thresholds parses the size_thresholds section. The maximum, when set,
// bounds the other two.
func (c *Config) Thresholds() (Thresholds, error) {
	t := Thresholds{Max: threshold.DefaultMax}
	if c.SizeThresholds.Maximum != nil {
		limit, err := threshold.Parse(c.SizeThresholds.Maximum)
		if err != nil {
			return t, fmt.Errorf("size_thresholds.maximum: %w", err)
		}
		t.Max = limit
	}
	p := threshold.Parser{Max: t.Max}

	var err error
	if t.MinFolderSize, err = p.Parse(c.SizeThresholds.MinimumFolderSize); err != nil {
		return t, fmt.Errorf("size_thresholds.minimum_folder_size: %w", err)
	}
	if t.MinFileSize, err = p.Parse(c.SizeThresholds.MinimumFileSize); err != nil {
		return t, fmt.Errorf("size_thresholds.minimum_file_size: %w", err)
	}
	return t, nil
}

// Policy builds the path policy. An empty scope_roots list falls back to
// the home directory.
func (c *Config) Policy() pathguard.Policy {
	p := pathguard.Policy{Whitelist: utils.ExpandPaths(c.WhitelistPaths)}
	if len(c.ScopeRoots) > 0 {
		p.ScopeRoots = utils.ExpandPaths(c.ScopeRoots)
	}
	return p
}

// Retention returns the rotation window, or zero when rotation is off.
func (c *Config) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Mode parses safety_mode.
func (c *Config) Mode() (nuker.Mode, error) {
	return nuker.ParseMode(c.SafetyMode)
}

// ExpandHome expands "~" in path.
func ExpandHome(path string) string {
	return utils.ExpandHome(path)
}

// MatchExclude reports whether path matches any of the glob patterns.
// Matching is done against the full path and against the base name; "**"
// spans directories.
func MatchExclude(patterns []string, path string) bool {
	for _, pattern := range patterns {
		pattern = utils.ExpandHome(pattern)
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
