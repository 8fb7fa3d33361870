package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zhengda-lu/devsweep/internal/logging"
	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// Warning is a configuration problem that does not stop devsweep from
// running.
type Warning struct {
	Field   string
	Message string
}

var clockTime = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validate checks the config and returns any warnings.
func (c *Config) Validate() []Warning {
	var ws []Warning
	warn := func(field, format string, args ...any) {
		ws = append(ws, Warning{Field: field, Message: field + ": " + fmt.Sprintf(format, args...)})
	}

	if _, err := nuker.ParseMode(c.SafetyMode); err != nil {
		warn("safety_mode", "%v", err)
	}
	if _, err := c.Thresholds(); err != nil {
		warn("size_thresholds", "%v", err)
	}
	if c.Workers < 1 || c.Workers > 64 {
		warn("workers", "%d is outside 1-64, the scanner default will be used", c.Workers)
	}
	if c.MaxDepth < 0 {
		warn("max_depth", "%d is negative, the scanner default will be used", c.MaxDepth)
	}
	if c.RetentionDays < 0 {
		warn("retention_days", "%d is negative, log rotation is disabled", c.RetentionDays)
	}

	scope := utils.ExpandPaths(c.ScopeRoots)
	for _, r := range utils.ExpandPaths(c.ScanRoots) {
		if !utils.DirExists(r) {
			warn("scan_roots", "%s does not exist", r)
			continue
		}
		if len(scope) > 0 && !underAny(r, scope) {
			warn("scan_roots", "%s is outside every scope root and will be refused", r)
		}
	}
	for _, w := range utils.ExpandPaths(c.WhitelistPaths) {
		if !filepath.IsAbs(w) {
			warn("whitelist_paths", "%s is relative; it is taken against the working directory", w)
		}
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			warn("exclude", "invalid glob %q", p)
		}
	}
	if c.PatternsFile != "" && !utils.FileExists(utils.ExpandHome(c.PatternsFile)) {
		warn("patterns_file", "%s does not exist, built-in patterns will be used", c.PatternsFile)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		warn("logging.level", "%v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		warn("logging.format", "unknown format %q (want text or json)", c.Logging.Format)
	}

	switch c.Schedule.Interval {
	case "daily", "weekly", "monthly":
	default:
		warn("schedule.interval", "unknown interval %q (want daily, weekly or monthly)", c.Schedule.Interval)
	}
	if !clockTime.MatchString(c.Schedule.Time) {
		warn("schedule.time", "%q is not a HH:MM time", c.Schedule.Time)
	}
	if m, err := nuker.ParseMode(c.Schedule.Mode); err != nil {
		warn("schedule.mode", "%v", err)
	} else if m == nuker.Interactive {
		warn("schedule.mode", "interactive runs cannot prompt when scheduled")
	}
	return ws
}

func underAny(path string, roots []string) bool {
	for _, r := range roots {
		if path == r || strings.HasPrefix(path, strings.TrimSuffix(r, "/")+"/") {
			return true
		}
	}
	return false
}
