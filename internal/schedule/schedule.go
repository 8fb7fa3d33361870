// Package schedule manages the LaunchAgent that runs devsweep clean on a
// calendar interval.
package schedule

import (
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/zhengda-lu/devsweep/internal/nuker"
)

const (
	// Label is the LaunchAgent label and plist base name.
	Label    = "com.devsweep.clean"
	plistTpl = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>{{range .Args}}
		<string>{{xml .}}</string>{{end}}
	</array>
	<key>StartCalendarInterval</key>
	<dict>
		<key>Hour</key>
		<integer>{{.Hour}}</integer>
		<key>Minute</key>
		<integer>{{.Minute}}</integer>{{if .Weekday}}
		<key>Weekday</key>
		<integer>{{.Weekday}}</integer>{{end}}{{if .Day}}
		<key>Day</key>
		<integer>{{.Day}}</integer>{{end}}
	</dict>
	<key>StandardOutPath</key>
	<string>{{xml .LogPath}}</string>
	<key>StandardErrorPath</key>
	<string>{{xml .LogPath}}</string>
</dict>
</plist>
`
)

var tmpl = template.Must(template.New("plist").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(plistTpl))

// Options describes a scheduled run.
type Options struct {
	Time     string // "HH:MM"
	Interval string // daily, weekly or monthly
	Mode     nuker.Mode
	// Binary defaults to the running executable.
	Binary string
	// ConfigPath is passed through as --config when set.
	ConfigPath string
	// LogPath receives the job's stdout and stderr.
	LogPath string
}

// plistData holds the template fields for plist generation.
type plistData struct {
	Label   string
	Args    []string
	Hour    int
	Minute  int
	Weekday int // 1 = Monday; 0 omits the key
	Day     int // day of month; 0 omits the key
	LogPath string
}

// DefaultPath returns the default LaunchAgent plist file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("Library", "LaunchAgents", Label+".plist")
	}
	return filepath.Join(home, "Library", "LaunchAgents", Label+".plist")
}

// BinaryPath returns the path to the devsweep binary. It first checks the
// currently running executable, then falls back to a well-known install path.
func BinaryPath() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return "/usr/local/bin/devsweep"
}

// logPath returns the default path for LaunchAgent log output.
func logPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/devsweep-schedule.log"
	}
	return filepath.Join(home, ".local", "share", "devsweep", "schedule.log")
}

// parseTime splits a "HH:MM" string into hour and minute integers.
func parseTime(timeStr string) (int, int, error) {
	parts := strings.SplitN(timeStr, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q: must be 0-23", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q: must be 0-59", timeStr)
	}
	return hour, minute, nil
}

// calendar maps an interval to the Weekday and Day keys: daily sets
// neither, weekly runs on Monday and monthly on the first.
func calendar(interval string) (weekday, day int, err error) {
	switch strings.ToLower(interval) {
	case "daily":
		return 0, 0, nil
	case "weekly":
		return 1, 0, nil
	case "monthly":
		return 0, 1, nil
	}
	return 0, 0, fmt.Errorf("invalid interval %q: must be daily, weekly or monthly", interval)
}

// Calendar is the StartCalendarInterval of a job.
type Calendar struct {
	Hour    int
	Minute  int
	Weekday int // 1 = Monday; 0 means every day
	Day     int // day of month; 0 means every day
}

// Calendar validates the time and interval of o.
func (o Options) Calendar() (Calendar, error) {
	hour, minute, err := parseTime(o.Time)
	if err != nil {
		return Calendar{}, err
	}
	weekday, day, err := calendar(o.Interval)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{Hour: hour, Minute: minute, Weekday: weekday, Day: day}, nil
}

// Next returns the first run strictly after now, in now's location.
func (c Calendar) Next(now time.Time) time.Time {
	loc := now.Location()
	if c.Day > 0 {
		next := time.Date(now.Year(), now.Month(), c.Day, c.Hour, c.Minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(now.Year(), now.Month()+1, c.Day, c.Hour, c.Minute, 0, 0, loc)
		}
		return next
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, loc)
	step := 1
	if c.Weekday > 0 {
		next = next.AddDate(0, 0, (c.Weekday-int(now.Weekday())+7)%7)
		step = 7
	}
	if !next.After(now) {
		next = next.AddDate(0, 0, step)
	}
	return next
}

// NextRun returns when a job scheduled with o next fires after now.
func NextRun(o Options, now time.Time) (time.Time, error) {
	c, err := o.Calendar()
	if err != nil {
		return time.Time{}, err
	}
	return c.Next(now), nil
}

// Args returns the command line the job runs.
func (o Options) Args() []string {
	bin := o.Binary
	if bin == "" {
		bin = BinaryPath()
	}
	args := []string{bin, "clean", "--mode", o.Mode.String(), "--quiet"}
	if o.ConfigPath != "" {
		args = append(args, "--config", o.ConfigPath)
	}
	return args
}

// GeneratePlist generates the LaunchAgent plist XML for o. Interactive
// mode is refused since nobody is there to answer.
func GeneratePlist(o Options) (string, error) {
	if o.Mode == nuker.Interactive {
		return "", fmt.Errorf("interactive mode cannot be scheduled")
	}
	c, err := o.Calendar()
	if err != nil {
		return "", err
	}

	data := plistData{
		Label:   Label,
		Args:    o.Args(),
		Hour:    c.Hour,
		Minute:  c.Minute,
		Weekday: c.Weekday,
		Day:     c.Day,
		LogPath: o.LogPath,
	}
	if data.LogPath == "" {
		data.LogPath = logPath()
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render plist: %w", err)
	}
	return buf.String(), nil
}

func xmlEscape(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Install writes the LaunchAgent plist file to the given path.
// It only writes the file; loading via launchctl is the caller's
// responsibility (e.g., the CLI layer).
func Install(path string, o Options) error {
	plist, err := GeneratePlist(o)
	if err != nil {
		return fmt.Errorf("failed to generate plist: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create LaunchAgents directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(plist), 0o644); err != nil {
		return fmt.Errorf("failed to write plist file: %w", err)
	}

	return nil
}

// Uninstall removes the LaunchAgent plist file. Unloading via launchctl
// is the caller's responsibility.
func Uninstall(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil // already removed
		}
		return fmt.Errorf("failed to remove plist file: %w", err)
	}
	return nil
}

// Status checks whether the LaunchAgent plist file exists at the given path.
func Status(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Notify sends a macOS notification via osascript.
func Notify(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
