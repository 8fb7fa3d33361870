package schedule

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhengda-lu/devsweep/internal/nuker"
)

func opts(timeStr, interval string) Options {
	return Options{Time: timeStr, Interval: interval, Mode: nuker.Safe, Binary: "/usr/local/bin/devsweep", LogPath: "/tmp/devsweep-test.log"}
}

func mustPlist(t *testing.T, o Options) string {
	t.Helper()
	plist, err := GeneratePlist(o)
	if err != nil {
		t.Fatalf("GeneratePlist failed: %v", err)
	}
	return plist
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input   string
		hour    int
		minute  int
		wantErr bool
	}{
		{"10:00", 10, 0, false},
		{"0:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"09:30", 9, 30, false},
		{"24:00", 0, 0, true},
		{"10:60", 0, 0, true},
		{"-1:00", 0, 0, true},
		{"abc", 0, 0, true},
		{"10", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			hour, minute, err := parseTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTime(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseTime(%q) unexpected error: %v", tt.input, err)
				return
			}
			if hour != tt.hour {
				t.Errorf("parseTime(%q) hour = %d, want %d", tt.input, hour, tt.hour)
			}
			if minute != tt.minute {
				t.Errorf("parseTime(%q) minute = %d, want %d", tt.input, minute, tt.minute)
			}
		})
	}
}

func TestCalendar(t *testing.T) {
	tests := []struct {
		interval string
		weekday  int
		day      int
		wantErr  bool
	}{
		{"daily", 0, 0, false},
		{"Daily", 0, 0, false},
		{"weekly", 1, 0, false},
		{"Weekly", 1, 0, false},
		{"monthly", 0, 1, false},
		{"hourly", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			weekday, day, err := calendar(tt.interval)
			if tt.wantErr {
				if err == nil {
					t.Errorf("calendar(%q) expected error, got nil", tt.interval)
				}
				return
			}
			if err != nil {
				t.Fatalf("calendar(%q) unexpected error: %v", tt.interval, err)
			}
			if weekday != tt.weekday || day != tt.day {
				t.Errorf("calendar(%q) = %d, %d, want %d, %d", tt.interval, weekday, day, tt.weekday, tt.day)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	at := func(s string) time.Time {
		tm, err := time.Parse("2006-01-02 15:04", s)
		if err != nil {
			t.Fatal(err)
		}
		return tm
	}
	tests := []struct {
		name     string
		time     string
		interval string
		now      string
		want     string
	}{
		{"daily later today", "10:00", "daily", "2026-10-14 09:00", "2026-10-14 10:00"},
		{"daily already ran", "10:00", "daily", "2026-10-14 10:00", "2026-10-15 10:00"},
		{"weekly from wednesday", "03:30", "weekly", "2026-10-14 12:00", "2026-10-19 03:30"},
		{"weekly monday before time", "03:30", "weekly", "2026-10-19 01:00", "2026-10-19 03:30"},
		{"weekly monday after time", "03:30", "weekly", "2026-10-19 04:00", "2026-10-26 03:30"},
		{"monthly on the first", "08:00", "monthly", "2026-10-01 07:00", "2026-10-01 08:00"},
		{"monthly mid month", "08:00", "monthly", "2026-10-14 07:00", "2026-11-01 08:00"},
		{"monthly year end", "08:00", "monthly", "2026-12-15 07:00", "2027-01-01 08:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(Options{Time: tt.time, Interval: tt.interval}, at(tt.now))
			if err != nil {
				t.Fatalf("NextRun: %v", err)
			}
			if want := at(tt.want); !got.Equal(want) {
				t.Errorf("NextRun(%s, %s at %s) = %s, want %s", tt.interval, tt.time, tt.now, got, want)
			}
		})
	}

	if _, err := NextRun(Options{Time: "25:00", Interval: "daily"}, time.Now()); err == nil {
		t.Error("expected error for invalid time")
	}
	if _, err := NextRun(Options{Time: "10:00", Interval: "hourly"}, time.Now()); err == nil {
		t.Error("expected error for invalid interval")
	}
}

func TestGeneratePlist(t *testing.T) {
	plist := mustPlist(t, opts("10:00", "daily"))
	if !strings.Contains(plist, Label) {
		t.Error("expected label")
	}
	if !strings.Contains(plist, "<integer>10</integer>") {
		t.Error("expected hour 10")
	}
	if !strings.Contains(plist, "<integer>0</integer>") {
		t.Error("expected minute 0")
	}
	if !strings.Contains(plist, "/usr/local/bin/devsweep") {
		t.Error("expected binary path")
	}
	for _, arg := range []string{"clean", "--mode", "safe", "--quiet"} {
		if !strings.Contains(plist, "<string>"+arg+"</string>") {
			t.Errorf("expected %s argument", arg)
		}
	}
	if strings.Contains(plist, "--config") {
		t.Error("--config should be omitted when no config path is set")
	}
	// Daily should have neither a Weekday nor a Day key.
	if strings.Contains(plist, "Weekday") || strings.Contains(plist, "<key>Day</key>") {
		t.Error("daily plist should not contain Weekday or Day keys")
	}
}

func TestGeneratePlistWeekly(t *testing.T) {
	plist := mustPlist(t, opts("14:30", "weekly"))
	if !strings.Contains(plist, "<integer>14</integer>") {
		t.Error("expected hour 14")
	}
	if !strings.Contains(plist, "<integer>30</integer>") {
		t.Error("expected minute 30")
	}
	if !strings.Contains(plist, "<key>Weekday</key>\n\t\t<integer>1</integer>") {
		t.Error("expected weekday 1 (Monday)")
	}
}

func TestGeneratePlistMonthly(t *testing.T) {
	plist := mustPlist(t, opts("03:30", "monthly"))
	if !strings.Contains(plist, "<key>Day</key>\n\t\t<integer>1</integer>") {
		t.Error("expected day 1")
	}
	if strings.Contains(plist, "Weekday") {
		t.Error("monthly plist should not contain Weekday key")
	}
}

func TestGeneratePlistModeAndConfig(t *testing.T) {
	o := opts("10:00", "daily")
	o.Mode = nuker.Force
	o.ConfigPath = "/Users/me/.config/devsweep/a&b.yaml"
	plist := mustPlist(t, o)
	if !strings.Contains(plist, "<string>force</string>") {
		t.Error("expected force mode")
	}
	if !strings.Contains(plist, "a&amp;b.yaml") {
		t.Error("config path should be XML-escaped")
	}
}

func TestGeneratePlistInteractiveRefused(t *testing.T) {
	o := opts("10:00", "daily")
	o.Mode = nuker.Interactive
	if _, err := GeneratePlist(o); err == nil {
		t.Error("expected error for interactive mode")
	}
}

func TestGeneratePlistInvalid(t *testing.T) {
	if _, err := GeneratePlist(opts("invalid", "daily")); err == nil {
		t.Error("expected error for invalid time")
	}
	if _, err := GeneratePlist(opts("10:00", "yearly")); err == nil {
		t.Error("expected error for invalid interval")
	}
}

func TestGeneratePlistValidXML(t *testing.T) {
	plist := mustPlist(t, opts("10:00", "daily"))
	if !strings.HasPrefix(plist, "<?xml version=") {
		t.Error("expected XML declaration at start")
	}
	if !strings.Contains(plist, "<!DOCTYPE plist") {
		t.Error("expected DOCTYPE declaration")
	}
	if !strings.HasSuffix(strings.TrimSpace(plist), "</plist>") {
		t.Error("expected closing plist tag")
	}

	d := xml.NewDecoder(strings.NewReader(plist))
	for {
		_, err := d.Token()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("plist is not well-formed: %v", err)
			}
			break
		}
	}
}

func TestArgsDefaultBinary(t *testing.T) {
	args := Options{Mode: nuker.DryRun}.Args()
	if args[0] == "" {
		t.Error("binary should default to the running executable")
	}
	if args[3] != "dry_run" {
		t.Errorf("mode argument = %q, want dry_run", args[3])
	}
}

func TestInstallWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Label+".plist")

	if err := Install(path, opts("10:00", "daily")); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("plist file should exist: %v", err)
	}
	if len(data) == 0 {
		t.Error("plist file should not be empty")
	}
	if !strings.Contains(string(data), Label) {
		t.Error("plist content should contain label")
	}
}

func TestInstallInvalidTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Label+".plist")

	if err := Install(path, opts("bad", "daily")); err == nil {
		t.Error("Install with invalid time should return error")
	}
	if Status(path) {
		t.Error("failed Install should not leave a plist behind")
	}
}

func TestInstallCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "dir", Label+".plist")

	if err := Install(path, opts("10:00", "daily")); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("plist should exist after install")
	}
}

func TestUninstallRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Label+".plist")

	// Create a file first.
	if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Uninstall(path); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("plist should be removed after uninstall")
	}
}

func TestUninstallNonExistentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.plist")

	if err := Uninstall(path); err != nil {
		t.Errorf("Uninstall of non-existent file should not error, got: %v", err)
	}
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Label+".plist")

	if Status(path) {
		t.Error("Status should return false when plist does not exist")
	}
	if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Status(path) {
		t.Error("Status should return true when plist exists")
	}
}

func TestInstallThenUninstall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Label+".plist")

	if err := Install(path, opts("10:00", "weekly")); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if !Status(path) {
		t.Error("Status should be true after install")
	}

	if err := Uninstall(path); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if Status(path) {
		t.Error("Status should be false after uninstall")
	}
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	if path == "" {
		t.Fatal("DefaultPath should not be empty")
	}
	if !strings.Contains(path, "LaunchAgents") {
		t.Errorf("DefaultPath should contain LaunchAgents, got %q", path)
	}
	if !strings.HasSuffix(path, Label+".plist") {
		t.Errorf("DefaultPath should end with %s.plist, got %q", Label, path)
	}
}
