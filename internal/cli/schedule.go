package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/schedule"
)

var (
	scheduleTime     string
	scheduleInterval string
	scheduleMode     string
	schedulePrint    bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled automatic cleaning",
	Long:  "Enable, disable, or check the status of scheduled automatic cleaning via macOS LaunchAgent.",
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable scheduled cleaning",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := scheduleOptions()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if schedulePrint {
			plist, err := schedule.GeneratePlist(opts)
			if err != nil {
				return err
			}
			fmt.Fprint(w, plist)
			return nil
		}

		path := schedule.DefaultPath()
		fmt.Fprintf(w, "Installing LaunchAgent for %s %s cleanup at %s...\n", opts.Interval, opts.Mode, opts.Time)
		if err := schedule.Install(path, opts); err != nil {
			return fmt.Errorf("failed to install schedule: %w", err)
		}

		appConfig.Schedule.Enabled = true
		appConfig.Schedule.Time = opts.Time
		appConfig.Schedule.Interval = opts.Interval
		appConfig.Schedule.Mode = opts.Mode.String()
		if p, err := resolvedConfigPath(); err == nil {
			if err := appConfig.Save(p); err != nil {
				logger.Warn("failed to save schedule to config", "path", p, "error", err)
			}
		}

		if err := launchctl("bootstrap", path); err != nil {
			// A loaded agent has to be booted out before it picks up the new plist.
			_ = launchctl("bootout", path)
			if err := launchctl("bootstrap", path); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: plist written but launchctl bootstrap failed: %v\n", err)
				fmt.Fprintf(w, "You may need to run: launchctl bootstrap gui/%s %s\n", currentUID(), path)
				return nil
			}
		}

		fmt.Fprintln(w, "Scheduled cleaning enabled.")
		fmt.Fprintf(w, "  Schedule: %s at %s\n", opts.Interval, opts.Time)
		fmt.Fprintf(w, "  Mode:     %s\n", opts.Mode)
		fmt.Fprintf(w, "  Plist:    %s\n", path)
		return nil
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable scheduled cleaning",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := schedule.DefaultPath()
		w := cmd.OutOrStdout()

		if !schedule.Status(path) {
			fmt.Fprintln(w, "Scheduled cleaning is not currently enabled.")
			return nil
		}

		if err := launchctl("bootout", path); err != nil {
			msg := err.Error()
			if !strings.Contains(msg, "not find") && !strings.Contains(msg, "No such") {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: launchctl bootout failed: %v\n", err)
			}
		}
		if err := schedule.Uninstall(path); err != nil {
			return fmt.Errorf("failed to remove schedule: %w", err)
		}

		appConfig.Schedule.Enabled = false
		if p, err := resolvedConfigPath(); err == nil {
			if err := appConfig.Save(p); err != nil {
				logger.Warn("failed to save schedule to config", "path", p, "error", err)
			}
		}
		fmt.Fprintln(w, "Scheduled cleaning disabled.")
		return nil
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduled cleaning status",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := schedule.DefaultPath()
		st := currentScheduleStatus(time.Now())
		if jsonFlag {
			return printJSON(cmd.OutOrStdout(), st)
		}

		w := cmd.OutOrStdout()
		if st.Installed {
			fmt.Fprintln(w, "Scheduled cleaning: enabled")
			fmt.Fprintf(w, "  Schedule: %s at %s\n", st.Interval, st.Time)
			fmt.Fprintf(w, "  Mode:     %s\n", st.Mode)
			if st.NextRun != nil {
				fmt.Fprintf(w, "  Next run: %s (%s)\n", st.NextRun.Format("Mon 2006-01-02 15:04"), humanize.Time(*st.NextRun))
			}
			fmt.Fprintf(w, "  Notify:   %v\n", appConfig.Schedule.Notify)
			fmt.Fprintf(w, "  Plist:    %s\n", path)
		} else {
			fmt.Fprintln(w, "Scheduled cleaning: disabled")
			fmt.Fprintln(w, "  Run 'devsweep schedule enable' to set up automatic cleaning.")
		}
		return nil
	},
}

// scheduleOptions merges the schedule flags over the config.
func scheduleOptions() (schedule.Options, error) {
	opts := schedule.Options{
		Time:       appConfig.Schedule.Time,
		Interval:   appConfig.Schedule.Interval,
		ConfigPath: configPath,
	}
	if scheduleTime != "" {
		opts.Time = scheduleTime
	}
	if scheduleInterval != "" {
		opts.Interval = scheduleInterval
	}
	modeName := appConfig.Schedule.Mode
	if scheduleMode != "" {
		modeName = scheduleMode
	}
	mode, err := nuker.ParseMode(modeName)
	if err != nil {
		return opts, err
	}
	if mode == nuker.Interactive {
		return opts, fmt.Errorf("interactive mode cannot be scheduled")
	}
	opts.Mode = mode
	return opts, nil
}

func currentScheduleStatus(now time.Time) scheduleStatusJSON {
	st := scheduleStatusJSON{
		Installed: schedule.Status(schedule.DefaultPath()),
		Enabled:   appConfig.Schedule.Enabled,
		Interval:  appConfig.Schedule.Interval,
		Time:      appConfig.Schedule.Time,
		Mode:      appConfig.Schedule.Mode,
	}
	if st.Installed {
		next, err := schedule.NextRun(schedule.Options{Time: st.Time, Interval: st.Interval}, now)
		if err != nil {
			logger.Warn("cannot compute next scheduled run", "error", err)
		} else {
			st.NextRun = &next
		}
	}
	return st
}

func launchctl(action, path string) error {
	out, err := exec.Command("launchctl", action, "gui/"+currentUID(), path).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("launchctl %s: %w: %s", action, err, msg)
		}
		return fmt.Errorf("launchctl %s: %w", action, err)
	}
	return nil
}

// currentUID returns the current user's UID as a string.
func currentUID() string {
	return strconv.Itoa(os.Getuid())
}

func init() {
	f := scheduleEnableCmd.Flags()
	f.StringVar(&scheduleTime, "time", "", "Time of day to run, HH:MM (default schedule.time)")
	f.StringVar(&scheduleInterval, "interval", "", "daily, weekly or monthly (default schedule.interval)")
	f.StringVar(&scheduleMode, "mode", "", "Safety mode for scheduled runs: dry_run, safe or force (default schedule.mode)")
	f.BoolVar(&schedulePrint, "print", false, "Print the LaunchAgent plist instead of installing it")
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleDisableCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
}
