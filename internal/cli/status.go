package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/audit"
	"github.com/zhengda-lu/devsweep/internal/scancache"
	"github.com/zhengda-lu/devsweep/internal/trends"
	"github.com/zhengda-lu/devsweep/internal/tui"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

const barWidth = 30

var statusWindow string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show disk usage, schedule and cleanup totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		home := utils.HomeDir()
		now := time.Now()
		st := statusJSON{
			Version:   version,
			Timestamp: now.UTC(),
			Schedule:  currentScheduleStatus(now),
			Audit:     auditStatusJSON{Path: auditPath(appConfig)},
		}

		if usage, err := disk.UsageWithContext(cmd.Context(), home); err == nil {
			st.Disk = &diskJSON{
				Path:        home,
				Total:       usage.Total,
				Free:        usage.Free,
				Used:        usage.Used,
				UsedPercent: usage.UsedPercent,
			}
		} else {
			logger.Warn("disk usage unavailable", "path", home, "error", err)
		}

		entries, err := audit.Load(st.Audit.Path)
		if err != nil {
			logger.Warn("audit log unreadable", "path", st.Audit.Path, "error", err)
		}
		stats := audit.Compute(entries)
		st.Audit.TotalFreed = stats.TotalFreed
		st.Audit.TotalCleanups = stats.TotalCleanups
		st.Audit.Runs = stats.Runs

		if snap, err := scancache.Load(scancache.DefaultPath()); err == nil {
			st.LastScan = &snap
		}

		window, err := trends.ParseDuration(statusWindow)
		if err != nil {
			return fmt.Errorf("invalid --window: %w", err)
		}
		samples, err := trends.NewStore(trends.DefaultPath()).Since(window, time.Now())
		if err != nil {
			logger.Warn("disk trends unreadable", "error", err)
		}
		if len(samples) > 0 {
			f := trends.Predict(samples, time.Now())
			st.Forecast = &f
			st.Samples = len(samples)
		}

		if jsonFlag {
			return printJSON(cmd.OutOrStdout(), st)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, tui.Header("status"))
		fmt.Fprintln(w)
		if d := st.Disk; d != nil {
			fmt.Fprintf(w, "  Disk      %s %.0f%%\n", tui.ProgressBar(d.UsedPercent/100, barWidth), d.UsedPercent)
			fmt.Fprintf(w, "            %s used of %s, %s free\n",
				humanize.IBytes(d.Used), humanize.IBytes(d.Total), humanize.IBytes(d.Free))
		}
		if st.LastScan != nil {
			fmt.Fprintf(w, "  Last scan %s, %s reclaimable in %d categories\n",
				humanize.Time(st.LastScan.Timestamp), utils.FormatSize(st.LastScan.TotalSize), len(st.LastScan.Categories))
		} else {
			fmt.Fprintln(w, "  Last scan never")
		}
		fmt.Fprintf(w, "  Cleaned   %s in %d deletions over %d runs\n",
			utils.FormatSize(st.Audit.TotalFreed), st.Audit.TotalCleanups, st.Audit.Runs)
		if f := st.Forecast; f != nil {
			switch {
			case f.DaysUntilFull >= 0:
				fmt.Fprintf(w, "  Trend     +%s/day, full around %s (%s confidence, %d samples)\n",
					utils.FormatSize(f.GrowthPerDay), f.ProjectedDate, f.Confidence, st.Samples)
			default:
				fmt.Fprintf(w, "  Trend     not growing (%d samples over %s)\n", st.Samples, statusWindow)
			}
		}
		if st.Schedule.Installed {
			fmt.Fprintf(w, "  Schedule  %s at %s (%s)", st.Schedule.Interval, st.Schedule.Time, st.Schedule.Mode)
			if next := st.Schedule.NextRun; next != nil {
				fmt.Fprintf(w, ", next %s", humanize.Time(*next))
			}
			fmt.Fprintln(w)
		} else {
			fmt.Fprintln(w, "  Schedule  disabled")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusWindow, "window", "30d", "How far back the disk trend looks (e.g. 7d, 90d)")
}
