package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/schedule"
	"github.com/zhengda-lu/devsweep/internal/threshold"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

var errLowSpace = errors.New("free space below threshold")

var (
	watchFree     string
	watchPath     string
	watchInterval time.Duration
	watchOnce     bool
	watchNotify   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor disk free space",
	Long: "Poll disk free space at a configurable interval.\n" +
		"When free space drops below --free, print a warning and exit with code 1.\n" +
		"With --json, output structured alert data.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchFree == "" {
			return fmt.Errorf("--free is required (e.g., --free 10GB)")
		}
		limit, err := threshold.ParseString(watchFree)
		if err != nil {
			return fmt.Errorf("invalid --free value %q: %w", watchFree, err)
		}
		if watchInterval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}
		path := watchPath
		if path == "" {
			path = utils.HomeDir()
		}

		w := cmd.OutOrStdout()
		if !jsonFlag && !quietFlag {
			fmt.Fprintf(w, "Watching free space on %s (threshold: %s, interval: %s)\n",
				path, utils.FormatSize(limit), watchInterval)
		}

		ctx := cmd.Context()
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to check disk space: %w", err)
			}

			if int64(usage.Free) < limit {
				msg := fmt.Sprintf("free space %s on %s is below threshold %s",
					utils.FormatSize(int64(usage.Free)), path, utils.FormatSize(limit))
				logger.Warn("low disk space", "path", path, "free", usage.Free, "threshold", limit)
				if jsonFlag {
					if err := printJSON(w, watchAlertJSON{
						Version:   version,
						Timestamp: time.Now().UTC(),
						Path:      path,
						FreeBytes: usage.Free,
						Threshold: limit,
						Alert:     true,
						Message:   msg,
					}); err != nil {
						return err
					}
				} else if !quietFlag {
					fmt.Fprintf(w, "WARNING: %s\n", msg)
				}
				if watchNotify {
					if err := schedule.Notify("devsweep", msg); err != nil {
						logger.Warn("notification failed", "error", err)
					}
				}
				return errLowSpace
			}

			if !jsonFlag && !quietFlag {
				fmt.Fprintf(w, "  %s  free: %s (OK)\n", time.Now().Format("15:04:05"), utils.FormatSize(int64(usage.Free)))
			}
			if watchOnce {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchFree, "free", "", "Minimum free space threshold (e.g., 10GB, 500MB)")
	watchCmd.Flags().StringVar(&watchPath, "path", "", "Volume to watch (default home directory)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "Poll interval")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Check once and exit")
	watchCmd.Flags().BoolVar(&watchNotify, "notify", false, "Send a notification when the threshold is crossed")
}
