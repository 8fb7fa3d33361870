package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/audit"
	"github.com/zhengda-lu/devsweep/internal/config"
	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/schedule"
	"github.com/zhengda-lu/devsweep/internal/trends"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

var (
	cleanFlags       scanFlags
	cleanMode        string
	cleanDryRun      bool
	cleanInteractive bool
	cleanForce       bool
	cleanYes         bool
	cleanCategories  []string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Scan and delete development artifacts",
	Long: "Scan the targets and delete what the patterns match. Every path is re-validated\n" +
		"immediately before deletion; anything that changed since the scan is skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := resolveMode(appConfig, cleanMode, cleanDryRun, cleanInteractive, cleanForce)
		if err != nil {
			return err
		}
		if mode == nuker.Interactive && (quietFlag || jsonFlag) {
			return fmt.Errorf("interactive mode cannot be combined with --quiet or --json")
		}

		s, err := newSession(appConfig, &cleanFlags)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if quietFlag {
			out = io.Discard
		}

		cat, err := s.scan(cmd)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		arts := filterCategories(cat.Artifacts, cleanCategories)
		if len(arts) == 0 {
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), cleanJSON{Version: version, Timestamp: time.Now().UTC(), Mode: mode, Outcomes: []nuker.Outcome{}})
			}
			fmt.Fprintln(out, "Nothing to clean.")
			return nil
		}

		var total int64
		for _, a := range arts {
			total += a.Size
		}
		if !jsonFlag {
			fmt.Fprintf(out, "Found %d artifacts (%s), mode %s.\n", len(arts), utils.FormatSize(total), mode)
		}
		if mode == nuker.Safe && !cleanYes && !quietFlag && !jsonFlag && isTerminal(os.Stdin) {
			if !ask(bufio.NewReader(os.Stdin), out, fmt.Sprintf("Delete %d artifacts (%s)?", len(arts), utils.FormatSize(total))) {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}

		log := audit.New(auditPath(appConfig), mode)
		n := nuker.New(s.validator, nuker.Options{
			Mode:       mode,
			Confirm:    confirmFunc(os.Stdin, cmd.ErrOrStderr()),
			Categories: s.categories(),
			Logger:     logger.With("run_id", log.RunID()),
		})

		home := utils.HomeDir()
		before, _ := disk.Usage(home)

		var auditErr error
		outs, runErr := n.Process(cmd.Context(), arts, func(o nuker.Outcome) {
			if err := log.Record(o); err != nil && auditErr == nil {
				auditErr = err
				logger.Error("audit write failed", "path", log.Path(), "error", err)
			}
			if !jsonFlag {
				fmt.Fprintln(out, outcomeLine(o))
			}
		})
		summary := nuker.Summarize(outs)
		if mode != nuker.DryRun {
			recordTrend(cmd.Context(), trends.EventClean, 0, summary.Freed)
		}

		if jsonFlag {
			res := cleanJSON{
				Version:   version,
				Timestamp: time.Now().UTC(),
				RunID:     log.RunID(),
				Mode:      mode,
				Outcomes:  outs,
				Summary:   summary,
			}
			if runErr != nil {
				res.Error = runErr.Error()
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			printSummary(out, mode, summary)
			if after, err := disk.Usage(home); err == nil && before != nil && mode != nuker.DryRun {
				fmt.Fprintf(out, "Free space: %s -> %s\n",
					utils.FormatSize(int64(before.Free)), utils.FormatSize(int64(after.Free)))
			}
		}

		if quietFlag && appConfig.Schedule.Notify && summary.Deleted > 0 {
			msg := fmt.Sprintf("Deleted %d artifacts, freed %s", summary.Deleted, utils.FormatSize(summary.Freed))
			if err := schedule.Notify("devsweep", msg); err != nil {
				logger.Warn("notification failed", "error", err)
			}
		}

		if auditErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to write audit log: %v\n", auditErr)
		}
		if runErr != nil {
			if errors.Is(runErr, nuker.ErrProtectedInCatalog) {
				return fmt.Errorf("run halted: %w", runErr)
			}
			return runErr
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d deletions failed", summary.Failed)
		}
		return nil
	},
}

// resolveMode applies the mode flags over the configured safety mode. At
// most one of them may be given.
func resolveMode(cfg *config.Config, mode string, dryRun, interactive, force bool) (nuker.Mode, error) {
	var set []string
	if mode != "" {
		set = append(set, "--mode")
	}
	if dryRun {
		set = append(set, "--dry-run")
	}
	if interactive {
		set = append(set, "--interactive")
	}
	if force {
		set = append(set, "--force")
	}
	if len(set) > 1 {
		return nuker.DryRun, fmt.Errorf("conflicting flags: %s", strings.Join(set, ", "))
	}
	switch {
	case mode != "":
		return nuker.ParseMode(mode)
	case dryRun:
		return nuker.DryRun, nil
	case interactive:
		return nuker.Interactive, nil
	case force:
		return nuker.Force, nil
	}
	return cfg.Mode()
}

// filterCategories keeps artifacts whose category equals a filter or sits
// below it, so "python" selects "python.build" and "python.caches".
func filterCategories(arts []scanner.Artifact, filters []string) []scanner.Artifact {
	if len(filters) == 0 {
		return arts
	}
	var out []scanner.Artifact
	for _, a := range arts {
		for _, f := range filters {
			if a.Category == f || strings.HasPrefix(a.Category, f+".") {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func auditPath(cfg *config.Config) string {
	if cfg.Audit.Path != "" {
		return utils.ExpandHome(cfg.Audit.Path)
	}
	return audit.DefaultPath()
}

func init() {
	cleanFlags.register(cleanCmd)
	f := cleanCmd.Flags()
	f.StringVar(&cleanMode, "mode", "", "Safety mode: dry_run, interactive, safe or force (default safety_mode)")
	f.BoolVar(&cleanDryRun, "dry-run", false, "Show what would be deleted without deleting")
	f.BoolVar(&cleanInteractive, "interactive", false, "Confirm each artifact before deleting it")
	f.BoolVar(&cleanForce, "force", false, "Delete without any confirmation")
	f.BoolVarP(&cleanYes, "yes", "y", false, "Skip the confirmation prompt in safe mode")
	f.StringSliceVar(&cleanCategories, "category", nil, "Only clean these categories (e.g. python, javascript.dependencies)")
}
