package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/dupes"
	"github.com/zhengda-lu/devsweep/internal/scancache"
	"github.com/zhengda-lu/devsweep/internal/trends"
	"github.com/zhengda-lu/devsweep/internal/tui"
)

var (
	scanFlagSet scanFlags
	scanTop     int
	scanDupes   bool
	scanNoSave  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for development artifacts and reclaimable space",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(appConfig, &scanFlagSet)
		if err != nil {
			return err
		}
		cat, err := s.scan(cmd)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		var diff *scancache.DiffResult
		snap := scancache.FromCatalog(cat)
		cachePath := scancache.DefaultPath()
		prev, err := scancache.Load(cachePath)
		switch {
		case err == nil:
			d := scancache.Diff(prev, snap)
			diff = &d
		case !errors.Is(err, fs.ErrNotExist):
			logger.Warn("ignoring unreadable scan snapshot", "path", cachePath, "error", err)
		}
		if !scanNoSave {
			if err := scancache.Save(cachePath, snap); err != nil {
				logger.Warn("failed to save scan snapshot", "path", cachePath, "error", err)
			}
			recordTrend(cmd.Context(), trends.EventScan, snap.TotalSize, 0)
		}

		var groups []dupes.Group
		if scanDupes {
			if groups, err = dupes.Find(cmd.Context(), cat.Artifacts); err != nil {
				return err
			}
		}

		if jsonFlag {
			res := buildScanJSON(cat, diff)
			if scanDupes {
				res.Dupes = buildDupeGroups(groups)
			}
			return printJSON(cmd.OutOrStdout(), res)
		}
		if quietFlag {
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, tui.Header("scan"))
		if err := printCatalog(w, cat); err != nil {
			return err
		}
		if scanTop > 0 {
			if err := printTop(w, cat, scanTop); err != nil {
				return err
			}
		}
		printWarnings(cmd.ErrOrStderr(), cat.Warnings)
		if diff != nil {
			printDiff(w, *diff)
		}
		if scanDupes {
			fmt.Fprintln(w)
			printDupes(w, groups)
		}
		return nil
	},
}

func init() {
	scanFlagSet.register(scanCmd)
	scanCmd.Flags().IntVar(&scanTop, "top", 10, "Show the N largest artifacts (0 to hide)")
	scanCmd.Flags().BoolVar(&scanDupes, "dupes", false, "Also report duplicate artifacts")
	scanCmd.Flags().BoolVar(&scanNoSave, "no-save", false, "Do not update the last-scan snapshot")
}
