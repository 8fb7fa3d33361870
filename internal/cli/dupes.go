package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/dupes"
	"github.com/zhengda-lu/devsweep/internal/tui"
)

var dupesFlags scanFlags

var dupesCmd = &cobra.Command{
	Use:   "dupes [dirs...]",
	Short: "Find duplicate artifacts",
	Long: "Scan for artifacts and report the ones that are copies of each other, in three passes:\n" +
		"1. Group artifacts by pattern and size\n" +
		"2. Shallow fingerprint (top-level listing, or the first 4KB of a file)\n" +
		"3. Full fingerprint (recursive listing, or the whole file) only when shallow ones match\n\n" +
		"Defaults to scan_roots if no dirs are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			dupesFlags.targets = append(dupesFlags.targets, args...)
		}
		s, err := newSession(appConfig, &dupesFlags)
		if err != nil {
			return err
		}
		cat, err := s.scan(cmd)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		var checked int
		progress := !jsonFlag && !quietFlag
		groups, err := dupes.FindWithProgress(cmd.Context(), cat.Artifacts, func(path string) {
			checked++
			if progress && checked%100 == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r  Fingerprinted %d artifacts...", checked)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to find duplicates: %w", err)
		}
		if progress && checked >= 100 {
			fmt.Fprintln(cmd.ErrOrStderr())
		}

		if jsonFlag {
			return printJSON(cmd.OutOrStdout(), buildDupesJSON(groups))
		}
		if quietFlag {
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.Header("dupes"))
		printDupes(cmd.OutOrStdout(), groups)
		return nil
	},
}

func init() {
	dupesFlags.register(dupesCmd)
}
