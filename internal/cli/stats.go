package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/audit"
	"github.com/zhengda-lu/devsweep/internal/tui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cleanup history from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := auditPath(appConfig)
		entries, err := audit.Load(path)
		if err != nil {
			return err
		}
		stats := audit.Compute(entries)

		if jsonFlag {
			return printJSON(cmd.OutOrStdout(), statsJSON{
				Version:   version,
				Timestamp: time.Now().UTC(),
				Path:      path,
				Stats:     stats,
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, tui.Header("stats"))
		fmt.Fprintln(w)
		if err := printStats(w, stats); err != nil {
			return err
		}
		if stats.TotalCleanups == 0 {
			fmt.Fprintln(w, "Run 'devsweep clean' to get started.")
		}
		return nil
	},
}
