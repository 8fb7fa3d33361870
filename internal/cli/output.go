package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/zhengda-lu/devsweep/internal/audit"
	"github.com/zhengda-lu/devsweep/internal/dupes"
	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/scancache"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/tui"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

const pathWidth = 60

func printCatalog(w io.Writer, c *scanner.Catalog) error {
	if len(c.Artifacts) == 0 {
		fmt.Fprintln(w, "No artifacts found.")
		return nil
	}

	for _, category := range c.Categories() {
		t := c.Totals[category]
		fmt.Fprintf(w, "\n%s (%s, %d items)\n",
			tui.CategoryStyle(category).Render(category), utils.FormatSize(t.Bytes), t.Count)

		table := tablewriter.NewWriter(w)
		table.Header("Path", "Pattern", "Size")
		arts := c.ByCategory(category)
		sort.SliceStable(arts, func(i, j int) bool { return arts[i].Size > arts[j].Size })
		for _, a := range arts {
			if err := table.Append([]string{tui.TruncPath(a.Path, pathWidth), a.Pattern, utils.FormatSize(a.Size)}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nTotal reclaimable: %s in %d items\n", utils.FormatSize(c.TotalSize()), len(c.Artifacts))
	return nil
}

func printTop(w io.Writer, c *scanner.Catalog, n int) error {
	top := c.Top(n)
	if len(top) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nLargest %d:\n", len(top))
	table := tablewriter.NewWriter(w)
	table.Header("#", "Path", "Category", "Size")
	for i, a := range top {
		if err := table.Append([]string{strconv.Itoa(i + 1), tui.TruncPath(a.Path, pathWidth), a.Category, utils.FormatSize(a.Size)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func printWarnings(w io.Writer, warnings []scanner.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", tui.WarnStyle.Render(fmt.Sprintf("%d warnings during scan:", len(warnings))))
	for _, warn := range warnings {
		fmt.Fprintf(w, "  %s\n", warn.Error())
	}
}

func printDiff(w io.Writer, diff scancache.DiffResult) {
	if diff.Unchanged {
		fmt.Fprintf(w, "\nNo changes since last scan (%s).\n", humanize.Time(diff.PreviousTimestamp))
		return
	}
	fmt.Fprintf(w, "\nSince last scan (%s): %s\n", humanize.Time(diff.PreviousTimestamp), formatDelta(diff.TotalDelta))

	names := make([]string, 0, len(diff.Categories))
	for name := range diff.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := diff.Categories[name]
		switch {
		case d.IsNew:
			fmt.Fprintf(w, "  %-28s new, %s\n", name, utils.FormatSize(d.CurrentSize))
		case d.Removed():
			fmt.Fprintf(w, "  %-28s gone, was %s\n", name, utils.FormatSize(d.PreviousSize))
		case d.Delta != 0:
			fmt.Fprintf(w, "  %-28s %s\n", name, formatDelta(d.Delta))
		}
	}
}

func formatDelta(delta int64) string {
	switch {
	case delta > 0:
		return "+" + utils.FormatSize(delta)
	case delta < 0:
		return "-" + utils.FormatSize(-delta)
	default:
		return "no change"
	}
}

func printDupes(w io.Writer, groups []dupes.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No duplicate artifacts found.")
		return
	}
	var waste int64
	for i, g := range groups {
		waste += g.Wasted()
		fmt.Fprintf(w, "\nGroup %d: %s, %s each, %s wasted\n", i+1, g.Pattern, utils.FormatSize(g.Size), utils.FormatSize(g.Wasted()))
		for _, p := range g.Paths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	fmt.Fprintf(w, "\n%d duplicate groups, %s reclaimable by keeping one copy of each.\n", len(groups), utils.FormatSize(waste))
}

func outcomeLine(o nuker.Outcome) string {
	path := tui.TruncPath(o.Artifact.Path, pathWidth)
	switch o.Kind {
	case nuker.Deleted:
		return fmt.Sprintf("%s %s (%s)", tui.SuccessStyle.Render("deleted"), path, utils.FormatSize(o.Freed))
	case nuker.SkippedDryRun:
		return fmt.Sprintf("%s %s (%s)", tui.DimStyle.Render("would delete"), path, utils.FormatSize(o.Artifact.Size))
	case nuker.SkippedStale:
		return fmt.Sprintf("%s %s: %s", tui.WarnStyle.Render("skipped"), path, reasonText(o.Reason))
	case nuker.Rejected:
		return fmt.Sprintf("%s %s: %s", tui.DangerStyle.Render("rejected"), path, reasonText(o.Reason))
	default:
		return fmt.Sprintf("%s %s: %s", tui.FailStyle.Render("failed"), path, reasonText(o.Reason))
	}
}

func reasonText(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, nuker.ErrUserDeclined) {
		return "declined"
	}
	// The line already shows the path; the audit log keeps the full reason.
	if kind := pathguard.KindOf(err); kind != nil {
		return kind.Error()
	}
	return err.Error()
}

func printSummary(w io.Writer, mode nuker.Mode, s nuker.Summary) {
	if mode == nuker.DryRun {
		fmt.Fprintf(w, "\nDry run: %d items would be deleted. Nothing was removed.\n", s.Skipped)
		return
	}
	parts := []string{fmt.Sprintf("%d deleted", s.Deleted)}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.Rejected > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", s.Rejected))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	fmt.Fprintf(w, "\n%s. Freed %s.\n", strings.Join(parts, ", "), utils.FormatSize(s.Freed))
}

func printStats(w io.Writer, s audit.Stats) error {
	if s.TotalCleanups == 0 && len(s.Recent) == 0 {
		fmt.Fprintln(w, "No cleanups recorded yet.")
		return nil
	}
	fmt.Fprintf(w, "Total freed: %s across %d deletions in %d runs\n\n",
		utils.FormatSize(s.TotalFreed), s.TotalCleanups, s.Runs)

	if len(s.ByCategory) > 0 {
		names := make([]string, 0, len(s.ByCategory))
		for name := range s.ByCategory {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			a, b := s.ByCategory[names[i]], s.ByCategory[names[j]]
			if a.BytesFreed != b.BytesFreed {
				return a.BytesFreed > b.BytesFreed
			}
			return names[i] < names[j]
		})
		table := tablewriter.NewWriter(w)
		table.Header("Category", "Freed", "Deletions")
		for _, name := range names {
			cs := s.ByCategory[name]
			if err := table.Append([]string{name, utils.FormatSize(cs.BytesFreed), strconv.Itoa(cs.Cleanups)}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(s.Recent) > 0 {
		fmt.Fprintln(w, "\nRecent:")
		for _, e := range s.Recent {
			fmt.Fprintf(w, "  %-16s %-16s %s %s\n",
				humanize.Time(e.Timestamp), e.Action, tui.TruncPath(e.Path, pathWidth), utils.FormatSize(e.Size))
		}
	}
	return nil
}
