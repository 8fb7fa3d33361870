package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/patterns"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

var patternsFileFlag string

type patternJSON struct {
	Category string `json:"category"`
	Pattern  string `json:"pattern"`
	Kind     string `json:"kind"`
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the artifact patterns and global caches",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := patternsFileFlag
		if path == "" {
			path = appConfig.PatternsFile
		}
		set, err := patterns.Load(utils.ExpandHome(path))
		if err != nil {
			return err
		}
		var caches []scanner.CacheLocation
		if appConfig.GlobalCaches {
			caches = scanner.KnownCaches(utils.HomeDir())
		}

		if jsonFlag {
			out := struct {
				Patterns []patternJSON           `json:"patterns"`
				Caches   []scanner.CacheLocation `json:"caches"`
			}{Caches: caches}
			for _, p := range set.Patterns() {
				out.Patterns = append(out.Patterns, patternJSON{Category: p.Category, Pattern: p.Value, Kind: p.Kind.String()})
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		w := cmd.OutOrStdout()
		table := tablewriter.NewWriter(w)
		table.Header("Category", "Pattern", "Kind")
		for _, p := range set.Patterns() {
			if err := table.Append([]string{p.Category, p.Value, p.Kind.String()}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d patterns in %d categories\n", set.Len(), len(set.Categories()))

		if len(caches) > 0 {
			var present []string
			for _, c := range caches {
				if utils.DirExists(c.Path) {
					present = append(present, c.Path)
				}
			}
			sizes := utils.DirSizesParallel(present, appConfig.Workers)

			fmt.Fprintln(w, "\nGlobal caches:")
			for _, c := range caches {
				size := "-"
				if n, ok := sizes[c.Path]; ok {
					size = utils.FormatSize(n)
				}
				fmt.Fprintf(w, "  %-18s %-30s %10s  %s\n", c.Category, c.Name, size, strings.Replace(c.Path, utils.HomeDir(), "~", 1))
			}
		}
		return nil
	},
}

func init() {
	patternsCmd.Flags().StringVar(&patternsFileFlag, "file", "", "Pattern file to list (default patterns_file or built-in patterns)")
}
