package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/tui"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// confirmFunc picks the prompt for interactive mode: a bubbletea model on
// a terminal, a line prompt otherwise.
func confirmFunc(in *os.File, out io.Writer) nuker.ConfirmFunc {
	if isTerminal(in) {
		return func(a scanner.Artifact) bool {
			yes, err := tui.Confirm(a, in, out)
			if err != nil {
				logger.Warn("confirm prompt failed", "path", a.Path, "error", err)
				return false
			}
			return yes
		}
	}
	return lineConfirm(in, out)
}

// lineConfirm asks one question per artifact on a plain line. Anything
// but y or yes declines, and so does EOF.
func lineConfirm(in io.Reader, out io.Writer) nuker.ConfirmFunc {
	r := bufio.NewReader(in)
	return func(a scanner.Artifact) bool {
		return ask(r, out, fmt.Sprintf("Delete %s (%s, %s)?", a.Path, a.Category, utils.FormatSize(a.Size)))
	}
}

func ask(r *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
