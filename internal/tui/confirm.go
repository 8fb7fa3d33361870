package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// ConfirmModel asks whether one artifact may be deleted. Anything but an
// explicit yes is a no.
type ConfirmModel struct {
	artifact scanner.Artifact
	answered bool
	yes      bool
}

func NewConfirm(a scanner.Artifact) ConfirmModel {
	return ConfirmModel{artifact: a}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.answered, m.yes = true, true
		return m, tea.Quit
	case "n", "N", "q", "esc", "enter", "ctrl+c", "ctrl+d":
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	a := m.artifact
	if m.answered {
		verdict := FailStyle.Render("skip")
		if m.yes {
			verdict = SuccessStyle.Render("delete")
		}
		return fmt.Sprintf("  %s %s\n", verdict, TruncPath(a.Path, 60))
	}

	kind := "file"
	if a.IsDir {
		kind = "directory"
	}
	s := DangerStyle.Render(" CONFIRM DELETION ") + "\n\n"
	s += fmt.Sprintf("  %s\n", a.Path)
	s += fmt.Sprintf("  %s | %s | %s\n", CategoryStyle(a.Category).Render(a.Category), kind, utils.FormatSize(a.Size))
	s += HelpStyle.Render("  y delete | n skip")
	return s + "\n"
}

// Yes reports whether the user confirmed.
func (m ConfirmModel) Yes() bool {
	return m.answered && m.yes
}

// Confirm runs a ConfirmModel on the given terminal streams.
func Confirm(a scanner.Artifact, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(NewConfirm(a), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	m, ok := final.(ConfirmModel)
	return ok && m.Yes(), nil
}
