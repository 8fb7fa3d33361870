package tui

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted is returned by Spin when the user presses ctrl+c.
var ErrInterrupted = errors.New("interrupted")

type statusMsg string

type workDoneMsg struct{}

type spinModel struct {
	spinner     spinner.Model
	label       string
	status      string
	done        bool
	interrupted bool
}

func newSpinModel(label string) spinModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SelectedStyle
	return spinModel{spinner: sp, label: label}
}

func (m spinModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case workDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done, m.interrupted = true, true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m spinModel) View() string {
	if m.done {
		return ""
	}
	s := m.spinner.View() + " " + m.label
	if m.status != "" {
		s += " " + DimStyle.Render(m.status)
	}
	return s + "\n"
}

// Spin shows a spinner on out while work runs. work reports progress
// through status. On ctrl+c, cancel is called and Spin still waits for
// work to return before reporting ErrInterrupted.
func Spin(in io.Reader, out io.Writer, label string, cancel context.CancelFunc, work func(status func(string)) error) error {
	p := tea.NewProgram(newSpinModel(label), tea.WithInput(in), tea.WithOutput(out))

	done := make(chan error, 1)
	go func() {
		err := work(func(s string) { p.Send(statusMsg(s)) })
		done <- err
		p.Send(workDoneMsg{})
	}()

	final, runErr := p.Run()
	interrupted := false
	if m, ok := final.(spinModel); ok && m.interrupted {
		interrupted = true
		if cancel != nil {
			cancel()
		}
	}
	workErr := <-done

	switch {
	case runErr != nil:
		return runErr
	case interrupted:
		return ErrInterrupted
	}
	return workErr
}
