package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestSpinModel(t *testing.T) {
	var m tea.Model = newSpinModel("Scanning")

	m, _ = m.Update(statusMsg("/home/u/a"))
	if v := m.View(); !strings.Contains(v, "Scanning") || !strings.Contains(v, "/home/u/a") {
		t.Errorf("View() = %q, want label and status", v)
	}

	m, cmd := m.Update(workDoneMsg{})
	if cmd == nil {
		t.Fatal("finished work should quit")
	}
	if m.View() != "" {
		t.Error("finished spinner should clear its line")
	}
	if m.(spinModel).interrupted {
		t.Error("finished work is not an interrupt")
	}
}

func TestSpinModelInterrupt(t *testing.T) {
	m, cmd := newSpinModel("Scanning").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if !m.(spinModel).interrupted {
		t.Error("ctrl+c should mark the spinner interrupted")
	}
}

func TestSpinReturnsWorkError(t *testing.T) {
	boom := errors.New("boom")
	var statuses []string
	err := Spin(strings.NewReader(""), &strings.Builder{}, "Working", nil, func(status func(string)) error {
		status("step")
		statuses = append(statuses, "step")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Spin() = %v, want %v", err, boom)
	}
	if len(statuses) != 1 {
		t.Errorf("work should run once, ran %d times", len(statuses))
	}
}
