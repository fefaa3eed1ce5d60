package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model
}

func TestModel_AdvanceAccumulates(t *testing.T) {
	m := NewModel("addresses/import", "b-1", 100, nil)
	m = update(t, m, AdvanceMsg(30))
	m = update(t, m, AdvanceMsg(20))

	view := m.View()
	if !strings.Contains(view, "50/100") {
		t.Errorf("view missing counter:\n%s", view)
	}
}

func TestModel_ReportsCounter(t *testing.T) {
	m := NewModel("addresses/import", "b-1", 100, nil)
	m = update(t, m, ReportsMsg(7))

	if !strings.Contains(m.View(), "reports: 7") {
		t.Errorf("view missing report counter:\n%s", m.View())
	}
}

func TestModel_FinalizeSnapsToTotal(t *testing.T) {
	m := NewModel("addresses/import", "b-1", 100, nil)
	m = update(t, m, AdvanceMsg(97))
	m = update(t, m, FinalizeMsg{})

	if !strings.Contains(m.View(), "100/100") {
		t.Errorf("finalize should snap to total:\n%s", m.View())
	}
}

func TestModel_DoneSuccess(t *testing.T) {
	m := NewModel("addresses/import", "b-1", 10, nil)
	next, cmd := m.Update(DoneMsg{})
	m = next.(Model)

	if cmd == nil {
		t.Error("DoneMsg should quit the program")
	}
	if !strings.Contains(m.View(), "completed") {
		t.Errorf("view missing completed state:\n%s", m.View())
	}
	if m.Err() != nil {
		t.Errorf("Err = %v, want nil", m.Err())
	}
}

func TestModel_DoneAborted(t *testing.T) {
	m := NewModel("addresses/import", "b-1", 10, nil)
	failure := errors.New("item 550 violates the import invariant")
	next, _ := m.Update(DoneMsg{Err: failure})
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "aborted") {
		t.Errorf("view missing aborted state:\n%s", view)
	}
	if !errors.Is(m.Err(), failure) {
		t.Errorf("Err = %v, want %v", m.Err(), failure)
	}
}

func TestModel_QuitCancelsRunningBatch(t *testing.T) {
	cancelled := false
	m := NewModel("addresses/import", "b-1", 10, func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)

	if !cancelled {
		t.Error("ctrl+c should cancel the running batch")
	}
	if cmd != nil {
		t.Error("program should stay up until the abort lands")
	}

	// The abort arrives; now the program quits.
	_, cmd = m.Update(DoneMsg{Err: errors.New("terminated")})
	if cmd == nil {
		t.Error("DoneMsg after cancel should quit")
	}
}

func TestModel_UnknownTotal(t *testing.T) {
	m := NewModel("addresses/import", "b-1", -1, nil)
	m = update(t, m, AdvanceMsg(42))

	if !strings.Contains(m.View(), "42 items") {
		t.Errorf("unknown total should render a plain counter:\n%s", m.View())
	}
}
