package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages sent into the model while the batch runs.
type (
	// AdvanceMsg advances the item counter.
	AdvanceMsg int
	// ReportsMsg adds to the merged report counter.
	ReportsMsg int
	// FinalizeMsg marks the progress display complete.
	FinalizeMsg struct{}
	// DoneMsg ends the program with the batch outcome.
	DoneMsg struct{ Err error }
)

// Model is the Bubble Tea model for a running batch.
type Model struct {
	fn      string
	batchID string
	total   int // -1 when unknown
	done    int
	reports int
	bar     progress.Model
	err     error
	state   string
	cancel  func()
	width   int
}

// NewModel creates a model for one batch run. cancel is invoked when
// the user quits mid-run; the batch observes it as context
// cancellation.
func NewModel(fn, batchID string, total int, cancel func()) Model {
	return Model{
		fn:      fn,
		batchID: batchID,
		total:   total,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		state:   "running",
		cancel:  cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.state == "running" && m.cancel != nil {
				m.cancel()
				// Stay up until DoneMsg arrives with the abort.
				return m, nil
			}
			return m, tea.Quit
		}
		return m, nil

	case AdvanceMsg:
		m.done += int(msg)
		return m, nil

	case ReportsMsg:
		m.reports += int(msg)
		return m, nil

	case FinalizeMsg:
		if m.total >= 0 {
			m.done = m.total
		}
		return m, nil

	case DoneMsg:
		m.err = msg.Err
		if msg.Err != nil {
			m.state = "aborted"
		} else {
			m.state = "completed"
		}
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("gristmill run %s", m.fn)))
	b.WriteString(LabelStyle.Render(fmt.Sprintf("  batch %s", m.batchID)))
	b.WriteString("\n\n")

	if m.total > 0 {
		frac := float64(m.done) / float64(m.total)
		if frac > 1 {
			frac = 1
		}
		b.WriteString(m.bar.ViewAs(frac))
		b.WriteString(fmt.Sprintf("  %d/%d", m.done, m.total))
	} else {
		b.WriteString(fmt.Sprintf("%d items", m.done))
	}
	b.WriteString("\n")

	reports := LabelStyle.Render(fmt.Sprintf("reports: %d", m.reports))
	if m.reports > 0 {
		reports = WarningStyle.Render(fmt.Sprintf("reports: %d", m.reports))
	}
	b.WriteString(reports)
	b.WriteString("\n")

	switch m.state {
	case "completed":
		b.WriteString(SuccessStyle.Render("completed"))
		b.WriteString("\n")
	case "aborted":
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("aborted: %v", m.err)))
		b.WriteString("\n")
	default:
		b.WriteString(HelpStyle.Render("Press q or Ctrl+C to cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

// Err returns the batch outcome captured by the final DoneMsg.
func (m Model) Err() error {
	return m.err
}

// Sink adapts a running program to the progress sink consumed by the
// orchestrator. Advance and Finalize are called from the orchestrator's
// merge goroutine; Send is safe for concurrent use.
type Sink struct {
	Program *tea.Program
	Total   int
}

// Advance implements progress.Sink.
func (s *Sink) Advance(n int) {
	s.Program.Send(AdvanceMsg(n))
}

// Finalize implements progress.Sink.
func (s *Sink) Finalize() {
	s.Program.Send(FinalizeMsg{})
}

// ReportsMerged feeds the report counter.
func (s *Sink) ReportsMerged(n int) {
	s.Program.Send(ReportsMsg(n))
}
