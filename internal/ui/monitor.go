// Package ui renders a live view of a scheduler run in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"quanta/internal/sched"
)

type monitorModel struct {
	title   string
	events  <-chan sched.Transition
	names   func(sched.ThreadID) string
	spinner spinner.Model
	prog    progress.Model
	rows    []threadRow
	index   map[sched.ThreadID]int
	tick    uint64
	last    string
	width   int
	done    bool
}

type threadRow struct {
	id       sched.ThreadID
	priority uint
	state    sched.State
}

type transitionMsg sched.Transition
type doneMsg struct{}

// NewMonitor returns a Bubble Tea model that follows transitions until the
// channel is closed. names may be nil; it resolves display names lazily.
func NewMonitor(title string, events <-chan sched.Transition, names func(sched.ThreadID) string) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &monitorModel{
		title:   title,
		events:  events,
		names:   names,
		spinner: sp,
		prog:    prog,
		index:   make(map[sched.ThreadID]int),
		width:   80,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case transitionMsg:
		cmd := m.apply(sched.Transition(msg))
		return m, tea.Batch(cmd, m.listen())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// The run itself cannot be interrupted; stop rendering only.
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *monitorModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (tick %d)", m.title, m.tick)
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := m.width - 30
	if nameWidth < 12 {
		nameWidth = 12
	}
	for _, row := range m.rows {
		state := styleState(row.state).Render(fmt.Sprintf("%-10s", row.state))
		fmt.Fprintf(&b, "  %4d  p%d  %s %s\n", row.id, row.priority, state, truncate(m.name(row.id), nameWidth))
	}
	if m.last != "" {
		b.WriteString("\n  ")
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(truncate(m.last, m.width-2)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *monitorModel) listen() tea.Cmd {
	return func() tea.Msg {
		tr, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return transitionMsg(tr)
	}
}

func (m *monitorModel) apply(tr sched.Transition) tea.Cmd {
	m.tick = tr.Tick
	idx, ok := m.index[tr.Thread]
	if !ok {
		idx = len(m.rows)
		m.index[tr.Thread] = idx
		m.rows = append(m.rows, threadRow{id: tr.Thread})
	}
	row := &m.rows[idx]
	row.priority = tr.Priority
	row.state = tr.To
	m.last = fmt.Sprintf("%s: %d %s -> %s", tr.Reason, tr.Thread, tr.From, tr.To)

	finished := 0
	for _, r := range m.rows {
		if r.state == sched.StateTerminated {
			finished++
		}
	}
	return m.prog.SetPercent(float64(finished) / float64(len(m.rows)))
}

func (m *monitorModel) name(id sched.ThreadID) string {
	if m.names == nil {
		return ""
	}
	return m.names(id)
}

func styleState(state sched.State) lipgloss.Style {
	switch state {
	case sched.StateRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case sched.StateWaiting:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case sched.StateTerminated:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
