// Package tui is mudpuppy's thin terminal front end. Full-featured
// rendering (scrollback viewport, split panes, pickers, keybinding
// overlays) is deliberately out of scope here — a full-featured client's own
// ui package is ~3000 lines of exactly that, and the renderer here is
// treated as an external collaborator whose only obligation is to
// read a session's Output()/History() and submit lines back through
// Session.Submit/SendLine. This package borrows a Bubble Tea wiring
// shape, trimmed down to that contract.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mudpuppy/mudpuppy/registry"
	"github.com/mudpuppy/mudpuppy/session"
)

var statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)

// tickMsg drives the periodic poll of the active session's output. The
// session's reader goroutine and the bus run independently of Bubble
// Tea's update loop, so the model can't subscribe directly; it polls
// instead, mirroring a queued-message bridge in spirit if
// not in mechanism.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the root Bubble Tea model for a single focused session view.
type Model struct {
	reg *registry.Registry

	vp    viewport.Model
	input textinput.Model

	lastLen int
	width   int
	height  int
}

// New constructs a Model bound to reg. The registry's currently active
// session (registry.Active) is the one rendered. Focus changes are
// driven by the registry; there is no built-in command that switches
// focus, and this package does not switch it either.
func New(reg *registry.Registry) Model {
	ti := textinput.New()
	ti.Placeholder = "say hello"
	ti.Focus()
	ti.Prompt = "> "

	return Model{
		reg:   reg,
		vp:    viewport.New(80, 24),
		input: ti,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) activeSession() *session.Session {
	s, err := m.reg.Get(m.reg.Active())
	if err != nil {
		return nil
	}
	sess, _ := s.(*session.Session)
	return sess
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 2
		m.input.Width = msg.Width - 2
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			if s := m.activeSession(); s != nil && line != "" {
				s.Submit(line)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh re-renders the viewport content if the active session's
// output has grown since the last tick, avoiding a full re-render on
// every idle poll.
func (m *Model) refresh() {
	s := m.activeSession()
	if s == nil {
		return
	}
	out := s.Output()
	if len(out) == m.lastLen {
		return
	}
	m.lastLen = len(out)

	var b strings.Builder
	for _, line := range out {
		b.WriteString(line.Raw)
		b.WriteByte('\n')
	}
	m.vp.SetContent(b.String())
	m.vp.GotoBottom()
}

func (m Model) View() string {
	status := "no active session"
	if s := m.activeSession(); s != nil {
		status = fmt.Sprintf("session %d — %s", s.ID(), s.State())
	}
	return m.vp.View() + "\n" + statusStyle.Render(status) + "\n" + m.input.View()
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(reg *registry.Registry) error {
	p := tea.NewProgram(New(reg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
