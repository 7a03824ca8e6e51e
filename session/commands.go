package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mudpuppy/mudpuppy/command"
	"github.com/mudpuppy/mudpuppy/ids"
	"github.com/mudpuppy/mudpuppy/timerwheel"
)

// hostAdapter implements command.Host against a *Session, translating
// between the session's real (context-aware, typed-handle) API and the
// string-in/string-out shape the built-in command table expects.
type hostAdapter struct {
	s *Session
}

var _ command.Host = hostAdapter{}

func (h hostAdapter) Status(verbose bool) []string {
	s := h.s
	lines := []string{fmt.Sprintf("session %d: %s", s.id, s.State())}
	if verbose {
		info := s.StreamInfo()
		lines = append(lines,
			fmt.Sprintf("mud: %s (%s:%d)", s.mud.Name, s.mud.Host, s.mud.Port),
			fmt.Sprintf("output buffer: %d/%d lines", len(s.Output()), OutputCapacity),
		)
		if s.State() == Connected {
			lines = append(lines, fmt.Sprintf("peer: %s tls=%v", info.PeerAddr, info.TLS))
		}
	}
	return lines
}

func (h hostAdapter) Connect() error    { return h.s.Connect(context.Background()) }
func (h hostAdapter) Disconnect() error { return h.s.Disconnect() }
func (h hostAdapter) Quit()             { h.s.Disconnect() }

func (h hostAdapter) Reload() error {
	if h.s.engine == nil {
		return fmt.Errorf("no script engine loaded")
	}
	return h.s.engine.Reload()
}

func (h hostAdapter) AddAlias(pattern, expansion string) (string, error) {
	hdl, err := h.s.AddAlias("/alias", pattern, expansion)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", hdl), nil
}

func (h hostAdapter) AddTrigger(pattern string, gag, promptOnly bool) (string, error) {
	hdl, err := h.s.AddTriggerRule("/trigger", pattern, gag, true, promptOnly, TriggerCallbacks{})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", hdl), nil
}

func (h hostAdapter) AddTimer(durationMS int, maxTicks int) (string, error) {
	hdl := h.s.AddTimer("/timer", time.Duration(durationMS)*time.Millisecond, maxTicks, func(ids.Handle, timerwheel.FocusHint) {})
	return fmt.Sprintf("%d", hdl), nil
}

func (h hostAdapter) BindingsList() []string {
	// Keybindings live in the config snapshot, which Session doesn't
	// hold directly (config is an external collaborator's immutable
	// snapshot), so this returns a fixed note pointing there instead of
	// a binding list; the TUI's own binding table is what actually
	// renders keybindings to the user.
	return []string{"(keybindings are reported by the active config snapshot)"}
}

func (h hostAdapter) Eval(expr string) (string, error) {
	if h.s.engine == nil {
		return "", fmt.Errorf("no script engine loaded")
	}
	return h.s.engine.Eval(expr)
}
