package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mudpuppy/mudpuppy/bus"
	"github.com/mudpuppy/mudpuppy/gmcp"
	"github.com/mudpuppy/mudpuppy/ids"
	"github.com/mudpuppy/mudpuppy/registry"
	"github.com/mudpuppy/mudpuppy/session"
	"github.com/mudpuppy/mudpuppy/telnet"
	"github.com/mudpuppy/mudpuppy/timerwheel"
)

// scriptHost implements script.Host by bridging into the session
// registry, shared timer wheel, and event bus, the only place in the
// program allowed to hold both a *registry.Registry and a
// *session.Session concretely (everywhere else talks through
// ids.SessionID, since scripts never hold a session directly).
type scriptHost struct {
	reg    *registry.Registry
	wheel  *timerwheel.Wheel
	bus    *bus.Bus
	cancel context.CancelFunc
}

func (h *scriptHost) session(id ids.SessionID) *session.Session {
	s, err := h.reg.Get(id)
	if err != nil {
		return nil
	}
	sess, _ := s.(*session.Session)
	return sess
}

func (h *scriptHost) Print(id ids.SessionID, text string) {
	if s := h.session(id); s != nil {
		s.Print(text)
	}
}

func (h *scriptHost) Send(id ids.SessionID, text string) error {
	s := h.session(id)
	if s == nil {
		return &registry.NotFoundError{ID: id}
	}
	_, err := s.SendLine(text, true)
	return err
}

func (h *scriptHost) Connect(id ids.SessionID) error {
	s := h.session(id)
	if s == nil {
		return &registry.NotFoundError{ID: id}
	}
	return s.Connect(context.Background())
}

func (h *scriptHost) Disconnect(id ids.SessionID) error {
	s := h.session(id)
	if s == nil {
		return &registry.NotFoundError{ID: id}
	}
	return s.Disconnect()
}

func (h *scriptHost) AddTrigger(id ids.SessionID, module, pattern string, gag, stripANSI, promptOnly bool, onMatch func(groups []string), onHighlight func(raw string, groups []string) string) (ids.Handle, error) {
	s := h.session(id)
	if s == nil {
		return 0, &registry.NotFoundError{ID: id}
	}
	cbs := session.TriggerCallbacks{}
	if onMatch != nil {
		cbs.Async = onMatch
	}
	if onHighlight != nil {
		cbs.Highlight = func(line *telnet.MudLine, groups []string) *telnet.MudLine {
			line.Set(onHighlight(line.Raw, groups))
			return line
		}
	}
	return s.AddTriggerRule(module, pattern, gag, stripANSI, promptOnly, cbs)
}

func (h *scriptHost) AddAlias(id ids.SessionID, module, pattern, expansion string) (ids.Handle, error) {
	s := h.session(id)
	if s == nil {
		return 0, &registry.NotFoundError{ID: id}
	}
	return s.AddAlias(module, pattern, expansion)
}

func (h *scriptHost) RemoveTrigger(id ids.SessionID, hdl ids.Handle) {
	if s := h.session(id); s != nil {
		s.RemoveTrigger(hdl)
	}
}

func (h *scriptHost) RemoveAlias(id ids.SessionID, hdl ids.Handle) {
	if s := h.session(id); s != nil {
		s.RemoveAlias(hdl)
	}
}

func (h *scriptHost) AddTimer(module string, durationMS int, maxTicks int, onFire func(hintSessionID ids.SessionID)) ids.Handle {
	d := time.Duration(durationMS) * time.Millisecond
	return h.wheel.Schedule(module, d, maxTicks, ids.NoSession, func(_ ids.Handle, hint timerwheel.FocusHint) {
		onFire(hint.SessionID)
	})
}

func (h *scriptHost) RemoveTimer(hdl ids.Handle) { h.wheel.Remove(hdl) }
func (h *scriptHost) StopTimer(hdl ids.Handle)   { h.wheel.Stop(hdl) }
func (h *scriptHost) ResumeTimer(hdl ids.Handle) { h.wheel.Resume(hdl) }

func (h *scriptHost) SendGMCP(id ids.SessionID, pkg string, payloadJSON string) error {
	s := h.session(id)
	if s == nil {
		return &registry.NotFoundError{ID: id}
	}
	msg := gmcp.Message{Package: pkg}
	if payloadJSON != "" {
		msg.Data = json.RawMessage(payloadJSON)
	}
	return s.SendGMCP(msg)
}

func (h *scriptHost) GMCPSupports(id ids.SessionID, packages ...string) {
	s := h.session(id)
	if s == nil {
		return
	}
	s.GMCP().Add(packages...)
	m, err := gmcp.CoreSupportsSet(s.GMCP())
	if err != nil {
		return
	}
	s.SendGMCP(m)
}

func (h *scriptHost) ActiveSession() ids.SessionID { return h.reg.Active() }
func (h *scriptHost) Sessions() []ids.SessionID    { return h.reg.IDs() }

func (h *scriptHost) Quit() {
	if h.cancel != nil {
		h.cancel()
	}
}

// UnloadModules purges every session's trigger/alias/timer/command
// tables and the shared bus of registrations tagged with any of
// modules. Called once at the start of a reload, before the engine
// drops its old Lua state.
func (h *scriptHost) UnloadModules(modules []string) {
	sessions := h.reg.Sessions()
	for _, module := range modules {
		for _, s := range sessions {
			if sess, ok := s.(*session.Session); ok {
				sess.Unload(module)
			}
		}
		h.wheel.Unload(module)
		if h.bus != nil {
			h.bus.Unload(module)
		}
	}
}

// PublishScriptsReloaded announces a completed reload cycle once,
// process-wide (no particular session originated it).
func (h *scriptHost) PublishScriptsReloaded() {
	if h.bus != nil {
		h.bus.Publish(bus.Event{Kind: bus.KindScriptsReloaded, SessionID: ids.NoSession})
	}
}

// PublishResumeSession announces that id's session-scoped script state
// has been rebuilt by the reload that just completed.
func (h *scriptHost) PublishResumeSession(id ids.SessionID) {
	if h.bus != nil {
		h.bus.Publish(bus.Event{Kind: bus.KindResumeSession, SessionID: id})
	}
}
