// Package script implements mudpuppy's embedded scripting bridge: a
// gopher-lua VM wired to internal mudpuppy._* primitives that forward
// into the engine through a narrow Host interface, plus the Lua-side
// library (embedded core/*.lua) that wraps those primitives in an
// ergonomic API. The scripting language itself is out of scope; only
// this bridge contract is specified.
//
// It is grounded on a per-concern api_*.go registration file layout,
// one file per primitive group, generalized from an input/output/
// UI-pane surface to mudpuppy's session/trigger/alias/timer/GMCP
// surface.
package script

import "github.com/mudpuppy/mudpuppy/ids"

// Host is the engine-side surface scripts reach through the internal
// mudpuppy._* primitives. Implemented by a thin adapter over the
// session registry (see cmd/mudpuppy) so package script never imports
// package session directly, avoiding a script<->session import cycle
// (Session.Engine is the mirror-image narrow interface the other
// direction).
type Host interface {
	// Print appends text to id's output buffer without running it
	// through trigger matching (a script-originated system message).
	Print(id ids.SessionID, text string)

	// Send transmits text on id's connection as a scripted InputLine
	// (aliases are skipped for scripted sends).
	Send(id ids.SessionID, text string) error

	Connect(id ids.SessionID) error
	Disconnect(id ids.SessionID) error

	// AddTrigger/AddAlias register against id's session, tagged with
	// module so Unload(module) can purge them later. stripANSI selects
	// matching against the ANSI-stripped line vs the raw line; promptOnly
	// restricts the trigger to prompt-flagged lines. onMatch/onHighlight
	// are nil when the script didn't supply a callback for that slot.
	AddTrigger(id ids.SessionID, module, pattern string, gag, stripANSI, promptOnly bool, onMatch func(groups []string), onHighlight func(raw string, groups []string) string) (ids.Handle, error)
	AddAlias(id ids.SessionID, module, pattern, expansion string) (ids.Handle, error)
	RemoveTrigger(id ids.SessionID, h ids.Handle)
	RemoveAlias(id ids.SessionID, h ids.Handle)

	// AddTimer schedules a global timer against the shared wheel (it
	// takes no session). onFire receives the focused-session hint at
	// firing time.
	AddTimer(module string, durationMS int, maxTicks int, onFire func(hintSessionID ids.SessionID)) ids.Handle
	RemoveTimer(h ids.Handle)
	StopTimer(h ids.Handle)
	ResumeTimer(h ids.Handle)

	// SendGMCP marshals payload (already-encoded JSON text, or "" for
	// a bare package message) as a GMCP message on id's connection.
	SendGMCP(id ids.SessionID, pkg string, payloadJSON string) error
	GMCPSupports(id ids.SessionID, packages ...string)

	ActiveSession() ids.SessionID
	Sessions() []ids.SessionID
	Quit()

	// UnloadModules purges every trigger, alias, timer, command, and bus
	// handler tagged with any of modules, across every live session and
	// the shared bus. Called once at the start of a reload, before the
	// engine drops its old Lua state, so no stale callback closure bound
	// to that state can be invoked afterward.
	UnloadModules(modules []string)

	// PublishScriptsReloaded announces that a reload cycle has finished
	// re-importing every module. Published exactly once per reload.
	PublishScriptsReloaded()

	// PublishResumeSession announces that id's session-scoped state (its
	// triggers, aliases, timers) has been rebuilt by the reload that just
	// completed. Published once per currently live session.
	PublishResumeSession(id ids.SessionID)
}
