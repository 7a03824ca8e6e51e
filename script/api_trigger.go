package script

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/mudpuppy/mudpuppy/ids"
)

// registerTriggerFuncs registers internal mudpuppy._trigger.* primitives
// (wrapped by Lua in core/10_trigger.lua).
func (e *Engine) registerTriggerFuncs() {
	t := e.l.NewTable()
	e.l.SetField(e.mudTable, "_trigger", t)

	// mudpuppy._trigger.add(session_id, pattern, gag, strip_ansi,
	// prompt_only, on_match, on_highlight). on_match/on_highlight may be
	// nil; returns handle, err_or_nil.
	e.l.SetField(t, "add", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		pattern := L.CheckString(2)
		gag := L.ToBool(3)
		stripANSI := L.ToBool(4)
		promptOnly := L.ToBool(5)
		onMatch := toMatchCallback(e, L.Get(6))
		onHighlight := toHighlightCallback(e, L.Get(7))

		hdl, err := e.host.AddTrigger(id, e.currentModule, pattern, gag, stripANSI, promptOnly, onMatch, onHighlight)
		if err != nil {
			L.Push(glua.LNil)
			L.Push(glua.LString(err.Error()))
			return 2
		}
		L.Push(glua.LNumber(hdl))
		return 1
	}))

	e.l.SetField(t, "remove", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		hdl := ids.Handle(L.CheckNumber(2))
		e.host.RemoveTrigger(id, hdl)
		return 0
	}))
}

// toMatchCallback wraps a Lua function value as a Go closure invoked with
// the regex capture groups. A non-function value yields a nil callback.
func toMatchCallback(e *Engine, v glua.LValue) func(groups []string) {
	fn, ok := v.(*glua.LFunction)
	if !ok {
		return nil
	}
	return func(groups []string) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.l == nil {
			return
		}
		tbl := e.l.NewTable()
		for i, g := range groups {
			tbl.RawSetInt(i+1, glua.LString(g))
		}
		e.l.CallByParam(glua.P{Fn: fn, NRet: 0, Protect: true}, tbl)
	}
}

// toHighlightCallback wraps a Lua function value that transforms a line's
// display text; its return value (if a string) replaces raw.
func toHighlightCallback(e *Engine, v glua.LValue) func(raw string, groups []string) string {
	fn, ok := v.(*glua.LFunction)
	if !ok {
		return nil
	}
	return func(raw string, groups []string) string {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.l == nil {
			return raw
		}
		tbl := e.l.NewTable()
		for i, g := range groups {
			tbl.RawSetInt(i+1, glua.LString(g))
		}
		if err := e.l.CallByParam(glua.P{Fn: fn, NRet: 1, Protect: true}, glua.LString(raw), tbl); err != nil {
			return raw
		}
		ret := e.l.Get(-1)
		e.l.Pop(1)
		if s, ok := ret.(glua.LString); ok {
			return string(s)
		}
		return raw
	}
}
