package script

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/mudpuppy/mudpuppy/ids"
)

// registerTimerFuncs registers internal mudpuppy._timer.* primitives
// (wrapped by Lua in core/10_timer.lua). Timers here are scheduled against
// the shared timerwheel.Wheel through Host rather than owning private
// time.AfterFunc/time.Ticker bookkeeping, so a script timer participates
// in the same max_ticks budget and focus-hint routing as a built-in
// "/timer" command timer.
func (e *Engine) registerTimerFuncs() {
	t := e.l.NewTable()
	e.l.SetField(e.mudTable, "_timer", t)

	// mudpuppy._timer.schedule(duration_ms, max_ticks, callback): returns handle.
	// max_ticks <= 0 means unbounded (until removed).
	e.l.SetField(t, "schedule", e.l.NewFunction(func(L *glua.LState) int {
		durationMS := int(L.CheckNumber(1))
		maxTicks := int(L.CheckNumber(2))
		fn, ok := L.Get(3).(*glua.LFunction)
		if !ok {
			L.Push(glua.LNil)
			L.Push(glua.LString("mudpuppy._timer.schedule: argument 3 must be a function"))
			return 2
		}

		module := e.currentModule
		hdl := e.host.AddTimer(module, durationMS, maxTicks, func(hintSessionID ids.SessionID) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.l == nil {
				return
			}
			e.l.CallByParam(glua.P{Fn: fn, NRet: 0, Protect: true}, glua.LNumber(hintSessionID))
		})
		L.Push(glua.LNumber(hdl))
		return 1
	}))

	e.l.SetField(t, "stop", e.l.NewFunction(func(L *glua.LState) int {
		e.host.StopTimer(ids.Handle(L.CheckNumber(1)))
		return 0
	}))

	e.l.SetField(t, "resume", e.l.NewFunction(func(L *glua.LState) int {
		e.host.ResumeTimer(ids.Handle(L.CheckNumber(1)))
		return 0
	}))

	e.l.SetField(t, "remove", e.l.NewFunction(func(L *glua.LState) int {
		e.host.RemoveTimer(ids.Handle(L.CheckNumber(1)))
		return 0
	}))
}
