package script

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/mudpuppy/mudpuppy/ids"
)

// registerSessionFuncs registers internal mudpuppy._session.* primitives
// (wrapped by Lua in core/10_session.lua).
func (e *Engine) registerSessionFuncs() {
	t := e.l.NewTable()
	e.l.SetField(e.mudTable, "_session", t)

	e.l.SetField(t, "active", e.l.NewFunction(func(L *glua.LState) int {
		L.Push(glua.LNumber(e.host.ActiveSession()))
		return 1
	}))

	e.l.SetField(t, "list", e.l.NewFunction(func(L *glua.LState) int {
		sessions := e.host.Sessions()
		tbl := L.NewTable()
		for i, id := range sessions {
			tbl.RawSetInt(i+1, glua.LNumber(id))
		}
		L.Push(tbl)
		return 1
	}))

	e.l.SetField(t, "print", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		text := L.CheckString(2)
		e.host.Print(id, text)
		return 0
	}))

	e.l.SetField(t, "send", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		text := L.CheckString(2)
		if err := e.host.Send(id, text); err != nil {
			L.Push(glua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	e.l.SetField(t, "connect", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		if err := e.host.Connect(id); err != nil {
			L.Push(glua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	e.l.SetField(t, "disconnect", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		if err := e.host.Disconnect(id); err != nil {
			L.Push(glua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	e.l.SetField(t, "quit", e.l.NewFunction(func(L *glua.LState) int {
		e.host.Quit()
		return 0
	}))
}
