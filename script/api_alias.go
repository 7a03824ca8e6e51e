package script

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/mudpuppy/mudpuppy/ids"
)

// registerAliasFuncs registers internal mudpuppy._alias.* primitives
// (wrapped by Lua in core/10_alias.lua).
func (e *Engine) registerAliasFuncs() {
	t := e.l.NewTable()
	e.l.SetField(e.mudTable, "_alias", t)

	e.l.SetField(t, "add", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		pattern := L.CheckString(2)
		expansion := L.CheckString(3)

		hdl, err := e.host.AddAlias(id, e.currentModule, pattern, expansion)
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
		e.host.RemoveAlias(id, hdl)
		return 0
	}))
}
