package script

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/mudpuppy/mudpuppy/ids"
)

// registerGMCPFuncs registers internal mudpuppy._gmcp.* primitives
// (wrapped by Lua in core/10_gmcp.lua).
func (e *Engine) registerGMCPFuncs() {
	t := e.l.NewTable()
	e.l.SetField(e.mudTable, "_gmcp", t)

	// mudpuppy._gmcp.send(session_id, package, json_payload): json_payload
	// may be "" for a bare package message with no data.
	e.l.SetField(t, "send", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		pkg := L.CheckString(2)
		payload := L.OptString(3, "")
		if err := e.host.SendGMCP(id, pkg, payload); err != nil {
			L.Push(glua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	// mudpuppy._gmcp.supports(session_id, package, ...): declares packages
	// this script wants advertised via Core.Supports.Set.
	e.l.SetField(t, "supports", e.l.NewFunction(func(L *glua.LState) int {
		id := ids.SessionID(L.CheckNumber(1))
		n := L.GetTop()
		packages := make([]string, 0, n-1)
		for i := 2; i <= n; i++ {
			packages = append(packages, L.CheckString(i))
		}
		e.host.GMCPSupports(id, packages...)
		return 0
	}))
}
