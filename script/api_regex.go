package script

import (
	"regexp"

	glua "github.com/yuin/gopher-lua"
)

// registerRegexFuncs registers internal mudpuppy._regex.* primitives
// (wrapped by Lua in core/10_regex.lua), backed by the same LRU-cached
// match primitive package match uses for trigger/alias evaluation.
func (e *Engine) registerRegexFuncs() {
	t := e.l.NewTable()
	e.l.SetField(e.mudTable, "_regex", t)

	// mudpuppy._regex.match(pattern, text): returns a 1-indexed table of
	// [full_match, group1, group2, ...] or nil if unmatched/invalid.
	e.l.SetField(t, "match", e.l.NewFunction(func(L *glua.LState) int {
		pattern := L.CheckString(1)
		text := L.CheckString(2)

		re, ok := e.regexCache.Get(pattern)
		if !ok {
			compiled, err := regexp.Compile(pattern)
			if err != nil {
				L.Push(glua.LNil)
				L.Push(glua.LString(err.Error()))
				return 2
			}
			re = compiled
			e.regexCache.Add(pattern, re)
		}

		matches := re.FindStringSubmatch(text)
		if matches == nil {
			L.Push(glua.LNil)
			return 1
		}

		tbl := L.NewTable()
		for i, m := range matches {
			tbl.RawSetInt(i+1, glua.LString(m))
		}
		L.Push(tbl)
		return 1
	}))
}
