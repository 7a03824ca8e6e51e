// Package command implements mudpuppy's in-band command parser:
// splitting one line of user input on the per-MUD command separator,
// recognizing the command-prefix, and dispatching to a small built-in
// table plus whatever scripts have registered. Commands never reach
// the alias matcher or the MUD; everything else falls through to it
// unchanged.
package command

import (
	"fmt"
	"strings"
)

// DefaultPrefix and DefaultSeparator are the client's defaults;
// per-MUD config may override either.
const (
	DefaultPrefix    = "/"
	DefaultSeparator = ";;"
)

// Split breaks raw input into individual lines on separator, in order.
// Input with no separator occurrences returns a single-element slice
// unchanged (including empty input, which still runs through command
// and alias evaluation as a blank line).
func Split(raw string, separator string) []string {
	if separator == "" {
		return []string{raw}
	}
	return strings.Split(raw, separator)
}

// Invocation is one parsed "/name args..." line.
type Invocation struct {
	Name string
	Args []string
	Raw  string // the full line, including the prefix
}

// Parse reports whether line begins with prefix and, if so, its parsed
// Invocation. A bare prefix with no name (e.g. just "/") parses to an
// empty Name so callers can report a usage error instead of silently
// falling through to the MUD.
func Parse(line, prefix string) (Invocation, bool) {
	if prefix == "" || !strings.HasPrefix(line, prefix) {
		return Invocation{}, false
	}
	rest := strings.TrimPrefix(line, prefix)
	fields := strings.Fields(rest)
	var name string
	var args []string
	if len(fields) > 0 {
		name = fields[0]
		args = fields[1:]
	}
	return Invocation{Name: name, Args: args, Raw: line}, true
}

// Result reports what a command produced, for the session to relay to
// the output buffer or act on.
type Result struct {
	Output []string // lines to append to the session's output buffer
	Err    error
}

// Handler executes one command invocation against whatever host
// operations it needs (connect/disconnect/quit/etc). Defined as a plain
// func type rather than an interface so built-ins and script-registered
// commands share one dispatch path.
type Handler func(inv Invocation) Result

// UnknownCommandError reports a /name with no matching handler.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// Table holds the built-in commands plus any script-registered ones,
// keyed by name (case-sensitive; names are never case-folded).
type Table struct {
	handlers map[string]Handler
	modules  map[string]string // name -> owning module, "" for built-ins
}

// NewTable creates an empty table. Callers normally follow with
// RegisterBuiltins to install the default command set.
func NewTable() *Table {
	return &Table{
		handlers: make(map[string]Handler),
		modules:  make(map[string]string),
	}
}

// Register adds or replaces the handler for name, owned by module (""
// for built-ins, which can't be purged by a script reload).
func (t *Table) Register(module, name string, h Handler) {
	t.handlers[name] = h
	t.modules[name] = module
}

// Unload removes every command registered by module, leaving built-ins
// (module == "") untouched.
func (t *Table) Unload(module string) {
	if module == "" {
		return
	}
	for name, owner := range t.modules {
		if owner == module {
			delete(t.handlers, name)
			delete(t.modules, name)
		}
	}
}

// Dispatch looks up inv.Name and runs its handler. Returns
// *UnknownCommandError if no handler is registered.
func (t *Table) Dispatch(inv Invocation) Result {
	h, ok := t.handlers[inv.Name]
	if !ok {
		return Result{Err: &UnknownCommandError{Name: inv.Name}}
	}
	return h(inv)
}

// Has reports whether name has a registered handler (builtin or
// script-registered).
func (t *Table) Has(name string) bool {
	_, ok := t.handlers[name]
	return ok
}
