package command

import (
	"fmt"
	"strings"
)

// Host is the subset of session/registry operations the built-in
// command table needs. Defined here (rather than importing package
// session) to avoid a command<->session import cycle; session.Session
// implements Host when it wires up its command table.
type Host interface {
	Status(verbose bool) []string
	Connect() error
	Disconnect() error
	Quit()
	Reload() error
	AddAlias(pattern, expansion string) (string, error)
	AddTrigger(pattern string, gag, promptOnly bool) (string, error)
	AddTimer(durationMS int, maxTicks int) (string, error)
	BindingsList() []string
	Eval(expr string) (string, error)
}

// RegisterBuiltins installs the built-in command set
// ("status [--verbose]", "connect", "disconnect", "quit", "reload",
// "alias"/"trigger"/"timer", "bindings list", "py <expr>") against
// host, tagged with module "" so a script reload never purges them.
func RegisterBuiltins(t *Table, host Host) {
	t.Register("", "status", func(inv Invocation) Result {
		verbose := len(inv.Args) > 0 && inv.Args[0] == "--verbose"
		return Result{Output: host.Status(verbose)}
	})

	t.Register("", "connect", func(Invocation) Result {
		if err := host.Connect(); err != nil {
			return Result{Err: err}
		}
		return Result{}
	})

	t.Register("", "disconnect", func(Invocation) Result {
		if err := host.Disconnect(); err != nil {
			return Result{Err: err}
		}
		return Result{}
	})

	t.Register("", "quit", func(Invocation) Result {
		host.Quit()
		return Result{}
	})

	t.Register("", "reload", func(Invocation) Result {
		if err := host.Reload(); err != nil {
			return Result{Err: err}
		}
		return Result{Output: []string{"scripts reloaded"}}
	})

	t.Register("", "alias", func(inv Invocation) Result {
		if len(inv.Args) < 2 {
			return Result{Err: fmt.Errorf("usage: /alias <pattern> <expansion>")}
		}
		h, err := host.AddAlias(inv.Args[0], strings.Join(inv.Args[1:], " "))
		if err != nil {
			return Result{Err: err}
		}
		return Result{Output: []string{fmt.Sprintf("alias %s registered", h)}}
	})

	t.Register("", "trigger", func(inv Invocation) Result {
		if len(inv.Args) < 1 {
			return Result{Err: fmt.Errorf("usage: /trigger <pattern> [--gag] [--prompt]")}
		}
		var gag, promptOnly bool
		pattern := inv.Args[0]
		for _, flag := range inv.Args[1:] {
			switch flag {
			case "--gag":
				gag = true
			case "--prompt":
				promptOnly = true
			}
		}
		h, err := host.AddTrigger(pattern, gag, promptOnly)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Output: []string{fmt.Sprintf("trigger %s registered", h)}}
	})

	t.Register("", "timer", func(inv Invocation) Result {
		if len(inv.Args) < 1 {
			return Result{Err: fmt.Errorf("usage: /timer <duration_ms> [max_ticks]")}
		}
		var durationMS, maxTicks int
		if _, err := fmt.Sscanf(inv.Args[0], "%d", &durationMS); err != nil {
			return Result{Err: fmt.Errorf("invalid duration %q", inv.Args[0])}
		}
		if len(inv.Args) > 1 {
			fmt.Sscanf(inv.Args[1], "%d", &maxTicks)
		}
		h, err := host.AddTimer(durationMS, maxTicks)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Output: []string{fmt.Sprintf("timer %s scheduled", h)}}
	})

	t.Register("", "bindings", func(inv Invocation) Result {
		if len(inv.Args) == 0 || inv.Args[0] != "list" {
			return Result{Err: fmt.Errorf("usage: /bindings list")}
		}
		return Result{Output: host.BindingsList()}
	})

	t.Register("", "py", func(inv Invocation) Result {
		if len(inv.Args) == 0 {
			return Result{Err: fmt.Errorf("usage: /py <expr>")}
		}
		out, err := host.Eval(strings.Join(inv.Args, " "))
		if err != nil {
			return Result{Err: err}
		}
		return Result{Output: []string{out}}
	})
}
