package command

import "testing"

func TestSplitOnSeparator(t *testing.T) {
	got := Split("look;;north", DefaultSeparator)
	if len(got) != 2 || got[0] != "look" || got[1] != "north" {
		t.Fatalf("want [look north], got %v", got)
	}
}

func TestSplitNoSeparatorReturnsSingleLine(t *testing.T) {
	got := Split("look", DefaultSeparator)
	if len(got) != 1 || got[0] != "look" {
		t.Fatalf("want [look], got %v", got)
	}
}

func TestParseRecognizesPrefix(t *testing.T) {
	inv, ok := Parse("/status --verbose", DefaultPrefix)
	if !ok {
		t.Fatal("want prefix recognized")
	}
	if inv.Name != "status" || len(inv.Args) != 1 || inv.Args[0] != "--verbose" {
		t.Fatalf("want name=status args=[--verbose], got %+v", inv)
	}
}

func TestParseRejectsLineWithoutPrefix(t *testing.T) {
	_, ok := Parse("look north", DefaultPrefix)
	if ok {
		t.Fatal("want non-command line rejected")
	}
}

type fakeHost struct {
	connected bool
	quit      bool
}

func (f *fakeHost) Status(verbose bool) []string { return []string{"ok"} }
func (f *fakeHost) Connect() error                { f.connected = true; return nil }
func (f *fakeHost) Disconnect() error             { f.connected = false; return nil }
func (f *fakeHost) Quit()                         { f.quit = true }
func (f *fakeHost) Reload() error                 { return nil }
func (f *fakeHost) AddAlias(pattern, expansion string) (string, error) { return "1", nil }
func (f *fakeHost) AddTrigger(pattern string, gag, promptOnly bool) (string, error) { return "2", nil }
func (f *fakeHost) AddTimer(durationMS, maxTicks int) (string, error)  { return "3", nil }
func (f *fakeHost) BindingsList() []string                             { return []string{"ctrl+c: quit"} }
func (f *fakeHost) Eval(expr string) (string, error)                   { return "nil", nil }

func TestBuiltinConnectDispatches(t *testing.T) {
	tbl := NewTable()
	host := &fakeHost{}
	RegisterBuiltins(tbl, host)

	inv, _ := Parse("/connect", DefaultPrefix)
	res := tbl.Dispatch(inv)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if !host.connected {
		t.Fatal("want host.Connect called")
	}
}

func TestUnknownCommandReturnsTypedError(t *testing.T) {
	tbl := NewTable()
	RegisterBuiltins(tbl, &fakeHost{})

	inv, _ := Parse("/frobnicate", DefaultPrefix)
	res := tbl.Dispatch(inv)
	if res.Err == nil {
		t.Fatal("want error for unknown command")
	}
	if _, ok := res.Err.(*UnknownCommandError); !ok {
		t.Fatalf("want *UnknownCommandError, got %T", res.Err)
	}
}

func TestUnloadOnlyRemovesModuleCommandsNotBuiltins(t *testing.T) {
	tbl := NewTable()
	RegisterBuiltins(tbl, &fakeHost{})
	tbl.Register("myscript", "custom", func(Invocation) Result { return Result{} })

	tbl.Unload("myscript")

	if !tbl.Has("connect") {
		t.Fatal("want built-in to survive an Unload")
	}
	if tbl.Has("custom") {
		t.Fatal("want script-registered command purged by Unload")
	}
}
