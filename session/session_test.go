package session

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/mudpuppy/mudpuppy/bus"
	"github.com/mudpuppy/mudpuppy/dial"
	"github.com/mudpuppy/mudpuppy/ids"
	"github.com/mudpuppy/mudpuppy/telnet"
	"github.com/mudpuppy/mudpuppy/timerwheel"
)

func testMud(t *testing.T, ln net.Listener) Mud {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return Mud{
		Name:             "test",
		Mud:              dial.Mud{Host: host, Port: port, TLS: dial.TLSDisabled},
		CommandSeparator: ";;",
		CommandPrefix:    "/",
	}
}

func newTestSession(t *testing.T, ln net.Listener) *Session {
	t.Helper()
	b := bus.New(nil)
	w := timerwheel.New(nil)
	return New(ids.SessionID(1), testMud(t, ln), b, w, nil)
}

func TestConnectTransitionsToConnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			select {}
		}
	}()

	s := newTestSession(t, ln)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if s.State() != Connected {
		t.Fatalf("want Connected, got %s", s.State())
	}
}

func TestConnectWhileConnectedReturnsNotDisconnectedError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { select {} ; c.Close() }()
		}
	}()

	s := newTestSession(t, ln)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	err = s.Connect(ctx)
	if _, ok := err.(*ErrNotDisconnected); !ok {
		t.Fatalf("want *ErrNotDisconnected, got %T: %v", err, err)
	}
}

func TestSendLineWhileDisconnectedReturnsNotConnectedError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := newTestSession(t, ln)
	_, err = s.SendLine("look", false)
	if _, ok := err.(*ErrNotConnected); !ok {
		t.Fatalf("want *ErrNotConnected, got %T: %v", err, err)
	}
}

func TestTriggerGagsLineFromOutput(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := newTestSession(t, ln)
	if _, err := s.AddTrigger("test", "secret", true, TriggerCallbacks{}); err != nil {
		t.Fatal(err)
	}

	s.ingestLine(telnet.NewMudLine([]byte("this is a secret message")))

	if len(s.Output()) != 0 {
		t.Fatalf("want gagged line excluded from output, got %d lines", len(s.Output()))
	}
}

func TestTriggerHighlightReplacesDisplayLine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := newTestSession(t, ln)
	_, err = s.AddTrigger("test", "hp", false, TriggerCallbacks{
		Highlight: func(line *telnet.MudLine, groups []string) *telnet.MudLine {
			line.Set("HP: highlighted")
			return line
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	line := telnet.NewMudLine([]byte("hp 100"))
	s.ingestLine(line)

	out := s.Output()
	if len(out) != 1 || out[0].Raw != "HP: highlighted" {
		t.Fatalf("want highlighted replacement, got %+v", out)
	}
}

func TestAliasExpandsSentText(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	s := newTestSession(t, ln)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	<-accepted

	if _, err := s.AddAlias("test", `^n$`, "north"); err != nil {
		t.Fatal(err)
	}

	il, err := s.SendLine("n", false)
	if err != nil {
		t.Fatal(err)
	}
	if il.Sent != "north" {
		t.Fatalf("want expanded alias 'north', got %q", il.Sent)
	}
}

func TestSubmitDispatchesCommandWithoutSendingToMud(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := newTestSession(t, ln)
	results := s.Submit("/status")
	if len(results) != 1 {
		t.Fatalf("want 1 command result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
}

func TestUnloadPurgesTriggersAndTheirCallbacks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := newTestSession(t, ln)
	h, _ := s.AddTrigger("myscript", "foo", false, TriggerCallbacks{
		Async: func(groups []string) {},
	})
	s.Unload("myscript")
	if s.triggers.Get(h) != nil {
		t.Fatal("want trigger purged by Unload")
	}
	if _, ok := s.triggerCbs[h]; ok {
		t.Fatal("want Unload to also prune the purged handle's callbacks")
	}
}

func TestPromptOnlyTriggerOnlyFiresOnPromptLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := newTestSession(t, ln)
	if _, err := s.AddTriggerRule("test", `^HP: \d+`, true, true, true, TriggerCallbacks{}); err != nil {
		t.Fatal(err)
	}

	normal := telnet.NewMudLine([]byte("HP: 100"))
	s.ingestLine(normal)
	if len(s.Output()) != 1 {
		t.Fatalf("want a non-prompt line to skip the prompt-only trigger (so not gagged), got %d lines", len(s.Output()))
	}

	prompt := telnet.NewMudLine([]byte("HP: 100"))
	prompt.Prompt = true
	s.ingestLine(prompt)
	if len(s.Output()) != 1 {
		t.Fatalf("want the prompt line gagged by the prompt-only trigger, got %d lines", len(s.Output()))
	}
}
