package prompt

import (
	"testing"
	"time"

	"github.com/mudpuppy/mudpuppy/telnet"
)

func TestUnsignalledFlushAfterTimeout(t *testing.T) {
	flushed := make(chan *telnet.MudLine, 1)
	d := New(Unsignalled(30*time.Millisecond), func(l *telnet.MudLine) {
		flushed <- l
	})

	d.Tick("hi")

	select {
	case l := <-flushed:
		if l.Raw != "hi" || !l.Prompt {
			t.Fatalf("want prompt line 'hi', got %+v", l)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for prompt flush")
	}
}

func TestUnsignalledTimerRestartsOnNewBytes(t *testing.T) {
	flushed := make(chan *telnet.MudLine, 1)
	d := New(Unsignalled(60*time.Millisecond), func(l *telnet.MudLine) {
		flushed <- l
	})

	start := time.Now()
	d.Tick("h")
	time.Sleep(30 * time.Millisecond)
	d.Tick("hi") // restarts the timer

	select {
	case <-flushed:
		if time.Since(start) < 60*time.Millisecond {
			t.Fatal("flush fired before a full timeout from the last byte")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timed out waiting for prompt flush")
	}
}

func TestSignalledEOREmitsPromptImmediately(t *testing.T) {
	d := New(Signalled(SignalEndOfRecord), nil)
	line := d.Classify([]byte("Name: "), telnet.EndOfRecord)
	if !line.Prompt {
		t.Fatalf("want prompt=true for EOR-terminated line in Signalled(EOR) mode")
	}
	if line.Raw != "Name: " {
		t.Fatalf("want raw 'Name: ', got %q", line.Raw)
	}
}

func TestSignalledModeIgnoresMismatchedSignal(t *testing.T) {
	d := New(Signalled(SignalEndOfRecord), nil)
	line := d.Classify([]byte("ok"), telnet.GoAhead)
	if line.Prompt {
		t.Fatalf("want prompt=false when terminator doesn't match configured signal")
	}
}

func TestNormalLineCancelsPendingTimer(t *testing.T) {
	flushed := make(chan *telnet.MudLine, 1)
	d := New(Unsignalled(40*time.Millisecond), func(l *telnet.MudLine) {
		flushed <- l
	})
	d.Tick("partial")
	d.Classify([]byte("partialdone"), telnet.CRLF)

	select {
	case l := <-flushed:
		t.Fatalf("want no flush after a terminated line arrived, got %+v", l)
	case <-time.After(80 * time.Millisecond):
		// success: no flush fired
	}
}
