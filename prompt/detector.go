// Package prompt implements mudpuppy's prompt-detection subsystem:
// classifying trailing partial lines as prompts either because the
// server signalled EOR/GA, or because no further bytes arrived within
// a configured timeout. It generalizes an OutputBuffer heuristic into
// an explicit Signalled/Unsignalled PromptMode split with a real timer.
package prompt

import (
	"sync"
	"time"

	"github.com/mudpuppy/mudpuppy/telnet"
)

// Signal names which terminator kind counts as a prompt in Signalled mode.
type Signal int

const (
	SignalEndOfRecord Signal = iota
	SignalGoAhead
)

// Mode is either Unsignalled (timeout-based) or Signalled (protocol-based).
type Mode struct {
	Signalled bool
	Signal    Signal        // valid when Signalled
	Timeout   time.Duration // valid when !Signalled
}

func Unsignalled(timeout time.Duration) Mode { return Mode{Timeout: timeout} }
func Signalled(sig Signal) Mode              { return Mode{Signalled: true, Signal: sig} }

// Detector classifies codec LineReady events and drives the
// Unsignalled-mode flush timer. It emits MudLines, tagging prompt lines
// as Prompt=true. Signalled prompts are returned from Classify; the
// onFlush callback is invoked only for partials flushed by the
// Unsignalled timeout or by SetMode.
type Detector struct {
	mu      sync.Mutex
	mode    Mode
	timer   *time.Timer
	partial *telnet.MudLine // pending text for the active single-shot timer
	onFlush func(*telnet.MudLine)
}

// New creates a detector in the given mode. onFlush is invoked
// synchronously (from whatever goroutine the timer fires on — callers
// typically re-post onto the session's executor) whenever the
// unsignalled timeout elapses with a non-empty pending partial.
func New(mode Mode, onFlush func(*telnet.MudLine)) *Detector {
	return &Detector{mode: mode, onFlush: onFlush}
}

// SetMode changes the active mode, flushing whatever partial buffer the
// previous mode was holding first.
func (d *Detector) SetMode(mode Mode) {
	d.mu.Lock()
	pending := d.partial
	d.stopTimerLocked()
	d.mode = mode
	d.mu.Unlock()
	if pending != nil && pending.Raw != "" && d.onFlush != nil {
		pending.Prompt = true
		d.onFlush(pending)
	}
}

// Classify processes one codec LineReady event, returning the resulting
// MudLine and whether it should be treated as a prompt. Any terminated
// line cancels the pending Unsignalled timer and discards the pending
// partial without calling onFlush: the terminated line's own bytes
// already carry that text.
func (d *Detector) Classify(raw []byte, term telnet.TerminatorKind) *telnet.MudLine {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch term {
	case telnet.EndOfRecord, telnet.GoAhead:
		d.stopTimerLocked()
		line := telnet.NewMudLine(raw)
		isPrompt := d.mode.Signalled && ((term == telnet.EndOfRecord && d.mode.Signal == SignalEndOfRecord) ||
			(term == telnet.GoAhead && d.mode.Signal == SignalGoAhead))
		line.Prompt = isPrompt
		return line

	default: // CRLF, LF, CR: a complete, non-signalled line
		d.stopTimerLocked()
		return telnet.NewMudLine(raw)
	}
}

// Tick feeds a BufferedBytes progress event: each byte received
// restarts a single-shot timer. In Signalled mode this is a no-op: the
// timeout path is only meaningful in Unsignalled mode.
func (d *Detector) Tick(partialText string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode.Signalled {
		return
	}
	d.partial = &telnet.MudLine{Raw: partialText, Clean: partialText}
	d.restartTimerLocked()
}

func (d *Detector) restartTimerLocked() {
	partial := d.partial
	d.stopTimerLocked()
	d.partial = partial
	d.timer = time.AfterFunc(d.mode.Timeout, func() {
		d.mu.Lock()
		pending := d.partial
		d.partial = nil
		d.timer = nil
		d.mu.Unlock()
		if pending != nil && pending.Raw != "" && d.onFlush != nil {
			pending.Prompt = true
			d.onFlush(pending)
		}
	})
}

func (d *Detector) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.partial = nil
}
