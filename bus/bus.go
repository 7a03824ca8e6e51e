// Package bus implements mudpuppy's typed publish/subscribe event bus.
// Handlers are tagged with the module that registered them so a script
// reload can purge exactly its own registrations in one sweep, and
// delivery is best-effort: a failing handler is logged and the rest
// still run.
//
// It generalizes a flat event.Event/event.Type pair with no
// subscription model at all into a registration-ordered table.
package bus

import (
	"log"
	"sync"

	"github.com/mudpuppy/mudpuppy/ids"
)

// Kind identifies an event variant. The predefined Kind* constants cover
// the built-in event variants; Custom events simply use a Kind built from the
// script-supplied type_tag string, so no extra wrapper type is needed.
type Kind string

const (
	KindNewSession      Kind = "new_session"
	KindConnection      Kind = "connection"
	KindPrompt          Kind = "prompt"
	KindConfigReloaded  Kind = "config_reloaded"
	KindScriptsReloaded Kind = "scripts_reloaded"
	KindIac             Kind = "iac"
	KindOptionEnabled   Kind = "option_enabled"
	KindOptionDisabled  Kind = "option_disabled"
	KindSubnegotiation  Kind = "subnegotiation"
	KindBufferResized   Kind = "buffer_resized"
	KindInputLine       Kind = "input_line"
	KindShortcut        Kind = "shortcut"
	KindKeyPress        Kind = "key_press"
	KindMouse           Kind = "mouse"
	KindGmcpEnabled     Kind = "gmcp_enabled"
	KindGmcpDisabled    Kind = "gmcp_disabled"
	KindGmcpMessage     Kind = "gmcp_message"
	KindResumeSession   Kind = "resume_session"
)

// Custom builds the Kind for a script-defined custom event.
func Custom(typeTag string) Kind { return Kind("custom:" + typeTag) }

// Event carries the session context (ids.NoSession for process-global
// events) and a per-variant payload.
type Event struct {
	Kind      Kind
	SessionID ids.SessionID
	Payload   any
}

// Handler processes one event. Handlers must not block; long work
// should be handed off.
type Handler func(Event)

type registration struct {
	id      uint64
	module  string
	kind    Kind
	handler Handler
}

// Bus is the process-global publish/subscribe table (one of the only
// shared mutable resources besides the session registry). It is only
// ever touched from the single executor goroutine, but the mutex makes
// it safe for a reload or debug monitor to inspect from elsewhere too.
type Bus struct {
	mu    sync.Mutex
	regs  []registration
	seq   uint64
	logger *log.Logger
}

// New creates an empty bus. logger may be nil to discard handler errors
// silently (tests); production wiring always passes the session log.
func New(logger *log.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers handler for kind under module, returning an
// unsubscribe func. Handlers for the same kind fire in registration
// order.
func (b *Bus) Subscribe(module string, kind Kind, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.regs = append(b.regs, registration{id: id, module: module, kind: kind, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		kept := b.regs[:0]
		for _, r := range b.regs {
			if r.id != id {
				kept = append(kept, r)
			}
		}
		b.regs = kept
	}
}

// Publish delivers ev to every handler subscribed to ev.Kind, in
// registration order. A panicking or erroring handler is caught and
// logged; the rest still run.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	matching := make([]registration, 0, len(b.regs))
	for _, r := range b.regs {
		if r.kind == ev.Kind {
			matching = append(matching, r)
		}
	}
	b.mu.Unlock()

	for _, r := range matching {
		b.invoke(r, ev)
	}
}

func (b *Bus) invoke(r registration, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logf("handler panic: module=%s kind=%s: %v", r.module, ev.Kind, rec)
		}
	}()
	r.handler(ev)
}

// Unload removes every handler registered under module (used before a
// hot reload re-imports the module).
func (b *Bus) Unload(module string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.regs[:0]
	for _, r := range b.regs {
		if r.module != module {
			kept = append(kept, r)
		}
	}
	b.regs = kept
}

// HandlerCount returns the number of live registrations (debug/stats use).
func (b *Bus) HandlerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.regs)
}

func (b *Bus) logf(format string, args ...any) {
	if b.logger == nil {
		return
	}
	b.logger.Printf(format, args...)
}
