// Package session implements mudpuppy's session object: the heart of
// the engine. One Session owns one MUD connection's socket, Telnet
// codec, prompt detector, trigger/alias tables, output buffer, and
// GMCP state, and glues the telnet, prompt, match, timer wheel, GMCP,
// and command layers together behind a single operation contract.
//
// It generalizes a single global Session owning one process-wide
// TCPClient and reading from fixed channels in its own processEvents
// loop into one instance per registry entry, network I/O on a
// per-session reader goroutine feeding a single-threaded event loop
// the same way a readLoop goroutine feeds a processEvents loop.
package session

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mudpuppy/mudpuppy/bus"
	"github.com/mudpuppy/mudpuppy/command"
	"github.com/mudpuppy/mudpuppy/dial"
	"github.com/mudpuppy/mudpuppy/gmcp"
	"github.com/mudpuppy/mudpuppy/ids"
	"github.com/mudpuppy/mudpuppy/match"
	"github.com/mudpuppy/mudpuppy/prompt"
	"github.com/mudpuppy/mudpuppy/telnet"
	"github.com/mudpuppy/mudpuppy/timerwheel"
)

// TriggerCallbacks holds the optional script-supplied callbacks for one
// trigger handle: a synchronous highlight that may replace
// the display line, and an asynchronous fire-and-forget notification.
// Kept out of package match because match only decides pattern
// evaluation order, not callback dispatch (the script bridge's job).
type TriggerCallbacks struct {
	Highlight func(line *telnet.MudLine, groups []string) *telnet.MudLine
	Async     func(groups []string)
}

// Session is the central per-connection orchestrator.
type Session struct {
	id  ids.SessionID
	mud Mud
	bus *bus.Bus

	codec    *telnet.Codec
	detector *prompt.Detector
	triggers *match.Table // KindTrigger + KindHighlight
	aliases  *match.Table // KindAlias
	timers   *timerwheel.Wheel
	gmcpSet  *gmcp.SupportSet
	commands *command.Table

	mu          sync.Mutex
	status      Status
	streamInfo  dial.StreamInfo
	conn        net.Conn
	cancel      context.CancelFunc

	output      []*telnet.MudLine
	history     []string
	heldPrompt  *telnet.MudLine

	triggerCbs map[ids.Handle]TriggerCallbacks
	ownTimers  map[ids.Handle]struct{}

	bytesRead    uint64
	bytesWritten uint64
	linesEmitted uint64

	engine Engine // optional script bridge; nil is valid (no scripting loaded)
}

// Stats is a point-in-time snapshot of I/O counters, read by the
// registry-wide debug monitor (debug.Monitor); it is not part of the
// session's operation contract and carries no behavioral weight.
type Stats struct {
	Status       Status
	BytesRead    uint64
	BytesWritten uint64
	LinesEmitted uint64
	OutputLen    int
	Triggers     int
	Aliases      int
}

// Stats returns a snapshot of the session's I/O and table counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Status:       s.status,
		BytesRead:    s.bytesRead,
		BytesWritten: s.bytesWritten,
		LinesEmitted: s.linesEmitted,
		OutputLen:    len(s.output),
		Triggers:     len(s.triggers.List(match.KindTrigger)),
		Aliases:      len(s.aliases.List(match.KindAlias)),
	}
}

// Engine is the subset of the script bridge a Session calls into
// directly, kept minimal because most engine<->session traffic flows
// through the bus instead. Defined here to avoid a session<->script
// import cycle.
type Engine interface {
	// Eval executes an ad-hoc expression (the "/py" builtin) and
	// returns its textual result.
	Eval(expr string) (string, error)
	// Reload re-imports every script module.
	Reload() error
}

// New creates a disconnected Session with the given id, immutable Mud
// snapshot, and shared process resources (bus, timer wheel). engine may
// be nil until scripting is wired up.
func New(id ids.SessionID, mud Mud, b *bus.Bus, timers *timerwheel.Wheel, engine Engine) *Session {
	s := &Session{
		id:         id,
		mud:        mud,
		bus:        b,
		timers:     timers,
		gmcpSet:    gmcp.NewSupportSet(),
		triggers:   match.NewTable(match.DefaultCacheSize),
		aliases:    match.NewTable(match.DefaultCacheSize),
		commands:   command.NewTable(),
		status:     Disconnected,
		triggerCbs: make(map[ids.Handle]TriggerCallbacks),
		ownTimers:  make(map[ids.Handle]struct{}),
		engine:     engine,
	}
	s.codec = telnet.NewCodec(telnet.DefaultCompatibility())
	s.detector = prompt.New(prompt.Unsignalled(defaultPromptTimeout), s.flushPrompt)
	command.RegisterBuiltins(s.commands, hostAdapter{s})
	return s
}

// ID returns the session's immutable identifier.
func (s *Session) ID() ids.SessionID { return s.id }

// State returns the current connection state.
func (s *Session) State() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StreamInfo returns the connection's stream metadata, valid only once
// State() == Connected.
func (s *Session) StreamInfo() dial.StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamInfo
}

// Connect dials the session's Mud target and transitions
// Disconnected -> Connecting -> Connected. It starts no reader: the
// caller runs ReadLoop on its own goroutine once Connect succeeds.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != Disconnected {
		s.mu.Unlock()
		return &ErrNotDisconnected{ID: s.id}
	}
	s.status = Connecting
	s.mu.Unlock()
	s.publishConnection()

	dialCtx, cancel := context.WithCancel(ctx)
	conn, info, err := dial.Dial(dialCtx, s.mud.Mud)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.status = Disconnected
		s.mu.Unlock()
		s.publishConnection()
		return err
	}

	s.mu.Lock()
	s.status = Connected
	s.streamInfo = info
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()
	s.publishConnection()
	return nil
}

// Disconnect closes the socket and transitions to Disconnected. Pending
// per-session timers are stopped (not removed — script-side
// handles stay valid until explicit removal).
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.status == Disconnected {
		s.mu.Unlock()
		return &ErrNotConnected{ID: s.id}
	}
	conn := s.conn
	cancel := s.cancel
	s.status = Disconnected
	s.conn = nil
	s.cancel = nil
	s.mu.Unlock()

	for h := range s.ownTimers {
		s.timers.Stop(h)
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	s.publishConnection()
	return nil
}

// Close tears the session down entirely (registry.Session contract).
func (s *Session) Close() error {
	var err error
	if s.State() != Disconnected {
		err = s.Disconnect()
	}
	for h := range s.ownTimers {
		s.timers.Remove(h)
	}
	return err
}

func (s *Session) publishConnection() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: bus.KindConnection, SessionID: s.id, Payload: s.State()})
}

// ReadLoop runs on its own goroutine per connection and feeds the
// session's single-threaded processing path (network read is
// a suspension point, processing itself stays single-threaded). It
// returns when the connection closes or ctx is cancelled. There is one
// reader goroutine per session and no writer goroutine: writes go to
// the connection synchronously from the calling goroutine.
func (s *Session) ReadLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		n, err := conn.Read(buf)
		if err != nil {
			s.Disconnect()
			return
		}
		if n == 0 {
			continue
		}
		s.mu.Lock()
		s.bytesRead += uint64(n)
		s.mu.Unlock()

		events, replies, err := s.codec.Receive(buf[:n])
		for _, reply := range replies {
			s.write(reply)
		}
		if err != nil {
			continue // malformed subnegotiation: drop and keep reading
		}
		for _, ev := range events {
			s.handleCodecEvent(ev)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Session) write(b []byte) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || len(b) == 0 {
		return
	}
	conn.Write(b)
	s.mu.Lock()
	s.bytesWritten += uint64(len(b))
	s.mu.Unlock()
}

func (s *Session) handleCodecEvent(ev telnet.Event) {
	switch ev.Kind {
	case telnet.EventLineReady:
		line := s.detector.Classify(ev.Line, ev.Terminator)
		s.ingestLine(line)
	case telnet.EventBufferedBytes:
		s.detector.Tick(s.codec.PendingText())
	case telnet.EventOptionNegotiate:
		if s.bus != nil {
			s.bus.Publish(bus.Event{Kind: bus.KindIac, SessionID: s.id, Payload: ev})
		}
	case telnet.EventOptionEnabled:
		if ev.Option == telnet.OptGMCP {
			if s.bus != nil {
				s.bus.Publish(bus.Event{Kind: bus.KindGmcpEnabled, SessionID: s.id})
			}
		}
		if s.bus != nil {
			s.bus.Publish(bus.Event{Kind: bus.KindOptionEnabled, SessionID: s.id, Payload: ev.Option})
		}
	case telnet.EventOptionDisabled:
		if ev.Option == telnet.OptGMCP {
			if s.bus != nil {
				s.bus.Publish(bus.Event{Kind: bus.KindGmcpDisabled, SessionID: s.id})
			}
		}
		if s.bus != nil {
			s.bus.Publish(bus.Event{Kind: bus.KindOptionDisabled, SessionID: s.id, Payload: ev.Option})
		}
	case telnet.EventSubnegotiation:
		s.handleSubnegotiation(ev)
	}
}

func (s *Session) handleSubnegotiation(ev telnet.Event) {
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindSubnegotiation, SessionID: s.id, Payload: ev})
	}
	if ev.Option != telnet.OptGMCP {
		return
	}
	msg, err := gmcp.Decode(ev.Payload)
	if err != nil {
		return
	}
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindGmcpMessage, SessionID: s.id, Payload: msg})
	}
}

// ingestLine runs one received MudLine through prompt-event emission,
// then trigger evaluation, then buffering. Trigger evaluation only runs
// rules whose PromptOnly flag matches the line's Prompt attribute, so a
// prompt-only trigger never fires on a normal line and an ordinary
// trigger never fires on a prompt line.
func (s *Session) ingestLine(line *telnet.MudLine) {
	if line.Prompt && s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindPrompt, SessionID: s.id, Payload: line})
	}

	matches := s.triggers.Evaluate(match.KindTrigger, line.Raw, line.Clean, line.Prompt)
	for _, m := range matches {
		cbs, ok := s.triggerCbs[m.Rule.Handle]
		if ok && cbs.Highlight != nil {
			if replaced := cbs.Highlight(line, m.Groups[1:]); replaced != nil {
				line = replaced
			}
		}
		if ok && cbs.Async != nil {
			go cbs.Async(m.Groups[1:])
		}
		if m.Rule.Expansion != "" {
			s.enqueueScripted(m.Rule.Expansion)
		}
	}
	line.Gag = match.FirstGag(matches)

	s.addOutput(line)
}

func (s *Session) flushPrompt(line *telnet.MudLine) {
	s.ingestLine(line)
}

// addOutput appends to the bounded output ring, trimming from the head
// and emitting BufferResized only on an actual dimension change.
func (s *Session) addOutput(line *telnet.MudLine) {
	if line.Gag {
		return
	}
	s.mu.Lock()
	s.linesEmitted++
	before := len(s.output)
	s.output = append(s.output, line)
	if len(s.output) > OutputCapacity {
		s.output = s.output[len(s.output)-OutputCapacity:]
	}
	after := len(s.output)
	s.mu.Unlock()

	if before != after && s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindBufferResized, SessionID: s.id, Payload: after})
	}
}

// Output returns a snapshot of the current output buffer.
func (s *Session) Output() []*telnet.MudLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*telnet.MudLine, len(s.output))
	copy(out, s.output)
	return out
}

// Print appends a script-originated system line directly to the output
// buffer, bypassing trigger evaluation entirely (it never came from the
// MUD, so there's nothing to match against).
func (s *Session) Print(text string) {
	s.addOutput(telnet.NewMudLine([]byte(text)))
}

// SendLine transmits text as one MUD line. Scripted input
// skips alias evaluation; user input runs through it first. Multi-
// command input is not this function's concern — Session.Submit
// handles separator splitting and command-prefix dispatch before
// calling SendLine for whatever remains.
func (s *Session) SendLine(text string, scripted bool) (InputLine, error) {
	s.mu.Lock()
	connected := s.status == Connected
	s.mu.Unlock()
	if !connected {
		return InputLine{}, &ErrNotConnected{ID: s.id}
	}

	il := InputLine{Sent: text, Scripted: scripted}
	if !scripted {
		if expanded, matched := s.applyAlias(text); matched {
			il.Original = text
			il.Sent = expanded
		}
	}

	s.write(telnet.EncodeLine([]byte(il.Sent)))
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindInputLine, SessionID: s.id, Payload: il})
	}
	s.addHistory(il.Sent)
	return il, nil
}

func (s *Session) applyAlias(text string) (string, bool) {
	matches := s.aliases.Evaluate(match.KindAlias, text, text, false)
	if len(matches) == 0 {
		return text, false
	}
	m := matches[0] // first-registered alias wins; no recursive re-evaluation
	if m.Rule.Expansion == "" {
		return text, false
	}
	return expandCaptures(m.Rule.Expansion, m.Groups), true
}

// expandCaptures substitutes $1, $2, ... in expansion with groups'
// capture text (groups[0] is the full match, groups[1:] are captures).
func expandCaptures(expansion string, groups []string) string {
	out := expansion
	for i := len(groups) - 1; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), groups[i])
	}
	return out
}

// Submit is the top-level entry point for one line of raw user input
// from the UI: split on the command separator, check the command
// prefix, and otherwise alias-evaluate and send. Returns one
// command.Result per recognized command line, plus one Result carrying
// the error for each non-command line that could not be sent.
func (s *Session) Submit(raw string) []command.Result {
	var results []command.Result
	for _, part := range command.Split(raw, s.mud.CommandSeparator) {
		if inv, ok := command.Parse(part, s.mud.CommandPrefix); ok {
			results = append(results, s.commands.Dispatch(inv))
			continue
		}
		if _, err := s.SendLine(part, false); err != nil {
			results = append(results, command.Result{Err: err})
		}
	}
	return results
}

func (s *Session) enqueueScripted(text string) {
	s.SendLine(text, true)
}

func (s *Session) addHistory(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > 0 && s.history[len(s.history)-1] == cmd {
		return
	}
	s.history = append(s.history, cmd)
	if len(s.history) > HistoryCapacity {
		s.history = s.history[len(s.history)-HistoryCapacity:]
	}
}

// SetPromptMode flushes any pending partial buffer under the old mode
// before switching.
func (s *Session) SetPromptMode(mode prompt.Mode) {
	s.detector.SetMode(mode)
}

// RequestEnableOption writes a DO negotiation for code; completion
// is signalled later by an OptionEnabled bus event.
func (s *Session) RequestEnableOption(code byte) error {
	if s.State() != Connected {
		return &ErrNotConnected{ID: s.id}
	}
	s.write(telnet.EncodeNegotiate(telnet.CmdDO, code))
	return nil
}

// RequestDisableOption writes a DONT negotiation for code.
func (s *Session) RequestDisableOption(code byte) error {
	if s.State() != Connected {
		return &ErrNotConnected{ID: s.id}
	}
	s.write(telnet.EncodeNegotiate(telnet.CmdDONT, code))
	return nil
}

// SendSubnegotiation writes IAC SB code payload IAC SE.
func (s *Session) SendSubnegotiation(code byte, payload []byte) error {
	if s.State() != Connected {
		return &ErrNotConnected{ID: s.id}
	}
	s.write(telnet.EncodeSubneg(code, payload))
	return nil
}

// SendGMCP encodes and transmits a GMCP message over option 201.
func (s *Session) SendGMCP(m gmcp.Message) error {
	return s.SendSubnegotiation(telnet.OptGMCP, gmcp.Encode(m))
}

// AddTrigger registers a new output trigger, tagged with
// module so a later reload can purge it. cbs is optional (nil for a
// bare gag/expansion trigger with no script callbacks attached).
func (s *Session) AddTrigger(module, pattern string, gag bool, cbs TriggerCallbacks) (ids.Handle, error) {
	return s.AddTriggerRule(module, pattern, gag, true, false, cbs)
}

// AddTriggerRule registers a new output trigger with the full set of
// matching options: stripANSI selects whether the rule matches against
// the line's ANSI-stripped text or its raw text, and promptOnly
// restricts it to prompt-flagged lines only.
func (s *Session) AddTriggerRule(module, pattern string, gag, stripANSI, promptOnly bool, cbs TriggerCallbacks) (ids.Handle, error) {
	h, err := s.triggers.RegisterRule(match.Rule{
		Module:     module,
		Kind:       match.KindTrigger,
		Pattern:    pattern,
		Gag:        gag,
		StripANSI:  stripANSI,
		PromptOnly: promptOnly,
		Enabled:    true,
	})
	if err != nil {
		return 0, err
	}
	if cbs.Highlight != nil || cbs.Async != nil {
		s.mu.Lock()
		s.triggerCbs[h] = cbs
		s.mu.Unlock()
	}
	return h, nil
}

// AddAlias registers a new input alias.
func (s *Session) AddAlias(module, pattern, expansion string) (ids.Handle, error) {
	return s.aliases.RegisterRule(match.Rule{
		Module:    module,
		Kind:      match.KindAlias,
		Pattern:   pattern,
		Expansion: expansion,
		Enabled:   true,
	})
}

// RemoveTrigger removes a trigger and any attached callbacks.
func (s *Session) RemoveTrigger(h ids.Handle) {
	s.triggers.Remove(h)
	s.mu.Lock()
	delete(s.triggerCbs, h)
	s.mu.Unlock()
}

// RemoveAlias removes an alias.
func (s *Session) RemoveAlias(h ids.Handle) {
	s.aliases.Remove(h)
}

// AddTimer schedules a session-scoped timer, tracked so
// Disconnect can stop it and Close can remove it.
func (s *Session) AddTimer(module string, duration time.Duration, maxTicks int, cb timerwheel.FireFunc) ids.Handle {
	h := s.timers.Schedule(module, duration, maxTicks, s.id, cb)
	s.mu.Lock()
	s.ownTimers[h] = struct{}{}
	s.mu.Unlock()
	return h
}

// RemoveTimer cancels and forgets a session-scoped timer.
func (s *Session) RemoveTimer(h ids.Handle) {
	s.timers.Remove(h)
	s.mu.Lock()
	delete(s.ownTimers, h)
	s.mu.Unlock()
}

// Unload purges every trigger, alias, and timer tagged with module
// (purged together on a script reload), plus any commands it registered.
// Handles removed from the trigger/timer tables are also pruned from
// this session's own callback/ownership bookkeeping, so a later reload
// re-registering the same module never leaves a stale entry pointing at
// a handle that no longer exists.
func (s *Session) Unload(module string) {
	removedTriggers := s.triggers.Unload(module)
	s.aliases.Unload(module)
	removedTimers := s.timers.Unload(module)
	s.commands.Unload(module)

	s.mu.Lock()
	for _, h := range removedTriggers {
		delete(s.triggerCbs, h)
	}
	for _, h := range removedTimers {
		delete(s.ownTimers, h)
	}
	s.mu.Unlock()
}

// GMCP returns the session's package-support set.
func (s *Session) GMCP() *gmcp.SupportSet { return s.gmcpSet }

// MudConfig returns the session's immutable configuration snapshot.
func (s *Session) MudConfig() Mud { return s.mud }

// History returns a copy of the input history.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

const defaultPromptTimeout = 300 * time.Millisecond
