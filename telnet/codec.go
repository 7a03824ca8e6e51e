// Package telnet implements the Telnet protocol codec for mudpuppy: IAC
// command/negotiation/subnegotiation framing (Q-method option state
// machine), line/prompt assembly, and the small set of options MUD
// servers actually speak (ECHO, SGA, EOR, NAWS, TTYPE, CHARSET, MSSP,
// MCCP2 negotiate-only, GMCP). It is a generalization of a
// libmudtelnet-style port: same extract/process state machine, redone
// around MudLine/terminator-kind framing instead of a separate
// line-splitting pass.
package telnet

import "fmt"

// TerminatorKind identifies how a LineReady event's text was delimited.
type TerminatorKind int

const (
	Unterminated TerminatorKind = iota // emitted only by the prompt detector's timeout flush
	CRLF
	LF
	CR
	EndOfRecord // terminated by IAC EOR
	GoAhead     // terminated by IAC GA
)

// EventKind enumerates the decode outputs the codec produces.
type EventKind int

const (
	EventLineReady EventKind = iota
	EventIAC
	EventOptionNegotiate
	EventSubnegotiation
	EventBufferedBytes
	EventOptionEnabled
	EventOptionDisabled
)

// Event is a single decode output of Codec.Receive.
type Event struct {
	Kind       EventKind
	Line       []byte         // EventLineReady
	Terminator TerminatorKind // EventLineReady
	Command    byte           // EventIAC: NOP or any bare IAC command other than GA/EOR
	Action     byte           // EventOptionNegotiate/Enabled/Disabled: WILL/WONT/DO/DONT
	Option     byte           // EventOptionNegotiate/Subnegotiation/Enabled/Disabled
	Payload    []byte         // EventSubnegotiation: unescaped payload bytes
	N          int            // EventBufferedBytes: bytes currently held in the partial-line buffer
}

// CodecError reports a malformed telnet sequence (currently: a
// subnegotiation that never terminates and has exceeded maxSubnegSize).
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string { return "telnet: " + e.Reason }

// maxSubnegSize bounds how much data the codec will buffer while waiting
// for an unterminated IAC SB ... IAC SE sequence, so a malformed or
// malicious stream can't grow the reassembly buffer without bound.
const maxSubnegSize = 64 * 1024

// Codec frames a byte stream into lines and out-of-band telnet events.
// It is not safe for concurrent use; callers serialize Receive calls
// per connection (matching the single-threaded executor discipline
// the rest of the engine follows).
type Codec struct {
	Options CompatibilityTable

	raw     []byte // leftover bytes mid IAC/negotiation/subnegotiation sequence
	lineBuf []byte // bytes accumulated for the line currently in progress
	afterCR bool   // the last chunk ended in \r, already emitted as a CR line

	// refused records options we already declined, [0] for WILL and
	// [1] for DO, so a repeated request is not answered again.
	refused [2][256]bool
}

// NewCodec creates a codec with the given option compatibility table.
func NewCodec(table CompatibilityTable) *Codec {
	return &Codec{Options: table}
}

// Receive ingests data read from the network and returns the decode
// events it produces, plus raw bytes the caller must write back
// (auto-negotiation replies). It never blocks and never touches the
// network itself.
func (c *Codec) Receive(data []byte) ([]Event, [][]byte, error) {
	c.raw = append(c.raw, data...)
	buf := c.raw
	c.raw = nil

	var events []Event
	var replies [][]byte

	i := 0
	for i < len(buf) {
		if buf[i] != CmdIAC {
			j := i
			for j < len(buf) && buf[j] != CmdIAC {
				j++
			}
			events = append(events, c.acceptData(buf[i:j])...)
			i = j
			continue
		}

		// buf[i] == IAC
		if i+1 >= len(buf) {
			c.raw = append(c.raw, buf[i:]...)
			break
		}

		cmd := buf[i+1]
		switch cmd {
		case CmdIAC:
			// Escaped IAC (0xFF 0xFF) inside plain data.
			events = append(events, c.acceptData([]byte{CmdIAC})...)
			i += 2

		case CmdGA, CmdEOR:
			// The partial line ends here, so drop its progress report.
			if n := len(events); n > 0 && events[n-1].Kind == EventBufferedBytes {
				events = events[:n-1]
			}
			events = append(events, c.flushLine(terminatorFor(cmd))...)
			i += 2

		case CmdSB:
			consumed, ev, reply, err := c.processSubnegotiation(buf[i:])
			if err != nil {
				return events, replies, err
			}
			if consumed == 0 {
				c.raw = append(c.raw, buf[i:]...)
				i = len(buf)
				break
			}
			if ev != nil {
				events = append(events, *ev)
			}
			if reply != nil {
				replies = append(replies, reply)
			}
			i += consumed

		case CmdWILL, CmdWONT, CmdDO, CmdDONT:
			if i+2 >= len(buf) {
				c.raw = append(c.raw, buf[i:]...)
				i = len(buf)
				break
			}
			opt := buf[i+2]
			negEvents, reply := c.processNegotiation(cmd, opt)
			events = append(events, negEvents...)
			if reply != nil {
				replies = append(replies, reply)
			}
			i += 3

		default:
			// Bare IAC command (NOP and friends).
			events = append(events, Event{Kind: EventIAC, Command: cmd})
			i += 2
		}
	}

	return events, replies, nil
}

// acceptData folds plain received bytes into the in-progress line,
// splitting on CRLF/LF/CR and reporting buffered-byte progress for any
// leftover partial line (the signal a timeout-restart needs).
func (c *Codec) acceptData(chunk []byte) []Event {
	if c.afterCR {
		c.afterCR = false
		if len(chunk) > 0 && chunk[0] == '\n' {
			chunk = chunk[1:]
		}
	}
	if len(chunk) == 0 {
		return nil
	}
	c.lineBuf = append(c.lineBuf, chunk...)

	var events []Event
	buf := c.lineBuf
	last := 0
	i := 0
	for i < len(buf) {
		switch buf[i] {
		case '\r':
			if i+1 < len(buf) {
				if buf[i+1] == '\n' {
					events = append(events, Event{Kind: EventLineReady, Line: cloneRange(buf, last, i), Terminator: CRLF})
					i += 2
					last = i
					continue
				}
				events = append(events, Event{Kind: EventLineReady, Line: cloneRange(buf, last, i), Terminator: CR})
				i++
				last = i
				continue
			}
			// Lone trailing \r ends a CR line now; a \n that starts the
			// next chunk completes a split \r\n and is dropped.
			events = append(events, Event{Kind: EventLineReady, Line: cloneRange(buf, last, i), Terminator: CR})
			i++
			last = i
			c.afterCR = true
		case '\n':
			events = append(events, Event{Kind: EventLineReady, Line: cloneRange(buf, last, i), Terminator: LF})
			i++
			last = i
		default:
			i++
		}
	}
	remaining := buf[last:]
	if len(remaining) > 0 {
		c.lineBuf = append([]byte(nil), remaining...)
		events = append(events, Event{Kind: EventBufferedBytes, N: len(c.lineBuf)})
	} else {
		c.lineBuf = nil
	}
	return events
}

// flushLine terminates whatever is currently buffered as a LineReady
// event with the given terminator kind (used for IAC GA/EOR signals).
func (c *Codec) flushLine(term TerminatorKind) []Event {
	line := c.lineBuf
	c.lineBuf = nil
	return []Event{{Kind: EventLineReady, Line: line, Terminator: term}}
}

func terminatorFor(cmd byte) TerminatorKind {
	if cmd == CmdEOR {
		return EndOfRecord
	}
	return GoAhead
}

// processNegotiation applies Q-method accept/reject rules for a single
// WILL/WONT/DO/DONT and returns the events to emit plus any reply bytes
// to send. OptionNegotiate is always emitted for a complete negotiation;
// OptionEnabled/OptionDisabled are emitted only when state actually
// transitions, keeping repeated negotiations idempotent.
func (c *Codec) processNegotiation(cmd, opt byte) ([]Event, []byte) {
	before := c.Options.Get(opt)
	entry := before
	var reply []byte

	switch cmd {
	case CmdWILL:
		if entry.Remote {
			entry.RemoteState = true
			reply = []byte{CmdIAC, CmdDO, opt}
		} else {
			entry.RemoteState = false
			reply = []byte{CmdIAC, CmdDONT, opt}
			if c.refused[0][opt] {
				reply = nil
			}
			c.refused[0][opt] = true
		}
	case CmdWONT:
		entry.RemoteState = false
		reply = []byte{CmdIAC, CmdDONT, opt}
	case CmdDO:
		if entry.Local {
			entry.LocalState = true
			reply = []byte{CmdIAC, CmdWILL, opt}
		} else {
			entry.LocalState = false
			reply = []byte{CmdIAC, CmdWONT, opt}
			if c.refused[1][opt] {
				reply = nil
			}
			c.refused[1][opt] = true
		}
	case CmdDONT:
		entry.LocalState = false
		reply = []byte{CmdIAC, CmdWONT, opt}
	}

	c.Options.Set(opt, entry)

	events := []Event{{Kind: EventOptionNegotiate, Action: cmd, Option: opt}}
	wasYes := before.LocalState || before.RemoteState
	isYes := entry.LocalState || entry.RemoteState
	switch {
	case !wasYes && isYes:
		events = append(events, Event{Kind: EventOptionEnabled, Action: cmd, Option: opt})
	case wasYes && !isYes:
		events = append(events, Event{Kind: EventOptionDisabled, Action: cmd, Option: opt})
	}

	// Suppress no-op replies: if the reply would just re-assert the
	// already-current state we already sent, don't resend (breaks
	// negotiation loops, a core Q-method property).
	if replyIsNoop(before, entry, cmd) {
		reply = nil
	}
	return events, reply
}

// replyIsNoop reports whether the negotiated state didn't actually
// change, meaning our auto-reply would just restate what the peer
// already knows (and a symmetric peer would reply right back, looping).
func replyIsNoop(before, after CompatibilityEntry, cmd byte) bool {
	switch cmd {
	case CmdWILL, CmdWONT:
		return before.RemoteState == after.RemoteState && wasNegotiated(before, cmd)
	case CmdDO, CmdDONT:
		return before.LocalState == after.LocalState && wasNegotiated(before, cmd)
	}
	return false
}

// wasNegotiated reports whether we've already settled this direction at
// least once (i.e. this isn't the first time we've seen the command),
// approximated here by checking whether the pre-negotiation state
// already matched what the command requests.
func wasNegotiated(before CompatibilityEntry, cmd byte) bool {
	switch cmd {
	case CmdWILL:
		return before.RemoteState
	case CmdWONT:
		return !before.RemoteState
	case CmdDO:
		return before.LocalState
	case CmdDONT:
		return !before.LocalState
	}
	return false
}

// processSubnegotiation consumes one IAC SB <opt> ... IAC SE sequence
// starting at buf[0]. Returns the number of bytes consumed (0 if the
// sequence is incomplete and should be retried once more data arrives).
func (c *Codec) processSubnegotiation(buf []byte) (int, *Event, []byte, error) {
	if len(buf) < 3 {
		return 0, nil, nil, nil
	}
	opt := buf[2]

	i := 3
	var payload []byte
	for {
		if i >= len(buf) {
			if i-3 > maxSubnegSize {
				return 0, nil, nil, &CodecError{Reason: fmt.Sprintf("subnegotiation for option %d exceeded %d bytes without IAC SE", opt, maxSubnegSize)}
			}
			return 0, nil, nil, nil // incomplete, wait for more
		}
		if buf[i] == CmdIAC {
			if i+1 >= len(buf) {
				return 0, nil, nil, nil // incomplete: dangling IAC
			}
			if buf[i+1] == CmdSE {
				ev := Event{Kind: EventSubnegotiation, Option: opt, Payload: payload}
				return i + 2, &ev, nil, nil
			}
			if buf[i+1] == CmdIAC {
				payload = append(payload, CmdIAC)
				i += 2
				continue
			}
			// Stray IAC <other> inside subneg payload: treat <other> as data.
			payload = append(payload, buf[i+1])
			i += 2
			continue
		}
		payload = append(payload, buf[i])
		i++
	}
}

// PendingText returns the text currently buffered for the in-progress,
// not-yet-terminated line (used by the prompt detector's timeout flush).
func (c *Codec) PendingText() string {
	return string(c.lineBuf)
}

func cloneRange(buf []byte, from, to int) []byte {
	if from >= to {
		return []byte{}
	}
	out := make([]byte, to-from)
	copy(out, buf[from:to])
	return out
}

// --- Encoding ---

// EscapeIAC doubles IAC bytes so they survive subnegotiation framing.
func EscapeIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		out = append(out, b)
		if b == CmdIAC {
			out = append(out, CmdIAC)
		}
	}
	return out
}

// EncodeLine appends CRLF to text for transmission. The sent
// terminator is always CRLF regardless of what was accepted on receive.
func EncodeLine(text []byte) []byte {
	out := make([]byte, 0, len(text)+2)
	out = append(out, text...)
	out = append(out, '\r', '\n')
	return out
}

// EncodeIAC encodes a bare IAC command (e.g. NOP).
func EncodeIAC(code byte) []byte {
	return []byte{CmdIAC, code}
}

// EncodeNegotiate encodes an IAC WILL/WONT/DO/DONT <option> sequence.
func EncodeNegotiate(action, option byte) []byte {
	return []byte{CmdIAC, action, option}
}

// EncodeSubneg encodes IAC SB <option> <payload, IAC-doubled> IAC SE.
func EncodeSubneg(option byte, payload []byte) []byte {
	escaped := EscapeIAC(payload)
	out := make([]byte, 0, 3+len(escaped)+2)
	out = append(out, CmdIAC, CmdSB, option)
	out = append(out, escaped...)
	out = append(out, CmdIAC, CmdSE)
	return out
}
