package telnet

import (
	"bytes"
	"testing"
)

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestTerminatorParsing(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want TerminatorKind
	}{
		{"crlf", "abc\r\n", CRLF},
		{"lf", "abc\n", LF},
		{"cr", "abc\r", CR},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCodec(DefaultCompatibility())
			events, _, err := c.Receive([]byte(tc.in))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != 1 || events[0].Kind != EventLineReady {
				t.Fatalf("want one LineReady event, got %+v", events)
			}
			if !bytes.Equal(events[0].Line, []byte("abc")) {
				t.Fatalf("want line %q, got %q", "abc", events[0].Line)
			}
			if events[0].Terminator != tc.want {
				t.Fatalf("want terminator %v got %v", tc.want, events[0].Terminator)
			}
		})
	}
}

func TestTwoLinesInOrder(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	events, _, err := c.Receive([]byte("abc\r\ndef\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events, got %d: %+v", len(events), events)
	}
	if !bytes.Equal(events[0].Line, []byte("abc")) || !bytes.Equal(events[1].Line, []byte("def")) {
		t.Fatalf("unexpected lines: %q %q", events[0].Line, events[1].Line)
	}
}

func TestCRLFSplitAcrossReads(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	events, _, err := c.Receive([]byte("abc\r"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventLineReady || events[0].Terminator != CR || string(events[0].Line) != "abc" {
		t.Fatalf("want CR-terminated line on trailing \\r, got %+v", events)
	}
	events, _, err = c.Receive([]byte("\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("want the \\n completing a split CRLF to add no line, got %+v", events)
	}
}

func TestBufferedBytesTick(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	events, _, err := c.Receive([]byte("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventBufferedBytes || events[0].N != 2 {
		t.Fatalf("want BufferedBytes(2), got %+v", events)
	}
}

func TestEOREndsLineImmediately(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	data := append([]byte("ok"), CmdIAC, CmdEOR)
	events, _, err := c.Receive(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventLineReady || events[0].Terminator != EndOfRecord {
		t.Fatalf("want EOR-terminated line, got %+v", events)
	}
	if string(events[0].Line) != "ok" {
		t.Fatalf("want line 'ok', got %q", events[0].Line)
	}
}

func TestQMethodSettlesWithoutLooping(t *testing.T) {
	// Peer offers WILL NAWS; we don't locally support remote NAWS usage by
	// default unless SupportRemote is set. Here we simulate the other
	// direction: server asks DO <opt>, we refuse because not locally
	// supported, and must not keep renegotiating.
	c := NewCodec(NewCompatibilityTable())
	events, replies, err := c.Receive([]byte{CmdIAC, CmdDO, OptNAWS})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || !bytes.Equal(replies[0], []byte{CmdIAC, CmdWONT, OptNAWS}) {
		t.Fatalf("want WONT reply, got %+v", replies)
	}
	if len(events) != 1 || events[0].Kind != EventOptionNegotiate {
		t.Fatalf("want one OptionNegotiate event (no Enabled), got %+v", events)
	}

	// Re-send DO: since we already settled on WONT, no further reply.
	_, replies2, err := c.Receive([]byte{CmdIAC, CmdDO, OptNAWS})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies2) != 0 {
		t.Fatalf("want no repeated negotiation, got %+v", replies2)
	}
}

func TestOptionEnabledIdempotent(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	_, _, err := c.Receive([]byte{CmdIAC, CmdWILL, OptEOR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events, _, err := c.Receive([]byte{CmdIAC, CmdWILL, OptEOR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range events {
		if e.Kind == EventOptionEnabled {
			t.Fatalf("want no re-emitted OptionEnabled on repeat WILL, got %+v", events)
		}
	}
}

func TestSubnegotiationRoundTripWithEscapedIAC(t *testing.T) {
	payload := []byte{1, CmdIAC, 2, 3}
	encoded := EncodeSubneg(OptGMCP, payload)

	c := NewCodec(DefaultCompatibility())
	events, _, err := c.Receive(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventSubnegotiation {
		t.Fatalf("want one Subnegotiation event, got %+v", events)
	}
	if !bytes.Equal(events[0].Payload, payload) {
		t.Fatalf("payload mismatch: want %v got %v", payload, events[0].Payload)
	}
}

func TestSplitNegotiationAcrossReads(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	events, _, err := c.Receive([]byte{CmdIAC, CmdDO})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("want no events yet, got %+v", events)
	}
	events, replies, err := c.Receive([]byte{OptNAWS})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("want negotiation events once option byte arrives")
	}
	if len(replies) != 1 || !bytes.Equal(replies[0], []byte{CmdIAC, CmdWILL, OptNAWS}) {
		t.Fatalf("want WILL NAWS reply, got %+v", replies)
	}
}

func TestMalformedSubnegotiationErrors(t *testing.T) {
	c := NewCodec(DefaultCompatibility())
	big := make([]byte, maxSubnegSize+10)
	data := append([]byte{CmdIAC, CmdSB, OptGMCP}, big...)
	_, _, err := c.Receive(data)
	if err == nil {
		t.Fatalf("want CodecError for unterminated oversized subnegotiation")
	}
	if _, ok := err.(*CodecError); !ok {
		t.Fatalf("want *CodecError, got %T", err)
	}
}
