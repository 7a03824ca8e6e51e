package session

import (
	"github.com/mudpuppy/mudpuppy/dial"
	"github.com/mudpuppy/mudpuppy/ids"
)

// Status is a session's connection state machine: exactly
// Disconnected | Connecting | Connected{StreamInfo}.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Echo reports the Telnet ECHO state an InputLine was composed under:
// it reflects negotiation state at compose time, not send time.
type Echo int

const (
	EchoNormal Echo = iota
	EchoPassword
)

// InputLine is one user- or script-originated send.
type InputLine struct {
	Sent     string
	Original string // populated only when an alias expansion changed Sent
	Echo     Echo
	Scripted bool
}

// Mud is the immutable per-session connection configuration snapshot,
// embedding the dial.Mud fields the connection manager needs plus the
// full set of session-level options.
type Mud struct {
	Name string
	dial.Mud

	EchoInput                bool
	NoLineWrap                bool
	HoldPrompt                bool
	CommandSeparator          string
	CommandPrefix             string
	SplitviewPercentage       int
	SplitviewMarginHorizontal int
	SplitviewMarginVertical   int
	DebugGMCP                 bool
}

// OutputCapacity is the default bounded output-buffer size: a bounded
// ring with configurable capacity, sized to a generous terminal
// scrollback without being unbounded.
const OutputCapacity = 5000

// HistoryCapacity bounds InputLine history the same way.
const HistoryCapacity = 10000

// ids re-exported for callers that only import package session.
type SessionID = ids.SessionID
