// Package gmcp implements mudpuppy's GMCP dispatcher: it
// encodes and decodes the Generic MUD Communication Protocol's
// subnegotiation payloads ("Package.Sub.Name" optionally followed by a
// space and a JSON blob), and tracks which packages a session
// advertises to the server. The whole set is advertised with one
// Core.Supports.Set message; no Core.Supports.Add or Core.Supports.Remove
// messages are built.
//
// GMCP rides inside telnet.Codec's EventSubnegotiation/Option 201
// output; this package owns only the GMCP-specific payload grammar and
// leaves transport to telnet and dispatch-to-scripts to the session.
package gmcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Message is one decoded GMCP package message: the dotted package path
// ("Char.Vitals", "Core.Ping") and its optional JSON payload, kept raw
// so the script bridge can hand it to scripts without an intermediate
// Go type (the embedded scripting runtime is out of scope; GMCP payloads are
// arbitrary user-defined JSON with no schema this core can assume).
type Message struct {
	Package string
	Data    json.RawMessage // nil if the message carried no payload
}

// Decode parses a raw GMCP subnegotiation payload (the bytes between
// IAC SB 201 and IAC SE, already un-escaped by the telnet codec) into a
// Message. The grammar is "<package>[ <json>]"; a package name with no
// trailing space and JSON is valid (e.g. "Core.Ping").
func Decode(payload []byte) (Message, error) {
	s := string(payload)
	sp := strings.IndexByte(s, ' ')
	if sp < 0 {
		if s == "" {
			return Message{}, fmt.Errorf("gmcp: empty message")
		}
		return Message{Package: s}, nil
	}
	pkg := s[:sp]
	if pkg == "" {
		return Message{}, fmt.Errorf("gmcp: empty package name")
	}
	data := json.RawMessage(strings.TrimSpace(s[sp+1:]))
	if !json.Valid(data) {
		return Message{}, fmt.Errorf("gmcp: invalid JSON payload for package %q", pkg)
	}
	return Message{Package: pkg, Data: data}, nil
}

// Encode renders a Message back into the raw subnegotiation payload
// bytes (telnet.EncodeSubneg handles the surrounding IAC SB/SE framing
// and IAC-doubling).
func Encode(m Message) []byte {
	if len(m.Data) == 0 {
		return []byte(m.Package)
	}
	return []byte(m.Package + " " + string(m.Data))
}

// EncodeValue marshals v to JSON and wraps it as a Message payload for
// pkg, returning the same raw bytes Encode would for the resulting
// Message. Convenience for callers sending a typed Go value instead of
// pre-built json.RawMessage (e.g. the session replying to Core.Hello).
func EncodeValue(pkg string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gmcp: marshal %s payload: %w", pkg, err)
	}
	return Encode(Message{Package: pkg, Data: data}), nil
}

// SupportSet tracks the GMCP packages a session has declared support
// for, so the session can answer queries about what it currently
// advertises and can rebuild the Core.Supports.Set list after a script
// registers a new package handler. Add and Remove change only this
// local set; they send nothing to the server.
type SupportSet struct {
	packages map[string]bool
}

// NewSupportSet creates an empty set.
func NewSupportSet() *SupportSet {
	return &SupportSet{packages: make(map[string]bool)}
}

// Add declares support for one or more "Package version" entries
// (version is conventionally embedded, e.g. "Char 1"); this set only
// tracks the package name portion for membership checks.
func (s *SupportSet) Add(packages ...string) {
	for _, p := range packages {
		s.packages[packageName(p)] = true
	}
}

// Remove withdraws support for the named packages.
func (s *SupportSet) Remove(packages ...string) {
	for _, p := range packages {
		delete(s.packages, packageName(p))
	}
}

// Supports reports whether pkg (or its parent, e.g. "Char" for
// "Char.Vitals") has been declared.
func (s *SupportSet) Supports(pkg string) bool {
	name := packageName(pkg)
	if s.packages[name] {
		return true
	}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		return s.packages[name[:dot]]
	}
	return false
}

// List returns every declared package name, sorted for determinism
// (used to build a Core.Supports.Set message).
func (s *SupportSet) List() []string {
	out := make([]string, 0, len(s.packages))
	for p := range s.packages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func packageName(entry string) string {
	if sp := strings.IndexByte(entry, ' '); sp >= 0 {
		return entry[:sp]
	}
	return entry
}

// CoreSupportsSet builds the "Core.Supports.Set" message advertising
// every currently-declared package, each paired with version "1" since
// this core doesn't track per-package protocol versions.
func CoreSupportsSet(s *SupportSet) (Message, error) {
	list := s.List()
	entries := make([]string, len(list))
	for i, p := range list {
		entries[i] = p + " 1"
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return Message{}, fmt.Errorf("gmcp: marshal Core.Supports.Set: %w", err)
	}
	return Message{Package: "Core.Supports.Set", Data: data}, nil
}
