package telnet

import "github.com/mudpuppy/mudpuppy/text"

// MudLine is a line received from the MUD. It is mutable only
// through Set, which a highlight callback uses to replace the displayed
// form before the line reaches the output buffer; Raw/Clean otherwise
// stay fixed once the codec produces the line.
type MudLine struct {
	Raw    string
	Clean  string
	Prompt bool
	Gag    bool
}

// NewMudLine builds a MudLine from raw bytes, stripping ANSI to produce
// the Clean form used for matching.
func NewMudLine(raw []byte) *MudLine {
	s := string(raw)
	return &MudLine{Raw: s, Clean: text.StripANSI(s)}
}

// Set replaces the displayed text of the line (used by highlight
// callbacks). Both Raw and Clean are updated so later triggers and a
// second highlight see consistent content.
func (l *MudLine) Set(newText string) {
	l.Raw = newText
	l.Clean = text.StripANSI(newText)
}
