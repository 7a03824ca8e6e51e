// Package text provides ANSI stripping, which telnet.MudLine uses to
// derive a server line's Clean text from its Raw text.
package text

import "strings"

// StripANSI removes ANSI escape sequences (CSI and simple ESC-letter
// forms) from s, returning the printable text only.
func StripANSI(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '~' {
				inEscape = false
			}
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}
