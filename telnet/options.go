package telnet

// Telnet command bytes (RFC 854 plus the EOR/GA prompt signals MUDs rely on).
const (
	CmdIAC  byte = 255 // Interpret As Command
	CmdWILL byte = 251
	CmdWONT byte = 252
	CmdDO   byte = 253
	CmdDONT byte = 254
	CmdNOP  byte = 241
	CmdSB   byte = 250 // Subnegotiation begin
	CmdSE   byte = 240 // Subnegotiation end
	CmdGA   byte = 249 // Go ahead
	CmdEOR  byte = 239 // End of record
)

// Recognized option codes; the rest of the 0-255 space is tracked
// generically but refused by default policy.
const (
	OptEcho   byte = 1
	OptSGA    byte = 3
	OptTTYPE  byte = 24
	OptEOR    byte = 25
	OptNAWS   byte = 31
	OptCharset byte = 42
	OptMSSP   byte = 70
	OptMCCP2  byte = 86
	OptGMCP   byte = 201
)

// DefaultCompatibility returns the compatibility table mudpuppy negotiates
// by default: the full recognized option set, minus MCCP2 decoding
// (MCCP2 is negotiated but never decompressed).
func DefaultCompatibility() CompatibilityTable {
	t := NewCompatibilityTable()
	t.Support(OptEcho)
	t.Support(OptSGA)
	t.Support(OptEOR)
	t.Support(OptNAWS)
	t.Support(OptTTYPE)
	t.Support(OptCharset)
	t.Support(OptMSSP)
	t.Support(OptMCCP2)
	t.Support(OptGMCP)
	return t
}
