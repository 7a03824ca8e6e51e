package telnet

// CompatibilityEntry tracks the Q-method negotiation state for a single
// option: whether we support it locally/remotely, and whether it is
// currently enabled in each direction.
type CompatibilityEntry struct {
	Local       bool // we support this option (us -> them, WILL/WONT)
	Remote      bool // we accept the remote using it (them -> us, DO/DONT)
	LocalState  bool // currently enabled locally
	RemoteState bool // currently enabled remotely
}

const (
	bitLocal byte = 1 << iota
	bitRemote
	bitLocalState
	bitRemoteState
)

func (e CompatibilityEntry) pack() byte {
	var b byte
	if e.Local {
		b |= bitLocal
	}
	if e.Remote {
		b |= bitRemote
	}
	if e.LocalState {
		b |= bitLocalState
	}
	if e.RemoteState {
		b |= bitRemoteState
	}
	return b
}

func unpack(b byte) CompatibilityEntry {
	return CompatibilityEntry{
		Local:       b&bitLocal != 0,
		Remote:      b&bitRemote != 0,
		LocalState:  b&bitLocalState != 0,
		RemoteState: b&bitRemoteState != 0,
	}
}

// CompatibilityTable tracks Q-method state for all 256 option codes in a
// compact byte-per-option array. Unknown options default to the zero
// entry (not locally or remotely supported), which is "refuse by default".
type CompatibilityTable struct {
	options [256]byte
}

// NewCompatibilityTable returns an empty table (nothing supported).
func NewCompatibilityTable() CompatibilityTable {
	return CompatibilityTable{}
}

// Support enables both local and remote support for an option.
func (t *CompatibilityTable) Support(option byte) {
	e := t.Get(option)
	e.Local = true
	e.Remote = true
	t.Set(option, e)
}

// SupportLocal enables only local (WILL/WONT) support.
func (t *CompatibilityTable) SupportLocal(option byte) {
	e := t.Get(option)
	e.Local = true
	t.Set(option, e)
}

// SupportRemote enables only remote (DO/DONT) acceptance.
func (t *CompatibilityTable) SupportRemote(option byte) {
	e := t.Get(option)
	e.Remote = true
	t.Set(option, e)
}

// Get returns the current entry for option.
func (t *CompatibilityTable) Get(option byte) CompatibilityEntry {
	return unpack(t.options[option])
}

// Set stores the entry for option.
func (t *CompatibilityTable) Set(option byte, e CompatibilityEntry) {
	t.options[option] = e.pack()
}

// ResetStates clears all negotiated enable/disable state while keeping
// which options are locally/remotely supported (used on reconnect).
func (t *CompatibilityTable) ResetStates() {
	for i := range t.options {
		e := unpack(t.options[i])
		e.LocalState = false
		e.RemoteState = false
		t.options[i] = e.pack()
	}
}
