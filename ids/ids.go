// Package ids defines the small set of identifier types shared across
// package boundaries (session, timer, trigger/alias handles) so that
// leaf packages don't need to import the registry or session packages
// just to talk about "which session".
package ids

// SessionID uniquely identifies a session for the lifetime of the
// process. IDs are assigned monotonically by the registry and are
// never reused.
type SessionID int64

// NoSession is the zero value, used for global (session-less) timers and
// for bus events that aren't scoped to any one session.
const NoSession SessionID = 0

// Handle identifies a trigger, alias, or buffer within its owning
// session. Timers use a process-global Handle instead.
type Handle int64
