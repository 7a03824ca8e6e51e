// Package timerwheel implements mudpuppy's timer wheel: a
// priority queue of callbacks keyed on next-fire time, each with an
// optional tick cap and an optional session association. Global timers
// (no session) are handed the currently focused session ID as a hint
// when they fire, since scripts often want "whichever MUD I'm looking
// at" rather than a fixed one.
//
// It generalizes a one-shot/fixed-interval timer service scoped to a
// single process-wide session into per-session ownership, a
// remaining-tick budget, and a pause/resume (Stop vs Remove) distinction.
package timerwheel

import (
	"container/heap"
	"sync"
	"time"

	"github.com/mudpuppy/mudpuppy/ids"
)

// FocusHint reports the session a fired global timer should treat as
// "current". Focused is false if no session has focus.
type FocusHint struct {
	SessionID ids.SessionID
	Focused   bool
}

// FocusSource supplies the registry's currently focused session to the
// wheel without creating a timerwheel->registry import.
type FocusSource func() FocusHint

// FireFunc is invoked on the script executor when a timer fires. id is
// the firing timer's handle; hint carries the focus hint for global
// timers (always Focused=true with the timer's own SessionID for
// session-scoped timers).
type FireFunc func(id ids.Handle, hint FocusHint)

// Timer is one scheduled entry. Config fields (Duration, MaxTicks,
// SessionID, Module) are immutable after Schedule; TickCount and
// Remaining are runtime state.
type Timer struct {
	Handle    ids.Handle
	Module    string
	Duration  time.Duration
	MaxTicks  int // 0 means unbounded
	SessionID ids.SessionID // ids.NoSession for a global timer
	Callback  FireFunc

	TickCount int
	Remaining int // only meaningful when MaxTicks > 0
	stopped   bool
	next      time.Time
	index     int // heap.Interface bookkeeping
}

// Wheel is a priority queue of Timers keyed on next-fire time, driven
// by a single underlying clock goroutine (runs on the executor, no
// per-timer goroutine).
type Wheel struct {
	mu     sync.Mutex
	pq     timerHeap
	byID   map[ids.Handle]*Timer
	next   ids.Handle
	focus  FocusSource
	timer  *time.Timer
	stopCh chan struct{}
}

// New creates an empty wheel. focus supplies the registry's active
// session for global-timer fire hints; pass a func that always returns
// FocusHint{} if global timers aren't needed yet.
func New(focus FocusSource) *Wheel {
	w := &Wheel{
		byID:   make(map[ids.Handle]*Timer),
		focus:  focus,
		stopCh: make(chan struct{}),
	}
	heap.Init(&w.pq)
	return w
}

// Schedule adds a new timer firing every duration, up to maxTicks times
// (0 = unbounded), associated with sessionID (ids.NoSession for
// global). Returns the new timer's Handle.
func (w *Wheel) Schedule(module string, duration time.Duration, maxTicks int, sessionID ids.SessionID, cb FireFunc) ids.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	h := w.next
	t := &Timer{
		Handle:    h,
		Module:    module,
		Duration:  duration,
		MaxTicks:  maxTicks,
		Remaining: maxTicks,
		SessionID: sessionID,
		Callback:  cb,
		next:      time.Now().Add(duration),
	}
	w.byID[h] = t
	heap.Push(&w.pq, t)
	w.rearm()
	return h
}

// Stop pauses a timer without destroying it: it stops ticking but
// retains its remaining tick budget and can be resumed with Resume.
func (w *Wheel) Stop(h ids.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.byID[h]
	if !ok || t.stopped {
		return
	}
	t.stopped = true
	w.pq.remove(t)
	w.rearm()
}

// Resume reactivates a timer previously paused with Stop, rescheduling
// it duration from now with its remaining tick budget intact.
func (w *Wheel) Resume(h ids.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.byID[h]
	if !ok || !t.stopped {
		return
	}
	t.stopped = false
	t.next = time.Now().Add(t.Duration)
	heap.Push(&w.pq, t)
	w.rearm()
}

// Remove destroys a timer permanently.
func (w *Wheel) Remove(h ids.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.byID[h]
	if !ok {
		return
	}
	delete(w.byID, h)
	if !t.stopped {
		w.pq.remove(t)
	}
	w.rearm()
}

// RemoveAll destroys every timer in the wheel.
func (w *Wheel) RemoveAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byID = make(map[ids.Handle]*Timer)
	w.pq = nil
	w.rearm()
}

// Unload removes every timer registered by module (hot-reload purge)
// and returns the handles removed, so a caller tracking per-handle
// ownership of its own can prune it too.
func (w *Wheel) Unload(module string) []ids.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	var removed []ids.Handle
	for h, t := range w.byID {
		if t.Module == module {
			delete(w.byID, h)
			if !t.stopped {
				w.pq.remove(t)
			}
			removed = append(removed, h)
		}
	}
	w.rearm()
	return removed
}

// Get returns the timer for h, or nil.
func (w *Wheel) Get(h ids.Handle) *Timer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.byID[h]
}

// rearm must be called with w.mu held. It (re)arms the underlying
// time.Timer to fire at the next-due entry's time, or stops it if the
// wheel is empty.
func (w *Wheel) rearm() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.pq) == 0 {
		return
	}
	delay := time.Until(w.pq[0].next)
	if delay < 0 {
		delay = 0
	}
	w.timer = time.AfterFunc(delay, w.tick)
}

// tick fires every due timer, reschedules or removes it per its tick
// budget, then rearms for the next-soonest entry. Callbacks run
// outside the lock so they can themselves call back into the wheel
// (e.g. to cancel a sibling timer) without deadlocking.
func (w *Wheel) tick() {
	now := time.Now()
	var due []*Timer

	w.mu.Lock()
	for len(w.pq) > 0 && !w.pq[0].next.After(now) {
		t := heap.Pop(&w.pq).(*Timer)
		t.TickCount++
		if t.MaxTicks > 0 {
			t.Remaining--
		}
		due = append(due, t)

		if t.MaxTicks > 0 && t.Remaining <= 0 {
			delete(w.byID, t.Handle)
		} else {
			t.next = now.Add(t.Duration)
			heap.Push(&w.pq, t)
		}
	}
	w.rearm()
	w.mu.Unlock()

	for _, t := range due {
		if t.Callback == nil {
			continue
		}
		hint := FocusHint{SessionID: t.SessionID, Focused: true}
		if t.SessionID == ids.NoSession && w.focus != nil {
			hint = w.focus()
		}
		t.Callback(t.Handle, hint)
	}
}

// timerHeap implements container/heap.Interface over *Timer, ordered by
// next-fire time.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].next.Before(h[j].next) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// remove deletes t from the heap by its tracked index. No-op if t
// isn't currently present (already popped or never pushed).
func (h *timerHeap) remove(t *Timer) {
	if t.index < 0 || t.index >= len(*h) || (*h)[t.index] != t {
		return
	}
	heap.Remove(h, t.index)
}
