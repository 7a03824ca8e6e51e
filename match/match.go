// Package match implements mudpuppy's trigger/alias/highlight engine.
// Patterns compile to regexps through a shared LRU cache so that
// scripts re-registering the same pattern string (common on a reload)
// don't pay recompilation cost, and every rule is tagged with the
// module that registered it so a reload can purge in one sweep.
//
// It caches compiled patterns in an *lru.Cache[string, *regexp.Regexp]
// the same way a single stateless match() primitive would, but
// generalizes that into registered, ordered, stateful rule tables.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mudpuppy/mudpuppy/ids"
)

// Kind distinguishes the three rule families: trigger, alias, and
// highlight. They
// share compilation and cache machinery but evaluate differently.
type Kind int

const (
	KindTrigger Kind = iota
	KindAlias
	KindHighlight
)

func (k Kind) String() string {
	switch k {
	case KindTrigger:
		return "trigger"
	case KindAlias:
		return "alias"
	case KindHighlight:
		return "highlight"
	default:
		return "unknown"
	}
}

// InvalidPatternError wraps a regexp compile failure with the rule kind
// and pattern that produced it.
type InvalidPatternError struct {
	Kind    Kind
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// Rule is one registered trigger, alias, or highlight. Callbacks are
// opaque to this package; Table only decides order, gag, and hit
// counting, and leaves invocation to the caller (the script bridge).
type Rule struct {
	Handle  ids.Handle
	Module  string
	Kind    Kind
	Pattern string
	re      *regexp.Regexp

	Gag         bool // KindTrigger only: suppress the matched line from output
	StripANSI   bool // strip ANSI escapes from the candidate string before matching (default true)
	PromptOnly  bool // KindTrigger only: only evaluate against prompt-flagged lines
	Expansion   string // KindAlias only: replacement text (capture refs resolved by the caller)
	Enabled     bool
	HitCount    int
	Sequence    uint64 // registration order, for stable iteration
}

// Match is one evaluated hit: the rule plus the capture groups for this
// particular line/input.
type Match struct {
	Rule    *Rule
	Groups  []string // FindStringSubmatch result: [0]=full match, [1:]=groups
}

// Table holds every registered rule of all three kinds for a single
// session, evaluated in registration order: first-registered,
// first-evaluated.
type Table struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *regexp.Regexp]
	rules map[ids.Handle]*Rule
	seq   uint64
	next  ids.Handle
}

// NewTable creates an empty rule table backed by an LRU pattern cache
// sized cacheSize. A single global regex cache of 100 entries is a
// reasonable default, so components that want that can pass
// match.DefaultCacheSize.
func NewTable(cacheSize int) *Table {
	cache, _ := lru.New[string, *regexp.Regexp](cacheSize)
	return &Table{cache: cache, rules: make(map[ids.Handle]*Rule)}
}

// DefaultCacheSize is a reasonable default regex cache size.
const DefaultCacheSize = 100

// Register compiles pattern (via the shared cache) and adds a new,
// enabled rule to the table, returning its Handle. Registration order
// determines evaluation order for same-kind rules.
func (t *Table) Register(module string, kind Kind, pattern string, gag bool) (ids.Handle, error) {
	return t.RegisterRule(Rule{
		Module:    module,
		Kind:      kind,
		Pattern:   pattern,
		Gag:       gag,
		StripANSI: true,
		Enabled:   true,
	})
}

// RegisterRule compiles rule.Pattern and adds rule to the table, filling
// in Handle and Sequence. Used by the script bridge when a trigger or
// alias is registered with the full set of optional fields (strip_ansi,
// prompt-only, expansion) rather than Register's common-case subset.
func (t *Table) RegisterRule(rule Rule) (ids.Handle, error) {
	re, err := t.compile(rule.Kind, rule.Pattern)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.seq++
	rule.Handle = h
	rule.Sequence = t.seq
	rule.re = re
	t.rules[h] = &rule
	return h, nil
}

func (t *Table) compile(kind Kind, pattern string) (*regexp.Regexp, error) {
	if re, ok := t.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &InvalidPatternError{Kind: kind, Pattern: pattern, Err: err}
	}
	t.cache.Add(pattern, re)
	return re, nil
}

// Remove deletes a single rule by handle.
func (t *Table) Remove(h ids.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rules, h)
}

// SetEnabled toggles a rule without removing it.
func (t *Table) SetEnabled(h ids.Handle, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rules[h]; ok {
		r.Enabled = enabled
	}
}

// Unload removes every rule registered by module (hot-reload purge) and
// returns the handles removed, so a caller tracking per-handle state of
// its own (callbacks, timer bookkeeping) can prune it too.
func (t *Table) Unload(module string) []ids.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []ids.Handle
	for h, r := range t.rules {
		if r.Module == module {
			delete(t.rules, h)
			removed = append(removed, h)
		}
	}
	return removed
}

// Get returns the rule for a handle, or nil if it doesn't exist.
func (t *Table) Get(h ids.Handle) *Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rules[h]
}

// List returns every rule of kind in registration order.
func (t *Table) List(kind Kind) []*Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Rule, 0, len(t.rules))
	for _, r := range t.rules {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Evaluate runs every enabled rule of kind against raw/clean in
// registration order, returning every match. A rule only runs if its
// PromptOnly flag agrees with prompt (prompt-only rules skip non-prompt
// lines and vice versa), and matches against clean unless the rule's
// StripANSI is false, in which case it matches against raw. Disabled
// rules are skipped; hit count is incremented in-place for each
// matching enabled rule.
func (t *Table) Evaluate(kind Kind, raw, clean string, prompt bool) []Match {
	t.mu.Lock()
	rules := make([]*Rule, 0, len(t.rules))
	for _, r := range t.rules {
		if r.Kind == kind && r.Enabled && r.PromptOnly == prompt {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Sequence < rules[j].Sequence })
	t.mu.Unlock()

	var out []Match
	for _, r := range rules {
		candidate := clean
		if !r.StripANSI {
			candidate = raw
		}
		groups := r.re.FindStringSubmatch(candidate)
		if groups == nil {
			continue
		}
		t.mu.Lock()
		r.HitCount++
		t.mu.Unlock()
		out = append(out, Match{Rule: r, Groups: groups})
	}
	return out
}

// FirstGag reports whether any KindTrigger match in ms has Gag set,
// which callers use to decide whether to suppress the originating line
// from the display buffer. A single gagging trigger hides the whole
// line, regardless of how many other triggers also matched.
func FirstGag(ms []Match) bool {
	for _, m := range ms {
		if m.Rule.Kind == KindTrigger && m.Rule.Gag {
			return true
		}
	}
	return false
}
