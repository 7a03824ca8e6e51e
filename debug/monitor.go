// Package debug provides registry-wide runtime monitoring, gated behind
// MUDPUPPY_DEBUG=1. Where a single-session client would watch one
// fixed session's Stats(), this one walks
// every live session in the registry each tick.
package debug

import (
	"context"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/mudpuppy/mudpuppy/registry"
	"github.com/mudpuppy/mudpuppy/session"
)

// Enabled returns true if debug mode is active (MUDPUPPY_DEBUG=1).
func Enabled() bool {
	return os.Getenv("MUDPUPPY_DEBUG") == "1"
}

// Monitor periodically logs per-session statistics for every session in
// the registry when debug mode is enabled.
type Monitor struct {
	reg      *registry.Registry
	interval time.Duration
	logger   *log.Logger
}

// NewMonitor creates a registry-wide monitor. Returns nil if debug mode
// is not enabled, so
// callers can unconditionally call Start on the result.
func NewMonitor(reg *registry.Registry, out *os.File) *Monitor {
	if !Enabled() {
		return nil
	}
	if out == nil {
		out = os.Stderr
	}
	return &Monitor{
		reg:      reg,
		interval: 5 * time.Second,
		logger:   log.New(out, "", log.LstdFlags),
	}
}

// Start begins the monitoring loop in a goroutine, stopping when ctx is
// canceled. A nil Monitor is a safe no-op.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil {
		return
	}
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Println("[DEBUG] monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Println("[DEBUG] monitor stopped")
			return
		case <-ticker.C:
			m.logStats()
		}
	}
}

func (m *Monitor) logStats() {
	m.logger.Printf("[DEBUG] sessions=%d active=%d goroutines=%d", m.reg.Len(), m.reg.Active(), runtime.NumGoroutine())
	for _, s := range m.reg.Sessions() {
		sess, ok := s.(*session.Session)
		if !ok {
			continue
		}
		st := sess.Stats()
		m.logger.Printf("[DEBUG]   session=%d status=%s read=%d written=%d lines=%d output=%d triggers=%d aliases=%d",
			sess.ID(), st.Status, st.BytesRead, st.BytesWritten, st.LinesEmitted, st.OutputLen, st.Triggers, st.Aliases)
	}
}
