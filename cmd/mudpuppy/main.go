// Command mudpuppy is the terminal MUD client's entrypoint: it parses
// flags, opens the data-dir log file, loads the YAML config, wires the
// registry/bus/timer-wheel/script-engine stack together, and hands off
// to the (thin) terminal UI. Grounded on a conventional single-binary
// main wiring shape, generalized from one fixed connection to the
// registry's N-session model.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/mudpuppy/mudpuppy/bus"
	"github.com/mudpuppy/mudpuppy/command"
	"github.com/mudpuppy/mudpuppy/config"
	"github.com/mudpuppy/mudpuppy/debug"
	"github.com/mudpuppy/mudpuppy/dial"
	"github.com/mudpuppy/mudpuppy/ids"
	"github.com/mudpuppy/mudpuppy/registry"
	"github.com/mudpuppy/mudpuppy/script"
	"github.com/mudpuppy/mudpuppy/session"
	"github.com/mudpuppy/mudpuppy/timerwheel"
	"github.com/mudpuppy/mudpuppy/tui"
)

var _ script.Host = (*scriptHost)(nil)

func main() {
	var (
		connectName = flag.String("connect", "", "name of a configured MUD to connect to on startup")
		headless    = flag.Bool("headless", false, "run without the terminal UI (for scripted/batch use)")
	)
	flag.Parse()

	dataDir := config.Dir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mudpuppy: creating data dir %s: %v\n", dataDir, err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(filepath.Join(dataDir, "mudpuppy.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudpuppy: opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(config.File())
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reg := registry.New()
	eventBus := bus.New(logger)
	wheel := timerwheel.New(func() timerwheel.FocusHint {
		id := reg.Active()
		return timerwheel.FocusHint{SessionID: id, Focused: id != ids.NoSession}
	})

	host := &scriptHost{reg: reg, wheel: wheel, bus: eventBus, cancel: cancel}
	engine := script.NewEngine(host)
	if err := engine.Init(config.Dir(), nil); err != nil {
		logger.Printf("script engine init: %v", err)
	}
	defer engine.Close()

	if monitor := debug.NewMonitor(reg, logFile); monitor != nil {
		monitor.Start(ctx)
	}

	if *connectName != "" {
		entry, ok := cfg.MudByName(*connectName)
		if !ok {
			logger.Fatalf("no configured MUD named %q", *connectName)
		}
		if err := spawnSession(ctx, reg, eventBus, wheel, engine, entry); err != nil {
			logger.Fatalf("connecting to %q: %v", *connectName, err)
		}
	}

	if *headless {
		<-ctx.Done()
		return
	}

	if err := tui.Run(reg); err != nil {
		logger.Printf("tui exited: %v", err)
	}
}

// spawnSession builds a Session from a config.MudEntry, registers it,
// and starts connecting. The reader goroutine is launched only after a
// successful dial so a failed connect never leaks a ReadLoop against a
// nil conn.
func spawnSession(ctx context.Context, reg *registry.Registry, eventBus *bus.Bus, wheel *timerwheel.Wheel, engine *script.Engine, entry config.MudEntry) error {
	id := reg.NextID()
	mud := session.Mud{
		Mud: dial.Mud{
			Host:           entry.Host,
			Port:           entry.Port,
			TLS:            tlsModeFromConfig(entry.TLS),
			NoTCPKeepalive: entry.NoTCPKeepalive,
		},
		Name:                      entry.Name,
		EchoInput:                 entry.EchoInput,
		NoLineWrap:                entry.NoLineWrap,
		HoldPrompt:                entry.HoldPrompt,
		CommandSeparator:          orDefault(entry.CommandSeparator, command.DefaultSeparator),
		CommandPrefix:             orDefault(entry.CommandPrefix, command.DefaultPrefix),
		SplitviewPercentage:       entry.SplitviewPercentage,
		SplitviewMarginHorizontal: entry.SplitviewMarginHorizontal,
		SplitviewMarginVertical:   entry.SplitviewMarginVertical,
		DebugGMCP:                 entry.DebugGMCP,
	}

	s := session.New(id, mud, eventBus, wheel, engine)
	reg.Add(s)

	if err := s.Connect(ctx); err != nil {
		return err
	}
	go s.ReadLoop(ctx)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func tlsModeFromConfig(t config.TLSMode) dial.TLSMode {
	switch t {
	case config.TLSEnabled:
		return dial.TLSEnabled
	case config.TLSVerifySkipped:
		return dial.TLSVerifySkipped
	default:
		return dial.TLSDisabled
	}
}
