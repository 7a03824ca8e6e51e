// Package config loads mudpuppy's human-editable configuration file (a
// YAML document listing MUDs, global mouse settings, and keybindings)
// into an immutable Snapshot. It is consulted only at startup and on
// /reload; nothing in the hot path touches the filesystem.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// TLSMode mirrors dial.TLSMode in the config file's vocabulary so this
// package doesn't need to import dial just to name three string values.
type TLSMode string

const (
	TLSEnabled       TLSMode = "Enabled"
	TLSDisabled      TLSMode = "Disabled"
	TLSVerifySkipped TLSMode = "VerifySkipped"
)

// MudEntry is one entry in the muds[] list, carrying the full per-MUD
// full option set, each with its documented default.
type MudEntry struct {
	Name string  `yaml:"name"`
	Host string  `yaml:"host"`
	Port int     `yaml:"port"`
	TLS  TLSMode `yaml:"tls"`

	EchoInput                 bool   `yaml:"echo_input"`
	NoLineWrap                bool   `yaml:"no_line_wrap"`
	HoldPrompt                bool   `yaml:"hold_prompt"`
	CommandSeparator          string `yaml:"command_separator"`
	CommandPrefix             string `yaml:"command_prefix"`
	SplitviewPercentage       int    `yaml:"splitview_percentage"`
	SplitviewMarginHorizontal int    `yaml:"splitview_margin_horizontal"`
	SplitviewMarginVertical   int    `yaml:"splitview_margin_vertical"`
	NoTCPKeepalive            bool   `yaml:"no_tcp_keepalive"`
	DebugGMCP                 bool   `yaml:"debug_gmcp"`
}

// defaults applies the documented per-MUD defaults to any field
// the YAML document left at its zero value. Bool defaults of "true"
// can't be told apart from an explicit "false" in plain yaml.v3
// unmarshalling, so entries needing a true default are tracked via a
// parallel "seen" pass in Load.
func (m *MudEntry) defaults() {
	if m.CommandSeparator == "" {
		m.CommandSeparator = ";;"
	}
	if m.CommandPrefix == "" {
		m.CommandPrefix = "/"
	}
	if m.SplitviewPercentage == 0 {
		m.SplitviewPercentage = 70
	}
	if m.SplitviewMarginHorizontal == 0 {
		m.SplitviewMarginHorizontal = 6
	}
	if m.TLS == "" {
		m.TLS = TLSDisabled
	}
}

// Keybindings maps an input mode (e.g. "normal", "splitview") to a key
// string (e.g. "ctrl+n") to the shortcut name it triggers.
type Keybindings map[string]map[string]string

// rawConfig is the literal YAML document shape; Load post-processes it
// into Config, filling in bool-true defaults explicitly (see below).
type rawConfig struct {
	Muds         []MudEntry  `yaml:"muds"`
	MouseEnabled *bool       `yaml:"mouse_enabled"`
	MouseScroll  *bool       `yaml:"mouse_scroll"`
	Keybindings  Keybindings `yaml:"keybindings"`
}

// Config is the immutable, fully-defaulted snapshot the rest of the
// program reads from. Reloading produces a new Config; nothing mutates
// one in place.
type Config struct {
	Muds         []MudEntry
	MouseEnabled bool
	MouseScroll  bool
	Keybindings  Keybindings
}

// MudByName returns the configured entry with the given name, or
// ok=false if none matches.
func (c *Config) MudByName(name string) (MudEntry, bool) {
	for _, m := range c.Muds {
		if m.Name == name {
			return m, true
		}
	}
	return MudEntry{}, false
}

// Default returns the zero-value configuration: no MUDs, mouse support
// on, no keybinding overrides. Used when no config file exists yet.
func Default() *Config {
	return &Config{MouseEnabled: true, MouseScroll: true, Keybindings: Keybindings{}}
}

// Load reads and parses the YAML document at path, applying per-MUD
// defaults. A missing file is not an error; it resolves to Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	for i := range raw.Muds {
		raw.Muds[i].defaults()
		if raw.Muds[i].Host == "" {
			return nil, InvalidConfigError{Field: fmt.Sprintf("muds[%d].host", i), Reason: "must not be empty"}
		}
	}

	cfg := &Config{
		Muds:        raw.Muds,
		Keybindings: raw.Keybindings,
	}
	if cfg.Keybindings == nil {
		cfg.Keybindings = Keybindings{}
	}
	cfg.MouseEnabled = boolOr(raw.MouseEnabled, true)
	cfg.MouseScroll = boolOr(raw.MouseScroll, true)

	// echo_input and hold_prompt both default true; since yaml.v3 can't
	// distinguish "absent" from "false" for a plain bool, they're
	// re-parsed as *bool against the raw document's mud nodes.
	if err := applyTrueDefaults(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// applyTrueDefaults re-walks the document with pointer fields for the
// two bools that default true, so an omitted key is distinguished from
// an explicit false.
func applyTrueDefaults(data []byte, cfg *Config) error {
	var raw struct {
		Muds []struct {
			EchoInput  *bool `yaml:"echo_input"`
			HoldPrompt *bool `yaml:"hold_prompt"`
		} `yaml:"muds"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: re-parsing bool defaults: %w", err)
	}
	for i := range cfg.Muds {
		if i >= len(raw.Muds) {
			break
		}
		cfg.Muds[i].EchoInput = boolOr(raw.Muds[i].EchoInput, true)
		cfg.Muds[i].HoldPrompt = boolOr(raw.Muds[i].HoldPrompt, true)
	}
	return nil
}

// InvalidConfigError reports a structurally invalid config document.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// Dir returns the mudpuppy configuration directory. Respects
// MUDPUPPY_CONFIG, then XDG_CONFIG_HOME on Unix / APPDATA on Windows,
// resolved the same way most CLI tools pick a per-user data directory.
func Dir() string {
	if v := os.Getenv("MUDPUPPY_CONFIG"); v != "" {
		return v
	}

	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, "mudpuppy")
}

// File returns the path to config.yaml within Dir().
func File() string {
	return filepath.Join(Dir(), "config.yaml")
}

// InitFile returns the path to init.lua within Dir().
func InitFile() string {
	return filepath.Join(Dir(), "init.lua")
}
