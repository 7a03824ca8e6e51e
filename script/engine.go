package script

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	glua "github.com/yuin/gopher-lua"
)

//go:embed core/*.lua
var coreScripts embed.FS

// regexCacheSize matches the shared regex cache default used
// elsewhere (lru.New[string, *regexp.Regexp](100)).
const regexCacheSize = 100

// Engine owns one gopher-lua VM plus the bookkeeping needed to route
// mudpuppy._* primitive calls through Host and to tag every trigger/
// alias/timer/command a script registers with its owning module, so a
// targeted reload can purge exactly that module's state first.
type Engine struct {
	mu sync.Mutex

	l          *glua.LState
	regexCache *lru.Cache[string, *regexp.Regexp]
	mudTable   *glua.LTable
	host       Host
	configDir  string

	currentModule string
	userScripts   []string
	loadedModules []string // modules Init has loaded, in load order
}

// NewEngine creates an Engine bound to host. Call Init before use.
func NewEngine(host Host) *Engine {
	cache, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	return &Engine{host: host, regexCache: cache}
}

// Init (re-)creates the Lua VM, registers the mudpuppy._* primitive
// table, loads the embedded core library, then the user's init script
// from configDir. Config loading itself is out of scope; Engine only
// knows the resolved directory path.
func (e *Engine) Init(configDir string, userScripts []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.l != nil {
		e.l.Close()
	}
	e.l = glua.NewState()
	cache, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	e.regexCache = cache
	e.configDir = configDir
	e.userScripts = userScripts
	e.loadedModules = nil

	e.mudTable = e.l.NewTable()
	e.l.SetGlobal("mudpuppy", e.mudTable)
	e.l.SetField(e.mudTable, "config_dir", glua.LString(configDir))

	e.registerSessionFuncs()
	e.registerTriggerFuncs()
	e.registerAliasFuncs()
	e.registerTimerFuncs()
	e.registerGMCPFuncs()
	e.registerRegexFuncs()

	if err := e.loadCore(); err != nil {
		return err
	}
	e.callHookLocked("ready")

	for _, path := range userScripts {
		if err := e.loadUserScriptLocked(path); err != nil {
			return err
		}
	}

	initPath := filepath.Join(configDir, "init.lua")
	if _, err := os.Stat(initPath); err == nil {
		if err := e.loadUserScriptLocked(initPath); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.l != nil {
		e.l.Close()
		e.l = nil
	}
}

// Reload purges every currently loaded module's registrations from
// every live session and the bus, rebuilds the Lua VM and re-imports
// every module from scratch, then announces the cycle to scripts and
// sessions: a "reload" hook, one ScriptsReloaded event, and one
// ResumeSession event per live session. Unloading before Init drops the
// old Lua state is what keeps a trigger/alias callback closure bound to
// that state from ever being called again — once Unload runs, nothing
// in any session's tables still references the handle that closure was
// registered under.
func (e *Engine) Reload() error {
	e.mu.Lock()
	configDir, userScripts := e.configDir, e.userScripts
	modules := append([]string(nil), e.loadedModules...)
	e.mu.Unlock()

	e.host.UnloadModules(modules)

	if err := e.Init(configDir, userScripts); err != nil {
		return err
	}

	e.mu.Lock()
	e.callHookLocked("reload")
	e.mu.Unlock()

	e.host.PublishScriptsReloaded()
	for _, id := range e.host.Sessions() {
		e.host.PublishResumeSession(id)
	}
	return nil
}

func (e *Engine) loadCore() error {
	entries, err := fs.ReadDir(coreScripts, "core")
	if err != nil {
		return fmt.Errorf("script: reading embedded core: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	prevModule := e.currentModule
	e.currentModule = "" // built-in core, never purged by a user reload
	defer func() { e.currentModule = prevModule }()

	for _, name := range files {
		content, err := coreScripts.ReadFile("core/" + name)
		if err != nil {
			return fmt.Errorf("script: reading core/%s: %w", name, err)
		}
		if err := e.l.DoString(string(content)); err != nil {
			return fmt.Errorf("script: executing core/%s: %w", name, err)
		}
	}
	return nil
}

// loadUserScriptLocked loads path as a new module, tagged by its base
// filename without extension, used as its module tag.
func (e *Engine) loadUserScriptLocked(path string) error {
	abs, err := filepath.Abs(expandTilde(path))
	if err != nil {
		return fmt.Errorf("script: resolving %s: %w", path, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("script: reading %s: %w", abs, err)
	}

	module := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	prevModule := e.currentModule
	e.currentModule = module
	defer func() { e.currentModule = prevModule }()

	if err := e.l.DoString(string(content)); err != nil {
		return fmt.Errorf("script: executing %s: %w", abs, err)
	}
	e.loadedModules = append(e.loadedModules, module)
	return nil
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Eval executes expr as a Lua chunk and returns the textual form of its
// first return value (the "/py <expr>" builtin's backing call; "py"
// names the command regardless of the scripting runtime actually
// wired in underneath).
func (e *Engine) Eval(expr string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.l == nil {
		return "", fmt.Errorf("script: engine not initialized")
	}
	if err := e.l.DoString("return " + expr); err != nil {
		if err2 := e.l.DoString(expr); err2 != nil {
			return "", fmt.Errorf("script: eval %q: %w", expr, err)
		}
		return "", nil
	}
	ret := e.l.Get(-1)
	e.l.Pop(1)
	return ret.String(), nil
}

// callHookLocked invokes mudpuppy.hooks.dispatch(event, ...) if
// defined by core/*.lua, ignoring absence (core may not define every
// hook). Runtime errors raised by a handler are discarded; nothing is
// returned to the caller.
func (e *Engine) callHookLocked(event string, args ...string) {
	hooks := e.l.GetField(e.mudTable, "hooks")
	hooksTbl, ok := hooks.(*glua.LTable)
	if !ok {
		return
	}
	dispatch := e.l.GetField(hooksTbl, "dispatch")
	fn, ok := dispatch.(*glua.LFunction)
	if !ok {
		return
	}
	luaArgs := make([]glua.LValue, len(args)+1)
	luaArgs[0] = glua.LString(event)
	for i, a := range args {
		luaArgs[i+1] = glua.LString(a)
	}
	e.l.CallByParam(glua.P{Fn: fn, NRet: 0, Protect: true}, luaArgs...)
}

// CallHook calls a named core hook with string arguments, taking the
// lock (exported for callers outside the engine's own init path).
func (e *Engine) CallHook(event string, args ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.l != nil {
		e.callHookLocked(event, args...)
	}
}
