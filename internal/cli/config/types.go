// Package config loads luaweave's CLI configuration.
//
// Values are layered with koanf; highest precedence first:
// explicitly set flags, LUAWEAVE_ environment variables, luaweave.yaml, and
// built-in defaults.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	SourceExt     string         `koanf:"source_ext"`
	OutputName    string         `koanf:"output_name"`
	Base          string         `koanf:"base"`
	StatePath     string         `koanf:"state_path"`
	Cache         bool           `koanf:"cache"`
	Jobs          int            `koanf:"jobs"`
	Verbose       bool           `koanf:"verbose"`
	OutputFormat  string         `koanf:"output"`
	Manifest      bool           `koanf:"manifest"`
	JITBit        string         `koanf:"jitbit"`
	Continue      string         `koanf:"continue"`
	RawsetGlobals bool           `koanf:"rawset_globals"`
	Debug         bool           `koanf:"debug"`
	Compiler      CompilerConfig `koanf:"compiler"`
	Trace         TraceConfig    `koanf:"trace"`
	Watch         WatchConfig    `koanf:"watch"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// CompilerConfig selects the per-file compiler backend.
type CompilerConfig struct {
	Backend string `koanf:"backend"`
	// Command is the shell command run by the "command" backend.
	Command string `koanf:"command"`
}

// TraceConfig enables compiler trace output.
type TraceConfig struct {
	Tokens bool `koanf:"tokens"`
	Struct bool `koanf:"struct"`
	Output bool `koanf:"output"`
}

// WatchConfig configures build --watch.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
	Ignore   []string      `koanf:"ignore"`
}

// Compiler backends.
const (
	BackendLua     = "lua"
	BackendCommand = "command"
)

// Output formats.
const (
	OutputAuto     = "auto"
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// Default configuration values.
const (
	DefaultSourceExt  = ".clue"
	DefaultOutputName = "main"
	DefaultStateFile  = ".luaweave/state.db"
	DefaultOutput     = OutputAuto // TTY=text, non-TTY=markdown
	DefaultBackend    = BackendLua
	DefaultContinue   = "simple"
	DefaultDebounce   = 500 * time.Millisecond
)
