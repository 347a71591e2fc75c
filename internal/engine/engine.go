// Package engine drives a build: it discovers sources, compiles them through
// the scheduler, assembles the artifact, and persists it along with the build
// history.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/discovery"
	"github.com/leapstack-labs/luaweave/internal/state"
)

// DefaultOutputName is the artifact name used when none is configured.
const DefaultOutputName = "main"

// ArtifactExt is the extension of every written artifact.
const ArtifactExt = ".lua"

// ErrPathNotFound is returned when the build path is neither a directory nor
// a regular file.
var ErrPathNotFound = errors.New("the given path doesn't exist")

// Config holds engine configuration.
type Config struct {
	// SourceExt is the extension of source files (default ".clue").
	SourceExt string
	// Compiler is the per-file backend (default compile.PassthroughCompiler).
	Compiler compile.Compiler
	// Options are passed to every compilation. Options.Version is overwritten
	// by Version.
	Options compile.Options
	// Version of the tool, recorded in build history and manifests.
	Version string
	// Parallelism sizes the worker pool; zero uses the CPU count.
	Parallelism int
	// BasePath is a custom artifact template; empty uses the built-in base.
	BasePath string
	// OutputName is the folder artifact's file name (".lua" is appended).
	OutputName string
	// DontSave suppresses writing artifacts.
	DontSave bool
	// Manifest writes <artifact>.manifest.yaml next to folder artifacts.
	Manifest bool
	// StatePath is the SQLite state database; empty disables build history
	// and caching.
	StatePath string
	// Cache serves unchanged files from the state database.
	Cache bool
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine runs builds. It is safe to run one build at a time.
type Engine struct {
	cfg      Config
	opts     compile.Options
	compiler compile.Compiler
	store    state.Store
	logger   *slog.Logger
}

// New creates an engine. When cfg.StatePath is set the state database is
// opened (and created) immediately.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SourceExt == "" {
		cfg.SourceExt = discovery.DefaultExtension
	}
	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}

	opts := cfg.Options
	opts.Version = cfg.Version

	logger.Debug("initializing engine",
		"source_ext", cfg.SourceExt,
		"state_path", cfg.StatePath,
		"cache", cfg.Cache)

	e := &Engine{cfg: cfg, opts: opts, logger: logger}

	if cfg.StatePath != "" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" && cfg.StatePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
	}

	backend := cfg.Compiler
	if backend == nil {
		backend = compile.PassthroughCompiler{}
	}
	if cfg.Cache && e.store != nil {
		backend = compile.WithCache(backend, e.store, logger)
	}
	e.compiler = compile.WithLogging(backend, logger)

	return e, nil
}

// Close releases the state database.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the state store, or nil when build history is disabled.
func (e *Engine) Store() state.Store {
	return e.store
}

// SourceExt returns the configured source extension.
func (e *Engine) SourceExt() string {
	return e.cfg.SourceExt
}

// Discover lists the source files under root.
func (e *Engine) Discover(root string) ([]discovery.SourceFile, error) {
	return discovery.Discover(root, e.cfg.SourceExt)
}
