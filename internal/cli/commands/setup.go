package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/luaweave/internal/cli/config"
	"github.com/leapstack-labs/luaweave/internal/cli/output"
	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/engine"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// EngineOverrides carries per-invocation settings that are command options
// rather than configuration.
type EngineOverrides struct {
	OutputName string
	DontSave   bool
	NoState    bool
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, version string, o EngineOverrides) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	engCfg, err := engineConfig(cmdCtx.Cfg, version, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	if o.OutputName != "" {
		engCfg.OutputName = o.OutputName
	}
	engCfg.DontSave = o.DontSave
	if o.NoState {
		engCfg.StatePath = ""
		engCfg.Cache = false
	}

	eng, err := engine.New(engCfg)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cmdCtx.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't compile anything.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the loaded configuration, or defaults when the command
// runs outside the root command (tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		SourceExt:    config.DefaultSourceExt,
		OutputName:   config.DefaultOutputName,
		OutputFormat: config.DefaultOutput,
		Continue:     config.DefaultContinue,
		Compiler:     config.CompilerConfig{Backend: config.DefaultBackend},
		Watch:        config.WatchConfig{Debounce: config.DefaultDebounce},
	}
}

func compileOptions(cfg *config.Config) (compile.Options, error) {
	mode, err := compile.ParseContinueMode(cfg.Continue)
	if err != nil {
		return compile.Options{}, err
	}
	return compile.Options{
		TraceTokens:   cfg.Trace.Tokens,
		TraceStruct:   cfg.Trace.Struct,
		TraceOutput:   cfg.Trace.Output,
		JITBit:        cfg.JITBit,
		Continue:      mode,
		RawsetGlobals: cfg.RawsetGlobals,
		Debug:         cfg.Debug,
	}, nil
}

func newCompiler(cfg *config.Config) (compile.Compiler, error) {
	switch cfg.Compiler.Backend {
	case "", config.BackendLua:
		return compile.PassthroughCompiler{}, nil
	case config.BackendCommand:
		c, err := compile.NewCommandCompiler(cfg.Compiler.Command, cfg.ProjectRoot)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown compiler backend %q", cfg.Compiler.Backend)
	}
}

func engineConfig(cfg *config.Config, version string, logger *slog.Logger) (engine.Config, error) {
	opts, err := compileOptions(cfg)
	if err != nil {
		return engine.Config{}, err
	}
	compiler, err := newCompiler(cfg)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		SourceExt:   cfg.SourceExt,
		Compiler:    compiler,
		Options:     opts,
		Version:     version,
		Parallelism: cfg.Jobs,
		BasePath:    cfg.Base,
		OutputName:  cfg.OutputName,
		Manifest:    cfg.Manifest,
		StatePath:   cfg.StatePath,
		Cache:       cfg.Cache,
		Logger:      logger,
	}, nil
}
