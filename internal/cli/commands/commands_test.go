package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/luaweave/internal/cli/config"
	"github.com/leapstack-labs/luaweave/internal/cli/output"
	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/engine"
	"github.com/leapstack-labs/luaweave/internal/state"
)

func TestNewBuildCommand(t *testing.T) {
	cmd := NewBuildCommand("test")

	assert.Equal(t, "build <path> [output-name]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	shorthands := map[string]string{
		"code":           "p",
		"dont-save":      "D",
		"base":           "b",
		"debug":          "d",
		"jitbit":         "j",
		"continue":       "c",
		"rawset-globals": "r",
		"watch":          "w",
	}
	for name, short := range shorthands {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, "flag %q should exist", name)
		assert.Equal(t, short, f.Shorthand, "flag %q", name)
	}
	for _, name := range []string{"trace-tokens", "trace-struct", "trace-output", "jobs", "no-cache", "manifest"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %q should exist", name)
	}
}

func TestNewListCommand(t *testing.T) {
	cmd := NewListCommand()

	assert.Equal(t, "list [path]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand("test")

	assert.Equal(t, "history [build-id]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
}

func TestCompileOptions(t *testing.T) {
	cfg := &config.Config{
		JITBit:        "bit",
		Continue:      "moonscript",
		RawsetGlobals: true,
		Debug:         true,
		Trace:         config.TraceConfig{Tokens: true, Output: true},
	}
	opts, err := compileOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, compile.Options{
		TraceTokens:   true,
		TraceOutput:   true,
		JITBit:        "bit",
		Continue:      compile.ContinueMoonScript,
		RawsetGlobals: true,
		Debug:         true,
	}, opts)

	_, err = compileOptions(&config.Config{Continue: "goto"})
	require.Error(t, err)
}

func TestNewCompiler(t *testing.T) {
	c, err := newCompiler(&config.Config{Compiler: config.CompilerConfig{Backend: config.BackendLua}})
	require.NoError(t, err)
	assert.IsType(t, compile.PassthroughCompiler{}, c)

	c, err = newCompiler(&config.Config{Compiler: config.CompilerConfig{Backend: config.BackendCommand, Command: "cat"}})
	require.NoError(t, err)
	assert.IsType(t, &compile.CommandCompiler{}, c)

	_, err = newCompiler(&config.Config{Compiler: config.CompilerConfig{Backend: config.BackendCommand, Command: "if then"}})
	require.Error(t, err)
}

func TestRenderBuild(t *testing.T) {
	res := &engine.BuildResult{
		BuildID:      "abc",
		Mode:         state.BuildModeFolder,
		ArtifactPath: "src/main.lua",
		Modules:      []string{"main", "util"},
		Workers:      2,
		Duration:     1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	require.NoError(t, renderBuild(output.NewRenderer(&buf, &buf, output.ModeText), res))
	assert.Contains(t, buf.String(), "Compiled 2 modules into src/main.lua in 1.5s")

	buf.Reset()
	require.NoError(t, renderBuild(output.NewRenderer(&buf, &buf, output.ModeJSON), res))
	assert.Contains(t, buf.String(), `"duration_ms": 1500`)
	assert.Contains(t, buf.String(), `"artifact_path": "src/main.lua"`)

	buf.Reset()
	res.ArtifactPath = ""
	res.Modules = []string{"main"}
	require.NoError(t, renderBuild(output.NewRenderer(&buf, &buf, output.ModeText), res))
	assert.Contains(t, buf.String(), "Compiled 1 module into (not saved)")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "3f2a9c1e", shortID("3f2a9c1e-0000-4000-8000-000000000000"))
	assert.Equal(t, "abc", shortID("abc"))
}
