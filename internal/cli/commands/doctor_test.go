package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/luaweave/internal/cli/config"
	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/engine"
)

func writeSource(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func doctorContext(t *testing.T, statePath string) *CommandContext {
	t.Helper()
	eng, err := engine.New(engine.Config{
		Compiler:  compile.PassthroughCompiler{},
		StatePath: statePath,
		Cache:     statePath != "",
		DontSave:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return &CommandContext{
		Cfg: &config.Config{
			StatePath: statePath,
			Compiler:  config.CompilerConfig{Backend: config.BackendLua},
		},
		Engine: eng,
	}
}

func TestNewDoctorCommand(t *testing.T) {
	cmd := NewDoctorCommand("test")

	assert.Equal(t, "doctor [path]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("prune-cache"))
}

func TestCheckSources(t *testing.T) {
	t.Run("collisions", func(t *testing.T) {
		root := t.TempDir()
		writeSource(t, root, "a/b.clue", "return 1")
		writeSource(t, root, "a.b.clue", "return 2")
		writeSource(t, root, "main.clue", "print(1)")

		check := checkSources(doctorContext(t, "").Engine, root)

		assert.Equal(t, checkWarn, check.Status)
		assert.Contains(t, check.Summary, "3 source files")
		require.Len(t, check.Details, 1)
		assert.Contains(t, check.Details[0], "a.b:")
	})

	t.Run("clean tree", func(t *testing.T) {
		root := t.TempDir()
		writeSource(t, root, "main.clue", "print(1)")
		writeSource(t, root, "util/str.clue", "return {}")

		check := checkSources(doctorContext(t, "").Engine, root)

		assert.Equal(t, checkPass, check.Status)
		assert.Empty(t, check.Details)
	})

	t.Run("no sources", func(t *testing.T) {
		check := checkSources(doctorContext(t, "").Engine, t.TempDir())
		assert.Equal(t, checkWarn, check.Status)
	})

	t.Run("missing root", func(t *testing.T) {
		check := checkSources(doctorContext(t, "").Engine, filepath.Join(t.TempDir(), "nope"))
		assert.Equal(t, checkFail, check.Status)
	})
}

func TestCheckManifest(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "main.clue", "print(1)")
	writeSource(t, root, "util/str.clue", "return {}")
	eng := doctorContext(t, "").Engine

	check := checkManifest(eng, root, "main")
	assert.Equal(t, checkPass, check.Status)
	assert.Contains(t, check.Summary, "none written")

	builder, err := engine.New(engine.Config{Compiler: compile.PassthroughCompiler{}, Manifest: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = builder.Close() })
	_, err = builder.BuildFolder(context.Background(), root)
	require.NoError(t, err)

	check = checkManifest(eng, root, "main")
	assert.Equal(t, checkPass, check.Status)
	assert.Contains(t, check.Summary, "lists 2 modules")

	writeSource(t, root, "util/num.clue", "return {}")
	require.NoError(t, os.Remove(filepath.Join(root, "util", "str.clue")))

	check = checkManifest(eng, root, "main")
	assert.Equal(t, checkWarn, check.Status)
	assert.Equal(t, []string{"not in artifact: util.num", "source removed: util.str"}, check.Details)
}

func TestCheckCompiler(t *testing.T) {
	cmdCtx := doctorContext(t, "")

	check := checkCompiler(context.Background(), cmdCtx)

	assert.Equal(t, checkPass, check.Status)
	assert.Contains(t, check.Summary, "lua backend")
}

func TestCheckState(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		check := checkState(doctorContext(t, ""), 0)
		assert.Equal(t, checkWarn, check.Status)
	})

	t.Run("schema and prune", func(t *testing.T) {
		statePath := filepath.Join(t.TempDir(), "state.db")
		cmdCtx := doctorContext(t, statePath)

		check := checkState(cmdCtx, 0)
		assert.Equal(t, checkPass, check.Status)
		assert.Equal(t, statePath, check.Summary)
		require.Len(t, check.Details, 1)
		assert.Contains(t, check.Details[0], "schema version")

		check = checkState(cmdCtx, 1)
		assert.Equal(t, checkPass, check.Status)
		require.Len(t, check.Details, 2)
		assert.Equal(t, "pruned 0 cached fragments", check.Details[1])
	})
}
