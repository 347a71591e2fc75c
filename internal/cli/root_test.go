package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/luaweave/internal/cli/config"
	"github.com/leapstack-labs/luaweave/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	cfgFile = ""
	return testutil.ExecuteCommand(t, NewRootCmd(), args...)
}

func TestBuild_Folder(t *testing.T) {
	project := testutil.SetupTestProject(t)
	state := filepath.Join(t.TempDir(), "state.db")
	t.Chdir(project)

	stdout, _, err := run(t, "build", project, "--state", state, "-o", "json")
	require.NoError(t, err)

	var out struct {
		BuildID      string   `json:"build_id"`
		Mode         string   `json:"mode"`
		ArtifactPath string   `json:"artifact_path"`
		Modules      []string `json:"modules"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.NotEmpty(t, out.BuildID)
	assert.Equal(t, "folder", out.Mode)
	assert.Equal(t, filepath.Join(project, "main.lua"), out.ArtifactPath)
	assert.Equal(t, []string{"main", "util.helpers", "util.strings"}, out.Modules)

	artifact, err := os.ReadFile(out.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(artifact), `["util.helpers"] = function()`)
	assert.Contains(t, string(artifact), `return import("main")`)
}

func TestBuild_OutputNameAndJitbit(t *testing.T) {
	project := testutil.SetupTestProject(t)
	t.Chdir(project)

	_, _, err := run(t, "build", project, "app.lua", "-j", "bit", "--state", "")
	require.NoError(t, err)

	artifact, err := os.ReadFile(filepath.Join(project, "app.lua"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(artifact), "local bit = require(\"bit\");\n"))
}

func TestBuild_FailingFileWritesNothing(t *testing.T) {
	project := testutil.SetupTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, "bad.clue"), []byte("  \n"), 0o644))
	t.Chdir(project)

	_, stderr, err := run(t, "build", project, "--state", "")
	require.Error(t, err)
	assert.Equal(t, "1 file failed to compile!", err.Error())
	assert.Contains(t, stderr, "compile failed")
	assert.NoFileExists(t, filepath.Join(project, "main.lua"))
}

func TestBuild_SingleFile(t *testing.T) {
	project := testutil.SetupTestProject(t)
	t.Chdir(project)

	_, _, err := run(t, "build", filepath.Join(project, "util", "helpers.clue"), "--state", "")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(project, "util", "helpers.lua"))
	require.NoError(t, err)
	assert.Equal(t, "return { greet = function() return \"hi\" end }", string(got))
	assert.NoFileExists(t, filepath.Join(project, "main.lua"))
}

func TestBuild_Code(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "build", "--code", "print('hi')\n")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", stdout)
}

func TestBuild_MissingPath(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := run(t, "build", "does-not-exist", "--state", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the given path doesn't exist")
}

func TestBuild_MissingBase(t *testing.T) {
	project := testutil.SetupTestProject(t)
	t.Chdir(project)

	_, _, err := run(t, "build", project, "--base", "nope.lua", "--state", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the given custom base was not found")
}

func TestBuild_DontSave(t *testing.T) {
	project := testutil.SetupTestProject(t)
	t.Chdir(project)

	stdout, _, err := run(t, "build", project, "-D", "--state", "", "-o", "markdown")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, stdout)
	testutil.AssertValidMarkdown(t, stdout)
	assert.Contains(t, stdout, "- **Modules:** 3")
	assert.NoFileExists(t, filepath.Join(project, "main.lua"))
}

func TestList(t *testing.T) {
	project := testutil.SetupTestProject(t)
	t.Chdir(project)

	stdout, _, err := run(t, "list", project, "-o", "json")
	require.NoError(t, err)

	var modules []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &modules))
	require.Len(t, modules, 3)
	assert.Equal(t, "util.helpers", modules[1].Name)
	assert.Equal(t, "util/helpers.clue", modules[1].Path)
}

func TestHistory(t *testing.T) {
	project := testutil.SetupTestProject(t)
	state := filepath.Join(t.TempDir(), "state.db")
	t.Chdir(project)

	_, _, err := run(t, "build", project, "--state", state)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(project, "bad.clue"), nil, 0o644))
	_, _, err = run(t, "build", project, "--state", state)
	require.Error(t, err)

	stdout, _, err := run(t, "history", "--state", state, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Builds (2 shown)")
	assert.Contains(t, stdout, "| failed |")
	assert.Contains(t, stdout, "| succeeded |")
}

func TestConfigFileAndEnv(t *testing.T) {
	project := testutil.SetupTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, "luaweave.yaml"),
		[]byte("output_name: bundle\nstate_path: \"\"\n"), 0o644))
	t.Chdir(project)
	t.Setenv("LUAWEAVE_JITBIT", "bitlib")

	_, _, err := run(t, "build", ".")
	require.NoError(t, err)

	artifact, err := os.ReadFile(filepath.Join(project, "bundle.lua"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(artifact), "local bitlib = require(\"bit\");\n"))
}

func TestVersion(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "luaweave v"+Version)
}
