package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/luaweave/internal/discovery"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name: "init empty directory",
			args: []string{},
			wantFiles: []string{
				"luaweave.yaml",
				".gitignore",
				"src/main.clue",
				"src/util/greet.clue",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "luaweave.yaml"), []byte("existing"), 0o600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "luaweave.yaml"), []byte("existing"), 0o600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"luaweave.yaml", "src/main.clue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(tmpDir, filepath.FromSlash(f)))
			}
		})
	}
}

func TestInitCreatesBuildableProject(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{tmpDir})
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(filepath.Join(tmpDir, "luaweave.yaml"))
	require.NoError(t, err)
	for _, expected := range []string{"source_ext: .clue", "output_name: main", "backend: lua"} {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}

	files, err := discovery.Discover(filepath.Join(tmpDir, "src"), discovery.DefaultExtension)
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.QualifiedName)
	}
	assert.ElementsMatch(t, []string{"main", "util.greet"}, names)
}
