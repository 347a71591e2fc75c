package discovery

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func names(files []SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.QualifiedName)
	}
	sort.Strings(out)
	return out
}

func TestDiscover_NestedTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.clue", "print(1)")
	writeFile(t, root, "util/helpers.clue", "return {}")
	writeFile(t, root, "a/b/c.clue", "return 1")
	writeFile(t, root, "README.md", "docs")
	writeFile(t, root, "util/notes.txt", "skip me")

	files, err := Discover(root, ".clue")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.b.c", "main", "util.helpers"}, names(files))
	for _, f := range files {
		assert.FileExists(t, f.Path)
	}
}

func TestDiscover_DefaultExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.clue", "")
	writeFile(t, root, "main.lua", "")

	files, err := Discover(root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names(files))
}

func TestDiscover_EmptyTree(t *testing.T) {
	files, err := Discover(t.TempDir(), ".clue")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_MissingRoot(t *testing.T) {
	files, err := Discover(filepath.Join(t.TempDir(), "nope"), ".clue")
	require.Error(t, err)
	assert.Nil(t, files)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscover_UnreadableDirectoryAborts(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := t.TempDir()
	writeFile(t, root, "main.clue", "")
	writeFile(t, root, "locked/inner.clue", "")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	files, err := Discover(root, ".clue")
	require.Error(t, err)
	assert.Nil(t, files)
}

func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0o755))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestDiscover_FollowsSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	vendor := t.TempDir()
	writeFile(t, root, "main.clue", "print(1)")
	writeFile(t, vendor, "lib.clue", "return {}")
	writeFile(t, vendor, "deep/util.clue", "return {}")
	symlinkOrSkip(t, vendor, filepath.Join(root, "vendor"))

	files, err := Discover(root, ".clue")
	require.NoError(t, err)

	assert.Equal(t, []string{"main", "vendor.deep.util", "vendor.lib"}, names(files))
	for _, f := range files {
		if f.QualifiedName == "vendor.lib" {
			assert.Equal(t, filepath.Join(root, "vendor", "lib.clue"), f.Path)
		}
		assert.FileExists(t, f.Path)
	}
}

func TestDiscover_SymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.clue", "")
	writeFile(t, root, "a/b/inner.clue", "")
	symlinkOrSkip(t, filepath.Join(root, "a"), filepath.Join(root, "a", "b", "loop"))
	symlinkOrSkip(t, root, filepath.Join(root, "self"))

	files, err := Discover(root, ".clue")
	require.NoError(t, err)

	// a is reached once more through the link, then the cycle stops.
	assert.Equal(t, []string{"a.b.inner", "a.b.loop.b.inner", "main"}, names(files))
}

func TestDiscover_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeFile(t, target, "util/str.clue", "")
	link := filepath.Join(t.TempDir(), "src")
	symlinkOrSkip(t, target, link)

	files, err := Discover(link, ".clue")
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "util.str", files[0].QualifiedName)
	assert.Equal(t, filepath.Join(link, "util", "str.clue"), files[0].Path)
}

func TestDiscover_DanglingSymlinkIsAFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.clue", "")
	symlinkOrSkip(t, filepath.Join(root, "missing.clue"), filepath.Join(root, "gone.clue"))

	files, err := Discover(root, ".clue")
	require.NoError(t, err)
	assert.Equal(t, []string{"gone", "main"}, names(files))
}

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{rel: "main.clue", want: "main"},
		{rel: filepath.Join("a", "b", "c.clue"), want: "a.b.c"},
		{rel: filepath.Join("util", "helpers.clue"), want: "util.helpers"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, QualifiedName(tt.rel, ".clue"))
		})
	}
}
