// Package discovery enumerates source files under a project root and derives
// the dotted module name each one is registered under in the artifact.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is the extension of source files in a project tree.
const DefaultExtension = ".clue"

// SourceFile is a discovered source file.
type SourceFile struct {
	// Path is the file's location on disk.
	Path string
	// QualifiedName is the slash-free module key: directories under the root
	// joined by "." followed by the file stem (a/b/c.clue -> a.b.c).
	QualifiedName string
}

// Error reports a directory or file that could not be read during discovery.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Discover walks root recursively and returns every file whose name ends with
// ext. Symlinked directories are followed, and their files are named after the
// link's position under root; a directory reached twice through links is only
// walked once. Any unreadable directory aborts the walk; no partial list is
// returned. The order of the result carries no meaning.
func Discover(root, ext string) ([]SourceFile, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, &Error{Path: root, Err: err}
	}

	w := &walker{ext: ext, visited: map[string]bool{resolved: true}}
	if err := w.walk(resolved, root, ""); err != nil {
		return nil, err
	}
	return w.files, nil
}

type walker struct {
	ext     string
	visited map[string]bool
	files   []SourceFile
}

// walk lists dir, a symlink-free directory, reporting paths under base and
// names under prefix.
func (w *walker) walk(dir, base, prefix string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return &Error{Path: path, Err: walkErr}
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return &Error{Path: path, Err: err}
		}
		shown := filepath.Join(base, rel)
		rel = filepath.Join(prefix, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			// Dangling links fall through and are treated as files.
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				return w.follow(path, shown, rel)
			}
		}

		if !strings.HasSuffix(d.Name(), w.ext) {
			return nil
		}
		w.files = append(w.files, SourceFile{
			Path:          shown,
			QualifiedName: QualifiedName(rel, w.ext),
		})
		return nil
	})
}

func (w *walker) follow(link, shown, prefix string) error {
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return &Error{Path: link, Err: err}
	}
	if w.visited[target] {
		return nil
	}
	w.visited[target] = true
	return w.walk(target, shown, prefix)
}

// QualifiedName converts a root-relative path into its module name.
func QualifiedName(rel, ext string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ext)
	return strings.ReplaceAll(rel, "/", ".")
}
