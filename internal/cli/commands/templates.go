package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed all:templates
var templateFS embed.FS

// copyTemplate copies an embedded template directory to the target path.
// Existing files are kept unless force is set.
func copyTemplate(templateName, targetDir string, force bool) error {
	root := path.Join("templates", templateName)

	return fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := p[len(root):]
		if rel == "" {
			return nil
		}
		targetPath := filepath.Join(targetDir, filepath.FromSlash(renameSpecialFiles(rel[1:])))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0o750)
		}
		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil
			}
		}
		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(targetPath, content, 0o600)
	})
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(rel string) string {
	dir, base := path.Split(rel)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return rel
}

// listTemplateFiles returns all files in a template for display purposes.
func listTemplateFiles(templateName string) ([]string, error) {
	var files []string
	root := path.Join("templates", templateName)

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, renameSpecialFiles(p[len(root)+1:]))
		}
		return nil
	})
	return files, err
}
