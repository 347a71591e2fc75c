package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/luaweave/internal/cli/output"
	"github.com/leapstack-labs/luaweave/internal/discovery"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List the modules a folder build would contain",
		Long: `List every source file under a folder with the module name it is
compiled under.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List modules under the current directory
  luaweave list

  # List modules as JSON
  luaweave list src --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runList(cmd, root)
		},
	}

	cmd.Flags().String("ext", "", "Source file extension (default .clue)")
	return cmd
}

type moduleInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func runList(cmd *cobra.Command, root string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	files, err := discovery.Discover(root, cmdCtx.Cfg.SourceExt)
	if err != nil {
		return fmt.Errorf("failed to discover sources: %w", err)
	}
	slices.SortFunc(files, func(a, b discovery.SourceFile) int {
		return strings.Compare(a.QualifiedName, b.QualifiedName)
	})

	modules := make([]moduleInfo, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			rel = f.Path
		}
		modules = append(modules, moduleInfo{Name: f.QualifiedName, Path: filepath.ToSlash(rel)})
	}

	if r.EffectiveMode() == output.ModeJSON {
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(modules)
	}

	r.Header(1, fmt.Sprintf("Modules (%d total)", len(modules)))
	if len(modules) == 0 {
		r.Println("(no sources)")
		return nil
	}
	rows := make([][]string, 0, len(modules))
	for _, m := range modules {
		rows = append(rows, []string{m.Name, m.Path})
	}
	r.Table([]string{"Module", "Path"}, rows)
	return nil
}
