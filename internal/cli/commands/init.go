package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new luaweave project",
		Long: `Initialize a new luaweave project.

This creates:
  - luaweave.yaml configuration file
  - src/ with a main module importing a helper module
  - .gitignore excluding the state directory and the artifact`,
		Example: `  # Initialize in current directory
  luaweave init

  # Initialize in a new directory
  luaweave init my-project

  # Force overwrite existing files
  luaweave init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContextWithoutEngine(cmd).Renderer

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "luaweave.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("luaweave.yaml already exists. Use --force to overwrite")
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles("minimal")
	if err != nil {
		return err
	}
	for _, f := range files {
		r.Println("  " + f)
	}

	r.Println("")
	r.Success("luaweave project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Add modules under src/")
	r.Println("  2. Run 'luaweave build src' to produce src/main.lua")
	r.Println("  3. Run 'luaweave list src' to see module names")
	return nil
}
