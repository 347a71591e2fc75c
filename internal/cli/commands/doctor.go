package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/luaweave/internal/cli/config"
	"github.com/leapstack-labs/luaweave/internal/cli/output"
	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/engine"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	PruneCache time.Duration
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(version string) *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check the project setup",
		Long: `Check that a source folder can be built:

- configuration file and compiler backend
- source files and module name collisions
- the manifest of the last folder build
- state database schema and cached fragments

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Check the current directory
  luaweave doctor

  # Check src and drop cached fragments older than 30 days
  luaweave doctor src --prune-cache 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runDoctor(cmd, version, root, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.PruneCache, "prune-cache", 0, "Remove cached fragments older than this")
	return cmd
}

// Check statuses.
const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "error"
)

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Summary string   `json:"summary"`
	Details []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, version, root string, opts *DoctorOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, version, EngineOverrides{DontSave: true})
	if err != nil {
		return err
	}
	defer cleanup()

	checks := []HealthCheck{
		checkConfig(cmdCtx.Cfg),
		checkSources(cmdCtx.Engine, root),
		checkManifest(cmdCtx.Engine, root, cmdCtx.Cfg.OutputName),
		checkCompiler(cmd.Context(), cmdCtx),
		checkState(cmdCtx, opts.PruneCache),
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		if err := enc.Encode(checks); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Doctor"))
		r.Println("")
		for _, c := range checks {
			r.Println(output.FormatKeyValue(c.Name, fmt.Sprintf("%s (%s)", c.Summary, c.Status)))
			for _, d := range c.Details {
				r.Println("  - " + d)
			}
		}
	default:
		styles := r.Styles()
		r.Header(1, "Doctor")
		for _, c := range checks {
			mark := styles.Success.Render("✓")
			switch c.Status {
			case checkWarn:
				mark = styles.Muted.Render("!")
			case checkFail:
				mark = styles.Error.Render("✗")
			}
			r.Printf("%s %s %s\n", mark, styles.Bold.Render(c.Name), c.Summary)
			for _, d := range c.Details {
				r.Println(styles.Muted.Render("    " + d))
			}
		}
	}

	for _, c := range checks {
		if c.Status == checkFail {
			return fmt.Errorf("%s check failed: %s", c.Name, c.Summary)
		}
	}
	return nil
}

func checkConfig(cfg *config.Config) HealthCheck {
	file := config.GetConfigFileUsed()
	if file == "" {
		return HealthCheck{Name: "Config", Status: checkWarn, Summary: "no luaweave.yaml found, using defaults"}
	}
	return HealthCheck{
		Name:    "Config",
		Status:  checkPass,
		Summary: file,
		Details: []string{"backend: " + cfg.Compiler.Backend},
	}
}

func checkSources(eng *engine.Engine, root string) HealthCheck {
	files, err := eng.Discover(root)
	if err != nil {
		return HealthCheck{Name: "Sources", Status: checkFail, Summary: err.Error()}
	}
	if len(files) == 0 {
		return HealthCheck{Name: "Sources", Status: checkWarn, Summary: fmt.Sprintf("no %s files under %s", eng.SourceExt(), root)}
	}

	// a/b.clue and a.b.clue share the module name "a.b"; only one survives
	// in the artifact's module table.
	byName := make(map[string][]string, len(files))
	for _, f := range files {
		byName[f.QualifiedName] = append(byName[f.QualifiedName], f.Path)
	}
	var details []string
	for name, paths := range byName {
		if len(paths) > 1 {
			sort.Strings(paths)
			details = append(details, fmt.Sprintf("%s: %s", name, strings.Join(paths, ", ")))
		}
	}
	sort.Strings(details)

	summary := fmt.Sprintf("%d source files", len(files))
	if len(details) > 0 {
		return HealthCheck{Name: "Sources", Status: checkWarn, Summary: summary + ", module name collisions", Details: details}
	}
	return HealthCheck{Name: "Sources", Status: checkPass, Summary: summary}
}

// checkManifest compares the manifest of the last folder build with the
// modules a build would contain now.
func checkManifest(eng *engine.Engine, root, outputName string) HealthCheck {
	path := engine.ManifestPath(engine.OutputPath(root, outputName))
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return HealthCheck{Name: "Manifest", Status: checkPass, Summary: "none written (build with --manifest)"}
	}

	m, err := engine.ReadManifest(path)
	if err != nil {
		return HealthCheck{Name: "Manifest", Status: checkWarn, Summary: err.Error()}
	}
	files, err := eng.Discover(root)
	if err != nil {
		return HealthCheck{Name: "Manifest", Status: checkWarn, Summary: err.Error()}
	}

	built := make(map[string]bool, len(m.Modules))
	for _, mod := range m.Modules {
		built[mod.Name] = true
	}
	current := make(map[string]bool, len(files))
	for _, f := range files {
		current[f.QualifiedName] = true
	}

	var details []string
	for name := range current {
		if !built[name] {
			details = append(details, "not in artifact: "+name)
		}
	}
	for name := range built {
		if !current[name] {
			details = append(details, "source removed: "+name)
		}
	}
	sort.Strings(details)

	if len(details) > 0 {
		return HealthCheck{Name: "Manifest", Status: checkWarn, Summary: path + " is stale, rebuild", Details: details}
	}
	return HealthCheck{Name: "Manifest", Status: checkPass, Summary: fmt.Sprintf("%s lists %d modules", path, len(m.Modules))}
}

func checkCompiler(ctx context.Context, cmdCtx *CommandContext) HealthCheck {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := cmdCtx.Engine.BuildCode(ctx, "return 1"); err != nil {
		var cerr *compile.Error
		summary := err.Error()
		if errors.As(err, &cerr) {
			summary = cerr.Message
		}
		return HealthCheck{Name: "Compiler", Status: checkFail, Summary: summary}
	}
	return HealthCheck{Name: "Compiler", Status: checkPass, Summary: cmdCtx.Cfg.Compiler.Backend + " backend compiles"}
}

func checkState(cmdCtx *CommandContext, pruneOlderThan time.Duration) HealthCheck {
	store := cmdCtx.Engine.Store()
	if store == nil {
		return HealthCheck{Name: "State", Status: checkWarn, Summary: "disabled (state_path is empty)"}
	}

	version, err := store.GetMigrationVersion()
	if err != nil {
		return HealthCheck{Name: "State", Status: checkFail, Summary: err.Error()}
	}
	check := HealthCheck{
		Name:    "State",
		Status:  checkPass,
		Summary: cmdCtx.Cfg.StatePath,
		Details: []string{fmt.Sprintf("schema version %d", version)},
	}

	if pruneOlderThan > 0 {
		n, err := store.PruneFragments(time.Now().Add(-pruneOlderThan))
		if err != nil {
			check.Status = checkFail
			check.Details = append(check.Details, err.Error())
			return check
		}
		check.Details = append(check.Details, fmt.Sprintf("pruned %d cached fragments", n))
	}
	return check
}
