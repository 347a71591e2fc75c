package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/luaweave/internal/cli/output"
	"github.com/leapstack-labs/luaweave/internal/engine"
	"github.com/leapstack-labs/luaweave/internal/watch"
)

// BuildOptions holds command-only options for the build command. Options
// that are also configuration keys are read from the loaded config.
type BuildOptions struct {
	Code     bool
	DontSave bool
	Watch    bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(version string) *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <path> [output-name]",
		Short: "Compile a source folder or file into Lua",
		Long: `Compile every source file under a folder into a single Lua artifact.

Each file becomes a module named after its path relative to the folder, with
directory separators replaced by dots (util/helpers.clue -> util.helpers).
Files are compiled concurrently; if any file fails, no artifact is written.

If <path> is a single file, only that file is compiled and written next to it
with a .lua extension. With --code, <path> is compiled as source code and the
result is printed.`,
		Example: `  # Compile ./src into ./src/main.lua
  luaweave build src

  # Compile into ./src/app.lua, using LuaJIT's bit library as "bit"
  luaweave build src app --jitbit bit

  # Compile a single file
  luaweave build src/script.clue

  # Compile code from the command line
  luaweave build --code 'print("hello")'

  # Rebuild whenever a source file changes
  luaweave build src --watch`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, version, opts, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.Code, "code", "p", false, "Treat <path> as source code instead of a path")
	f.BoolVarP(&opts.DontSave, "dont-save", "D", false, "Don't save compiled code")
	f.BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild the folder whenever a source file changes")

	f.StringP("base", "b", "", "Use a custom Lua file as base for compiling the folder")
	f.BoolP("debug", "d", false, "Add debug information in output")
	f.StringP("jitbit", "j", "", "Use LuaJIT's bit library for bitwise operations, bound to this variable")
	f.StringP("continue", "c", "simple", "Change the way continue identifiers are compiled (simple|luajit|moonscript)")
	f.BoolP("rawset-globals", "r", false, "Use rawset to create globals")
	f.Bool("trace-tokens", false, "Print the tokens of compiled files")
	f.Bool("trace-struct", false, "Print the syntax structure of compiled files")
	f.Bool("trace-output", false, "Print the generated Lua code of compiled files")
	f.Int("jobs", 0, "Parallelism used to size the worker pool (0 = number of CPUs)")
	f.Bool("no-cache", false, "Compile every file, ignoring cached fragments")
	f.Bool("manifest", false, "Write <artifact>.manifest.yaml next to the folder artifact")
	f.String("ext", "", "Source file extension (default .clue)")
	f.String("backend", "", "Compiler backend (lua|command)")
	f.String("compiler-command", "", "Shell command run per file by the command backend")
	f.Duration("debounce", 0, "Quiet period before a --watch rebuild")

	_ = cmd.RegisterFlagCompletionFunc("continue", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"simple", "luajit", "moonscript"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("backend", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"lua", "command"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runBuild(cmd *cobra.Command, version string, opts *BuildOptions, args []string) error {
	overrides := EngineOverrides{DontSave: opts.DontSave, NoState: opts.Code}
	if len(args) > 1 {
		overrides.OutputName = args[1]
	}
	if opts.Code && opts.Watch {
		return errors.New("--watch cannot be combined with --code")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, version, overrides)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Code {
		code, err := cmdCtx.Engine.BuildCode(ctx, args[0])
		if err != nil {
			return err
		}
		cmdCtx.Renderer.Println(code)
		return nil
	}

	if opts.Watch {
		return watchBuild(ctx, cmdCtx, args[0])
	}

	res, err := cmdCtx.Engine.Build(ctx, args[0])
	if err != nil {
		return err
	}
	return renderBuild(cmdCtx.Renderer, res)
}

// watchBuild builds root once and then again on every source change until
// interrupted. Failed builds are reported and watching continues.
func watchBuild(ctx context.Context, cmdCtx *CommandContext, root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("--watch requires a folder: %w", engine.ErrPathNotFound)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild := func(ctx context.Context) {
		res, err := cmdCtx.Engine.BuildFolder(ctx, root)
		if err != nil {
			cmdCtx.Renderer.Error(err.Error())
			return
		}
		if err := renderBuild(cmdCtx.Renderer, res); err != nil {
			cmdCtx.Logger.Warn("failed to render build result", "error", err)
		}
	}
	rebuild(ctx)

	artifactName := filepath.Base(engine.OutputPath(root, cmdCtx.Cfg.OutputName))
	ignore := append([]string{artifactName, artifactName + ".manifest.yaml"}, cmdCtx.Cfg.Watch.Ignore...)

	w, err := watch.New(watch.Config{
		Root:      root,
		Extension: cmdCtx.Cfg.SourceExt,
		Ignore:    ignore,
		Debounce:  cmdCtx.Cfg.Watch.Debounce,
		Logger:    cmdCtx.Logger,
		OnChange: func(ctx context.Context, changed []string) error {
			cmdCtx.Logger.Debug("rebuilding", "changed", strings.Join(changed, ", "))
			rebuild(ctx)
			return nil
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

type buildOutput struct {
	BuildID      string   `json:"build_id,omitempty"`
	Mode         string   `json:"mode"`
	ArtifactPath string   `json:"artifact_path,omitempty"`
	ManifestPath string   `json:"manifest_path,omitempty"`
	Modules      []string `json:"modules"`
	Workers      int      `json:"workers"`
	DurationMS   int64    `json:"duration_ms"`
}

func renderBuild(r *output.Renderer, res *engine.BuildResult) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(buildOutput{
			BuildID:      res.BuildID,
			Mode:         string(res.Mode),
			ArtifactPath: res.ArtifactPath,
			ManifestPath: res.ManifestPath,
			Modules:      res.Modules,
			Workers:      res.Workers,
			DurationMS:   res.Duration.Milliseconds(),
		})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Build"))
		r.Println("")
		r.Println(output.FormatKeyValue("Mode", string(res.Mode)))
		r.Println(output.FormatKeyValue("Modules", fmt.Sprintf("%d", len(res.Modules))))
		if res.ArtifactPath != "" {
			r.Println(output.FormatKeyValue("Artifact", res.ArtifactPath))
		}
		if res.ManifestPath != "" {
			r.Println(output.FormatKeyValue("Manifest", res.ManifestPath))
		}
		r.Println(output.FormatKeyValue("Duration", res.Duration.Round(time.Millisecond).String()))
		return nil
	default:
		target := res.ArtifactPath
		if target == "" {
			target = "(not saved)"
		}
		r.Success(fmt.Sprintf("Compiled %s into %s in %s",
			pluralize(len(res.Modules), "module"),
			r.Styles().Path.Render(target),
			res.Duration.Round(time.Millisecond)))
		return nil
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
