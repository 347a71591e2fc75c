package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/luaweave/internal/artifact"
	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/scheduler"
	"github.com/leapstack-labs/luaweave/internal/state"
)

// BuildResult describes a successful build.
type BuildResult struct {
	// BuildID is the build history ID, empty when history is disabled.
	BuildID string
	Mode    state.BuildMode
	// Artifact is the text that was (or would have been) persisted. With
	// debug instrumentation it is the wrapped artifact.
	Artifact string
	// ArtifactPath is where Artifact was written, empty with DontSave.
	ArtifactPath string
	// ManifestPath is where the manifest was written, if any.
	ManifestPath string
	// Modules lists the compiled qualified names, sorted.
	Modules  []string
	Workers  int
	Duration time.Duration
}

// Build compiles path as a folder or a single file, depending on what it is.
func (e *Engine) Build(ctx context.Context, path string) (*BuildResult, error) {
	info, err := os.Stat(path)
	switch {
	case err != nil && errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	case info.IsDir():
		return e.BuildFolder(ctx, path)
	case info.Mode().IsRegular():
		return e.BuildFile(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
}

// BuildFolder compiles every source file under root into one artifact.
// Any failing file fails the build and no artifact is written; the returned
// error is then a *scheduler.CompileFailedError.
func (e *Engine) BuildFolder(ctx context.Context, root string) (*BuildResult, error) {
	start := time.Now()
	rec := e.startBuild(state.BuildModeFolder, root)

	files, err := e.Discover(root)
	if err != nil {
		err = fmt.Errorf("failed to discover sources: %w", err)
		e.finishBuild(rec, nil, "", err)
		return nil, err
	}

	e.logger.Info("compiling folder", "root", root, "files", len(files))

	sched := scheduler.New(scheduler.Config{
		Compiler:    e.compiler,
		Options:     e.opts,
		Parallelism: e.cfg.Parallelism,
		Logger:      e.logger,
	})
	res := sched.Run(ctx, files)
	e.recordFiles(rec, res)

	fragments, err := res.Aggregate()
	if err != nil {
		e.finishBuild(rec, res, "", err)
		return nil, err
	}

	tpl, err := artifact.LoadTemplate(e.cfg.BasePath)
	if err != nil {
		e.finishBuild(rec, res, "", err)
		return nil, err
	}

	text := artifact.Assemble(tpl, artifact.Prelude(e.opts.JITBit), fragments)
	if e.opts.Debug {
		text = artifact.WrapDebug(text)
	}

	result := &BuildResult{
		Mode:     state.BuildModeFolder,
		Artifact: text,
		Modules:  moduleNames(fragments),
		Workers:  res.Workers,
	}
	if rec != nil {
		result.BuildID = rec.ID
	}

	if !e.cfg.DontSave {
		result.ArtifactPath = OutputPath(root, e.cfg.OutputName)
		if err := writeArtifact(result.ArtifactPath, text); err != nil {
			e.finishBuild(rec, res, "", err)
			return nil, err
		}
		if e.cfg.Manifest {
			manifestPath, err := e.writeManifest(result, fragments)
			if err != nil {
				e.finishBuild(rec, res, result.ArtifactPath, err)
				return nil, err
			}
			result.ManifestPath = manifestPath
		}
	}

	result.Duration = time.Since(start)
	e.finishBuild(rec, res, result.ArtifactPath, nil)
	e.logger.Info("folder compiled",
		"root", root,
		"modules", len(fragments),
		"workers", res.Workers,
		"artifact", result.ArtifactPath,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// BuildFile compiles a single source file, at top-level scope, into its own
// artifact next to it.
func (e *Engine) BuildFile(ctx context.Context, path string) (*BuildResult, error) {
	start := time.Now()
	rec := e.startBuild(state.BuildModeFile, path)

	name := filepath.Base(path)
	code, err := compile.CompileFile(ctx, e.compiler, path, name, compile.ScopeTopLevel, e.opts)
	elapsed := time.Since(start)

	res := &scheduler.Result{Workers: 1}
	if err != nil {
		res.Failures = []scheduler.Failure{{Name: name, Path: path, Err: err, Duration: elapsed}}
	} else {
		res.Fragments = []scheduler.Fragment{{Name: name, Path: path, Code: code, Duration: elapsed}}
	}
	e.recordFiles(rec, res)

	if err != nil {
		e.finishBuild(rec, res, "", err)
		return nil, err
	}

	if e.opts.Debug {
		code = artifact.WrapDebug(code)
	}

	result := &BuildResult{
		Mode:     state.BuildModeFile,
		Artifact: code,
		Modules:  []string{name},
		Workers:  1,
	}
	if rec != nil {
		result.BuildID = rec.ID
	}

	if !e.cfg.DontSave {
		result.ArtifactPath = strings.TrimSuffix(path, e.cfg.SourceExt) + ArtifactExt
		if err := writeArtifact(result.ArtifactPath, code); err != nil {
			e.finishBuild(rec, res, "", err)
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	e.finishBuild(rec, res, result.ArtifactPath, nil)
	return result, nil
}

// BuildCode compiles code passed directly by the user and returns the
// generated code. Nothing is written or recorded.
func (e *Engine) BuildCode(ctx context.Context, code string) (string, error) {
	return compile.CompileCode(ctx, e.compiler, code, e.opts)
}

// OutputPath returns the folder artifact path for root and name. A ".lua"
// suffix on name is not doubled.
func OutputPath(root, name string) string {
	if name == "" {
		name = DefaultOutputName
	}
	return filepath.Join(root, strings.TrimSuffix(name, ArtifactExt)+ArtifactExt)
}

func writeArtifact(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil { //nolint:gosec // G306: artifacts are meant to be readable
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

func moduleNames(fragments []scheduler.Fragment) []string {
	names := make([]string, 0, len(fragments))
	for _, f := range fragments {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
