package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/luaweave/internal/cli/output"
	"github.com/leapstack-labs/luaweave/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(version string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [build-id]",
		Short: "Show recent builds",
		Long: `Show builds recorded in the state database, most recent first.

Given a build ID (or a unique prefix of one shown in the list), show the
outcome of every file in that build.`,
		Example: `  # Show the last 20 builds
  luaweave history

  # Show the files of one build
  luaweave history 3f2a9c1e`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd, version, EngineOverrides{})
			if err != nil {
				return err
			}
			defer cleanup()

			store := cmdCtx.Engine.Store()
			if store == nil {
				return errors.New("build history is disabled (state_path is empty)")
			}
			if len(args) == 1 {
				return showBuild(cmdCtx.Renderer, store, args[0])
			}
			return listBuilds(cmdCtx.Renderer, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of builds to show")
	return cmd
}

type buildInfo struct {
	ID           string     `json:"id"`
	Mode         string     `json:"mode"`
	Root         string     `json:"root"`
	Version      string     `json:"version"`
	Status       string     `json:"status"`
	FilesTotal   int        `json:"files_total"`
	FilesFailed  int        `json:"files_failed"`
	Workers      int        `json:"workers"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

func toBuildInfo(b *state.Build) buildInfo {
	return buildInfo{
		ID:           b.ID,
		Mode:         string(b.Mode),
		Root:         b.Root,
		Version:      b.Version,
		Status:       string(b.Status),
		FilesTotal:   b.FilesTotal,
		FilesFailed:  b.FilesFailed,
		Workers:      b.Workers,
		ArtifactPath: b.ArtifactPath,
		Error:        b.Error,
		StartedAt:    b.StartedAt,
		CompletedAt:  b.CompletedAt,
		DurationMS:   b.Duration().Milliseconds(),
	}
}

func listBuilds(r *output.Renderer, store state.Store, limit int) error {
	builds, err := store.ListBuilds(limit)
	if err != nil {
		return fmt.Errorf("failed to list builds: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		infos := make([]buildInfo, 0, len(builds))
		for _, b := range builds {
			infos = append(infos, toBuildInfo(b))
		}
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	r.Header(1, fmt.Sprintf("Builds (%d shown)", len(builds)))
	if len(builds) == 0 {
		r.Println("(no builds recorded)")
		return nil
	}

	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		rows = append(rows, []string{
			shortID(b.ID),
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(b.Mode),
			string(b.Status),
			strconv.Itoa(b.FilesTotal),
			strconv.Itoa(b.FilesFailed),
			b.Duration().Round(time.Millisecond).String(),
			b.Root,
		})
	}
	r.Table([]string{"ID", "Started", "Mode", "Status", "Files", "Failed", "Duration", "Root"}, rows)
	return nil
}

func showBuild(r *output.Renderer, store state.Store, id string) error {
	b, err := findBuild(store, id)
	if err != nil {
		return err
	}
	files, err := store.ListBuildFiles(b.ID)
	if err != nil {
		return fmt.Errorf("failed to list build files: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		type fileInfo struct {
			Name       string `json:"name"`
			Path       string `json:"path"`
			Status     string `json:"status"`
			DurationUS int64  `json:"duration_us"`
			Error      string `json:"error,omitempty"`
		}
		out := struct {
			Build buildInfo  `json:"build"`
			Files []fileInfo `json:"files"`
		}{Build: toBuildInfo(b), Files: make([]fileInfo, 0, len(files))}
		for _, f := range files {
			out.Files = append(out.Files, fileInfo{
				Name: f.Name, Path: f.Path, Status: string(f.Status),
				DurationUS: f.Duration.Microseconds(), Error: f.Error,
			})
		}
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	r.Header(1, "Build "+b.ID)
	r.Println(output.FormatKeyValue("Status", string(b.Status)))
	r.Println(output.FormatKeyValue("Mode", string(b.Mode)))
	r.Println(output.FormatKeyValue("Root", b.Root))
	if b.ArtifactPath != "" {
		r.Println(output.FormatKeyValue("Artifact", b.ArtifactPath))
	}
	if b.Error != "" {
		r.Println(output.FormatKeyValue("Error", b.Error))
	}
	r.Println("")

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Name, string(f.Status), f.Duration.Round(time.Microsecond).String(), f.Error})
	}
	r.Table([]string{"Module", "Status", "Duration", "Error"}, rows)
	return nil
}

// findBuild resolves a full build ID or a unique prefix among recent builds.
func findBuild(store state.Store, id string) (*state.Build, error) {
	if b, err := store.GetBuild(id); err == nil && b != nil {
		return b, nil
	}
	builds, err := store.ListBuilds(1000)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	var match *state.Build
	for _, b := range builds {
		if strings.HasPrefix(b.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("build ID prefix %q is ambiguous", id)
			}
			match = b
		}
	}
	if match == nil {
		return nil, fmt.Errorf("build %q not found", id)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
