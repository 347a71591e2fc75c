package engine

import (
	"errors"

	"github.com/leapstack-labs/luaweave/internal/scheduler"
	"github.com/leapstack-labs/luaweave/internal/state"
)

// History failures are logged and never fail a build.

func (e *Engine) startBuild(mode state.BuildMode, root string) *state.Build {
	if e.store == nil {
		return nil
	}
	b, err := e.store.CreateBuild(mode, root, e.cfg.Version)
	if err != nil {
		e.logger.Warn("failed to record build start", "error", err)
		return nil
	}
	return b
}

func (e *Engine) recordFiles(b *state.Build, res *scheduler.Result) {
	if b == nil || res == nil {
		return
	}

	records := make([]state.FileRecord, 0, len(res.Fragments)+res.FailedCount())
	for _, f := range res.Fragments {
		records = append(records, state.FileRecord{
			Name: f.Name, Path: f.Path, Status: state.FileStatusCompiled, Duration: f.Duration,
		})
	}
	for _, f := range res.Failures {
		records = append(records, state.FileRecord{
			Name: f.Name, Path: f.Path, Status: state.FileStatusFailed, Duration: f.Duration, Error: f.Err.Error(),
		})
	}

	if err := e.store.RecordFiles(b.ID, records); err != nil {
		e.logger.Warn("failed to record build files", "build_id", b.ID, "error", err)
	}
}

func (e *Engine) finishBuild(b *state.Build, res *scheduler.Result, artifactPath string, buildErr error) {
	if b == nil {
		return
	}

	b.Status = state.BuildStatusSucceeded
	b.ArtifactPath = artifactPath
	if res != nil {
		b.FilesTotal = len(res.Fragments) + res.FailedCount()
		b.FilesFailed = res.FailedCount()
		b.Workers = res.Workers
	}
	if buildErr != nil {
		b.Status = state.BuildStatusFailed
		b.Error = buildErr.Error()
		var cfe *scheduler.CompileFailedError
		if errors.As(buildErr, &cfe) {
			b.FilesFailed = cfe.Count()
		}
	}

	if err := e.store.CompleteBuild(b); err != nil {
		e.logger.Warn("failed to record build completion", "build_id", b.ID, "error", err)
	}
}
