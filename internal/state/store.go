// Package state persists build history and the fragment cache in SQLite.
package state

import (
	"time"
)

// BuildStatus is the lifecycle state of a build.
type BuildStatus string

// Build statuses.
const (
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
)

// BuildMode records what a build compiled.
type BuildMode string

// Build modes.
const (
	BuildModeFolder BuildMode = "folder"
	BuildModeFile   BuildMode = "file"
)

// FileStatus is the outcome of one file in a build.
type FileStatus string

// File statuses.
const (
	FileStatusCompiled FileStatus = "compiled"
	FileStatusFailed   FileStatus = "failed"
)

// Build is one recorded invocation.
type Build struct {
	ID           string
	Mode         BuildMode
	Root         string
	Version      string
	Status       BuildStatus
	FilesTotal   int
	FilesFailed  int
	Workers      int
	ArtifactPath string
	Error        string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// Duration returns how long the build ran, or zero while it is running.
func (b *Build) Duration() time.Duration {
	if b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(b.StartedAt)
}

// FileRecord is the outcome of one file in a build.
type FileRecord struct {
	BuildID  string
	Name     string
	Path     string
	Status   FileStatus
	Duration time.Duration
	Error    string
}

// Store is the persistence interface used by the engine.
type Store interface {
	CreateBuild(mode BuildMode, root, version string) (*Build, error)
	CompleteBuild(b *Build) error
	RecordFiles(buildID string, files []FileRecord) error
	GetBuild(id string) (*Build, error)
	ListBuilds(limit int) ([]*Build, error)
	ListBuildFiles(buildID string) ([]FileRecord, error)

	GetFragment(key string) (code string, ok bool, err error)
	PutFragment(key, name, code string) error
	PruneFragments(cutoff time.Time) (int64, error)

	GetMigrationVersion() (int64, error)
	Close() error
}
