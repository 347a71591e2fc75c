package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const buildColumns = `id, mode, root, version, status, files_total, files_failed, workers,
	artifact_path, error, started_at, completed_at`

// CreateBuild records a new running build.
func (s *SQLiteStore) CreateBuild(mode BuildMode, root, version string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	b := &Build{
		ID:        generateID(),
		Mode:      mode,
		Root:      root,
		Version:   version,
		Status:    BuildStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating build", slog.String("id", b.ID), slog.String("mode", string(mode)))

	_, err := s.db.Exec(
		`INSERT INTO builds (id, mode, root, version, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Mode), b.Root, b.Version, string(b.Status), formatTime(b.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build: %w", err)
	}
	return b, nil
}

// CompleteBuild stores the final state of b and stamps its completion time.
func (s *SQLiteStore) CompleteBuild(b *Build) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE builds SET status = ?, files_total = ?, files_failed = ?, workers = ?,
			artifact_path = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(b.Status), b.FilesTotal, b.FilesFailed, b.Workers,
		b.ArtifactPath, b.Error, formatTime(now), b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete build: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("build not found: %s", b.ID)
	}

	b.CompletedAt = &now
	return nil
}

// RecordFiles stores per-file outcomes of a build in one transaction.
func (s *SQLiteStore) RecordFiles(buildID string, files []FileRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO build_files (build_id, qualified_name, path, status, duration_us, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.Exec(buildID, f.Name, f.Path, string(f.Status), f.Duration.Microseconds(), f.Error); err != nil {
			return fmt.Errorf("failed to record file %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file records: %w", err)
	}
	return nil
}

// GetBuild retrieves a build by ID.
func (s *SQLiteStore) GetBuild(id string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(`SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return b, nil
}

// ListBuilds returns the most recent builds, newest first.
func (s *SQLiteStore) ListBuilds(limit int) ([]*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`SELECT `+buildColumns+` FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// ListBuildFiles returns the file outcomes of a build ordered by name, then
// path.
func (s *SQLiteStore) ListBuildFiles(buildID string) ([]FileRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT build_id, qualified_name, path, status, duration_us, error
		FROM build_files WHERE build_id = ? ORDER BY qualified_name, path`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list build files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var (
			f      FileRecord
			status string
			us     int64
		)
		if err := rows.Scan(&f.BuildID, &f.Name, &f.Path, &status, &us, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan build file: %w", err)
		}
		f.Status = FileStatus(status)
		f.Duration = time.Duration(us) * time.Microsecond
		files = append(files, f)
	}
	return files, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (*Build, error) {
	var (
		b           Build
		mode        string
		status      string
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&b.ID, &mode, &b.Root, &b.Version, &status, &b.FilesTotal, &b.FilesFailed,
		&b.Workers, &b.ArtifactPath, &b.Error, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	b.Mode = BuildMode(mode)
	b.Status = BuildStatus(status)
	if b.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt.String, err)
		}
		b.CompletedAt = &t
	}
	return &b, nil
}
