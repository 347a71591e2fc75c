package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetFragment looks up cached generated code by key.
func (s *SQLiteStore) GetFragment(key string) (string, bool, error) {
	if s.db == nil {
		return "", false, fmt.Errorf("database not opened")
	}

	var code string
	err := s.db.QueryRow(`SELECT code FROM fragment_cache WHERE cache_key = ?`, key).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get fragment: %w", err)
	}
	return code, true, nil
}

// PutFragment stores generated code under key.
func (s *SQLiteStore) PutFragment(key, name, code string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO fragment_cache (cache_key, qualified_name, code, created_at) VALUES (?, ?, ?, ?)`,
		key, name, code, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to store fragment: %w", err)
	}
	return nil
}

// PruneFragments removes cache entries older than cutoff and returns how many
// were removed.
func (s *SQLiteStore) PruneFragments(cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	res, err := s.db.Exec(`DELETE FROM fragment_cache WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune fragments: %w", err)
	}
	return res.RowsAffected()
}
