package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetFileHash returns the last-recorded content hash for path if its
// recorded mtime still matches, used by the scan step to skip hashing
// unchanged files. A nil result (no error) means no usable record.
func (s *Store) GetFileHash(ctx context.Context, path string, mtime int64) (*string, error) {
	var hash string
	var recordedMtime int64
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, mtime FROM file_hashes WHERE path = ?`, path).Scan(&hash, &recordedMtime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if recordedMtime != mtime {
		return nil, nil
	}
	return &hash, nil
}

// UpsertFileHash records the content hash observed for path at mtime.
func (s *Store) UpsertFileHash(ctx context.Context, path, hash string, mtime int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_hashes (path, content_hash, mtime) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, mtime = excluded.mtime`,
		path, hash, mtime)
	return err
}

// DeleteFileHash removes the recorded hash for a path no longer on
// disk.
func (s *Store) DeleteFileHash(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_hashes WHERE path = ?`, path)
	return err
}
