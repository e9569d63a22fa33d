package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	spallerrors "github.com/spall/spall/internal/errors"
)

// CreateQuery persists a new query scope: a viewer plus the set of
// corpus ids it's fixed to for its lifetime.
func (s *Store) CreateQuery(ctx context.Context, viewerID int64, tracked bool, corpora []int64) (*Query, error) {
	now := time.Now().UnixMilli()
	encoded, err := json.Marshal(corpora)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (viewer_id, tracked, corpora, created_at) VALUES (?, ?, ?, ?)`,
		viewerID, boolToInt(tracked), string(encoded), now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Query{ID: id, ViewerID: viewerID, Tracked: tracked, Corpora: corpora, CreatedAt: now}, nil
}

// GetQuery fetches a query by id.
func (s *Store) GetQuery(ctx context.Context, id int64) (*Query, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, viewer_id, tracked, corpora, created_at FROM queries WHERE id = ?`, id)
	return scanQuery(row)
}

// RecentQueries returns the most recently created queries for a
// viewer, newest first, bounded by limit.
func (s *Store) RecentQueries(ctx context.Context, viewerID int64, limit int) ([]Query, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, viewer_id, tracked, corpora, created_at FROM queries
		 WHERE viewer_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, viewerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Query
	for rows.Next() {
		var id, vid, createdAt int64
		var trackedInt int
		var corporaJSON string
		if err := rows.Scan(&id, &vid, &trackedInt, &corporaJSON, &createdAt); err != nil {
			return nil, err
		}
		var corpora []int64
		if err := json.Unmarshal([]byte(corporaJSON), &corpora); err != nil {
			return nil, err
		}
		out = append(out, Query{ID: id, ViewerID: vid, Tracked: trackedInt != 0, Corpora: corpora, CreatedAt: createdAt})
	}
	return out, rows.Err()
}

// AppendStaging records a note access under a tracked query. Untracked
// queries never call this — callers check Query.Tracked first.
func (s *Store) AppendStaging(ctx context.Context, noteID, queryID int64, kind int, payload string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staging (note_id, query_id, kind, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		noteID, queryID, kind, time.Now().UnixMilli(), payload)
	return err
}

// CountStaging returns the number of not-yet-committed staging rows.
func (s *Store) CountStaging(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM staging`).Scan(&n)
	return n, err
}

// CommitAll moves every staging row into committed and truncates
// staging, as a single all-or-nothing transaction. Returns the number
// of rows moved and the commit timestamp; a no-op when staging is
// empty.
func (s *Store) CommitAll(ctx context.Context) (moved int, committedAt int64, err error) {
	committedAt = time.Now().UnixMilli()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, note_id, query_id, kind, created_at, payload FROM staging`)
		if err != nil {
			return err
		}
		type row struct {
			id, noteID, queryID int64
			kind                int
			createdAt           int64
			payload             string
		}
		var staged []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.noteID, &r.queryID, &r.kind, &r.createdAt, &r.payload); err != nil {
				rows.Close()
				return err
			}
			staged = append(staged, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(staged) == 0 {
			return nil
		}

		for _, r := range staged {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO committed (note_id, query_id, kind, created_at, payload, committed_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				r.noteID, r.queryID, r.kind, r.createdAt, r.payload, committedAt); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM staging`); err != nil {
			return err
		}
		moved = len(staged)
		return nil
	})

	return moved, committedAt, err
}

// ListPaths returns the distinct (id, path) pairs for every note in a
// corpus matching pathGlob ("" or "*" matches everything), grouped for
// the per-corpus listing route.
func (s *Store) ListPaths(ctx context.Context, corpusID int64, pathGlob string) ([]PathEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path FROM notes WHERE corpus_id = ? AND path GLOB ? GROUP BY path ORDER BY path`,
		corpusID, globToSQLLike(pathGlob))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PathEntry
	for rows.Next() {
		var p PathEntry
		if err := rows.Scan(&p.ID, &p.Path); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanQuery(row *sql.Row) (*Query, error) {
	var id, vid, createdAt int64
	var trackedInt int
	var corporaJSON string
	if err := row.Scan(&id, &vid, &trackedInt, &corporaJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, spallerrors.NotFound(spallerrors.CodeQueryNotFound, "query", 0)
		}
		return nil, err
	}
	var corpora []int64
	if err := json.Unmarshal([]byte(corporaJSON), &corpora); err != nil {
		return nil, err
	}
	return &Query{ID: id, ViewerID: vid, Tracked: trackedInt != 0, Corpora: corpora, CreatedAt: createdAt}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
