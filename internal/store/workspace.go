package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	spallerrors "github.com/spall/spall/internal/errors"
)

// GetWorkspace fetches a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE id = ?`, id)
	return scanWorkspace(row)
}

// GetWorkspaceByName fetches a workspace by its unique name.
func (s *Store) GetWorkspaceByName(ctx context.Context, name string) (*Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE name = ?`, name)
	return scanWorkspace(row)
}

// ListWorkspaces returns every known workspace, ordered by id.
func (s *Store) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetOrCreateWorkspace returns the named workspace, creating it with
// the given name if it doesn't yet exist.
func (s *Store) GetOrCreateWorkspace(ctx context.Context, name string) (*Workspace, error) {
	w, err := s.GetWorkspaceByName(ctx, name)
	if err == nil {
		return w, nil
	}
	if !spallerrors.IsCode(err, spallerrors.CodeWorkspaceNotFound) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (name, created_at, updated_at) VALUES (?, ?, ?)`, name, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Workspace{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// RemoveWorkspace deletes a workspace and every query that viewed
// through it, transactionally. It never touches corpora or notes.
func (s *Store) RemoveWorkspace(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM staging WHERE query_id IN (SELECT id FROM queries WHERE viewer_id = ?)`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM committed WHERE query_id IN (SELECT id FROM queries WHERE viewer_id = ?)`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queries WHERE viewer_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return spallerrors.NotFound(spallerrors.CodeWorkspaceNotFound, "workspace", id)
		}
		return nil
	})
}

func scanWorkspace(row *sql.Row) (*Workspace, error) {
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, spallerrors.NotFound(spallerrors.CodeWorkspaceNotFound, "workspace", 0)
		}
		return nil, err
	}
	return &w, nil
}
