package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	spallerrors "github.com/spall/spall/internal/errors"
)

// GetCorpus fetches a corpus by id.
func (s *Store) GetCorpus(ctx context.Context, id int64) (*Corpus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM corpora WHERE id = ?`, id)
	return scanCorpus(row)
}

// GetCorpusByName fetches a corpus by its unique name.
func (s *Store) GetCorpusByName(ctx context.Context, name string) (*Corpus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM corpora WHERE name = ?`, name)
	return scanCorpus(row)
}

// ListCorpora returns every known corpus, ordered by id.
func (s *Store) ListCorpora(ctx context.Context) ([]Corpus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM corpora ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Corpus
	for rows.Next() {
		var c Corpus
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetOrCreateCorpus returns the named corpus, creating it if it
// doesn't yet exist.
func (s *Store) GetOrCreateCorpus(ctx context.Context, name string) (*Corpus, error) {
	c, err := s.GetCorpusByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !spallerrors.IsCode(err, spallerrors.CodeCorpusNotFound) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO corpora (name, created_at, updated_at) VALUES (?, ?, ?)`, name, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Corpus{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// RemoveCorpus deletes a corpus and every note it owns, cascading
// through chunks, the vector index, and the FTS index, transactionally.
func (s *Store) RemoveCorpus(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	noteIDs, err := s.noteIDsForCorpus(ctx, id)
	if err != nil {
		return err
	}

	chunkKeys, err := s.chunkKeysForNotes(ctx, noteIDs)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, nid := range noteIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE note_id = ?`, nid); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE corpus_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM corpora WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return spallerrors.NotFound(spallerrors.CodeCorpusNotFound, "corpus", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.vec.Delete(chunkKeys); err != nil {
		return spallerrors.Internal("delete vectors for removed corpus", err)
	}
	for _, nid := range noteIDs {
		if err := s.fts.Delete(nid); err != nil {
			return spallerrors.Internal("delete fts rows for removed corpus", err)
		}
	}

	return nil
}

func (s *Store) noteIDsForCorpus(ctx context.Context, corpusID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM notes WHERE corpus_id = ?`, corpusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCorpus(row *sql.Row) (*Corpus, error) {
	var c Corpus
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, spallerrors.NotFound(spallerrors.CodeCorpusNotFound, "corpus", 0)
		}
		return nil, err
	}
	return &c, nil
}
