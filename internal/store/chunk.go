package store

import (
	"context"
	"database/sql"
	"strconv"

	spallerrors "github.com/spall/spall/internal/errors"
)

// SaveEmbeddings atomically replaces a note's chunk rows and vectors:
// any residual chunks for the note are deleted first, then the new
// chunk rows and their embeddings are inserted, all inside a single
// transaction plus a matching vector-index update. len(chunks) must
// equal len(vectors).
func (s *Store) SaveEmbeddings(ctx context.Context, noteID int64, chunks []ChunkRow, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return spallerrors.Invalid("chunk/vector count mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staleKeys, err := s.chunkKeysForNotes(ctx, []int64{noteID})
	if err != nil {
		return err
	}

	ids := make([]int64, len(chunks))
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE note_id = ?`, noteID); err != nil {
			return err
		}
		for i, c := range chunks {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO chunks (note_id, seq, pos) VALUES (?, ?, ?)`, noteID, c.Seq, c.Pos)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(staleKeys) > 0 {
		if err := s.vec.Delete(staleKeys); err != nil {
			return spallerrors.Internal("delete stale vectors", err)
		}
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatInt(id, 10)
	}
	if err := s.vec.Add(keys, vectors); err != nil {
		return spallerrors.Internal("add vectors", err)
	}

	return nil
}

// DeleteChunks removes a note's chunk rows and their vectors, used
// when a note is deleted or before a full re-embed.
func (s *Store) DeleteChunks(ctx context.Context, noteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.chunkKeysForNotes(ctx, []int64{noteID})
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE note_id = ?`, noteID); err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := s.vec.Delete(keys); err != nil {
			return spallerrors.Internal("delete vectors for removed note", err)
		}
	}
	return nil
}

// ListChunks returns every chunk row belonging to a note, ordered by
// sequence.
func (s *Store) ListChunks(ctx context.Context, noteID int64) ([]ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_id, seq, pos FROM chunks WHERE note_id = ? ORDER BY seq`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var c ChunkRow
		if err := rows.Scan(&c.ID, &c.NoteID, &c.Seq, &c.Pos); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// chunkKeysForNotes returns the decimal chunk-id strings (the vector
// index's key space) for every chunk row owned by the given notes.
func (s *Store) chunkKeysForNotes(ctx context.Context, noteIDs []int64) ([]string, error) {
	if len(noteIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]any, len(noteIDs))
	query := `SELECT id FROM chunks WHERE note_id IN (`
	for i, id := range noteIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = id
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		keys = append(keys, strconv.FormatInt(id, 10))
	}
	return keys, rows.Err()
}
