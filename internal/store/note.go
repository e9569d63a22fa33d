package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	spallerrors "github.com/spall/spall/internal/errors"
)

// GetNote fetches a note by (corpus, path).
func (s *Store) GetNote(ctx context.Context, corpusID int64, path string) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, corpus_id, path, content, content_hash, size, mtime, created_at, updated_at
		 FROM notes WHERE corpus_id = ? AND path = ?`, corpusID, path)
	return scanNote(row)
}

// GetNoteByID fetches a note by its primary key.
func (s *Store) GetNoteByID(ctx context.Context, id int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, corpus_id, path, content, content_hash, size, mtime, created_at, updated_at
		 FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListNotes returns every note in a corpus, ordered by path.
func (s *Store) ListNotes(ctx context.Context, corpusID int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, corpus_id, path, content, content_hash, size, mtime, created_at, updated_at
		 FROM notes WHERE corpus_id = ? ORDER BY path`, corpusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ListNotesByPath keyset-paginates a corpus's notes filtered by a glob
// pattern, matching spec.md §4.1: `path > cursor` AND glob match,
// ordered by path, limited to limit rows. The returned cursor is the
// last row's path when exactly limit rows came back, or "" when the
// page was the final one.
func (s *Store) ListNotesByPath(ctx context.Context, corpusID int64, pathGlob, cursor string, limit int) ([]Note, string, error) {
	if limit <= 0 {
		return nil, "", nil
	}

	pattern := globToSQLLike(pathGlob)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, corpus_id, path, content, content_hash, size, mtime, created_at, updated_at
		 FROM notes
		 WHERE corpus_id = ? AND path > ? AND path GLOB ?
		 ORDER BY path
		 LIMIT ?`, corpusID, cursor, pattern, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	notes, err := scanNotes(rows)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(notes) == limit {
		next = notes[len(notes)-1].Path
	}
	return notes, next, nil
}

// globToSQLLike translates our `*`/`?` glob syntax directly into
// SQLite's native GLOB operator syntax, which already uses the same
// wildcard characters with the same meaning.
func globToSQLLike(glob string) string {
	if glob == "" {
		return "*"
	}
	return glob
}

// AddNote inserts a brand-new note. Duplicate content within the
// corpus is rejected with note.duplicate_content unless allowDupe is
// set; a path collision is rejected with note.already_exists — both
// enforced here at the operation layer, not as schema constraints.
func (s *Store) AddNote(ctx context.Context, corpusID int64, path, content, contentHash string, mtime int64, allowDupe bool) (*Note, error) {
	if _, err := s.GetNote(ctx, corpusID, path); err == nil {
		return nil, spallerrors.AlreadyExists(corpusID, path)
	} else if !spallerrors.IsCode(err, spallerrors.CodeNoteNotFound) {
		return nil, err
	}

	if !allowDupe {
		if dup, err := s.hasContentHash(ctx, corpusID, contentHash); err != nil {
			return nil, err
		} else if dup {
			return nil, spallerrors.DuplicateContent(path)
		}
	}

	now := time.Now().UnixMilli()
	size := int64(len(content))
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (corpus_id, path, content, content_hash, size, mtime, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		corpusID, path, content, contentHash, size, mtime, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := s.fts.Upsert(id, corpusID, path, content); err != nil {
		return nil, spallerrors.Internal("index note in fts", err)
	}

	return &Note{
		ID: id, CorpusID: corpusID, Path: path, Content: content, ContentHash: contentHash,
		Size: size, Mtime: mtime, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// UpdateNote replaces an existing note's content in place, re-indexing
// it in the FTS index and clearing its stale chunks/vectors (the
// pipeline re-embeds on the next sync). Duplicate-content checking
// mirrors AddNote's policy, excluding the note's own prior content.
func (s *Store) UpdateNote(ctx context.Context, id int64, content, contentHash string, mtime int64, allowDupe bool) (*Note, error) {
	existing, err := s.GetNoteByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !allowDupe && contentHash != existing.ContentHash {
		if dup, err := s.hasContentHashExcluding(ctx, existing.CorpusID, contentHash, id); err != nil {
			return nil, err
		} else if dup {
			return nil, spallerrors.DuplicateContent(existing.Path)
		}
	}

	now := time.Now().UnixMilli()
	size := int64(len(content))
	if _, err := s.db.ExecContext(ctx,
		`UPDATE notes SET content = ?, content_hash = ?, size = ?, mtime = ?, updated_at = ? WHERE id = ?`,
		content, contentHash, size, mtime, now, id); err != nil {
		return nil, err
	}

	if err := s.fts.Upsert(id, existing.CorpusID, existing.Path, content); err != nil {
		return nil, spallerrors.Internal("reindex note in fts", err)
	}

	if err := s.DeleteChunks(ctx, id); err != nil {
		return nil, err
	}

	existing.Content = content
	existing.ContentHash = contentHash
	existing.Size = size
	existing.Mtime = mtime
	existing.UpdatedAt = now
	return existing, nil
}

// UpsertNote adds a note if it doesn't exist at (corpus, path), or
// updates it in place otherwise.
func (s *Store) UpsertNote(ctx context.Context, corpusID int64, path, content, contentHash string, mtime int64, allowDupe bool) (*Note, error) {
	existing, err := s.GetNote(ctx, corpusID, path)
	if err != nil {
		if spallerrors.IsCode(err, spallerrors.CodeNoteNotFound) {
			return s.AddNote(ctx, corpusID, path, content, contentHash, mtime, allowDupe)
		}
		return nil, err
	}
	return s.UpdateNote(ctx, existing.ID, content, contentHash, mtime, allowDupe)
}

// TouchNoteMtime updates only a note's stored mtime, leaving content,
// hash, size, updated_at, FTS, and chunks untouched: the path spec.md
// §8 calls out for a file whose mtime advanced but whose content is
// unchanged.
func (s *Store) TouchNoteMtime(ctx context.Context, id int64, mtime int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notes SET mtime = ? WHERE id = ?`, mtime, id)
	return err
}

// DeleteNote removes a note and every row it owns: chunks, vectors,
// its FTS row, transactionally.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	if err := s.DeleteChunks(ctx, id); err != nil {
		return err
	}
	if err := s.fts.Delete(id); err != nil {
		return spallerrors.Internal("delete fts row", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return spallerrors.NotFound(spallerrors.CodeNoteNotFound, "note", id)
	}
	return nil
}

func (s *Store) hasContentHash(ctx context.Context, corpusID int64, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notes WHERE corpus_id = ? AND content_hash = ?`, corpusID, hash).Scan(&n)
	return n > 0, err
}

func (s *Store) hasContentHashExcluding(ctx context.Context, corpusID int64, hash string, excludeID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notes WHERE corpus_id = ? AND content_hash = ? AND id != ?`, corpusID, hash, excludeID).Scan(&n)
	return n > 0, err
}

func scanNote(row *sql.Row) (*Note, error) {
	var n Note
	if err := row.Scan(&n.ID, &n.CorpusID, &n.Path, &n.Content, &n.ContentHash, &n.Size, &n.Mtime, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, spallerrors.NotFound(spallerrors.CodeNoteNotFound, "note", 0)
		}
		return nil, err
	}
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.CorpusID, &n.Path, &n.Content, &n.ContentHash, &n.Size, &n.Mtime, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
