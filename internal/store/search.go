package store

import (
	"context"
	"strconv"

	spallerrors "github.com/spall/spall/internal/errors"
)

// VectorSearch runs the raw nearest-neighbor primitive and joins each
// hit through its chunk row to the owning note. Per spec.md §4.1 this
// performs NO corpus or path filtering — over-fetching and
// post-filtering by scope is the query-scope layer's job (§4.3).
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, k int) ([]VectorSearchRow, error) {
	hits, err := s.vec.Search(embedding, k)
	if err != nil {
		return nil, spallerrors.Internal("vector search", err)
	}

	out := make([]VectorSearchRow, 0, len(hits))
	for _, h := range hits {
		chunkID, err := strconv.ParseInt(h.Key, 10, 64)
		if err != nil {
			continue
		}

		var noteID int64
		var pos int
		if err := s.db.QueryRowContext(ctx,
			`SELECT note_id, pos FROM chunks WHERE id = ?`, chunkID).Scan(&noteID, &pos); err != nil {
			continue // stale vector whose chunk row was since deleted
		}

		note, err := s.GetNoteByID(ctx, noteID)
		if err != nil {
			continue // stale vector whose note was since deleted
		}

		out = append(out, VectorSearchRow{
			EmbeddingID: chunkID,
			NoteID:      note.ID,
			CorpusID:    note.CorpusID,
			Path:        note.Path,
			Content:     note.Content,
			ChunkPos:    pos,
			Distance:    h.Distance,
		})
	}
	return out, nil
}

// FullTextSearch runs the FTS primitive directly against the index.
// The query-scope layer is responsible for building matchExpr from its
// plain/fts tokenization rules before calling this.
func (s *Store) FullTextSearch(ctx context.Context, matchExpr string, corpusIDs []int64, pathGlob string, limit int, highlightOpen, highlightClose string) ([]FTSHit, error) {
	hits, err := s.fts.Search(matchExpr, corpusIDs, pathGlob, limit, highlightOpen, highlightClose)
	if err != nil {
		return nil, spallerrors.Internal("fts search", err)
	}
	return hits, nil
}
