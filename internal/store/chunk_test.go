package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveEmbeddingsRejectsCountMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddNote(ctx, 1, "a.md", "content", "hash", 1000, false)
	require.NoError(t, err)

	err = s.SaveEmbeddings(ctx, n.ID,
		[]ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}, {NoteID: n.ID, Seq: 1, Pos: 10}},
		[][]float32{{1, 0, 0, 0}})
	require.Error(t, err)
}

func TestSaveEmbeddingsReplacesResidualChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddNote(ctx, 1, "a.md", "content", "hash", 1000, false)
	require.NoError(t, err)

	require.NoError(t, s.SaveEmbeddings(ctx, n.ID,
		[]ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}, {NoteID: n.ID, Seq: 1, Pos: 10}},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	chunks, err := s.ListChunks(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	require.NoError(t, s.SaveEmbeddings(ctx, n.ID,
		[]ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}},
		[][]float32{{0, 0, 1, 0}}))

	chunks, err = s.ListChunks(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	rows, err := s.VectorSearch(ctx, []float32{0, 0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
