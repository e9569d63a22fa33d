package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorSearchJoinsThroughChunksToNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddNote(ctx, 1, "a.md", "hello world", "hash", 1000, false)
	require.NoError(t, err)
	require.NoError(t, s.SaveEmbeddings(ctx, n.ID,
		[]ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}}, [][]float32{{1, 0, 0, 0}}))

	rows, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, n.ID, rows[0].NoteID)
	require.Equal(t, int64(1), rows[0].CorpusID)
	require.Equal(t, "a.md", rows[0].Path)
}

func TestVectorSearchSkipsStaleEntriesAfterNoteDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddNote(ctx, 1, "a.md", "hello world", "hash", 1000, false)
	require.NoError(t, err)
	require.NoError(t, s.SaveEmbeddings(ctx, n.ID,
		[]ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}}, [][]float32{{1, 0, 0, 0}}))

	require.NoError(t, s.DeleteNote(ctx, n.ID))

	rows, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestFullTextSearchReturnsSnippet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddNote(ctx, 1, "a.md", "the quick brown fox", "hash", 1000, false)
	require.NoError(t, err)

	hits, err := s.FullTextSearch(ctx, "fox", []int64{1}, "*", 10, "<mark>", "</mark>")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Contains(t, hits[0].Snippet, "<mark>fox</mark>")
}
