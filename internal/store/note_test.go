package store

import (
	"context"
	"testing"

	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestAddNoteRejectsPathCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddNote(ctx, 1, "a.md", "content one", "hash-1", 1000, false)
	require.NoError(t, err)

	_, err = s.AddNote(ctx, 1, "a.md", "content two", "hash-2", 1001, false)
	require.Error(t, err)
	require.Equal(t, spallerrors.CodeNoteAlreadyExists, spallerrors.GetCode(err))
}

func TestAddNoteRejectsDuplicateContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddNote(ctx, 1, "a.md", "same content", "hash-x", 1000, false)
	require.NoError(t, err)

	_, err = s.AddNote(ctx, 1, "b.md", "same content", "hash-x", 1001, false)
	require.Error(t, err)
	require.Equal(t, spallerrors.CodeNoteDuplicateContent, spallerrors.GetCode(err))
}

func TestAddNoteAllowsDuplicateContentWithOverride(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddNote(ctx, 1, "a.md", "same content", "hash-x", 1000, false)
	require.NoError(t, err)

	n, err := s.AddNote(ctx, 1, "b.md", "same content", "hash-x", 1001, true)
	require.NoError(t, err)
	require.Equal(t, "b.md", n.Path)
}

func TestUpsertNoteCreatesThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n1, err := s.UpsertNote(ctx, 1, "a.md", "v1", "hash-v1", 1000, false)
	require.NoError(t, err)

	n2, err := s.UpsertNote(ctx, 1, "a.md", "v2", "hash-v2", 1001, false)
	require.NoError(t, err)
	require.Equal(t, n1.ID, n2.ID)
	require.Equal(t, "v2", n2.Content)
}

func TestListNotesByPathKeysetPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	paths := []string{"a.md", "b.md", "c.md", "d.md"}
	for i, p := range paths {
		_, err := s.AddNote(ctx, 1, p, "content", p, int64(1000+i), true)
		require.NoError(t, err)
	}

	page1, cursor1, err := s.ListNotesByPath(ctx, 1, "*", "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Equal(t, "a.md", page1[0].Path)
	require.Equal(t, "b.md", page1[1].Path)
	require.Equal(t, "b.md", cursor1)

	page2, cursor2, err := s.ListNotesByPath(ctx, 1, "*", cursor1, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.Equal(t, "c.md", page2[0].Path)
	require.Equal(t, "d.md", page2[1].Path)
	require.Equal(t, "d.md", cursor2)
}

func TestDeleteNoteRemovesChunksAndFTS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddNote(ctx, 1, "a.md", "content", "hash", 1000, false)
	require.NoError(t, err)

	err = s.SaveEmbeddings(ctx, n.ID, []ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}}, [][]float32{{0.1, 0.2, 0.3, 0.4}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteNote(ctx, n.ID))

	chunks, err := s.ListChunks(ctx, n.ID)
	require.NoError(t, err)
	require.Empty(t, chunks)

	_, err = s.GetNoteByID(ctx, n.ID)
	require.Error(t, err)
	require.Equal(t, spallerrors.CodeNoteNotFound, spallerrors.GetCode(err))
}
