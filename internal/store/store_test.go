package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{
		DataDir:        dir,
		EmbeddingModel: "test-embedder",
		EmbeddingDims:  4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSeedsDefaultCorpus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.GetCorpus(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "default", c.Name)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(ctx, Config{DataDir: dir, EmbeddingModel: "m", EmbeddingDims: 4})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, Config{DataDir: dir, EmbeddingModel: "m", EmbeddingDims: 4})
	require.NoError(t, err)
	defer s2.Close()

	corpora, err := s2.ListCorpora(ctx)
	require.NoError(t, err)
	require.Len(t, corpora, 1)
}

func TestMigrateNotesSizeBackfills(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	note, err := s.AddNote(ctx, 1, "a.md", "hello world", "hash-a", 1000, false)
	require.NoError(t, err)
	require.EqualValues(t, len("hello world"), note.Size)

	fetched, err := s.GetNoteByID(ctx, note.ID)
	require.NoError(t, err)
	require.EqualValues(t, len("hello world"), fetched.Size)
}
