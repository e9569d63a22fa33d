package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorIndexAddAndSearch(t *testing.T) {
	idx := NewVectorIndex(3)

	err := idx.Add([]string{"1", "2", "3"}, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	})
	require.NoError(t, err)
	require.Equal(t, 3, idx.Count())

	hits, err := idx.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "1", hits[0].Key)
}

func TestVectorIndexRejectsDimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(3)
	err := idx.Add([]string{"1"}, [][]float32{{1, 0}})
	require.Error(t, err)
	require.IsType(t, ErrDimensionMismatch{}, err)
}

func TestVectorIndexReplaceOnExistingKey(t *testing.T) {
	idx := NewVectorIndex(2)
	require.NoError(t, idx.Add([]string{"1"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add([]string{"1"}, [][]float32{{0, 1}}))
	require.Equal(t, 1, idx.Count())
}

func TestVectorIndexDeleteIsLazy(t *testing.T) {
	idx := NewVectorIndex(2)
	require.NoError(t, idx.Add([]string{"1", "2"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Delete([]string{"1"}))
	require.Equal(t, 1, idx.Count())
}

func TestVectorIndexSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/index.hnsw"

	idx := NewVectorIndex(2)
	require.NoError(t, idx.Add([]string{"1", "2"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Save(path))

	loaded := NewVectorIndex(2)
	require.NoError(t, loaded.Load(path))
	require.Equal(t, 2, loaded.Count())

	hits, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "1", hits[0].Key)
}

func TestVectorIndexLoadMissingFileIsFreshIndex(t *testing.T) {
	idx := NewVectorIndex(2)
	require.NoError(t, idx.Load(t.TempDir()+"/missing.hnsw"))
	require.Equal(t, 0, idx.Count())
}
