package scope

import (
	"context"
	"testing"

	"github.com/spall/spall/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vector []float32
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func newTestScope(t *testing.T, dims int, vec []float32) (*Scope, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), store.Config{
		DataDir: dir, EmbeddingModel: "test", EmbeddingDims: dims,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, fakeEmbedder{vector: vec}), s
}

func TestBuildPlainMatchExprTokenizesAndANDs(t *testing.T) {
	require.Equal(t, `"hello" AND "world"`, buildPlainMatchExpr("hello, world!"))
	require.Equal(t, "", buildPlainMatchExpr("   "))
}

func TestNotesReturnsAcrossScopedCorpora(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	_, err := st.AddNote(ctx, 1, "a.md", "content", "h1", 1000, false)
	require.NoError(t, err)

	w, err := st.GetOrCreateWorkspace(ctx, "alice")
	require.NoError(t, err)
	q, err := sc.CreateQuery(ctx, w.ID, false, []int64{1})
	require.NoError(t, err)

	page, err := sc.Notes(ctx, q.ID, "*", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Notes, 1)
	require.Equal(t, "a.md", page.Notes[0].Path)
}

func TestNotesMergesAndPaginatesAcrossMultipleCorpora(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	other, err := st.GetOrCreateCorpus(ctx, "other")
	require.NoError(t, err)

	// 10 notes total, interleaved across two corpora so that the
	// lexicographically smallest paths don't all belong to one corpus.
	paths := []string{"a.md", "c.md", "e.md", "g.md", "i.md", "b.md", "d.md", "f.md", "h.md", "j.md"}
	for i, p := range paths {
		corpusID := int64(1)
		if i >= 5 {
			corpusID = other.ID
		}
		_, err := st.AddNote(ctx, corpusID, p, "content", "h"+p, 1000, false)
		require.NoError(t, err)
	}

	q, err := sc.CreateQuery(ctx, 1, false, []int64{1, other.ID})
	require.NoError(t, err)

	var seen []string
	cursor := ""
	for {
		page, err := sc.Notes(ctx, q.ID, "*", cursor, 3)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Notes), 3)
		for _, n := range page.Notes {
			seen = append(seen, n.Path)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, 10)
	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i], "pages must concatenate into a strictly increasing sequence")
	}

	first, err := sc.Notes(ctx, q.ID, "*", "", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"a.md", "b.md", "c.md"}, []string{first.Notes[0].Path, first.Notes[1].Path, first.Notes[2].Path})
}

func TestPathsFiltersByGlob(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	_, err := st.AddNote(ctx, 1, "notes/a.md", "x", "h1", 1000, false)
	require.NoError(t, err)
	_, err = st.AddNote(ctx, 1, "other/b.md", "y", "h2", 1001, false)
	require.NoError(t, err)

	q, err := sc.CreateQuery(ctx, 1, false, []int64{1})
	require.NoError(t, err)

	entries, err := sc.Paths(ctx, q.ID, "notes/*")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "notes/a.md", entries[0].Path)
}

func TestSearchPlainModeFindsTerm(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	_, err := st.AddNote(ctx, 1, "a.md", "the quick brown fox", "h1", 1000, false)
	require.NoError(t, err)

	w, err := st.GetOrCreateWorkspace(ctx, "alice")
	require.NoError(t, err)
	q, err := sc.CreateQuery(ctx, w.ID, false, []int64{1})
	require.NoError(t, err)

	hits, err := sc.Search(ctx, q.ID, "fox", "plain", "*", 10, "", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearchPlainModeEmptyTextReturnsNoResults(t *testing.T) {
	sc, _ := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	q, err := sc.CreateQuery(ctx, 1, false, []int64{1})
	require.NoError(t, err)

	hits, err := sc.Search(ctx, q.ID, "   ", "plain", "*", 10, "", "")
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestVSearchFiltersByCorpusAndSlicesContent(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	n, err := st.AddNote(ctx, 1, "a.md", "hello world this is note content", "h1", 1000, false)
	require.NoError(t, err)
	require.NoError(t, st.SaveEmbeddings(ctx, n.ID,
		[]store.ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}}, [][]float32{{1, 0, 0, 0}}))

	q, err := sc.CreateQuery(ctx, 1, false, []int64{1})
	require.NoError(t, err)

	hits, err := sc.VSearch(ctx, q.ID, "hello", "*", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "hello world this is note content", hits[0].Content)
}

func TestVSearchExcludesCorpusOutsideScope(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	other, err := st.GetOrCreateCorpus(ctx, "other")
	require.NoError(t, err)
	n, err := st.AddNote(ctx, other.ID, "a.md", "content", "h1", 1000, false)
	require.NoError(t, err)
	require.NoError(t, st.SaveEmbeddings(ctx, n.ID,
		[]store.ChunkRow{{NoteID: n.ID, Seq: 0, Pos: 0}}, [][]float32{{1, 0, 0, 0}}))

	q, err := sc.CreateQuery(ctx, 1, false, []int64{1}) // default corpus only
	require.NoError(t, err)

	hits, err := sc.VSearch(ctx, q.ID, "content", "*", 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFetchRecordsStagingWhenTracked(t *testing.T) {
	sc, st := newTestScope(t, 4, []float32{1, 0, 0, 0})
	ctx := context.Background()

	n, err := st.AddNote(ctx, 1, "a.md", "content", "h1", 1000, false)
	require.NoError(t, err)

	q, err := sc.CreateQuery(ctx, 1, true, []int64{1})
	require.NoError(t, err)

	_, err = sc.Fetch(ctx, q.ID, n.ID)
	require.NoError(t, err)

	count, err := st.CountStaging(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCompileGlobMatchesWildcards(t *testing.T) {
	matcher, err := compileGlob("notes/*.md")
	require.NoError(t, err)
	require.True(t, matcher("notes/a.md"))
	require.True(t, matcher("notes/sub/a.md"))
	require.False(t, matcher("other/a.md"))
}
