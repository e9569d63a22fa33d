package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// wordTokenizer tokenizes by whitespace-separated words, treating each
// word's index in a de-duplicated vocabulary as its token id. Good
// enough to exercise window math without a real model.
type wordTokenizer struct{}

func (wordTokenizer) Tokenize(text string) ([]int32, error) {
	words := strings.Fields(text)
	ids := make([]int32, len(words))
	for i := range words {
		ids[i] = int32(i)
	}
	return ids, nil
}

func (wordTokenizer) Detokenize(tokens []int32) (string, error) {
	// Not used meaningfully by these tests; Split only calls Detokenize
	// with windows it computed from Tokenize's own output length, so a
	// fixed-width placeholder per token is enough to test window math.
	words := make([]string, len(tokens))
	for i := range tokens {
		words[i] = "word"
	}
	return strings.Join(words, " "), nil
}

func repeatWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestSplitSingleChunkWhenUnderLimit(t *testing.T) {
	content := repeatWords(100)
	chunks, err := Split(wordTokenizer{}, content)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].Seq)
	require.Equal(t, 0, chunks[0].Pos)
	require.Equal(t, content, chunks[0].Content)
}

func TestSplitEmptyContent(t *testing.T) {
	chunks, err := Split(wordTokenizer{}, "")
	require.NoError(t, err)
	require.Nil(t, chunks)
}

func TestSplitProducesOverlappingWindows(t *testing.T) {
	content := repeatWords(1200)
	chunks, err := Split(wordTokenizer{}, content)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		require.Equal(t, i, c.Seq)
	}
	// Positions should be non-decreasing across the sequence.
	for i := 1; i < len(chunks); i++ {
		require.GreaterOrEqual(t, chunks[i].Pos, chunks[i-1].Pos)
	}
}

func TestTruncateAtCleanBreakPrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 100) + "\n\n" + strings.Repeat("b", 20)
	truncated := truncateAtCleanBreak(text)
	require.True(t, strings.HasSuffix(truncated, "\n\n"))
}

func TestTruncateAtCleanBreakFallsBackToSentence(t *testing.T) {
	text := strings.Repeat("a", 90) + ". " + strings.Repeat("b", 20)
	truncated := truncateAtCleanBreak(text)
	require.True(t, strings.HasSuffix(truncated, "."))
}

func TestTruncateAtCleanBreakNoBreakReturnsUnmodified(t *testing.T) {
	text := strings.Repeat("a", 100)
	require.Equal(t, text, truncateAtCleanBreak(text))
}
