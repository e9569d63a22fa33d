package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	id, err := ParseCorpusID("42")
	require.NoError(t, err)
	require.Equal(t, CorpusID(42), id)
	require.Equal(t, "42", id.String())
}

func TestParseRejectsNonPositive(t *testing.T) {
	_, err := ParseNoteID("0")
	require.Error(t, err)
	_, err = ParseNoteID("-3")
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseQueryID("abc")
	require.Error(t, err)
}

func TestDefaultCorpusID(t *testing.T) {
	require.Equal(t, CorpusID(1), DefaultCorpusID)
}
