package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	err := New(CodeCorpusNotFound, "corpus 7 not found", nil)
	require.Equal(t, CategoryNotFound, err.Category)
	require.Equal(t, SeverityError, err.Severity)
	require.False(t, err.Retryable)
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeQueryNotFound, "", nil)
	wrapped := Wrap(CodeQueryNotFound, errors.New("boom"))
	require.True(t, errors.Is(wrapped, sentinel))
}

func TestConflictAndCancelledHelpers(t *testing.T) {
	require.Equal(t, CodeNoteDuplicateContent, DuplicateContent("a.md").Code)
	require.Equal(t, CodeNoteAlreadyExists, AlreadyExists(1, "a.md").Code)
	require.Equal(t, CodeStorageCancelled, Cancelled().Code)
	require.True(t, IsCancelled(Cancelled()))
	require.False(t, IsCancelled(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusNotFound, HTTPStatus(CodeNoteNotFound))
	require.Equal(t, http.StatusNotFound, HTTPStatus(CodeCorpusNotFound))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeGeneric))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeNoteDuplicateContent))
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(New(CodeModelDownload, "timed out", nil)))
	require.False(t, IsRetryable(New(CodeGeneric, "oops", nil)))
	require.False(t, IsRetryable(nil))
}
