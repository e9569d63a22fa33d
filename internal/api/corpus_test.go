package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall/spall/internal/store"
)

func TestHandleCorpusGetOrCreateCreatesOnFirstCall(t *testing.T) {
	s := newTestServer(t)
	r := NewRouter(s)

	body, _ := json.Marshal(corpusRequest{Name: "work"})
	req := httptest.NewRequest(http.MethodPost, "/corpus/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var c store.Corpus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "work", c.Name)
}

func TestHandleCorpusNoteAddThenGet(t *testing.T) {
	s := newTestServer(t)
	corpus, err := s.Store.GetOrCreateCorpus(context.Background(), "work")
	require.NoError(t, err)

	r := NewRouter(s)

	addBody, _ := json.Marshal(noteAddRequest{Corpus: corpus.ID, Path: "a/b.txt", Content: "hello world"})
	addReq := httptest.NewRequest(http.MethodPost, "/corpus/note", bytes.NewReader(addBody))
	addRec := httptest.NewRecorder()
	r.ServeHTTP(addRec, addReq)
	require.Equal(t, http.StatusOK, addRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/corpus/"+strconv.FormatInt(corpus.ID, 10)+"/note/a/b.txt", nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var note store.Note
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &note))
	assert.Equal(t, "hello world", note.Content)
}

func TestHandleCorpusNoteAddRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	r := NewRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/corpus/note", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleCorpusNotesListsAddedNote(t *testing.T) {
	s := newTestServer(t)
	corpus, err := s.Store.GetOrCreateCorpus(context.Background(), "work")
	require.NoError(t, err)

	r := NewRouter(s)
	addBody, _ := json.Marshal(noteAddRequest{Corpus: corpus.ID, Path: "x.txt", Content: "content"})
	addReq := httptest.NewRequest(http.MethodPost, "/corpus/note", bytes.NewReader(addBody))
	r.ServeHTTP(httptest.NewRecorder(), addReq)

	listReq := httptest.NewRequest(http.MethodGet, "/corpus/"+strconv.FormatInt(corpus.ID, 10)+"/notes", nil)
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &body))
	var notes []store.Note
	require.NoError(t, json.Unmarshal(body["notes"], &notes))
	assert.Len(t, notes, 1)
}
