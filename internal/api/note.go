package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spall/spall/internal/bus"
	spallerrors "github.com/spall/spall/internal/errors"
)

func (s *Server) handleNoteGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	note, err := s.Store.GetNoteByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleNoteUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	var req noteContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	note, err := s.Store.UpdateNote(r.Context(), id, req.Content, hashOf(req.Content), nowMillis(), req.Dupe)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(bus.TagNoteUpdated, bus.NotePayload{NoteID: note.ID, CorpusID: note.CorpusID, Path: note.Path})
	writeJSON(w, http.StatusOK, note)
}
