package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spall/spall/internal/bus"
	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/pipeline"
)

type corpusRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCorpusGetOrCreate(w http.ResponseWriter, r *http.Request) {
	var req corpusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	c, err := s.Store.GetOrCreateCorpus(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCorpusGet(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		cid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			writeError(w, spallerrors.Invalid("invalid id"))
			return
		}
		c, err := s.Store.GetCorpus(r.Context(), cid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}
	c, err := s.Store.GetCorpusByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCorpusList(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListCorpora(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCorpusDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	if err := s.Store.RemoveCorpus(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCorpusPathList(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	paths, err := s.Store.ListPaths(r.Context(), id, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

func (s *Server) handleCorpusNotes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"), 50)

	notes, next, err := s.Store.ListNotesByPath(r.Context(), id, q.Get("path"), q.Get("after"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "nextCursor": next})
}

func (s *Server) handleCorpusNoteGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	path := chi.URLParam(r, "*")
	note, err := s.Store.GetNote(r.Context(), id, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

type noteAddRequest struct {
	Corpus  int64  `json:"corpus"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Dupe    bool   `json:"dupe"`
}

func (s *Server) handleCorpusNoteAdd(w http.ResponseWriter, r *http.Request) {
	var req noteAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	path := pipeline.CanonicalPath(req.Path)
	note, err := s.Store.AddNote(r.Context(), req.Corpus, path, req.Content, hashOf(req.Content), nowMillis(), req.Dupe)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(bus.TagNoteCreated, bus.NotePayload{NoteID: note.ID, CorpusID: note.CorpusID, Path: note.Path})
	writeJSON(w, http.StatusOK, note)
}

type noteContentRequest struct {
	Content string `json:"content"`
	Dupe    bool   `json:"dupe"`
}

func (s *Server) handleCorpusNoteUpsert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	path := pipeline.CanonicalPath(chi.URLParam(r, "*"))

	var req noteContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	note, err := s.Store.UpsertNote(r.Context(), id, path, req.Content, hashOf(req.Content), nowMillis(), req.Dupe)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(bus.TagNoteUpdated, bus.NotePayload{NoteID: note.ID, CorpusID: note.CorpusID, Path: note.Path})
	writeJSON(w, http.StatusOK, note)
}

type syncRequest struct {
	Corpus int64  `json:"corpus"`
	Dir    string `json:"dir"`
	Glob   string `json:"glob"`
	Prefix string `json:"prefix"`
}

func (s *Server) handleCorpusSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}

	reqCtx := pipeline.NewRequestContext(32)
	scanner := pipeline.NewScanner(s.Store, s.Bus)
	emb := s.embedder(r.Context())

	_, err := pipeline.Sync(r.Context(), reqCtx, s.Store, s.Bus, scanner, emb, req.Dir, req.Glob, req.Corpus, req.Prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
