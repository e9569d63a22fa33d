package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	spallerrors "github.com/spall/spall/internal/errors"
)

type queryCreateRequest struct {
	Viewer  int64   `json:"viewer"`
	Tracked bool    `json:"tracked"`
	Corpora []int64 `json:"corpora"`
}

func (s *Server) handleQueryCreate(w http.ResponseWriter, r *http.Request) {
	var req queryCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	q, err := s.Scope.CreateQuery(r.Context(), req.Viewer, req.Tracked, req.Corpora)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleQueryRecent(w http.ResponseWriter, r *http.Request) {
	viewer, err := strconv.ParseInt(r.URL.Query().Get("viewer"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid viewer"))
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 20)
	list, err := s.Scope.RecentQueries(r.Context(), viewer, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": list})
}

func (s *Server) handleQueryGet(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := s.Scope.GetQuery(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleQueryNotes(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	qv := r.URL.Query()
	page, err := s.Scope.Notes(r.Context(), id, qv.Get("path"), qv.Get("after"), parseLimit(qv.Get("limit"), 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": page.Notes, "nextCursor": page.NextCursor})
}

func (s *Server) handleQuerySearch(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	qv := r.URL.Query()
	mode := qv.Get("mode")
	if mode == "" {
		mode = "plain"
	}
	hits, err := s.Scope.Search(r.Context(), id, qv.Get("q"), mode, qv.Get("path"), parseLimit(qv.Get("limit"), 20), "", "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleQueryVSearch(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	qv := r.URL.Query()
	hits, err := s.Scope.VSearch(r.Context(), id, qv.Get("q"), qv.Get("path"), parseLimit(qv.Get("limit"), 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

type fetchRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleQueryFetch(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}

	notes := make([]any, 0, len(req.IDs))
	for _, nid := range req.IDs {
		note, err := s.Scope.Fetch(r.Context(), id, nid)
		if err != nil {
			writeError(w, err)
			return
		}
		notes = append(notes, note)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

type corpusPaths struct {
	Corpus int64    `json:"corpus"`
	Paths  []string `json:"paths"`
}

func (s *Server) handleQueryPaths(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := s.Scope.GetQuery(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	pathGlob := r.URL.Query().Get("path")

	groups := make([]corpusPaths, 0, len(q.Corpora))
	for _, corpusID := range q.Corpora {
		entries, err := s.Store.ListPaths(r.Context(), corpusID, pathGlob)
		if err != nil {
			writeError(w, err)
			return
		}
		paths := make([]string, len(entries))
		for i, e := range entries {
			paths[i] = e.Path
		}
		groups = append(groups, corpusPaths{Corpus: corpusID, Paths: paths})
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": groups})
}

func queryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, spallerrors.Invalid("invalid query id")
	}
	return id, nil
}
