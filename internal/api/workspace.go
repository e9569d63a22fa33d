package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	spallerrors "github.com/spall/spall/internal/errors"
)

type workspaceRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleWorkspaceGetOrCreate(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	ws, err := s.Store.GetOrCreateWorkspace(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleWorkspaceGet(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		wsID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			writeError(w, spallerrors.Invalid("invalid id"))
			return
		}
		ws, err := s.Store.GetWorkspace(r.Context(), wsID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
		return
	}

	name := r.URL.Query().Get("name")
	ws, err := s.Store.GetWorkspaceByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleWorkspaceList(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListWorkspaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleWorkspaceDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, spallerrors.Invalid("invalid id"))
		return
	}
	if err := s.Store.RemoveWorkspace(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
