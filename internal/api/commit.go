package api

import "net/http"

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	moved, committedAt, err := s.Store.CommitAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "committedAt": committedAt})
}
