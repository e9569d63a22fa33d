// Package api implements the HTTP surface of spec.md §6: a chi router
// wiring workspace/corpus/note/query CRUD plus search, vsearch,
// fetch, paths, commit, and the plain + SSE variants of sync/add/
// upsert/update onto the scope and pipeline layers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	spallerrors "github.com/spall/spall/internal/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps err to the route-boundary JSON body of spec.md §7:
// the four not-found kinds as 404, everything else as 500, logged.
func writeError(w http.ResponseWriter, err error) {
	code := spallerrors.GetCode(err)
	if code == "" {
		code = spallerrors.CodeGeneric
	}
	status := spallerrors.HTTPStatus(code)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.String("code", code), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}
