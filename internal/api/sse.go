package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spall/spall/internal/bus"
	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/pipeline"
)

// sseEvent is the wire shape written as `data: <json>\n\n` for every
// bus event forwarded to a stream, per spec.md §4.5.
type sseEvent struct {
	Tag     string `json:"tag"`
	Payload any    `json:"payload"`
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, tag string, payload any) {
	data, err := json.Marshal(sseEvent{Tag: tag, Payload: payload})
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func prepareSSE(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	return flusher, ok
}

// handleEvents is the global `/events` stream: every bus event,
// starting with a marker sse.connected, for the connection's lifetime.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := prepareSSE(w)
	if !ok {
		writeError(w, spallerrors.Internal("streaming unsupported by response writer", nil))
		return
	}

	end := s.Idle.BeginSSE()
	defer end()

	sub, unsubscribe := s.Bus.Subscribe()
	defer unsubscribe()

	writeSSEEvent(w, flusher, bus.TagSSEConnected, nil)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			writeSSEEvent(w, flusher, ev.Tag, ev.Payload)
		}
	}
}

// runStreamed executes a pipeline operation inside a fresh subscriber
// scope: subscribe before starting, run op in a goroutine, forward
// every bus event until op finishes or the client disconnects, and
// always unsubscribe on every exit path. A non-cancellation error from
// op surfaces as one `error` event before the stream closes.
func (s *Server) runStreamed(w http.ResponseWriter, r *http.Request, reqCtx *pipeline.RequestContext, op func(ctx context.Context) error) {
	flusher, ok := prepareSSE(w)
	if !ok {
		writeError(w, spallerrors.Internal("streaming unsupported by response writer", nil))
		return
	}

	end := s.Idle.BeginSSE()
	defer end()

	sub, unsubscribe := s.Bus.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	for {
		select {
		case <-r.Context().Done():
			reqCtx.Abort()
			return
		case ev := <-sub.Events():
			writeSSEEvent(w, flusher, ev.Tag, ev.Payload)
		case err := <-done:
			if err != nil && !spallerrors.IsCancelled(err) {
				writeSSEEvent(w, flusher, bus.TagError, bus.ErrorPayload{
					Code: spallerrors.GetCode(err), Message: err.Error(),
				})
			}
			return
		}
	}
}

func (s *Server) handleSSECorpusSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}

	reqCtx := pipeline.NewRequestContext(32)
	scanner := pipeline.NewScanner(s.Store, s.Bus)
	emb := s.embedder(r.Context())

	s.runStreamed(w, r, reqCtx, func(ctx context.Context) error {
		_, err := pipeline.Sync(ctx, reqCtx, s.Store, s.Bus, scanner, emb, req.Dir, req.Glob, req.Corpus, req.Prefix)
		return err
	})
}

func (s *Server) handleSSECorpusNoteAdd(w http.ResponseWriter, r *http.Request) {
	var req noteAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	reqCtx := pipeline.NewRequestContext(32)

	s.runStreamed(w, r, reqCtx, func(ctx context.Context) error {
		path := pipeline.CanonicalPath(req.Path)
		note, err := s.Store.AddNote(ctx, req.Corpus, path, req.Content, hashOf(req.Content), nowMillis(), req.Dupe)
		if err != nil {
			return err
		}
		s.Bus.Publish(bus.TagNoteCreated, bus.NotePayload{NoteID: note.ID, CorpusID: note.CorpusID, Path: note.Path})
		return pipeline.Embed(ctx, reqCtx, s.Store, s.Bus, s.embedder(ctx), []int64{note.ID})
	})
}

func (s *Server) handleSSECorpusNoteUpsert(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	path := pipeline.CanonicalPath(chi.URLParam(r, "*"))

	var req noteContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	reqCtx := pipeline.NewRequestContext(32)

	s.runStreamed(w, r, reqCtx, func(ctx context.Context) error {
		id, err := parseID(idStr)
		if err != nil {
			return err
		}
		note, err := s.Store.UpsertNote(ctx, id, path, req.Content, hashOf(req.Content), nowMillis(), req.Dupe)
		if err != nil {
			return err
		}
		s.Bus.Publish(bus.TagNoteUpdated, bus.NotePayload{NoteID: note.ID, CorpusID: note.CorpusID, Path: note.Path})
		return pipeline.Embed(ctx, reqCtx, s.Store, s.Bus, s.embedder(ctx), []int64{note.ID})
	})
}

func (s *Server) handleSSENoteUpdate(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	var req noteContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, spallerrors.Invalid("malformed request body"))
		return
	}
	reqCtx := pipeline.NewRequestContext(32)

	s.runStreamed(w, r, reqCtx, func(ctx context.Context) error {
		id, err := parseID(idStr)
		if err != nil {
			return err
		}
		note, err := s.Store.UpdateNote(ctx, id, req.Content, hashOf(req.Content), nowMillis(), req.Dupe)
		if err != nil {
			return err
		}
		s.Bus.Publish(bus.TagNoteUpdated, bus.NotePayload{NoteID: note.ID, CorpusID: note.CorpusID, Path: note.Path})
		return pipeline.Embed(ctx, reqCtx, s.Store, s.Bus, s.embedder(ctx), []int64{note.ID})
	})
}
