package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/spall/spall/internal/bus"
	"github.com/spall/spall/internal/model"
	"github.com/spall/spall/internal/scope"
	"github.com/spall/spall/internal/store"
)

// IdleTracker is the subset of daemon.IdleMonitor the router needs:
// a begin/end pair per in-flight request or live SSE stream. Declared
// here (rather than importing internal/daemon) so the daemon can wire
// a *daemon.IdleMonitor into a Server without an import cycle.
type IdleTracker interface {
	BeginRequest() func()
	BeginSSE() func()
}

type noopIdleTracker struct{}

func (noopIdleTracker) BeginRequest() func() { return func() {} }
func (noopIdleTracker) BeginSSE() func()     { return func() {} }

// Server holds every dependency the HTTP surface needs to serve
// spec.md §6's route table.
type Server struct {
	Store *store.Store
	Scope *scope.Scope
	Model *model.Adapter
	Bus   *bus.Bus
	Idle  IdleTracker
}

// NewRouter builds the chi router for the full HTTP API.
func NewRouter(s *Server) http.Handler {
	if s.Idle == nil {
		s.Idle = noopIdleTracker{}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(requestLogger)
	r.Use(s.trackRequest)

	r.Get("/health", s.handleHealth)
	r.Post("/shutdown", s.handleShutdown)
	r.Get("/events", s.handleEvents)

	r.Route("/workspace", func(r chi.Router) {
		r.Post("/", s.handleWorkspaceGetOrCreate)
		r.Get("/", s.handleWorkspaceGet)
		r.Get("/list", s.handleWorkspaceList)
		r.Delete("/{id}", s.handleWorkspaceDelete)
	})

	r.Route("/corpus", func(r chi.Router) {
		r.Post("/", s.handleCorpusGetOrCreate)
		r.Get("/", s.handleCorpusGet)
		r.Get("/list", s.handleCorpusList)
		r.Delete("/{id}", s.handleCorpusDelete)
		r.Get("/{id}/list", s.handleCorpusPathList)
		r.Get("/{id}/notes", s.handleCorpusNotes)
		r.Get("/{id}/note/*", s.handleCorpusNoteGet)
		r.Post("/note", s.handleCorpusNoteAdd)
		r.Put("/{id}/note/*", s.handleCorpusNoteUpsert)
		r.Post("/sync", s.handleCorpusSync)
	})

	r.Route("/note", func(r chi.Router) {
		r.Get("/{id}", s.handleNoteGet)
		r.Put("/{id}", s.handleNoteUpdate)
	})

	r.Route("/query", func(r chi.Router) {
		r.Post("/", s.handleQueryCreate)
		r.Get("/recent", s.handleQueryRecent)
		r.Get("/{id}", s.handleQueryGet)
		r.Get("/{id}/notes", s.handleQueryNotes)
		r.Get("/{id}/search", s.handleQuerySearch)
		r.Get("/{id}/vsearch", s.handleQueryVSearch)
		r.Post("/{id}/fetch", s.handleQueryFetch)
		r.Get("/{id}/paths", s.handleQueryPaths)
	})

	r.Post("/commit/", s.handleCommit)

	r.Route("/sse", func(r chi.Router) {
		r.Post("/corpus/sync", s.handleSSECorpusSync)
		r.Post("/corpus/note", s.handleSSECorpusNoteAdd)
		r.Put("/corpus/{id}/note/*", s.handleSSECorpusNoteUpsert)
		r.Put("/note/{id}", s.handleSSENoteUpdate)
	})

	return r
}

// trackRequest bumps the idle monitor's active_requests counter for
// every in-flight HTTP request, per spec.md §4.4.
func (s *Server) trackRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		end := s.Idle.BeginRequest()
		defer end()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`"ok"`))
}
