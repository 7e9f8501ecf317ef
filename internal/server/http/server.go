// Package httpserver exposes the notekeeper REST API and the public share page.
package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/notekeeper/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth   service.AuthService
	notes  service.NoteService
	log    *zap.Logger
	router chi.Router

	trustProxy bool
}

// Option configures a Server.
type Option func(*Server)

// WithTrustedProxy makes the server take the client address from
// X-Forwarded-For / X-Real-IP. Only enable it when every request passes
// through a proxy that overwrites those headers; otherwise clients choose
// the address the sign-in limiter is keyed on.
func WithTrustedProxy() Option {
	return func(s *Server) { s.trustProxy = true }
}

// New constructs the server and its routes.
func New(auth service.AuthService, notes service.NoteService, log *zap.Logger, opts ...Option) *Server {
	s := &Server{auth: auth, notes: notes, log: log}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if s.trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(Logging(s.log))
	r.Use(Recover(s.log))
	r.Use(CORS)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/share/{id}", s.sharePage)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signUp)
		r.Post("/auth/signin", s.signIn)
		r.Post("/render", s.render)
		r.Get("/notes/{id}", s.getShared)
		r.Get("/notes/{id}/html", s.getSharedHTML)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.auth, s.log))
			r.Post("/auth/signout", s.signOut)
			r.Get("/notes", s.listNotes)
			r.Post("/notes", s.createNote)
			r.Put("/notes", s.updateNote)
			r.Delete("/notes", s.deleteNote)
			r.Put("/notes/{id}", s.setSharing)
			r.Post("/notes/{id}/share/toggle", s.toggleSharing)
		})
	})

	return r
}
