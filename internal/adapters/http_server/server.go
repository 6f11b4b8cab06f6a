package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Server struct {
	mux   *chi.Mux
	reads chi.Router
}

// New builds the router. readTimeout bounds the query routes only; ingestion
// runs as long as the sources take.
func New(l zerolog.Logger, readTimeout time.Duration) *Server {
	m := chi.NewRouter()

	// all middlewares go here (before any routes are added)
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Instrument(l))

	s := &Server{mux: m, reads: m}
	if readTimeout > 0 {
		s.reads = m.With(Timeout(readTimeout))
	}
	return s
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
