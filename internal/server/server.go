package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/studiotv/internal/display"
	"github.com/claude/studiotv/internal/progress"
	"github.com/claude/studiotv/internal/records"
	"github.com/claude/studiotv/internal/session"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	locator    *session.Locator
	detector   *records.Detector
	tracker    *progress.Tracker
	controller *display.Controller
	log        *slog.Logger
	apiKey     string
	router     chi.Router
}

// New creates a new Server with all routes configured.
func New(locator *session.Locator, detector *records.Detector, tracker *progress.Tracker, controller *display.Controller, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		locator:    locator,
		detector:   detector,
		tracker:    tracker,
		controller: controller,
		log:        log,
		apiKey:     apiKey,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// TV display endpoints (API key required)
	s.router.Route("/api/v1/tv", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Get("/state", s.handleState)
		r.Get("/records", s.handleRecords)
		r.Get("/progress", s.handleProgress)
		r.Get("/logs", s.handleLogs)
	})

	s.router.Get("/healthz", s.handleHealthz)
}
