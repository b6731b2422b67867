// Package api exposes the refinement pipeline over HTTP: upload a PDF,
// poll the job, fetch the enhanced text.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pdfrefine/pdfrefine/internal/config"
	"github.com/pdfrefine/pdfrefine/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	service *pipeline.Service
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(service *pipeline.Service, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		service: service,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.RefineAPIKey, s.log))

		r.Post("/api/refine", s.handleRefine)
		r.Get("/api/refine/{jobID}/status", s.handleStatus)
		r.Get("/api/refine/{jobID}/result", s.handleResult)
		r.Post("/api/refine/{jobID}/cancel", s.handleCancel)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
