// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metriscope/app"
	"metriscope/internal/config"
	"metriscope/ports"
)

// Server wires the analysis service into a chi router
type Server struct {
	router  *chi.Mux
	service *app.AnalysisService
	archive ports.ReportArchive
	cfg     config.ServerConfig
}

// NewServer creates the HTTP server. The archive is optional; when nil
// the report listing endpoints respond 404.
func NewServer(cfg config.ServerConfig, service *app.AnalysisService, archive ports.ReportArchive) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		archive: archive,
		cfg:     cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(2 * time.Minute))
	s.router.Use(corsMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/analyze", s.handleAnalyze)
	s.router.Post("/analyze/quick", s.handleAnalyzeQuick)
	s.router.Post("/preview", s.handlePreview)
	s.router.Get("/reports", s.handleListReports)
	s.router.Get("/reports/{id}", s.handleGetReport)
}

// Handler returns the router for serving or testing
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP on the configured port
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	log.Printf("[Server] Listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// corsMiddleware allows browser clients on any origin to call the API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
