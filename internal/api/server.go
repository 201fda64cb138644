package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/correct"
	"github.com/dgallion1/bookfix/internal/pipeline"
	"github.com/dgallion1/bookfix/internal/segment"
	"github.com/dgallion1/bookfix/internal/store"
)

// Server is the HTTP API server for bookfix.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        store.Store
	segmenter    *segment.Segmenter
	stats        *correct.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, st store.Store, seg *segment.Segmenter, stats *correct.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        st,
		segmenter:    seg,
		stats:        stats,
		log:          log,
		cfg:          cfg,
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
		r.Use(AuthMiddleware(s.cfg.BookfixAPIKey, s.log))

		r.Post("/api/books", s.handleUpload)
		r.Route("/api/books/{bookID}", func(r chi.Router) {
			r.Get("/segments", s.handleListSegments)
			r.Get("/segments/{index}", s.handleGetSegment)
			r.Post("/segments/{index}/correct", s.handleCorrectSegment)
			r.Post("/correct", s.handleCorrectBook)
		})
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
