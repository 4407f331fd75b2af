// Package api exposes the dispatch engine over HTTP: campaign dispatch and
// progress, scheduler and cleanup loop lifecycle, health and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/worker"
)

// Server wires the HTTP handlers to the engine components.
type Server struct {
	store      campaign.Store
	dispatcher *worker.Dispatcher
	scheduler  *worker.Scheduler
	cleanup    *worker.Cleanup
}

// NewServer creates the API server.
func NewServer(store campaign.Store, dispatcher *worker.Dispatcher, scheduler *worker.Scheduler, cleanup *worker.Cleanup) *Server {
	return &Server{
		store:      store,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		cleanup:    cleanup,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCampaign)
			r.Post("/dispatch", s.handleDispatch)
		})

		r.Route("/workers", func(r chi.Router) {
			r.Post("/scheduler/start", s.handleSchedulerStart)
			r.Post("/scheduler/stop", s.handleSchedulerStop)
			r.Get("/scheduler/status", s.handleSchedulerStatus)
			r.Post("/cleanup/start", s.handleCleanupStart)
			r.Post("/cleanup/stop", s.handleCleanupStop)
			r.Get("/cleanup/status", s.handleCleanupStatus)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
