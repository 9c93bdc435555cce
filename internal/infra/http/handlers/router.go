package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/leadboard/internal/infra/http/middleware"
)

type RouterConfig struct {
	Boards      *BoardHandler
	Pipelines   *PipelineHandler
	Leads       *LeadHandler
	Stages      *StageHandler
	Health      *HealthHandler
	Notify      http.Handler
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.ActorHeader},
	}))
	r.Use(middleware.Metrics)

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Handle)
	}
	r.Handle("/metrics", promhttp.Handler())
	if cfg.Notify != nil {
		r.Get("/ws", cfg.Notify.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Actor)

		if cfg.Pipelines != nil {
			r.Get("/pipelines", cfg.Pipelines.HandleList)
		}

		r.Route("/boards/{pipelineID}", func(r chi.Router) {
			r.Get("/", cfg.Boards.HandleView)
			r.Post("/refresh", cfg.Boards.HandleRefresh)
			r.Get("/activity", cfg.Boards.HandleActivity)
			r.Get("/drag", cfg.Boards.HandleSession)
			r.Post("/drag/start", cfg.Boards.HandleDragStart)
			r.Post("/drag/drop", cfg.Boards.HandleDrop)
			r.Post("/drag/cancel", cfg.Boards.HandleDragCancel)
			r.Put("/leads/{leadID}/stage", cfg.Boards.HandleMoveLead)
			r.Put("/columns", cfg.Boards.HandleReorderColumns)
		})

		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Handler)
			}
			r.Post("/leads", cfg.Leads.HandleCreate)
			r.Put("/leads/{leadID}", cfg.Leads.HandleUpdate)
			r.Delete("/leads/{leadID}", cfg.Leads.HandleDelete)
			r.Post("/stages", cfg.Stages.HandleCreate)
		})
	})

	return r
}
