package routes

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/playoff-engine/docs"
	"github.com/Dosada05/playoff-engine/handlers"
	"github.com/Dosada05/playoff-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// Simulator is mounted only when set.
	Simulator *handlers.SimulatorHandler
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	playoffHandler *handlers.PlayoffHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.HTTPMetrics(opts.Registry))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{Registry: opts.Registry}))
	router.Get("/swagger/doc.json", docs.Handler)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/playoffs/{playoffID}", webSocketHandler.ServeWs)

	router.Route("/playoffs", func(r chi.Router) {
		r.Get("/", playoffHandler.ListHandler)
		r.Post("/", playoffHandler.CreateHandler)

		r.Route("/{playoffID}", func(r chi.Router) {
			r.Get("/", playoffHandler.GetHandler)
			r.Post("/seeding", playoffHandler.SeedHandler)
			r.Get("/status", playoffHandler.StatusHandler)
			r.Get("/ready", playoffHandler.ReadyHandler)
			r.Get("/validation", playoffHandler.ValidateHandler)
			r.Post("/materialize", playoffHandler.MaterializeHandler)
			r.Post("/archive", playoffHandler.ArchiveHandler)

			r.Route("/matches/{matchID}", func(r chi.Router) {
				r.Post("/result", playoffHandler.ResultHandler)
				r.Post("/reset", playoffHandler.ResetHandler)
				r.Put("/format", playoffHandler.FormatHandler)
				r.Put("/schedule", playoffHandler.ScheduleHandler)
				r.Post("/start", playoffHandler.StartHandler)
			})
		})
	})

	if opts.Simulator != nil {
		router.Post("/simulator/external-matches/{externalMatchID}/finalize", opts.Simulator.FinalizeHandler)
	}
}
