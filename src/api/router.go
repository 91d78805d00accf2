package api

import (
	"net/http"

	"spendwatch-server/src/handlers"
	"spendwatch-server/src/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Deps struct {
	Anomalies      handlers.AnomalyService
	Cache          handlers.CacheClearer
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         zerolog.Logger
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(deps.AllowedOrigins))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Protected routes
		r.With(middleware.JWTAuthMiddleware(deps.JWTSecret)).Group(func(r chi.Router) {
			r.Get("/spaces/{space_id}/anomalies", handlers.GetAnomalies(deps.Anomalies))
			r.Get("/spaces/{space_id}/anomalies/summary", handlers.GetAnomalySummary(deps.Anomalies))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware(deps.JWTSecret), middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/cache/clear", handlers.ClearCache(deps.Cache))
		})
	})

	return r
}
