package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kindred-app/kindred/internal/recommend"
	"github.com/kindred-app/kindred/internal/roster"
	"github.com/kindred-app/kindred/internal/store"
)

func NewRouter(s store.Store, e *recommend.Engine, rc roster.Client, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(120))

	recs := NewRecommendationsHandler(e)
	feedback := NewFeedbackHandler(e, s)
	weights := NewWeightsHandler(e)
	admin := NewAdminHandler(s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(UserIDMiddleware)
		r.Use(RoleResolver(rc, logger))

		r.Post("/recommendations", recs.Create)

		r.Post("/feedback", feedback.Create)
		r.Get("/feedback/{id}/explain", feedback.Explain)

		r.Get("/weights", weights.Get)
		r.Put("/weights/{factor}", weights.Update)
		r.Post("/weights/presets/{name}", weights.ApplyPreset)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/stats", admin.Stats)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
