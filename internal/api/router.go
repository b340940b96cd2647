// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiroku-project/kiroku/internal/auth"
	"github.com/kiroku-project/kiroku/internal/config"
	"github.com/kiroku-project/kiroku/internal/middleware"
)

// NewRouter builds the HTTP routing tree.
//
// Rate limits are split by intent: reads share a generous per-IP
// budget, writes get a stricter one because every write fans out into
// cache invalidation and event publishing. Health and metrics bypass
// both limiters so probes keep working under load.
func NewRouter(cfg *config.Config, handlers *Handlers, jwtManager *auth.JWTManager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	readLimiter := httprate.LimitByIP(cfg.RateLimit.ReadPerMinute, time.Minute)
	writeLimiter := httprate.LimitByIP(cfg.RateLimit.WritePerMinute, time.Minute)

	r.Get("/health/live", handlers.HandleHealthLive)
	r.Get("/health/ready", handlers.HandleHealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Authenticate(jwtManager))

		// Engagement reads.
		r.Group(func(r chi.Router) {
			r.Use(readLimiter)
			r.Get("/posts/{id}/engagement", handlers.HandleGetEngagement)
		})

		// Engagement writes.
		r.Group(func(r chi.Router) {
			r.Use(writeLimiter)

			// Views are anonymous; the session ID carries identity.
			r.Post("/posts/{id}/view", handlers.HandleRecordView)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Post("/posts/{id}/like", handlers.HandleToggleLike)
				r.Post("/posts/{id}/save", handlers.HandleToggleSave)
				r.Put("/posts/{id}/save", handlers.HandleSetSave)
				r.Delete("/posts/{id}/save", handlers.HandleRemoveSave)
			})
		})

		// Recommendations.
		r.Group(func(r chi.Router) {
			r.Use(readLimiter)
			r.Get("/recommendations/similar/{id}", handlers.HandleSimilar)
			r.Get("/recommendations/trending", handlers.HandleTrending)
			r.Post("/recommendations/personalized", handlers.HandlePersonalized)
		})

		// Operator surface: read-model sync and cache administration.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(cfg.Auth.OperatorToken))
			r.Put("/posts/{id}", handlers.HandleUpsertPost)
			r.Delete("/posts/{id}", handlers.HandleDeletePost)
			r.Get("/recommendations/cache/stats", handlers.HandleCacheStats)
			r.Delete("/recommendations/cache", handlers.HandleCacheClear)
		})
	})

	return r
}
