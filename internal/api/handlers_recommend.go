// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiroku-project/kiroku/internal/metrics"
)

// HandleSimilar handles GET /api/v1/recommendations/similar/{id}.
//
// Query parameters:
//   - limit: result count (clamped server-side)
//   - min_score: inclusion threshold override in [0,1]
//   - include_breakdown: itemize per-feature score contributions
func (h *Handlers) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	limit := getIntParam(r, "limit", 0)
	minScore := getFloatParam(r, "min_score", -1)
	includeBreakdown := getBoolParam(r, "include_breakdown", false)

	start := time.Now()
	results, cached, err := h.engine.Similar(r.Context(), postID, limit, minScore, includeBreakdown)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	metrics.RecordRecommendation("similar", cached, time.Since(start))

	respondCached(w, results, cached)
}

// HandleTrending handles GET /api/v1/recommendations/trending.
//
// Query parameters:
//   - limit: result count (clamped server-side)
//   - timeframe: trailing window in days (clamped server-side)
//   - category_id: restrict the candidate pool to one category
func (h *Handlers) HandleTrending(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 0)
	timeframe := getIntParam(r, "timeframe", 0)
	categoryID := r.URL.Query().Get("category_id")

	start := time.Now()
	results, cached, err := h.engine.Trending(r.Context(), limit, timeframe, categoryID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	metrics.RecordRecommendation("trending", cached, time.Since(start))

	respondCached(w, results, cached)
}

// HandlePersonalized handles POST /api/v1/recommendations/personalized.
// An empty or entirely unknown seed list degrades to trending rather
// than an error, so new readers always get a feed.
func (h *Handlers) HandlePersonalized(w http.ResponseWriter, r *http.Request) {
	var req personalizedRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	diversity := -1.0
	if req.DiversityFactor != nil {
		diversity = *req.DiversityFactor
	}

	start := time.Now()
	results, cached, err := h.engine.Personalized(r.Context(), req.PostIDs, req.Limit, diversity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	metrics.RecordRecommendation("personalized", cached, time.Since(start))

	respondCached(w, results, cached)
}

// HandleCacheStats handles GET /api/v1/recommendations/cache/stats.
// Operator-gated.
func (h *Handlers) HandleCacheStats(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, h.engine.CacheStats())
}

// HandleCacheClear handles DELETE /api/v1/recommendations/cache.
// Operator-gated.
func (h *Handlers) HandleCacheClear(w http.ResponseWriter, _ *http.Request) {
	removed := h.engine.ClearCache()
	h.logger.Info().Int("removed", removed).Msg("recommendation cache cleared by operator")
	respondOK(w, map[string]int{"removed": removed})
}
