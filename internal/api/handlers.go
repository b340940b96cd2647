// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package api exposes the engagement and recommendation endpoints over
// HTTP. Handlers translate between the JSON surface and the engagement
// service / recommendation engine; domain errors map to status codes in
// one place so every endpoint fails the same way.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kiroku-project/kiroku/internal/auth"
	"github.com/kiroku-project/kiroku/internal/engagement"
	"github.com/kiroku-project/kiroku/internal/models"
	"github.com/kiroku-project/kiroku/internal/recommend"
)

// Pinger reports backing-store health for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	engagement *engagement.Service
	engine     *recommend.Engine
	db         Pinger
	logger     zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(svc *engagement.Service, engine *recommend.Engine, db Pinger, logger zerolog.Logger) *Handlers {
	return &Handlers{
		engagement: svc,
		engine:     engine,
		db:         db,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// respondDomainError maps service errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case models.IsNotFound(err):
		respondError(w, http.StatusNotFound, codeNotFound, "post not found", nil)
	case errors.Is(err, models.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, codeAuth, "authentication required", nil)
	case errors.Is(err, models.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error", err)
	}
}

// HandleRecordView handles POST /api/v1/posts/{id}/view.
//
// The client calls this after its dwell timer fires; the server trusts
// the session ID for deduplication but never counts the same session
// twice.
func (h *Handlers) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	var req viewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.engagement.RecordView(r.Context(), postID, req.SessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

// HandleToggleLike handles POST /api/v1/posts/{id}/like. Requires an
// authenticated user.
func (h *Handlers) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	result, err := h.engagement.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

// HandleToggleSave handles POST /api/v1/posts/{id}/save.
func (h *Handlers) HandleToggleSave(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	result, err := h.engagement.ToggleSave(r.Context(), postID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

// HandleSetSave handles PUT /api/v1/posts/{id}/save with an explicit
// target state, so client retries cannot flip a bookmark twice.
func (h *Handlers) HandleSetSave(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}

	result, err := h.engagement.SetSave(r.Context(), postID, userID, req.Saved)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

// HandleRemoveSave handles DELETE /api/v1/posts/{id}/save.
func (h *Handlers) HandleRemoveSave(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	result, err := h.engagement.SetSave(r.Context(), postID, userID, false)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

// HandleGetEngagement handles GET /api/v1/posts/{id}/engagement.
// Anonymous callers get counters only; authenticated callers also get
// their like state.
func (h *Handlers) HandleGetEngagement(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	sessionID := r.URL.Query().Get("session_id")
	userID := auth.UserIDFromContext(r.Context())

	result, err := h.engagement.GetEngagement(r.Context(), postID, sessionID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

// HandleUpsertPost handles PUT /api/v1/posts/{id}, the read-model sync
// endpoint for the authoring service. Operator-gated.
func (h *Handlers) HandleUpsertPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	var req upsertPostRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	post := models.Post{
		ID:          postID,
		Title:       req.Title,
		CategoryID:  req.CategoryID,
		Series:      req.Series,
		Season:      req.Season,
		Episode:     req.Episode,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
		PublishedAt: req.PublishedAt,
	}
	if err := h.engagement.UpsertPost(r.Context(), &post); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]string{"id": postID})
}

// HandleDeletePost handles DELETE /api/v1/posts/{id}. Operator-gated.
func (h *Handlers) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	if err := h.engagement.DeletePost(r.Context(), postID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]string{"id": postID})
}

// HandleHealthLive handles GET /health/live.
func (h *Handlers) HandleHealthLive(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]string{"status": "alive"})
}

// HandleHealthReady handles GET /health/ready. Ready means the database
// answers a ping.
func (h *Handlers) HandleHealthReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, codeInternal, "database unavailable", err)
			return
		}
	}
	respondOK(w, map[string]string{"status": "ready"})
}
