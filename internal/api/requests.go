// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package api

import "time"

// viewRequest is the body of POST /api/v1/posts/{id}/view. The session
// ID comes from the client's anonymous session cookie and deduplicates
// repeat views.
type viewRequest struct {
	SessionID string `json:"session_id" validate:"required,min=1,max=128"`
}

// saveRequest is the body of PUT /api/v1/posts/{id}/save. Explicit
// target state makes browser retries idempotent, unlike the toggle
// endpoint.
type saveRequest struct {
	Saved bool `json:"saved"`
}

// personalizedRequest is the body of POST /api/v1/recommendations/personalized.
// PostIDs are the caller's recent reading history, newest first.
type personalizedRequest struct {
	PostIDs []string `json:"post_ids" validate:"max=100,dive,required,max=128"`
	Limit   int      `json:"limit" validate:"gte=0,lte=50"`

	// DiversityFactor overrides the configured default when present.
	DiversityFactor *float64 `json:"diversity_factor" validate:"omitempty,gte=0,lt=1"`
}

// upsertPostRequest is the body of PUT /api/v1/posts/{id}, the read-model
// sync endpoint the authoring service calls on publish and edit.
type upsertPostRequest struct {
	Title       string    `json:"title" validate:"required,max=512"`
	CategoryID  string    `json:"category_id" validate:"required,max=128"`
	Series      string    `json:"series" validate:"max=256"`
	Season      int       `json:"season" validate:"gte=0"`
	Episode     int       `json:"episode" validate:"gte=0"`
	Tags        []string  `json:"tags" validate:"max=32,dive,required,max=64"`
	CreatedBy   string    `json:"created_by" validate:"required,max=128"`
	PublishedAt time.Time `json:"published_at" validate:"required"`
}
