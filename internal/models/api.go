// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package models

import "time"

// APIResponse is the standard envelope for every JSON endpoint.
//
// Success:
//
//	{
//	  "status": "ok",
//	  "data": {...},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z", "cached": true}
//	}
//
// Error:
//
//	{
//	  "status": "error",
//	  "error": {"code": "NOT_FOUND", "message": "post not found"},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields. Cached reports
// whether a recommendation was served from the in-process cache; it is
// omitted on endpoints that never cache.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Codes used by this service:
//   - VALIDATION_ERROR: invalid request parameters or body
//   - NOT_FOUND: the post does not exist
//   - AUTHENTICATION_ERROR: missing or invalid credentials
//   - AUTHORIZATION_ERROR: authenticated but not permitted
//   - INTERNAL_ERROR: query or computation failure
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}
