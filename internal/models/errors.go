// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package models

import "errors"

// Domain sentinel errors. The API layer maps these onto HTTP status codes;
// everything else wraps them with fmt.Errorf("...: %w", err).
var (
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrUnauthorized indicates the operation requires an authenticated
	// user and none was supplied. Distinct from ErrPostNotFound so the UI
	// can prompt for login instead of showing "not found".
	ErrUnauthorized = errors.New("authentication required")

	// ErrInvalidArgument indicates a malformed identifier or parameter.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsNotFound reports whether err is, or wraps, ErrPostNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}
