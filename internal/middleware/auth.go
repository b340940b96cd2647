// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kiroku-project/kiroku/internal/auth"
	"github.com/kiroku-project/kiroku/internal/logging"
	"github.com/kiroku-project/kiroku/internal/models"
)

// OperatorTokenHeader carries the shared token for operator endpoints.
const OperatorTokenHeader = "X-Operator-Token"

// Error codes shared with the response envelope.
const (
	codeAuthentication = "AUTHENTICATION_ERROR"
	codeAuthorization  = "AUTHORIZATION_ERROR"
)

// Authenticate resolves an optional bearer token into an authenticated
// user ID on the request context. Requests without an Authorization
// header pass through as anonymous; views and reads work without an
// account. A header that is present but invalid is rejected so a stale
// token fails loudly instead of silently downgrading to anonymous.
func Authenticate(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, codeAuthentication, "authorization header must use the Bearer scheme")
				return
			}

			claims, err := manager.ValidateToken(tokenString)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				writeAuthError(w, http.StatusUnauthorized, codeAuthentication, "invalid or expired token")
				return
			}

			ctx := auth.ContextWithUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests. Placed after Authenticate on
// routes that mutate per-user state (likes, bookmarks).
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserIDFromContext(r.Context()) == "" {
			writeAuthError(w, http.StatusUnauthorized, codeAuthentication, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOperator gates administrative endpoints behind a static shared
// token. An empty configured token disables the endpoints entirely.
func RequireOperator(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeAuthError(w, http.StatusForbidden, codeAuthorization, "operator endpoints are disabled")
				return
			}
			presented := r.Header.Get(OperatorTokenHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeAuthError(w, http.StatusForbidden, codeAuthorization, "invalid operator token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError emits the standard error envelope. The envelope is built
// here rather than through the api package, which would create an import
// cycle through the router.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}
