// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kiroku-project/kiroku/internal/auth"
	"github.com/kiroku-project/kiroku/internal/config"
	"github.com/kiroku-project/kiroku/internal/database"
	"github.com/kiroku-project/kiroku/internal/engagement"
	"github.com/kiroku-project/kiroku/internal/middleware"
	"github.com/kiroku-project/kiroku/internal/models"
	"github.com/kiroku-project/kiroku/internal/recommend"
)

const (
	testJWTSecret     = "router-test-secret-at-least-32-chars!!"
	testOperatorToken = "op-token"
)

// envelope mirrors models.APIResponse with raw data for per-test decoding.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata models.Metadata `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type testServer struct {
	router  http.Handler
	db      *database.DB
	manager *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.OperatorToken = testOperatorToken

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB"})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("db.Close() error = %v", err)
		}
	})

	engine, err := recommend.NewEngine(&cfg.Recommend, db, nil, cfg.Cache.TTLs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("recommend.NewEngine() error = %v", err)
	}

	svc := engagement.NewService(db, engine, nil, zerolog.Nop())
	handlers := NewHandlers(svc, engine, db, zerolog.Nop())

	manager, err := auth.NewJWTManager(cfg.Auth.JWTSecret)
	if err != nil {
		t.Fatalf("auth.NewJWTManager() error = %v", err)
	}

	return &testServer{
		router:  NewRouter(&cfg, handlers, manager),
		db:      db,
		manager: manager,
	}
}

func (ts *testServer) seedPost(t *testing.T, id, series string, tags []string) {
	t.Helper()
	post := models.Post{
		ID:          id,
		Title:       "Journal " + id,
		CategoryID:  "anime",
		Series:      series,
		Season:      1,
		Episode:     1,
		Tags:        tags,
		CreatedBy:   "author-1",
		PublishedAt: time.Now().Add(-time.Hour),
	}
	if err := ts.db.UpsertPost(t.Context(), &post); err != nil {
		t.Fatalf("seed UpsertPost(%s) error = %v", id, err)
	}
}

func (ts *testServer) bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := ts.manager.GenerateToken(userID, "", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return "Bearer " + token
}

// do executes a request against the router and decodes the envelope.
func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, env
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t)

	if status, _ := ts.do(t, http.MethodGet, "/health/live", nil, nil); status != http.StatusOK {
		t.Errorf("live status = %d, want 200", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/health/ready", nil, nil); status != http.StatusOK {
		t.Errorf("ready status = %d, want 200", status)
	}
}

func TestRouter_RecordView(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "Frieren", []string{"fantasy"})

	status, env := ts.do(t, http.MethodPost, "/api/v1/posts/p1/view",
		map[string]string{"session_id": "sess-1"}, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", status, env)
	}
	var result models.ViewResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !result.Counted || result.Views != 1 {
		t.Errorf("first view = %+v, want Counted=true Views=1", result)
	}

	// Same session again is a no-op.
	_, env = ts.do(t, http.MethodPost, "/api/v1/posts/p1/view",
		map[string]string{"session_id": "sess-1"}, nil)
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Counted || result.Views != 1 {
		t.Errorf("repeat view = %+v, want Counted=false Views=1", result)
	}
}

func TestRouter_RecordView_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "", nil)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing session id",
			path:       "/api/v1/posts/p1/view",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeValidation,
		},
		{
			name:       "unknown post",
			path:       "/api/v1/posts/nope/view",
			body:       map[string]string{"session_id": "sess-1"},
			wantStatus: http.StatusNotFound,
			wantCode:   codeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.do(t, http.MethodPost, tt.path, tt.body, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestRouter_LikeRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "", nil)

	status, _ := ts.do(t, http.MethodPost, "/api/v1/posts/p1/like", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous like status = %d, want 401", status)
	}

	status, env := ts.do(t, http.MethodPost, "/api/v1/posts/p1/like", nil,
		map[string]string{"Authorization": ts.bearer(t, "user-1")})
	if status != http.StatusOK {
		t.Fatalf("authenticated like status = %d, body = %+v", status, env)
	}
	var result models.LikeResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !result.Liked || result.LikesCount != 1 {
		t.Errorf("like = %+v, want Liked=true count 1", result)
	}
}

func TestRouter_SaveLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "", nil)
	authz := map[string]string{"Authorization": ts.bearer(t, "user-1")}

	// Explicit set.
	status, env := ts.do(t, http.MethodPut, "/api/v1/posts/p1/save",
		map[string]bool{"saved": true}, authz)
	if status != http.StatusOK {
		t.Fatalf("PUT save status = %d, body = %+v", status, env)
	}
	var result models.SaveResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !result.Saved || result.BookmarksCount != 1 {
		t.Errorf("PUT save = %+v, want Saved=true count 1", result)
	}

	// Idempotent repeat.
	_, env = ts.do(t, http.MethodPut, "/api/v1/posts/p1/save",
		map[string]bool{"saved": true}, authz)
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !result.Saved || result.BookmarksCount != 1 {
		t.Errorf("repeat PUT save = %+v, want unchanged", result)
	}

	// Toggle flips it off.
	_, env = ts.do(t, http.MethodPost, "/api/v1/posts/p1/save", nil, authz)
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Saved || result.BookmarksCount != 0 {
		t.Errorf("toggle save = %+v, want removed", result)
	}

	// DELETE on an absent bookmark stays a success.
	status, env = ts.do(t, http.MethodDelete, "/api/v1/posts/p1/save", nil, authz)
	if status != http.StatusOK {
		t.Fatalf("DELETE save status = %d, body = %+v", status, env)
	}
}

func TestRouter_GetEngagement(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "", nil)
	authz := map[string]string{"Authorization": ts.bearer(t, "user-1")}

	if status, _ := ts.do(t, http.MethodPost, "/api/v1/posts/p1/like", nil, authz); status != http.StatusOK {
		t.Fatalf("like setup failed")
	}

	// Anonymous: counters only, liked is null.
	_, env := ts.do(t, http.MethodGet, "/api/v1/posts/p1/engagement?session_id=sess-1", nil, nil)
	var eng models.Engagement
	if err := json.Unmarshal(env.Data, &eng); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if eng.LikesCount != 1 || eng.Liked != nil {
		t.Errorf("anonymous engagement = %+v, want likes 1 and nil Liked", eng)
	}

	// Authenticated liker sees their state.
	_, env = ts.do(t, http.MethodGet, "/api/v1/posts/p1/engagement", nil, authz)
	if err := json.Unmarshal(env.Data, &eng); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if eng.Liked == nil || !*eng.Liked {
		t.Errorf("authenticated engagement = %+v, want Liked=true", eng)
	}
}

func TestRouter_Similar(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "Frieren", []string{"fantasy", "journey"})
	ts.seedPost(t, "p2", "Frieren", []string{"fantasy"})
	ts.seedPost(t, "p3", "", []string{"sports"})

	status, env := ts.do(t, http.MethodGet, "/api/v1/recommendations/similar/p1?limit=5", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", status, env)
	}
	if env.Metadata.Cached {
		t.Error("first request reported cached")
	}
	var results []recommend.ScoredPost
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(results) == 0 || results[0].Post.ID != "p2" {
		t.Fatalf("similar results = %+v, want p2 first", results)
	}
	for _, sp := range results {
		if sp.Post.ID == "p1" {
			t.Error("source post present in its own similar list")
		}
		if sp.Breakdown != nil {
			t.Error("breakdown present without include_breakdown")
		}
	}

	// Second identical request is a cache hit.
	_, env = ts.do(t, http.MethodGet, "/api/v1/recommendations/similar/p1?limit=5", nil, nil)
	if !env.Metadata.Cached {
		t.Error("second request not reported cached")
	}

	// Breakdown query param is part of the cache key and the response.
	_, env = ts.do(t, http.MethodGet,
		"/api/v1/recommendations/similar/p1?limit=5&include_breakdown=true", nil, nil)
	if env.Metadata.Cached {
		t.Error("breakdown variant unexpectedly cached")
	}
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(results) == 0 || results[0].Breakdown == nil {
		t.Error("breakdown missing with include_breakdown=true")
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/recommendations/similar/missing", nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown post status = %d, want 404", status)
	}
}

func TestRouter_Trending(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "", nil)
	ts.seedPost(t, "p2", "", nil)

	// p2 gets more engagement.
	for _, sess := range []string{"a", "b", "c"} {
		if status, _ := ts.do(t, http.MethodPost, "/api/v1/posts/p2/view",
			map[string]string{"session_id": sess}, nil); status != http.StatusOK {
			t.Fatalf("view setup failed")
		}
	}
	status, _ := ts.do(t, http.MethodPost, "/api/v1/posts/p1/view",
		map[string]string{"session_id": "a"}, nil)
	if status != http.StatusOK {
		t.Fatalf("view setup failed")
	}

	status, env := ts.do(t, http.MethodGet, "/api/v1/recommendations/trending?timeframe=7", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", status, env)
	}
	var results []recommend.TrendingPost
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(results) != 2 || results[0].Post.ID != "p2" {
		t.Errorf("trending = %+v, want p2 first of 2", results)
	}
	if results[0].EngagementScore <= results[1].EngagementScore {
		t.Error("trending scores not descending")
	}
}

func TestRouter_Personalized(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPost(t, "p1", "Frieren", []string{"fantasy"})
	ts.seedPost(t, "p2", "Frieren", []string{"fantasy"})
	ts.seedPost(t, "p3", "", []string{"sports"})

	status, env := ts.do(t, http.MethodPost, "/api/v1/recommendations/personalized",
		map[string]interface{}{"post_ids": []string{"p1"}, "limit": 5}, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", status, env)
	}
	var results []recommend.ScoredPost
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	for _, sp := range results {
		if sp.Post.ID == "p1" {
			t.Error("seed post present in personalized results")
		}
	}

	// A malformed diversity factor is rejected, not clamped.
	status, env = ts.do(t, http.MethodPost, "/api/v1/recommendations/personalized",
		map[string]interface{}{"post_ids": []string{"p1"}, "diversity_factor": 1.5}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Error == nil || env.Error.Code != codeValidation {
		t.Errorf("error = %+v, want %s", env.Error, codeValidation)
	}
}

func TestRouter_OperatorSurface(t *testing.T) {
	ts := newTestServer(t)
	opHeaders := map[string]string{middleware.OperatorTokenHeader: testOperatorToken}

	postBody := map[string]interface{}{
		"title":        "Journal upstream",
		"category_id":  "anime",
		"created_by":   "author-9",
		"published_at": time.Now().Format(time.RFC3339),
	}

	// No token: rejected.
	status, _ := ts.do(t, http.MethodPut, "/api/v1/posts/p9", postBody, nil)
	if status != http.StatusForbidden {
		t.Fatalf("tokenless upsert status = %d, want 403", status)
	}

	// With token: the read model accepts the post.
	status, env := ts.do(t, http.MethodPut, "/api/v1/posts/p9", postBody, opHeaders)
	if status != http.StatusOK {
		t.Fatalf("operator upsert status = %d, body = %+v", status, env)
	}
	if _, err := ts.db.GetPost(t.Context(), "p9"); err != nil {
		t.Fatalf("post not persisted: %v", err)
	}

	// Cache admin.
	status, env = ts.do(t, http.MethodGet, "/api/v1/recommendations/cache/stats", nil, opHeaders)
	if status != http.StatusOK {
		t.Fatalf("cache stats status = %d", status)
	}
	status, _ = ts.do(t, http.MethodDelete, "/api/v1/recommendations/cache", nil, opHeaders)
	if status != http.StatusOK {
		t.Fatalf("cache clear status = %d", status)
	}

	// Delete the post again.
	status, _ = ts.do(t, http.MethodDelete, "/api/v1/posts/p9", nil, opHeaders)
	if status != http.StatusOK {
		t.Fatalf("operator delete status = %d", status)
	}
	status, _ = ts.do(t, http.MethodDelete, "/api/v1/posts/p9", nil, opHeaders)
	if status != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", status)
	}
}
