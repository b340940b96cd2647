// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package recommend

import (
	"context"
	"time"

	"github.com/kiroku-project/kiroku/internal/models"
)

// ScoredPost is a post with a relevance score.
type ScoredPost struct {
	// Post is the recommended post.
	Post models.Post `json:"post"`

	// Score is the relevance score in [0,1], higher is better.
	Score float64 `json:"score"`

	// Breakdown lists the per-feature contributions. Populated only when
	// the caller asked for it.
	Breakdown *Breakdown `json:"breakdown,omitempty"`
}

// Breakdown itemizes the weighted feature contributions to a similarity
// score. The fields sum (up to clamping) to the final score.
type Breakdown struct {
	Series   float64 `json:"series"`
	Category float64 `json:"category"`
	Tags     float64 `json:"tags"`
	Episode  float64 `json:"episode"`
}

// TrendingPost is a post with its windowed engagement score.
type TrendingPost struct {
	Post models.Post `json:"post"`

	// EngagementScore is the weighted sum of window-scoped views, likes
	// and bookmarks.
	EngagementScore float64 `json:"engagement_score"`
}

// WindowCounts holds engagement event counts inside a trending window.
type WindowCounts struct {
	Views     int64
	Likes     int64
	Bookmarks int64
}

// Store is the data access surface the engine needs. Implemented by the
// database layer; kept narrow so engine tests run against an in-memory fake.
type Store interface {
	// GetPost returns a single post, or models.ErrPostNotFound.
	GetPost(ctx context.Context, id string) (models.Post, error)

	// ListPosts returns the full candidate pool.
	ListPosts(ctx context.Context) ([]models.Post, error)

	// ListPostsByCategory returns the candidate pool restricted to one category.
	ListPostsByCategory(ctx context.Context, categoryID string) ([]models.Post, error)

	// WindowEngagement returns per-post engagement event counts since the
	// given instant, derived from the append-only event log.
	WindowEngagement(ctx context.Context, since time.Time) (map[string]WindowCounts, error)
}
