// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package models defines the shared domain types for the engagement and
// recommendation engine. Posts are authored by the journaling CRUD layer;
// this service keeps a read-model of them and owns the engagement counters.
package models

import "time"

// Post is the read-model of a journal post. Everything except the three
// denormalized counters is owned by the post CRUD layer; the counters are
// derived from the engagement record sets and mutated only through the
// engagement store's atomic operations.
type Post struct {
	// ID is the post document identifier.
	ID string `json:"id"`

	// Title is the post title.
	Title string `json:"title"`

	// CategoryID references the post's category (reviews, news, ...).
	CategoryID string `json:"category_id"`

	// Series is the anime/manga series name the post is about, if any.
	Series string `json:"series,omitempty"`

	// Season is the season number within the series (0 when not set).
	Season int `json:"season,omitempty"`

	// Episode is the episode number within the season (0 when not set).
	Episode int `json:"episode,omitempty"`

	// Tags is the post's free-form tag set.
	Tags []string `json:"tags,omitempty"`

	// CreatedBy is the author's user ID.
	CreatedBy string `json:"created_by"`

	// PublishedAt is the publish timestamp.
	PublishedAt time.Time `json:"published_at"`

	// Views is the denormalized engaged-view counter.
	Views int64 `json:"views"`

	// LikesCount is the denormalized like counter. Always equals the
	// number of live like records for this post.
	LikesCount int64 `json:"likes_count"`

	// BookmarksCount is the denormalized save counter. Always equals the
	// number of live save records for this post.
	BookmarksCount int64 `json:"bookmarks_count"`
}

// EventKind classifies engagement events.
type EventKind string

const (
	// EventView is an engaged view (post-dwell, session-deduplicated).
	EventView EventKind = "view"
	// EventLike is a like being set (not a like being removed).
	EventLike EventKind = "like"
	// EventSave is a bookmark being set.
	EventSave EventKind = "save"
)

// ViewResult is the outcome of a view-recording attempt.
type ViewResult struct {
	// Counted is true when this call incremented the counter. A repeat
	// call for the same (post, session) pair returns false with the
	// unchanged count.
	Counted bool `json:"counted"`

	// Views is the post's view counter after the call.
	Views int64 `json:"views"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// SaveResult is the outcome of a save toggle.
type SaveResult struct {
	Saved          bool  `json:"saved"`
	BookmarksCount int64 `json:"bookmarks_count"`
}

// Engagement is the full engagement snapshot for a post.
type Engagement struct {
	Views          int64 `json:"views"`
	LikesCount     int64 `json:"likes_count"`
	BookmarksCount int64 `json:"bookmarks_count"`

	// Liked is nil when no authenticated user context was supplied,
	// otherwise whether a like record exists for that user.
	Liked *bool `json:"liked"`
}
