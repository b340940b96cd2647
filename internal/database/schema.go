// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core tables.
//
// Counter invariant: posts.views, posts.likes_count and posts.bookmarks_count
// always equal the live row counts of their record tables; every mutation
// updates both inside one transaction.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// Post read-model. Authoring lives elsewhere; this table mirrors
		// the fields the scorer and ranker need, plus denormalized
		// engagement counters.
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			category_id TEXT NOT NULL,
			series TEXT NOT NULL DEFAULT '',
			season INTEGER NOT NULL DEFAULT 0,
			episode INTEGER NOT NULL DEFAULT 0,
			tags TEXT NOT NULL DEFAULT '[]',
			created_by TEXT NOT NULL,
			published_at TIMESTAMP NOT NULL,
			views BIGINT NOT NULL DEFAULT 0,
			likes_count BIGINT NOT NULL DEFAULT 0,
			bookmarks_count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// One row per (post, session); the unique pair is the dedup key.
		`CREATE TABLE IF NOT EXISTS view_dedup (
			post_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			counted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (post_id, session_id)
		);`,

		`CREATE TABLE IF NOT EXISTS like_records (
			post_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (post_id, user_id)
		);`,

		`CREATE TABLE IF NOT EXISTS save_records (
			post_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (post_id, user_id)
		);`,

		// Append-only activity log; the trending window queries it so a
		// post's pre-window popularity cannot leak into its score. kind
		// is view|like|save; unlike and unsave are not logged, the
		// window counts net positive engagement actions.
		`CREATE TABLE IF NOT EXISTS engagement_events (
			post_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// createIndexes creates indexes for the hot query paths.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category_id);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_series ON posts(series);`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred ON engagement_events(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_events_post ON engagement_events(post_id);`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
