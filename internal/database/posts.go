// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kiroku-project/kiroku/internal/models"
)

// UpsertPost inserts or replaces a post in the read-model. The engagement
// counters are preserved on update; they belong to this store, not to the
// authoring service feeding the read-model.
func (db *DB) UpsertPost(ctx context.Context, post *models.Post) error {
	if post == nil || post.ID == "" {
		return fmt.Errorf("%w: post id is required", models.ErrInvalidArgument)
	}

	tags, err := json.Marshal(post.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	// updated_at binds from Go: DuckDB rejects a bare CURRENT_TIMESTAMP
	// inside DO UPDATE SET, resolving it as a column reference.
	query := `INSERT INTO posts (
			id, title, category_id, series, season, episode, tags,
			created_by, published_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			category_id = excluded.category_id,
			series = excluded.series,
			season = excluded.season,
			episode = excluded.episode,
			tags = excluded.tags,
			created_by = excluded.created_by,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at`

	_, err = db.conn.ExecContext(ctx, query,
		post.ID, post.Title, post.CategoryID, post.Series,
		post.Season, post.Episode, string(tags),
		post.CreatedBy, post.PublishedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.ID, err)
	}
	return nil
}

const postColumns = `id, title, category_id, series, season, episode, tags,
	created_by, published_at, views, likes_count, bookmarks_count`

// GetPost returns a single post, or models.ErrPostNotFound.
func (db *DB) GetPost(ctx context.Context, id string) (models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	post, err := scanPost(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, models.ErrPostNotFound
		}
		return models.Post{}, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	return post, nil
}

// ListPosts returns the full candidate pool, newest first.
func (db *DB) ListPosts(ctx context.Context) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY published_at DESC`
	return db.queryPosts(ctx, query)
}

// ListPostsByCategory returns the candidate pool for one category.
func (db *DB) ListPostsByCategory(ctx context.Context, categoryID string) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE category_id = ? ORDER BY published_at DESC`
	return db.queryPosts(ctx, query, categoryID)
}

// ListPostsSince returns posts published at or after the given instant.
func (db *DB) ListPostsSince(ctx context.Context, since time.Time) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE published_at >= ? ORDER BY published_at DESC`
	return db.queryPosts(ctx, query, since)
}

// DeletePost removes a post and all of its engagement records.
func (db *DB) DeletePost(ctx context.Context, id string) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollbackOnError(tx, err) }()

	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		err = models.ErrPostNotFound
		return err
	}

	for _, table := range []string{"view_dedup", "like_records", "save_records", "engagement_events"} {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE post_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s for post %s: %w", table, id, err)
		}
	}

	return tx.Commit()
}

// queryPosts runs a multi-row post query and scans the results.
func (db *DB) queryPosts(ctx context.Context, query string, args ...interface{}) ([]models.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer closeQuietly(rows)

	posts := make([]models.Post, 0, 64)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("post iteration failed: %w", err)
	}
	return posts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPost scans one posts row, decoding the tags JSON column.
func scanPost(row rowScanner) (models.Post, error) {
	var (
		post    models.Post
		rawTags string
	)
	err := row.Scan(
		&post.ID, &post.Title, &post.CategoryID, &post.Series,
		&post.Season, &post.Episode, &rawTags,
		&post.CreatedBy, &post.PublishedAt,
		&post.Views, &post.LikesCount, &post.BookmarksCount,
	)
	if err != nil {
		return models.Post{}, err
	}

	if rawTags != "" && rawTags != "[]" {
		if err := json.Unmarshal([]byte(rawTags), &post.Tags); err != nil {
			return models.Post{}, fmt.Errorf("failed to decode tags for post %s: %w", post.ID, err)
		}
	}
	return post, nil
}
