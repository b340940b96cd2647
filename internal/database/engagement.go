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

	"github.com/kiroku-project/kiroku/internal/models"
	"github.com/kiroku-project/kiroku/internal/recommend"
)

// RecordView counts a view for (postID, sessionID) exactly once. The dedup
// probe, counter increment and event append happen in one transaction, so
// concurrent calls for the same pair cannot double count: exactly one
// inserts the dedup row, the rest observe the conflict and return
// Counted=false with the current total.
func (db *DB) RecordView(ctx context.Context, postID, sessionID string) (result models.ViewResult, err error) {
	if postID == "" || sessionID == "" {
		return models.ViewResult{}, fmt.Errorf("%w: post id and session id are required", models.ErrInvalidArgument)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.ViewResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollbackOnError(tx, err) }()

	if err = probePost(ctx, tx, postID); err != nil {
		return models.ViewResult{}, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO view_dedup (post_id, session_id) VALUES (?, ?)
		 ON CONFLICT (post_id, session_id) DO NOTHING`,
		postID, sessionID)
	if err != nil {
		return models.ViewResult{}, fmt.Errorf("failed to insert view record: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.ViewResult{}, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if inserted == 1 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE posts SET views = views + 1 WHERE id = ?`, postID); err != nil {
			return models.ViewResult{}, fmt.Errorf("failed to increment views: %w", err)
		}
		if err = appendEvent(ctx, tx, postID, sessionID, models.EventView); err != nil {
			return models.ViewResult{}, err
		}
	}

	var views int64
	if err = tx.QueryRowContext(ctx,
		`SELECT views FROM posts WHERE id = ?`, postID).Scan(&views); err != nil {
		return models.ViewResult{}, fmt.Errorf("failed to read view count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.ViewResult{}, fmt.Errorf("failed to commit view: %w", err)
	}
	return models.ViewResult{Counted: inserted == 1, Views: views}, nil
}

// ToggleLike flips the like state for (postID, userID) and returns the new
// state. The counter is recomputed from the record table inside the same
// transaction, so it always equals the live record count and cannot go
// negative regardless of call interleaving.
func (db *DB) ToggleLike(ctx context.Context, postID, userID string) (models.LikeResult, error) {
	on, count, err := db.toggleRecord(ctx, "like_records", "likes_count", postID, userID, models.EventLike)
	if err != nil {
		return models.LikeResult{}, err
	}
	return models.LikeResult{Liked: on, LikesCount: count}, nil
}

// ToggleSave flips the bookmark state for (postID, userID). Same contract
// as ToggleLike over an independent record set.
func (db *DB) ToggleSave(ctx context.Context, postID, userID string) (models.SaveResult, error) {
	on, count, err := db.toggleRecord(ctx, "save_records", "bookmarks_count", postID, userID, models.EventSave)
	if err != nil {
		return models.SaveResult{}, err
	}
	return models.SaveResult{Saved: on, BookmarksCount: count}, nil
}

// toggleRecord implements the shared like/save toggle: delete the record if
// present, insert it if absent, then set the denormalized counter to the
// live record count. table and counter are compile-time constants from the
// two callers, never user input.
func (db *DB) toggleRecord(ctx context.Context, table, counter, postID, userID string, kind models.EventKind) (on bool, count int64, err error) {
	if postID == "" {
		return false, 0, fmt.Errorf("%w: post id is required", models.ErrInvalidArgument)
	}
	if userID == "" {
		return false, 0, models.ErrUnauthorized
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { rollbackOnError(tx, err) }()

	if err = probePost(ctx, tx, postID); err != nil {
		return false, 0, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE post_id = ? AND user_id = ?`,
		postID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to delete %s record: %w", table, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if deleted == 0 {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO `+table+` (post_id, user_id) VALUES (?, ?)
			 ON CONFLICT (post_id, user_id) DO NOTHING`,
			postID, userID); err != nil {
			return false, 0, fmt.Errorf("failed to insert %s record: %w", table, err)
		}
		on = true
		if err = appendEvent(ctx, tx, postID, userID, kind); err != nil {
			return false, 0, err
		}
	}

	// Recompute rather than increment: the counter invariant survives any
	// interleaving because it is derived, not accumulated.
	if _, err = tx.ExecContext(ctx,
		`UPDATE posts SET `+counter+` =
			(SELECT count(*) FROM `+table+` WHERE post_id = ?)
		 WHERE id = ?`, postID, postID); err != nil {
		return false, 0, fmt.Errorf("failed to update %s: %w", counter, err)
	}

	if err = tx.QueryRowContext(ctx,
		`SELECT `+counter+` FROM posts WHERE id = ?`, postID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("failed to read %s: %w", counter, err)
	}

	if err = tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit toggle: %w", err)
	}
	return on, count, nil
}

// HasSave reports whether the user currently has the post bookmarked.
func (db *DB) HasSave(ctx context.Context, postID, userID string) (bool, error) {
	if userID == "" {
		return false, models.ErrUnauthorized
	}

	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM save_records WHERE post_id = ? AND user_id = ?`,
		postID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check save state: %w", err)
	}
	return n > 0, nil
}

// GetEngagement returns the current counters for a post. Liked is nil when
// no authenticated user was supplied.
func (db *DB) GetEngagement(ctx context.Context, postID, sessionID, userID string) (models.Engagement, error) {
	var eng models.Engagement
	err := db.conn.QueryRowContext(ctx,
		`SELECT views, likes_count, bookmarks_count FROM posts WHERE id = ?`,
		postID).Scan(&eng.Views, &eng.LikesCount, &eng.BookmarksCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Engagement{}, models.ErrPostNotFound
		}
		return models.Engagement{}, fmt.Errorf("failed to get engagement for %s: %w", postID, err)
	}

	if userID != "" {
		var n int
		err = db.conn.QueryRowContext(ctx,
			`SELECT count(*) FROM like_records WHERE post_id = ? AND user_id = ?`,
			postID, userID).Scan(&n)
		if err != nil {
			return models.Engagement{}, fmt.Errorf("failed to check like state: %w", err)
		}
		liked := n > 0
		eng.Liked = &liked
	}

	_ = sessionID // counters are global; the session only matters on writes
	return eng, nil
}

// WindowEngagement aggregates per-post engagement events since the given
// instant. Implements the candidate-window half of recommend.Store.
func (db *DB) WindowEngagement(ctx context.Context, since time.Time) (map[string]recommend.WindowCounts, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT post_id,
			sum(CASE WHEN kind = 'view' THEN 1 ELSE 0 END),
			sum(CASE WHEN kind = 'like' THEN 1 ELSE 0 END),
			sum(CASE WHEN kind = 'save' THEN 1 ELSE 0 END)
		 FROM engagement_events
		 WHERE occurred_at >= ?
		 GROUP BY post_id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement window: %w", err)
	}
	defer closeQuietly(rows)

	window := make(map[string]recommend.WindowCounts)
	for rows.Next() {
		var (
			postID string
			counts recommend.WindowCounts
		)
		if err := rows.Scan(&postID, &counts.Views, &counts.Likes, &counts.Bookmarks); err != nil {
			return nil, fmt.Errorf("failed to scan engagement window: %w", err)
		}
		window[postID] = counts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement window iteration failed: %w", err)
	}
	return window, nil
}

// probePost verifies the post exists inside the caller's transaction.
func probePost(ctx context.Context, tx *sql.Tx, postID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to probe post %s: %w", postID, err)
	}
	return nil
}

// appendEvent writes one row to the append-only engagement event log.
// occurred_at binds as UTC from Go rather than relying on the column
// default, so window queries compare timestamps in a single zone.
func appendEvent(ctx context.Context, tx *sql.Tx, postID, subjectID string, kind models.EventKind) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO engagement_events (post_id, subject_id, kind, occurred_at)
		 VALUES (?, ?, ?, ?)`,
		postID, subjectID, string(kind), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	return nil
}
