// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package database

import (
	"context"
	"testing"
	"time"

	"github.com/kiroku-project/kiroku/internal/config"
	"github.com/kiroku-project/kiroku/internal/models"
)

// setupTestDB opens an isolated in-memory database per test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

// seedPost inserts a post with sane defaults.
func seedPost(t *testing.T, db *DB, id string) models.Post {
	t.Helper()

	post := models.Post{
		ID:          id,
		Title:       "Episode notes: " + id,
		CategoryID:  "anime",
		Series:      "Frieren",
		Season:      1,
		Episode:     1,
		Tags:        []string{"fantasy", "journey"},
		CreatedBy:   "author-1",
		PublishedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := db.UpsertPost(context.Background(), &post); err != nil {
		t.Fatalf("UpsertPost(%s) error = %v", id, err)
	}
	return post
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New(&config.DatabaseConfig{
		Path:      "/proc/definitely/not/writable/kiroku.db",
		MaxMemory: "512MB",
	})
	if err == nil {
		t.Error("New(unwritable path) error = nil, want error")
	}
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
