// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiroku-project/kiroku/internal/models"
)

func TestDB_RecordView(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	first, err := db.RecordView(ctx, "p1", "sess-1")
	if err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}
	if !first.Counted {
		t.Error("first view Counted = false, want true")
	}
	if first.Views != 1 {
		t.Errorf("first view Views = %d, want 1", first.Views)
	}

	// Same session again: idempotent, no mutation.
	repeat, err := db.RecordView(ctx, "p1", "sess-1")
	if err != nil {
		t.Fatalf("RecordView(repeat) error = %v", err)
	}
	if repeat.Counted {
		t.Error("repeat view Counted = true, want false")
	}
	if repeat.Views != 1 {
		t.Errorf("repeat view Views = %d, want 1", repeat.Views)
	}

	// A different session counts.
	other, err := db.RecordView(ctx, "p1", "sess-2")
	if err != nil {
		t.Fatalf("RecordView(other session) error = %v", err)
	}
	if !other.Counted || other.Views != 2 {
		t.Errorf("other session = %+v, want Counted=true Views=2", other)
	}
}

func TestDB_RecordView_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.RecordView(ctx, "missing", "sess-1"); !models.IsNotFound(err) {
		t.Errorf("RecordView(missing post) error = %v, want ErrPostNotFound", err)
	}
	if _, err := db.RecordView(ctx, "", "sess-1"); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("RecordView(no post id) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := db.RecordView(ctx, "p1", ""); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("RecordView(no session) error = %v, want ErrInvalidArgument", err)
	}
}

func TestDB_ToggleLike(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	on, err := db.ToggleLike(ctx, "p1", "user-1")
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !on.Liked || on.LikesCount != 1 {
		t.Errorf("first toggle = %+v, want Liked=true LikesCount=1", on)
	}

	off, err := db.ToggleLike(ctx, "p1", "user-1")
	if err != nil {
		t.Fatalf("ToggleLike(again) error = %v", err)
	}
	if off.Liked || off.LikesCount != 0 {
		t.Errorf("second toggle = %+v, want Liked=false LikesCount=0", off)
	}

	// A full on/off/on cycle lands back at one like.
	on2, err := db.ToggleLike(ctx, "p1", "user-1")
	if err != nil {
		t.Fatalf("ToggleLike(third) error = %v", err)
	}
	if !on2.Liked || on2.LikesCount != 1 {
		t.Errorf("third toggle = %+v, want Liked=true LikesCount=1", on2)
	}
}

func TestDB_ToggleLike_MultipleUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	for _, user := range []string{"user-1", "user-2", "user-3"} {
		if _, err := db.ToggleLike(ctx, "p1", user); err != nil {
			t.Fatalf("ToggleLike(%s) error = %v", user, err)
		}
	}

	res, err := db.ToggleLike(ctx, "p1", "user-2")
	if err != nil {
		t.Fatalf("ToggleLike(user-2 off) error = %v", err)
	}
	if res.Liked || res.LikesCount != 2 {
		t.Errorf("after user-2 unlike = %+v, want Liked=false LikesCount=2", res)
	}
}

func TestDB_ToggleLike_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	if _, err := db.ToggleLike(ctx, "missing", "user-1"); !models.IsNotFound(err) {
		t.Errorf("ToggleLike(missing post) error = %v, want ErrPostNotFound", err)
	}
	if _, err := db.ToggleLike(ctx, "p1", ""); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("ToggleLike(no user) error = %v, want ErrUnauthorized", err)
	}
}

func TestDB_ToggleSave_IndependentFromLikes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	if _, err := db.ToggleLike(ctx, "p1", "user-1"); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}

	save, err := db.ToggleSave(ctx, "p1", "user-1")
	if err != nil {
		t.Fatalf("ToggleSave() error = %v", err)
	}
	if !save.Saved || save.BookmarksCount != 1 {
		t.Errorf("ToggleSave() = %+v, want Saved=true BookmarksCount=1", save)
	}

	// Unsaving must not touch the like.
	if _, err := db.ToggleSave(ctx, "p1", "user-1"); err != nil {
		t.Fatalf("ToggleSave(off) error = %v", err)
	}

	eng, err := db.GetEngagement(ctx, "p1", "", "user-1")
	if err != nil {
		t.Fatalf("GetEngagement() error = %v", err)
	}
	if eng.LikesCount != 1 || eng.BookmarksCount != 0 {
		t.Errorf("counters = likes %d / bookmarks %d, want 1/0", eng.LikesCount, eng.BookmarksCount)
	}
}

func TestDB_GetEngagement(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	if _, err := db.RecordView(ctx, "p1", "sess-1"); err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}
	if _, err := db.ToggleLike(ctx, "p1", "user-1"); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}

	// Anonymous caller: Liked is nil.
	anon, err := db.GetEngagement(ctx, "p1", "sess-1", "")
	if err != nil {
		t.Fatalf("GetEngagement(anon) error = %v", err)
	}
	if anon.Views != 1 || anon.LikesCount != 1 {
		t.Errorf("GetEngagement(anon) = %+v, want Views=1 LikesCount=1", anon)
	}
	if anon.Liked != nil {
		t.Errorf("GetEngagement(anon) Liked = %v, want nil", *anon.Liked)
	}

	// The liker sees Liked=true, another user Liked=false.
	liker, err := db.GetEngagement(ctx, "p1", "sess-1", "user-1")
	if err != nil {
		t.Fatalf("GetEngagement(liker) error = %v", err)
	}
	if liker.Liked == nil || !*liker.Liked {
		t.Error("GetEngagement(liker) Liked != true")
	}

	other, err := db.GetEngagement(ctx, "p1", "sess-1", "user-2")
	if err != nil {
		t.Fatalf("GetEngagement(other) error = %v", err)
	}
	if other.Liked == nil || *other.Liked {
		t.Error("GetEngagement(other) Liked != false")
	}

	if _, err := db.GetEngagement(ctx, "missing", "", ""); !models.IsNotFound(err) {
		t.Errorf("GetEngagement(missing) error = %v, want ErrPostNotFound", err)
	}
}

func TestDB_WindowEngagement(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")
	seedPost(t, db, "p2")

	if _, err := db.RecordView(ctx, "p1", "sess-1"); err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}
	if _, err := db.RecordView(ctx, "p1", "sess-2"); err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}
	if _, err := db.ToggleLike(ctx, "p1", "user-1"); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if _, err := db.ToggleSave(ctx, "p2", "user-1"); err != nil {
		t.Fatalf("ToggleSave() error = %v", err)
	}

	window, err := db.WindowEngagement(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("WindowEngagement() error = %v", err)
	}

	p1 := window["p1"]
	if p1.Views != 2 || p1.Likes != 1 || p1.Bookmarks != 0 {
		t.Errorf("window[p1] = %+v, want {2 1 0}", p1)
	}
	p2 := window["p2"]
	if p2.Views != 0 || p2.Bookmarks != 1 {
		t.Errorf("window[p2] = %+v, want {0 0 1}", p2)
	}

	// Unlike appends nothing; the log records positive actions only.
	if _, err := db.ToggleLike(ctx, "p1", "user-1"); err != nil {
		t.Fatalf("ToggleLike(off) error = %v", err)
	}
	window, err = db.WindowEngagement(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("WindowEngagement() error = %v", err)
	}
	if window["p1"].Likes != 1 {
		t.Errorf("window[p1].Likes after unlike = %d, want 1", window["p1"].Likes)
	}

	// A future cutoff excludes everything.
	empty, err := db.WindowEngagement(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("WindowEngagement(future) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("WindowEngagement(future) = %v, want empty", empty)
	}
}

// Tight cutoffs around now catch events logged in a shifted zone: a
// session-local timestamp on a non-UTC host lands hours away from the
// UTC instant the query compares against.
func TestDB_WindowEngagement_UTCBoundaries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	if _, err := db.RecordView(ctx, "p1", "sess-1"); err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}

	window, err := db.WindowEngagement(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("WindowEngagement() error = %v", err)
	}
	if window["p1"].Views != 1 {
		t.Errorf("window[p1].Views = %d, want 1", window["p1"].Views)
	}

	later, err := db.WindowEngagement(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("WindowEngagement(later) error = %v", err)
	}
	if len(later) != 0 {
		t.Errorf("WindowEngagement(later) = %v, want empty", later)
	}
}

func TestDB_RecordView_ConcurrentSameSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1")

	const workers = 8
	results := make(chan models.ViewResult, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			res, err := db.RecordView(ctx, "p1", "sess-1")
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}

	counted := 0
	for i := 0; i < workers; i++ {
		select {
		case res := <-results:
			if res.Counted {
				counted++
			}
		case err := <-errs:
			t.Fatalf("RecordView() error = %v", err)
		}
	}

	if counted != 1 {
		t.Errorf("%d calls reported Counted=true, want exactly 1", counted)
	}

	final, err := db.GetEngagement(ctx, "p1", "sess-1", "")
	if err != nil {
		t.Fatalf("GetEngagement() error = %v", err)
	}
	if final.Views != 1 {
		t.Errorf("final Views = %d, want 1", final.Views)
	}
}
