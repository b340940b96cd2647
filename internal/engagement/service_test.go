// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kiroku-project/kiroku/internal/events"
	"github.com/kiroku-project/kiroku/internal/models"
)

// fakeStore is an in-memory Store tracking state and call order.
type fakeStore struct {
	posts map[string]models.Post
	views map[string]map[string]bool // postID -> sessionID
	likes map[string]map[string]bool
	saves map[string]map[string]bool
	err   error
}

func newFakeStore(posts ...models.Post) *fakeStore {
	fs := &fakeStore{
		posts: make(map[string]models.Post),
		views: make(map[string]map[string]bool),
		likes: make(map[string]map[string]bool),
		saves: make(map[string]map[string]bool),
	}
	for i := range posts {
		fs.posts[posts[i].ID] = posts[i]
	}
	return fs
}

func (f *fakeStore) bucket(m map[string]map[string]bool, postID string) map[string]bool {
	if m[postID] == nil {
		m[postID] = make(map[string]bool)
	}
	return m[postID]
}

func (f *fakeStore) RecordView(_ context.Context, postID, sessionID string) (models.ViewResult, error) {
	if f.err != nil {
		return models.ViewResult{}, f.err
	}
	if _, ok := f.posts[postID]; !ok {
		return models.ViewResult{}, models.ErrPostNotFound
	}
	b := f.bucket(f.views, postID)
	counted := !b[sessionID]
	b[sessionID] = true
	return models.ViewResult{Counted: counted, Views: int64(len(b))}, nil
}

func (f *fakeStore) ToggleLike(_ context.Context, postID, userID string) (models.LikeResult, error) {
	if f.err != nil {
		return models.LikeResult{}, f.err
	}
	if _, ok := f.posts[postID]; !ok {
		return models.LikeResult{}, models.ErrPostNotFound
	}
	b := f.bucket(f.likes, postID)
	if b[userID] {
		delete(b, userID)
	} else {
		b[userID] = true
	}
	return models.LikeResult{Liked: b[userID], LikesCount: int64(len(b))}, nil
}

func (f *fakeStore) ToggleSave(_ context.Context, postID, userID string) (models.SaveResult, error) {
	if f.err != nil {
		return models.SaveResult{}, f.err
	}
	if _, ok := f.posts[postID]; !ok {
		return models.SaveResult{}, models.ErrPostNotFound
	}
	b := f.bucket(f.saves, postID)
	if b[userID] {
		delete(b, userID)
	} else {
		b[userID] = true
	}
	return models.SaveResult{Saved: b[userID], BookmarksCount: int64(len(b))}, nil
}

func (f *fakeStore) HasSave(_ context.Context, postID, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.bucket(f.saves, postID)[userID], nil
}

func (f *fakeStore) GetEngagement(_ context.Context, postID, _, userID string) (models.Engagement, error) {
	if f.err != nil {
		return models.Engagement{}, f.err
	}
	if _, ok := f.posts[postID]; !ok {
		return models.Engagement{}, models.ErrPostNotFound
	}
	eng := models.Engagement{
		Views:          int64(len(f.views[postID])),
		LikesCount:     int64(len(f.likes[postID])),
		BookmarksCount: int64(len(f.saves[postID])),
	}
	if userID != "" {
		liked := f.bucket(f.likes, postID)[userID]
		eng.Liked = &liked
	}
	return eng, nil
}

func (f *fakeStore) GetPost(_ context.Context, id string) (models.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return models.Post{}, models.ErrPostNotFound
	}
	return post, nil
}

func (f *fakeStore) UpsertPost(_ context.Context, post *models.Post) error {
	if f.err != nil {
		return f.err
	}
	f.posts[post.ID] = *post
	return nil
}

func (f *fakeStore) DeletePost(_ context.Context, id string) error {
	if _, ok := f.posts[id]; !ok {
		return models.ErrPostNotFound
	}
	delete(f.posts, id)
	return nil
}

// fakeInvalidator records invalidation calls.
type fakeInvalidator struct {
	calls []string
}

func (f *fakeInvalidator) InvalidatePost(postID, categoryID string) int {
	f.calls = append(f.calls, postID+"/"+categoryID)
	return 1
}

// fakePublisher records published events.
type fakePublisher struct {
	events []events.PostEngaged
	err    error
}

func (f *fakePublisher) PublishEngagement(_ context.Context, event events.PostEngaged) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestService() (*Service, *fakeStore, *fakeInvalidator, *fakePublisher) {
	store := newFakeStore(models.Post{ID: "p1", CategoryID: "anime"})
	inv := &fakeInvalidator{}
	pub := &fakePublisher{}
	return NewService(store, inv, pub, zerolog.Nop()), store, inv, pub
}

func TestService_RecordView(t *testing.T) {
	svc, _, inv, pub := newTestService()
	ctx := context.Background()

	result, err := svc.RecordView(ctx, "p1", "sess-1")
	if err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}
	if !result.Counted || result.Views != 1 {
		t.Errorf("RecordView() = %+v, want Counted=true Views=1", result)
	}

	// The counted view invalidates caches and publishes one event.
	if len(inv.calls) != 1 || inv.calls[0] != "p1/anime" {
		t.Errorf("invalidations = %v, want [p1/anime]", inv.calls)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != models.EventView {
		t.Fatalf("published = %v, want one view event", pub.events)
	}
	if pub.events[0].CategoryID != "anime" {
		t.Errorf("event CategoryID = %q, want anime", pub.events[0].CategoryID)
	}

	// A duplicate view mutates nothing and fans out nothing.
	result, err = svc.RecordView(ctx, "p1", "sess-1")
	if err != nil {
		t.Fatalf("RecordView(dup) error = %v", err)
	}
	if result.Counted {
		t.Error("duplicate view Counted = true")
	}
	if len(inv.calls) != 1 || len(pub.events) != 1 {
		t.Errorf("duplicate view fanned out: %d invalidations, %d events", len(inv.calls), len(pub.events))
	}
}

func TestService_ToggleLike(t *testing.T) {
	svc, _, inv, pub := newTestService()
	ctx := context.Background()

	on, err := svc.ToggleLike(ctx, "p1", "user-1")
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !on.Liked || on.LikesCount != 1 {
		t.Errorf("ToggleLike() = %+v, want Liked=true count 1", on)
	}
	if len(pub.events) != 1 || !pub.events[0].Active {
		t.Fatalf("published = %v, want one active like event", pub.events)
	}

	// Unlike also invalidates and publishes, with Active=false.
	off, err := svc.ToggleLike(ctx, "p1", "user-1")
	if err != nil {
		t.Fatalf("ToggleLike(off) error = %v", err)
	}
	if off.Liked {
		t.Error("second toggle Liked = true")
	}
	if len(inv.calls) != 2 {
		t.Errorf("invalidations = %d, want 2", len(inv.calls))
	}
	if len(pub.events) != 2 || pub.events[1].Active {
		t.Errorf("published = %v, want second event inactive", pub.events)
	}
}

func TestService_ToggleLike_ErrorPassthrough(t *testing.T) {
	svc, _, inv, pub := newTestService()

	_, err := svc.ToggleLike(context.Background(), "missing", "user-1")
	if !models.IsNotFound(err) {
		t.Errorf("ToggleLike(missing) error = %v, want ErrPostNotFound", err)
	}
	if len(inv.calls) != 0 || len(pub.events) != 0 {
		t.Error("failed write still fanned out")
	}
}

func TestService_SetSave(t *testing.T) {
	svc, store, _, pub := newTestService()
	ctx := context.Background()

	// Removing an absent bookmark is an idempotent no-op.
	res, err := svc.SetSave(ctx, "p1", "user-1", false)
	if err != nil {
		t.Fatalf("SetSave(false, absent) error = %v", err)
	}
	if res.Saved || res.BookmarksCount != 0 {
		t.Errorf("SetSave(false, absent) = %+v, want no-op", res)
	}
	if len(pub.events) != 0 {
		t.Error("no-op SetSave published an event")
	}

	// Setting it flips through ToggleSave.
	res, err = svc.SetSave(ctx, "p1", "user-1", true)
	if err != nil {
		t.Fatalf("SetSave(true) error = %v", err)
	}
	if !res.Saved || res.BookmarksCount != 1 {
		t.Errorf("SetSave(true) = %+v, want Saved=true count 1", res)
	}

	// Removing it works and the store agrees.
	res, err = svc.SetSave(ctx, "p1", "user-1", false)
	if err != nil {
		t.Fatalf("SetSave(false) error = %v", err)
	}
	if res.Saved || res.BookmarksCount != 0 {
		t.Errorf("SetSave(false) = %+v, want removed", res)
	}
	if store.bucket(store.saves, "p1")["user-1"] {
		t.Error("bookmark survived SetSave(false)")
	}
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, inv, pub := newTestService()
	pub.err = errors.New("bus closed")

	result, err := svc.RecordView(context.Background(), "p1", "sess-1")
	if err != nil {
		t.Fatalf("RecordView() error = %v, want success despite publish failure", err)
	}
	if !result.Counted {
		t.Error("RecordView() Counted = false")
	}
	// Invalidation is synchronous and must have happened regardless.
	if len(inv.calls) != 1 {
		t.Errorf("invalidations = %d, want 1", len(inv.calls))
	}
}

func TestService_UpsertAndDeletePostInvalidate(t *testing.T) {
	svc, _, inv, _ := newTestService()
	ctx := context.Background()

	post := models.Post{ID: "p2", CategoryID: "manga"}
	if err := svc.UpsertPost(ctx, &post); err != nil {
		t.Fatalf("UpsertPost() error = %v", err)
	}
	if len(inv.calls) != 1 || inv.calls[0] != "p2/manga" {
		t.Errorf("invalidations after upsert = %v, want [p2/manga]", inv.calls)
	}

	if err := svc.DeletePost(ctx, "p2"); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if len(inv.calls) != 2 {
		t.Errorf("invalidations after delete = %d, want 2", len(inv.calls))
	}

	if err := svc.DeletePost(ctx, "p2"); !models.IsNotFound(err) {
		t.Errorf("DeletePost(missing) error = %v, want ErrPostNotFound", err)
	}
}

func TestService_NilCollaborators(t *testing.T) {
	store := newFakeStore(models.Post{ID: "p1", CategoryID: "anime"})
	svc := NewService(store, nil, nil, zerolog.Nop())

	if _, err := svc.RecordView(context.Background(), "p1", "sess-1"); err != nil {
		t.Errorf("RecordView() with nil collaborators error = %v", err)
	}
}
