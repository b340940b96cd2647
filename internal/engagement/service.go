// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package engagement is the write-path service: it runs the store
// transaction, invalidates recommendation caches synchronously so a writer
// always observes its own write, then fans the event out on the bus.
package engagement

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiroku-project/kiroku/internal/events"
	"github.com/kiroku-project/kiroku/internal/metrics"
	"github.com/kiroku-project/kiroku/internal/models"
)

// Store is the persistence surface the service needs.
type Store interface {
	RecordView(ctx context.Context, postID, sessionID string) (models.ViewResult, error)
	ToggleLike(ctx context.Context, postID, userID string) (models.LikeResult, error)
	ToggleSave(ctx context.Context, postID, userID string) (models.SaveResult, error)
	HasSave(ctx context.Context, postID, userID string) (bool, error)
	GetEngagement(ctx context.Context, postID, sessionID, userID string) (models.Engagement, error)
	GetPost(ctx context.Context, id string) (models.Post, error)
	UpsertPost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
}

// Invalidator drops cached recommendation results that could include a
// post. Implemented by the recommendation engine.
type Invalidator interface {
	InvalidatePost(postID, categoryID string) int
}

// Publisher fans engagement events out to observers. Implemented by the
// event bus.
type Publisher interface {
	PublishEngagement(ctx context.Context, event events.PostEngaged) error
}

// Service orchestrates engagement writes.
type Service struct {
	store       Store
	invalidator Invalidator
	publisher   Publisher
	logger      zerolog.Logger
}

// NewService creates the engagement service. invalidator and publisher may
// be nil in tests.
//
//nolint:gocritic // logger passed by value is idiomatic for zerolog
func NewService(store Store, invalidator Invalidator, publisher Publisher, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger.With().Str("component", "engagement").Logger(),
	}
}

// RecordView counts a deduplicated view. Duplicates are a success, not an
// error: the client cannot know whether another tab already counted.
func (s *Service) RecordView(ctx context.Context, postID, sessionID string) (models.ViewResult, error) {
	start := time.Now()

	result, err := s.store.RecordView(ctx, postID, sessionID)
	if err != nil {
		metrics.RecordEngagementOp("view", "error", time.Since(start))
		return models.ViewResult{}, err
	}

	effect := "duplicate"
	if result.Counted {
		effect = "counted"
		s.afterWrite(ctx, postID, sessionID, models.EventView, true)
	}
	metrics.RecordEngagementOp("view", effect, time.Since(start))
	return result, nil
}

// ToggleLike flips the caller's like state.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (models.LikeResult, error) {
	start := time.Now()

	result, err := s.store.ToggleLike(ctx, postID, userID)
	if err != nil {
		metrics.RecordEngagementOp("like", "error", time.Since(start))
		return models.LikeResult{}, err
	}

	s.afterWrite(ctx, postID, userID, models.EventLike, result.Liked)
	metrics.RecordEngagementOp("like", onOff(result.Liked), time.Since(start))
	return result, nil
}

// ToggleSave flips the caller's bookmark state.
func (s *Service) ToggleSave(ctx context.Context, postID, userID string) (models.SaveResult, error) {
	start := time.Now()

	result, err := s.store.ToggleSave(ctx, postID, userID)
	if err != nil {
		metrics.RecordEngagementOp("save", "error", time.Since(start))
		return models.SaveResult{}, err
	}

	s.afterWrite(ctx, postID, userID, models.EventSave, result.Saved)
	metrics.RecordEngagementOp("save", onOff(result.Saved), time.Since(start))
	return result, nil
}

// SetSave forces the bookmark into the requested state instead of toggling;
// used by the DELETE route where the client names the end state. Already in
// the requested state is a no-op success, keeping the route idempotent.
func (s *Service) SetSave(ctx context.Context, postID, userID string, saved bool) (models.SaveResult, error) {
	has, err := s.store.HasSave(ctx, postID, userID)
	if err != nil {
		return models.SaveResult{}, err
	}
	if has == saved {
		eng, err := s.store.GetEngagement(ctx, postID, "", userID)
		if err != nil {
			return models.SaveResult{}, err
		}
		return models.SaveResult{Saved: saved, BookmarksCount: eng.BookmarksCount}, nil
	}
	return s.ToggleSave(ctx, postID, userID)
}

// GetEngagement returns the post's counters plus the caller's like state.
func (s *Service) GetEngagement(ctx context.Context, postID, sessionID, userID string) (models.Engagement, error) {
	return s.store.GetEngagement(ctx, postID, sessionID, userID)
}

// UpsertPost applies a read-model update from the authoring service and
// invalidates anything computed from the old feature set.
func (s *Service) UpsertPost(ctx context.Context, post *models.Post) error {
	if err := s.store.UpsertPost(ctx, post); err != nil {
		return err
	}
	s.invalidate(post.ID, post.CategoryID)
	return nil
}

// DeletePost removes a post and its engagement records.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.invalidate(id, post.CategoryID)
	return nil
}

// afterWrite performs the post-commit fan-out: synchronous cache
// invalidation, then the advisory event publish.
func (s *Service) afterWrite(ctx context.Context, postID, subjectID string, kind models.EventKind, active bool) {
	categoryID := ""
	if post, err := s.store.GetPost(ctx, postID); err == nil {
		categoryID = post.CategoryID
	}

	s.invalidate(postID, categoryID)

	if s.publisher == nil {
		return
	}
	event := events.NewPostEngaged(postID, categoryID, subjectID, kind, active)
	if err := s.publisher.PublishEngagement(ctx, event); err != nil {
		// The write already committed; a publish failure only costs
		// observability.
		s.logger.Warn().Err(err).
			Str("post_id", postID).
			Str("kind", string(kind)).
			Msg("failed to publish engagement event")
	}
}

func (s *Service) invalidate(postID, categoryID string) {
	if s.invalidator == nil {
		return
	}
	n := s.invalidator.InvalidatePost(postID, categoryID)
	metrics.RecordCacheInvalidations(n)
	if n > 0 {
		s.logger.Debug().Str("post_id", postID).Int("dropped", n).Msg("cache entries invalidated")
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
