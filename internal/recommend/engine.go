// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package recommend implements similarity, trending and personalized post
// recommendations over the engagement store, memoized through the cache
// layer. Scoring is a deterministic weighted feature combination with no
// training step, so results are explainable and cheap to recompute.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiroku-project/kiroku/internal/cache"
	"github.com/kiroku-project/kiroku/internal/models"
)

// CacheTTLs holds the per-operation cache lifetimes. Similarity results
// only change when post features change, so they live longest; trending
// shifts on every engagement write and expires quickly.
type CacheTTLs struct {
	Similar      time.Duration
	Trending     time.Duration
	Personalized time.Duration
}

// DefaultCacheTTLs returns production defaults.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Similar:      30 * time.Minute,
		Trending:     2 * time.Minute,
		Personalized: 10 * time.Minute,
	}
}

// Engine coordinates the scorer, ranker and recommender over the store,
// with results memoized in the cache. Safe for concurrent use.
type Engine struct {
	cfg         *Config
	scorer      *Scorer
	ranker      *Ranker
	recommender *Recommender
	store       Store
	cache       *cache.Cache
	ttls        CacheTTLs
	logger      zerolog.Logger
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is idiomatic for zerolog
func NewEngine(cfg *Config, store Store, c *cache.Cache, ttls CacheTTLs, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if c == nil {
		c = cache.New(5 * time.Minute)
	}
	if ttls == (CacheTTLs{}) {
		ttls = DefaultCacheTTLs()
	}

	scorer := NewScorer(cfg.Similarity)
	return &Engine{
		cfg:         cfg,
		scorer:      scorer,
		ranker:      NewRanker(cfg.Trending),
		recommender: NewRecommender(scorer),
		store:       store,
		cache:       c,
		ttls:        ttls,
		logger:      logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Scorer exposes the engine's similarity scorer.
func (e *Engine) Scorer() *Scorer {
	return e.scorer
}

// Similar returns posts similar to postID, ordered by descending score.
// minScore < 0 selects the configured default threshold. The bool reports
// whether the result came from the cache.
func (e *Engine) Similar(ctx context.Context, postID string, limit int, minScore float64, includeBreakdown bool) ([]ScoredPost, bool, error) {
	limit = e.clampLimit(limit)
	if minScore < 0 {
		minScore = e.cfg.Similarity.MinScore
	}

	key := cache.Key("similar", cache.Params{
		"post_id":   postID,
		"limit":     limit,
		"min_score": minScore,
		"breakdown": includeBreakdown,
	})
	tags := []string{cache.TagPost(postID)}

	value, hit, err := e.cache.GetOrCompute(ctx, key, e.ttls.Similar, tags,
		func(ctx context.Context) (interface{}, error) {
			return e.computeSimilar(ctx, postID, limit, minScore, includeBreakdown)
		})
	if err != nil {
		return nil, false, err
	}

	result, ok := value.([]ScoredPost)
	if !ok {
		return nil, false, fmt.Errorf("unexpected cache payload for %q", key)
	}
	return result, hit, nil
}

// computeSimilar scores every candidate against the source post.
func (e *Engine) computeSimilar(ctx context.Context, postID string, limit int, minScore float64, includeBreakdown bool) ([]ScoredPost, error) {
	source, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	scored := make([]ScoredPost, 0, limit)
	for i := range candidates {
		// A post is never similar to itself.
		if candidates[i].ID == source.ID {
			continue
		}
		score, breakdown := e.scorer.Score(source, candidates[i])
		if score < minScore {
			continue
		}
		sp := ScoredPost{Post: candidates[i], Score: score}
		if includeBreakdown {
			bd := breakdown
			sp.Breakdown = &bd
		}
		scored = append(scored, sp)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Post.PublishedAt.After(scored[j].Post.PublishedAt)
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	e.logger.Debug().
		Str("post_id", postID).
		Int("returned", len(scored)).
		Msg("similar posts computed")
	return scored, nil
}

// Trending returns the engagement leaderboard for the trailing window.
func (e *Engine) Trending(ctx context.Context, limit, timeframeDays int, categoryID string) ([]TrendingPost, bool, error) {
	limit = e.clampLimit(limit)
	timeframeDays = e.clampTimeframe(timeframeDays)

	key := cache.Key("trending", cache.Params{
		"limit":     limit,
		"timeframe": timeframeDays,
		"category":  categoryID,
	})
	tags := []string{cache.TagVolatile}
	if categoryID != "" {
		tags = append(tags, cache.TagCategory(categoryID))
	}

	value, hit, err := e.cache.GetOrCompute(ctx, key, e.ttls.Trending, tags,
		func(ctx context.Context) (interface{}, error) {
			return e.computeTrending(ctx, limit, timeframeDays, categoryID)
		})
	if err != nil {
		return nil, false, err
	}

	result, ok := value.([]TrendingPost)
	if !ok {
		return nil, false, fmt.Errorf("unexpected cache payload for %q", key)
	}
	return result, hit, nil
}

// computeTrending ranks window-scoped engagement. Window counts come from
// the append-only event log, so a post's pre-window popularity cannot leak
// into the score.
func (e *Engine) computeTrending(ctx context.Context, limit, timeframeDays int, categoryID string) ([]TrendingPost, error) {
	var (
		candidates []models.Post
		err        error
	)
	if categoryID != "" {
		candidates, err = e.store.ListPostsByCategory(ctx, categoryID)
	} else {
		candidates, err = e.store.ListPosts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	since := time.Now().AddDate(0, 0, -timeframeDays)
	window, err := e.store.WindowEngagement(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("window engagement: %w", err)
	}

	ranked := e.ranker.Rank(candidates, window, limit)
	e.logger.Debug().
		Int("timeframe_days", timeframeDays).
		Str("category", categoryID).
		Int("returned", len(ranked)).
		Msg("trending computed")
	return ranked, nil
}

// Personalized recommends posts relevant to the seed history with a
// diversity constraint. diversityFactor < 0 selects the configured
// default. An empty (or fully unknown) seed list falls back to trending.
func (e *Engine) Personalized(ctx context.Context, seedIDs []string, limit int, diversityFactor float64) ([]ScoredPost, bool, error) {
	limit = e.clampLimit(limit)
	if diversityFactor < 0 {
		diversityFactor = e.cfg.Diversity.Factor
	}
	seedIDs = canonicalSeeds(seedIDs, e.cfg.Limits.MaxSeeds)

	key := cache.Key("personalized", cache.Params{
		"seeds":     seedIDs,
		"limit":     limit,
		"diversity": diversityFactor,
	})
	tags := []string{cache.TagVolatile}

	value, hit, err := e.cache.GetOrCompute(ctx, key, e.ttls.Personalized, tags,
		func(ctx context.Context) (interface{}, error) {
			return e.computePersonalized(ctx, seedIDs, limit, diversityFactor)
		})
	if err != nil {
		return nil, false, err
	}

	result, ok := value.([]ScoredPost)
	if !ok {
		return nil, false, fmt.Errorf("unexpected cache payload for %q", key)
	}
	return result, hit, nil
}

// computePersonalized resolves the seeds and runs the recommender. Unknown
// seed IDs are skipped rather than failing the request: the caller's
// history may reference posts deleted since.
func (e *Engine) computePersonalized(ctx context.Context, seedIDs []string, limit int, diversityFactor float64) ([]ScoredPost, error) {
	seeds := make([]models.Post, 0, len(seedIDs))
	for _, id := range seedIDs {
		post, err := e.store.GetPost(ctx, id)
		if err != nil {
			if models.IsNotFound(err) {
				e.logger.Debug().Str("post_id", id).Msg("skipping unknown seed")
				continue
			}
			return nil, fmt.Errorf("resolve seed %s: %w", id, err)
		}
		seeds = append(seeds, post)
	}

	if len(seeds) == 0 {
		return e.trendingFallback(ctx, limit)
	}

	candidates, err := e.store.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	result := e.recommender.Recommend(seeds, candidates, limit, diversityFactor)
	e.logger.Debug().
		Int("seeds", len(seeds)).
		Int("returned", len(result)).
		Msg("personalized recommendations computed")
	return result, nil
}

// trendingFallback converts the trending leaderboard into scored posts for
// callers with no interaction history. Engagement scores are min-max
// normalized into [0,1] so the two result shapes stay comparable.
func (e *Engine) trendingFallback(ctx context.Context, limit int) ([]ScoredPost, error) {
	ranked, err := e.computeTrending(ctx, limit, e.cfg.Limits.DefaultTimeframeDays, "")
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return []ScoredPost{}, nil
	}

	minScore, maxScore := ranked[len(ranked)-1].EngagementScore, ranked[0].EngagementScore
	span := maxScore - minScore

	result := make([]ScoredPost, len(ranked))
	for i := range ranked {
		score := 0.5
		if span > 0 {
			score = (ranked[i].EngagementScore - minScore) / span
		}
		result[i] = ScoredPost{Post: ranked[i].Post, Score: score}
	}
	return result, nil
}

// InvalidatePost drops every cache entry whose result could include the
// post. Called synchronously on engagement writes and post mutations so a
// writer always observes its own write.
func (e *Engine) InvalidatePost(postID, categoryID string) int {
	return e.cache.InvalidatePost(postID, categoryID)
}

// ClearCache drops all cached recommendation results.
func (e *Engine) ClearCache() int {
	return e.cache.Clear()
}

// CacheStats returns a snapshot of the recommendation cache metrics.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.GetStats()
}

// clampLimit applies the configured default and ceiling.
func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.Limits.DefaultLimit
	}
	if limit > e.cfg.Limits.MaxLimit {
		return e.cfg.Limits.MaxLimit
	}
	return limit
}

// clampTimeframe applies the configured default and ceiling.
func (e *Engine) clampTimeframe(days int) int {
	if days <= 0 {
		return e.cfg.Limits.DefaultTimeframeDays
	}
	if days > e.cfg.Limits.MaxTimeframeDays {
		return e.cfg.Limits.MaxTimeframeDays
	}
	return days
}

// canonicalSeeds sorts and deduplicates seed IDs so parameter order does
// not fragment the cache, then applies the seed cap.
func canonicalSeeds(ids []string, maxSeeds int) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	if maxSeeds > 0 && len(out) > maxSeeds {
		out = out[:maxSeeds]
	}
	return out
}
