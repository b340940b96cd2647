// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package recommend

import (
	"sort"

	"github.com/kiroku-project/kiroku/internal/models"
)

// Ranker turns window-scoped engagement counts into an ordered leaderboard.
//
// The window matters: scoring lifetime counters would let old, high-view
// posts permanently dominate "trending". Only in-window events count
// toward the score, so a post with no engagement activity inside the
// window scores zero and drops out no matter how popular it once was.
// For posts published inside the window the distinction vanishes: their
// whole event history is in-window by definition.
type Ranker struct {
	weights TrendingWeights
}

// NewRanker creates a trending ranker.
func NewRanker(weights TrendingWeights) *Ranker {
	return &Ranker{weights: weights}
}

// Rank scores the candidates and returns at most limit posts ordered by
// descending engagement score, ties broken by more recent publish date.
// window maps post ID to in-window event counts; candidates published
// before the window with no entry in window score zero and are dropped.
func (r *Ranker) Rank(candidates []models.Post, window map[string]WindowCounts, limit int) []TrendingPost {
	scored := make([]TrendingPost, 0, len(candidates))
	for i := range candidates {
		score := r.score(window[candidates[i].ID])
		if score <= 0 {
			continue
		}
		scored = append(scored, TrendingPost{
			Post:            candidates[i],
			EngagementScore: score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].EngagementScore != scored[j].EngagementScore {
			return scored[i].EngagementScore > scored[j].EngagementScore
		}
		return scored[i].Post.PublishedAt.After(scored[j].Post.PublishedAt)
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// score computes the weighted engagement score for one post's window counts.
func (r *Ranker) score(c WindowCounts) float64 {
	return r.weights.Views*float64(c.Views) +
		r.weights.Likes*float64(c.Likes) +
		r.weights.Bookmarks*float64(c.Bookmarks)
}
