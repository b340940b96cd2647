// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package recommend

import (
	"math"
	"sort"
	"strings"

	"github.com/kiroku-project/kiroku/internal/models"
)

// Recommender combines similarity scores across a user's interaction
// history into a diversified recommendation list.
//
// A candidate's base score is its MAXIMUM similarity to any seed post, not
// the sum: summing would bias results toward users with long histories.
// Selection is then greedy with a diversity penalty: each already-selected
// post sharing the candidate's series or category discounts the candidate
// by the diversity factor, so one series cannot monopolize the list. The
// greedy re-selection loop follows the same shape as MMR reranking.
type Recommender struct {
	scorer *Scorer
}

// NewRecommender creates a personalized recommender on top of a scorer.
func NewRecommender(scorer *Scorer) *Recommender {
	return &Recommender{scorer: scorer}
}

// candidate pairs a post with its running scores during selection.
type candidate struct {
	post      models.Post
	baseScore float64
}

// Recommend returns at most limit posts from candidates, ordered by
// diversity-penalized relevance to the seeds. Seed posts are never
// returned. diversityFactor in [0,1): 0 disables the penalty.
func (r *Recommender) Recommend(seeds, candidates []models.Post, limit int, diversityFactor float64) []ScoredPost {
	if len(seeds) == 0 || limit <= 0 {
		return nil
	}
	if diversityFactor < 0 {
		diversityFactor = 0
	}
	if diversityFactor >= 1 {
		diversityFactor = 0.99
	}

	seedIDs := make(map[string]struct{}, len(seeds))
	for i := range seeds {
		seedIDs[seeds[i].ID] = struct{}{}
	}

	// Base score: max similarity to any seed.
	pool := make([]candidate, 0, len(candidates))
	for i := range candidates {
		if _, isSeed := seedIDs[candidates[i].ID]; isSeed {
			continue
		}
		var best float64
		for j := range seeds {
			score, _ := r.scorer.Score(seeds[j], candidates[i])
			if score > best {
				best = score
			}
		}
		if best <= 0 {
			continue
		}
		pool = append(pool, candidate{post: candidates[i], baseScore: best})
	}

	// Deterministic starting order so equal penalized scores resolve the
	// same way on every call.
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].baseScore != pool[j].baseScore {
			return pool[i].baseScore > pool[j].baseScore
		}
		return pool[i].post.PublishedAt.After(pool[j].post.PublishedAt)
	})

	if limit > len(pool) {
		limit = len(pool)
	}

	// Greedy selection with per-repeat series/category discounts.
	seriesSeen := make(map[string]int)
	categorySeen := make(map[string]int)
	picked := make(map[int]struct{}, limit)
	result := make([]ScoredPost, 0, limit)

	for len(result) < limit {
		bestIdx := -1
		bestScore := -1.0

		for i := range pool {
			if _, ok := picked[i]; ok {
				continue
			}
			score := r.penalized(pool[i], seriesSeen, categorySeen, diversityFactor)
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		picked[bestIdx] = struct{}{}
		post := pool[bestIdx].post
		if key := seriesKey(post); key != "" {
			seriesSeen[key]++
		}
		if post.CategoryID != "" {
			categorySeen[post.CategoryID]++
		}

		result = append(result, ScoredPost{Post: post, Score: bestScore})
	}

	return result
}

// penalized applies the per-repeat diversity discount to a candidate's base
// score given what has already been selected.
func (r *Recommender) penalized(c candidate, seriesSeen, categorySeen map[string]int, factor float64) float64 {
	if factor == 0 {
		return c.baseScore
	}

	repeats := 0
	if key := seriesKey(c.post); key != "" {
		repeats += seriesSeen[key]
	}
	if c.post.CategoryID != "" {
		repeats += categorySeen[c.post.CategoryID]
	}
	if repeats == 0 {
		return c.baseScore
	}

	return c.baseScore * math.Pow(1-factor, float64(repeats))
}

// seriesKey normalizes a series name for repeat counting.
func seriesKey(p models.Post) string {
	return strings.ToLower(strings.TrimSpace(p.Series))
}
