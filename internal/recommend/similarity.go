// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package recommend

import (
	"strings"

	"github.com/kiroku-project/kiroku/internal/models"
)

// Scorer computes pairwise post similarity from shared features. The score
// is a weighted linear combination, deterministic, symmetric and clamped to
// [0,1]:
//
//	sim(a, b) = w_series  * sameSeries(a, b) +
//	            w_category * sameCategory(a, b) +
//	            w_tags    * jaccard(tags_a, tags_b) +
//	            w_episode * episodeProximity(a, b)
//
// The episode-proximity term only contributes when both posts belong to the
// same series. Posts missing a feature are scored on what remains; there is
// no training step.
type Scorer struct {
	weights SimilarityWeights
}

// NewScorer creates a scorer with normalized weights.
//
//nolint:gocritic // hugeParam: weights copied for immutability
func NewScorer(weights SimilarityWeights) *Scorer {
	if weights.MaxEpisodeDistance <= 0 {
		weights.MaxEpisodeDistance = 12
	}
	return &Scorer{weights: weights.Normalize()}
}

// Score returns the similarity between two posts and its per-feature
// breakdown. Score(a, b) == Score(b, a) for all post pairs.
//
//nolint:gocritic // hugeParam: posts passed by value for immutability
func (s *Scorer) Score(a, b models.Post) (float64, Breakdown) {
	var bd Breakdown

	sameSeries := a.Series != "" && strings.EqualFold(a.Series, b.Series)
	if sameSeries {
		bd.Series = s.weights.Series
	}

	if a.CategoryID != "" && a.CategoryID == b.CategoryID {
		bd.Category = s.weights.Category
	}

	bd.Tags = s.weights.Tags * jaccard(a.Tags, b.Tags)

	if sameSeries {
		bd.Episode = s.weights.Episode * s.episodeProximity(a, b)
	}

	score := bd.Series + bd.Category + bd.Tags + bd.Episode
	return clamp01(score), bd
}

// episodeProximity returns a value in [0,1] that decays linearly with the
// absolute episode distance between two posts of the same series. Posts
// without episode numbers contribute nothing. A season gap counts as a full
// MaxEpisodeDistance per season so that adjacent episodes of the same
// season always score closer than episodes across seasons.
//
//nolint:gocritic // hugeParam: posts passed by value for immutability
func (s *Scorer) episodeProximity(a, b models.Post) float64 {
	if a.Episode == 0 || b.Episode == 0 {
		return 0
	}

	maxDist := s.weights.MaxEpisodeDistance
	dist := abs(a.Episode - b.Episode)
	if a.Season != 0 && b.Season != 0 {
		dist += abs(a.Season-b.Season) * maxDist
	}

	if dist >= maxDist {
		return 0
	}
	return 1 - float64(dist)/float64(maxDist)
}

// jaccard computes the Jaccard index of two tag sets, case-insensitive.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[strings.ToLower(t)] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
