// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package recommend

import "fmt"

// Config contains all tunable parameters for the recommendation engine.
// The numeric weights are deliberately configuration, not constants: the
// product tunes them without a rebuild, and the tests assert relative
// orderings rather than exact scores.
type Config struct {
	// Similarity contains feature weights for the similarity scorer.
	Similarity SimilarityWeights `koanf:"similarity" json:"similarity"`

	// Trending contains engagement-score weights for the trending ranker.
	Trending TrendingWeights `koanf:"trending" json:"trending"`

	// Diversity contains parameters for personalized result diversification.
	Diversity DiversityConfig `koanf:"diversity" json:"diversity"`

	// Limits contains operational limits and defaults.
	Limits LimitsConfig `koanf:"limits" json:"limits"`
}

// SimilarityWeights defines the relative contribution of each post feature
// to the pairwise similarity score. Weights are normalized at runtime, so
// they do not need to sum to 1.0.
type SimilarityWeights struct {
	// Series is the weight for a case-insensitive exact series match.
	// The dominant signal.
	Series float64 `koanf:"series" json:"series"`

	// Category is the weight for a shared category.
	Category float64 `koanf:"category" json:"category"`

	// Tags is the weight applied to the Jaccard index of the tag sets.
	Tags float64 `koanf:"tags" json:"tags"`

	// Episode is the weight for season/episode proximity. Only applies
	// when both posts belong to the same series.
	Episode float64 `koanf:"episode" json:"episode"`

	// MaxEpisodeDistance caps the episode-proximity bonus; posts further
	// apart than this receive no bonus.
	MaxEpisodeDistance int `koanf:"max_episode_distance" json:"max_episode_distance"`

	// MinScore is the default inclusion threshold for similar-post
	// results when the caller does not supply one.
	MinScore float64 `koanf:"min_score" json:"min_score"`
}

// Normalize returns a copy with the four feature weights normalized to sum
// to 1.0. MaxEpisodeDistance and MinScore are carried through unchanged.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w SimilarityWeights) Normalize() SimilarityWeights {
	sum := w.Series + w.Category + w.Tags + w.Episode
	if sum == 0 {
		return SimilarityWeights{
			Series: 0.25, Category: 0.25, Tags: 0.25, Episode: 0.25,
			MaxEpisodeDistance: w.MaxEpisodeDistance,
			MinScore:           w.MinScore,
		}
	}
	return SimilarityWeights{
		Series:             w.Series / sum,
		Category:           w.Category / sum,
		Tags:               w.Tags / sum,
		Episode:            w.Episode / sum,
		MaxEpisodeDistance: w.MaxEpisodeDistance,
		MinScore:           w.MinScore,
	}
}

// TrendingWeights defines the engagement-score coefficients. Likes and
// bookmarks are deliberate engagement and should outweigh passive views.
type TrendingWeights struct {
	Views     float64 `koanf:"views" json:"views"`
	Likes     float64 `koanf:"likes" json:"likes"`
	Bookmarks float64 `koanf:"bookmarks" json:"bookmarks"`
}

// DiversityConfig contains parameters for diversity-aware reranking of
// personalized results.
type DiversityConfig struct {
	// Factor is the default per-repeat discount applied when multiple
	// candidates share a series or category (0 = no diversification,
	// values close to 1 aggressively spread results).
	Factor float64 `koanf:"factor" json:"factor"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is the result count when the caller omits limit.
	DefaultLimit int `koanf:"default_limit" json:"default_limit"`

	// MaxLimit caps the caller-supplied limit.
	MaxLimit int `koanf:"max_limit" json:"max_limit"`

	// DefaultTimeframeDays is the trending window when omitted.
	DefaultTimeframeDays int `koanf:"default_timeframe_days" json:"default_timeframe_days"`

	// MaxTimeframeDays caps the trending window.
	MaxTimeframeDays int `koanf:"max_timeframe_days" json:"max_timeframe_days"`

	// MaxSeeds caps the personalized seed list; extra seeds are ignored
	// oldest-first.
	MaxSeeds int `koanf:"max_seeds" json:"max_seeds"`
}

// DefaultConfig returns production defaults. Series identity dominates the
// similarity score; likes and bookmarks outweigh views in trending.
func DefaultConfig() *Config {
	return &Config{
		Similarity: SimilarityWeights{
			Series:             0.45,
			Category:           0.20,
			Tags:               0.25,
			Episode:            0.10,
			MaxEpisodeDistance: 12,
			MinScore:           0.1,
		},
		Trending: TrendingWeights{
			Views:     1.0,
			Likes:     4.0,
			Bookmarks: 5.0,
		},
		Diversity: DiversityConfig{
			Factor: 0.3,
		},
		Limits: LimitsConfig{
			DefaultLimit:         10,
			MaxLimit:             50,
			DefaultTimeframeDays: 7,
			MaxTimeframeDays:     90,
			MaxSeeds:             20,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Similarity.Series < 0 || c.Similarity.Category < 0 ||
		c.Similarity.Tags < 0 || c.Similarity.Episode < 0 {
		return fmt.Errorf("similarity weights must be non-negative")
	}
	if c.Similarity.Series+c.Similarity.Category+c.Similarity.Tags+c.Similarity.Episode == 0 {
		return fmt.Errorf("at least one similarity weight must be positive")
	}
	if c.Similarity.MaxEpisodeDistance <= 0 {
		return fmt.Errorf("similarity.max_episode_distance must be positive, got %d",
			c.Similarity.MaxEpisodeDistance)
	}
	if c.Similarity.MinScore < 0 || c.Similarity.MinScore > 1 {
		return fmt.Errorf("similarity.min_score must be in [0,1], got %f", c.Similarity.MinScore)
	}
	if c.Trending.Views < 0 || c.Trending.Likes < 0 || c.Trending.Bookmarks < 0 {
		return fmt.Errorf("trending weights must be non-negative")
	}
	if c.Diversity.Factor < 0 || c.Diversity.Factor >= 1 {
		return fmt.Errorf("diversity.factor must be in [0,1), got %f", c.Diversity.Factor)
	}
	if c.Limits.DefaultLimit <= 0 || c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits: default_limit must be positive and <= max_limit")
	}
	if c.Limits.DefaultTimeframeDays <= 0 || c.Limits.MaxTimeframeDays < c.Limits.DefaultTimeframeDays {
		return fmt.Errorf("limits: default_timeframe_days must be positive and <= max_timeframe_days")
	}
	if c.Limits.MaxSeeds <= 0 {
		return fmt.Errorf("limits.max_seeds must be positive, got %d", c.Limits.MaxSeeds)
	}
	return nil
}
