// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package services

import (
	"context"
	"time"

	"github.com/kiroku-project/kiroku/internal/cache"
	"github.com/kiroku-project/kiroku/internal/metrics"
)

// JanitorService periodically sweeps expired recommendation cache
// entries and publishes the live entry count. Lazy expiry on read
// already keeps results correct; the sweep only reclaims memory for
// keys nobody asks for again.
type JanitorService struct {
	cache    *cache.Cache
	interval time.Duration
	name     string
}

// NewJanitorService creates the wrapper.
func NewJanitorService(c *cache.Cache, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JanitorService{cache: c, interval: interval, name: "cache-janitor"}
}

// Serve implements suture.Service.
func (s *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			metrics.CacheKeys.Set(float64(s.cache.Sweep()))
		}
	}
}

// String implements fmt.Stringer for suture's logging.
func (s *JanitorService) String() string {
	return s.name
}
