// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package metrics provides Prometheus instrumentation for engagement
// writes, recommendation latency, cache efficiency and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engagement write path.

	EngagementOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiroku_engagement_operations_total",
			Help: "Total engagement operations by type and effect",
		},
		[]string{"operation", "effect"}, // view/like/save, counted|duplicate|on|off|error
	)

	EngagementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiroku_engagement_duration_seconds",
			Help:    "Duration of engagement store transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Recommendation path.

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiroku_recommendation_duration_seconds",
			Help:    "Duration of recommendation computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "cache"}, // similar/trending/personalized, hit|miss
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiroku_recommendation_cache_hits_total",
			Help: "Total recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiroku_recommendation_cache_misses_total",
			Help: "Total recommendation cache misses",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiroku_recommendation_cache_invalidations_total",
			Help: "Total recommendation cache entries invalidated",
		},
	)

	CacheKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiroku_recommendation_cache_entries",
			Help: "Current number of recommendation cache entries",
		},
	)

	// Event bus.

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiroku_events_published_total",
			Help: "Total engagement events published to the bus",
		},
		[]string{"kind"},
	)

	// HTTP surface.

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiroku_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiroku_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiroku_http_active_requests",
			Help: "Number of HTTP requests currently in flight",
		},
	)
)

// RecordEngagementOp records one engagement store operation.
func RecordEngagementOp(operation, effect string, duration time.Duration) {
	EngagementOps.WithLabelValues(operation, effect).Inc()
	EngagementDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRecommendation records one recommendation call.
func RecordRecommendation(operation string, cacheHit bool, duration time.Duration) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
	RecommendDuration.WithLabelValues(operation, cache).Observe(duration.Seconds())
}

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEventPublished records one event published to the bus.
func RecordEventPublished(kind string) {
	EventsPublished.WithLabelValues(kind).Inc()
}

// RecordCacheInvalidations adds n dropped cache entries.
func RecordCacheInvalidations(n int) {
	if n > 0 {
		CacheInvalidations.Add(float64(n))
	}
}
