// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/kiroku-project/kiroku/internal/metrics"
)

// Bus is the in-process engagement event bus: a gochannel pub/sub plus a
// watermill router running the subscribers. Delivery is at-most-once within
// the process; the DuckDB event log is the durable record, the bus only
// fans out to observers.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger zerolog.Logger
}

// NewBus creates the bus and registers the built-in metrics consumer.
//
//nolint:gocritic // logger passed by value is idiomatic for zerolog
func NewBus(logger zerolog.Logger) (*Bus, error) {
	adapter := NewLoggerAdapter(logger)

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, adapter)

	router, err := message.NewRouter(message.RouterConfig{}, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	bus := &Bus{
		pubsub: pubsub,
		router: router,
		logger: logger.With().Str("component", "events").Logger(),
	}

	router.AddNoPublisherHandler(
		"engagement-metrics",
		TopicPostEngaged,
		pubsub,
		bus.recordMetrics,
	)

	return bus, nil
}

// PublishEngagement publishes one engagement event. Failures are returned
// to the caller but are advisory; the write already committed.
func (b *Bus) PublishEngagement(ctx context.Context, event PostEngaged) error {
	msg, err := event.ToMessage()
	if err != nil {
		return err
	}
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(TopicPostEngaged, msg); err != nil {
		return fmt.Errorf("failed to publish %s event for post %s: %w", event.Kind, event.PostID, err)
	}
	return nil
}

// AddHandler registers an additional consumer for engagement events. Must
// be called before Run.
func (b *Bus) AddHandler(name string, handler func(context.Context, PostEngaged) error) {
	b.router.AddNoPublisherHandler(name, TopicPostEngaged, b.pubsub,
		func(msg *message.Message) error {
			event, err := PostEngagedFromMessage(msg)
			if err != nil {
				// Undecodable messages are dropped, not retried.
				b.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed event")
				return nil
			}
			return handler(msg.Context(), event)
		})
}

// Run starts the router and blocks until ctx is canceled.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running returns a channel closed once the router is running.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close shuts down the router and the pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return fmt.Errorf("failed to close event router: %w", err)
	}
	return b.pubsub.Close()
}

// recordMetrics is the built-in consumer feeding Prometheus.
func (b *Bus) recordMetrics(msg *message.Message) error {
	event, err := PostEngagedFromMessage(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed event")
		return nil
	}
	metrics.RecordEventPublished(string(event.Kind))
	return nil
}
