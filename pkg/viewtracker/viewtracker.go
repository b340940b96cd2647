// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package viewtracker implements the client-side dwell gate that decides
// when a post display becomes an engaged view. A watch starts a
// single-shot delay when the post appears; if the reader is still there
// when it elapses, the view is recorded exactly once. Tearing the watch
// down first cancels the timer and nothing is sent.
//
// The gate is advisory. The server deduplicates by (post, session), so a
// broken or malicious client can at most under-count, never inflate.
package viewtracker

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Default dwell delays. Authors get a short delay so their own counter
// reflects a publish preview quickly; visitors must actually linger.
const (
	DefaultAuthorDelay  = 1 * time.Second
	DefaultVisitorDelay = 10 * time.Second
)

// Recorder sends a qualifying view to the engagement API.
type Recorder interface {
	RecordView(ctx context.Context, postID, sessionID string) error
}

// View describes a single post display.
type View struct {
	// PostID is the displayed post.
	PostID string

	// AuthorID is the post creator, used for the author fast path.
	AuthorID string

	// ViewerID is the current user, empty for anonymous readers.
	ViewerID string

	// SessionID is the per-browsing-session identifier sent to the
	// server for deduplication.
	SessionID string
}

// Options tunes a Tracker. Zero values fall back to the defaults.
type Options struct {
	AuthorDelay  time.Duration
	VisitorDelay time.Duration
	Logger       zerolog.Logger
}

// Tracker creates watches over a shared recorder.
type Tracker struct {
	recorder     Recorder
	authorDelay  time.Duration
	visitorDelay time.Duration
	logger       zerolog.Logger
}

// New creates a Tracker.
func New(recorder Recorder, opts Options) *Tracker {
	if opts.AuthorDelay <= 0 {
		opts.AuthorDelay = DefaultAuthorDelay
	}
	if opts.VisitorDelay <= 0 {
		opts.VisitorDelay = DefaultVisitorDelay
	}
	return &Tracker{
		recorder:     recorder,
		authorDelay:  opts.AuthorDelay,
		visitorDelay: opts.VisitorDelay,
		logger:       opts.Logger,
	}
}

// Watch is one armed dwell timer. It fires at most once for its
// lifetime, no matter how often the caller re-arms or cancels it.
type Watch struct {
	fired  atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Start arms the dwell timer for a post display. The author check is a
// one-time comparison at arm time; a login change mid-delay does not
// re-evaluate it. The returned Watch must be cancelled when the post
// leaves the screen.
func (t *Tracker) Start(ctx context.Context, view View) *Watch {
	delay := t.visitorDelay
	if view.ViewerID != "" && strings.EqualFold(view.ViewerID, view.AuthorID) {
		delay = t.authorDelay
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !w.fired.CompareAndSwap(false, true) {
			return
		}

		// Once the delay has elapsed the record call runs to completion
		// even if the watch is cancelled mid-flight, detached from the
		// watch context but bounded by its own timeout.
		recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer recordCancel()

		// Recording failures are logged and dropped. The gate is best
		// effort; a lost view is acceptable, a stuck client is not.
		if err := t.recorder.RecordView(recordCtx, view.PostID, view.SessionID); err != nil {
			t.logger.Warn().
				Err(err).
				Str("post_id", view.PostID).
				Msg("dwell-gated view not recorded")
		}
	}()

	return w
}

// Cancel stops the timer if it has not fired yet. Safe to call multiple
// times and after the view was recorded.
func (w *Watch) Cancel() {
	w.cancel()
}

// Done is closed once the watch has finished, either by firing or by
// cancellation. Mostly useful in tests.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Fired reports whether the dwell delay elapsed and a record attempt was
// made.
func (w *Watch) Fired() bool {
	return w.fired.Load()
}
