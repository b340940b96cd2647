// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package events carries engagement activity over an in-process watermill
// pub/sub. Cache invalidation on the write path is synchronous; the event
// stream is the asynchronous fan-out for metrics and any future consumers.
package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kiroku-project/kiroku/internal/models"
)

// TopicPostEngaged carries every engagement-affecting write.
const TopicPostEngaged = "post.engaged"

// SchemaVersion is the current event schema version.
const SchemaVersion = 1

// PostEngaged is the canonical engagement event.
type PostEngaged struct {
	SchemaVersion int `json:"schema_version"`

	EventID    string           `json:"event_id"`
	PostID     string           `json:"post_id"`
	CategoryID string           `json:"category_id,omitempty"`
	SubjectID  string           `json:"subject_id"` // session ID for views, user ID otherwise
	Kind       models.EventKind `json:"kind"`
	Active     bool             `json:"active"` // false for unlike/unsave
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewPostEngaged builds an event with a fresh ID and timestamp.
func NewPostEngaged(postID, categoryID, subjectID string, kind models.EventKind, active bool) PostEngaged {
	return PostEngaged{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		PostID:        postID,
		CategoryID:    categoryID,
		SubjectID:     subjectID,
		Kind:          kind,
		Active:        active,
		OccurredAt:    time.Now().UTC(),
	}
}

// ToMessage encodes the event as a watermill message.
func (e PostEngaged) ToMessage() (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Kind, err)
	}

	msg := message.NewMessage(e.EventID, payload)
	msg.Metadata.Set("kind", string(e.Kind))
	return msg, nil
}

// PostEngagedFromMessage decodes a watermill message back into the event.
func PostEngagedFromMessage(msg *message.Message) (PostEngaged, error) {
	var event PostEngaged
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return PostEngaged{}, fmt.Errorf("failed to decode engagement event %s: %w", msg.UUID, err)
	}
	return event, nil
}
