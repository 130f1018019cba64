// Package events defines the activity progression events emitted by the client.
package events

import (
	"context"
	"time"
)

// Event types, carried in the event_type header.
const (
	TypeActivityStarted   = "activity.started"
	TypeAnswerSubmitted   = "activity.answer_submitted"
	TypeActivityCompleted = "activity.completed"
)

// Event is implemented by every payload the client publishes.
type Event interface {
	EventType() string
	AggregateID() string
}

// ActivityStarted is emitted when the service moved an activity to ONGOING.
type ActivityStarted struct {
	ActivityID  string    `json:"activity_id"`
	UserID      string    `json:"user_id"`
	FirstItemID string    `json:"first_item_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (ActivityStarted) EventType() string     { return TypeActivityStarted }
func (e ActivityStarted) AggregateID() string { return e.ActivityID }

// AnswerSubmitted records the outcome of one attempt.
type AnswerSubmitted struct {
	ActivityID     string    `json:"activity_id"`
	UserID         string    `json:"user_id"`
	ItemID         string    `json:"item_id"`
	Skip           bool      `json:"skip"`
	IsCorrect      bool      `json:"is_correct"`
	SuccessVerdict bool      `json:"success_verdict"`
	NextItemID     *string   `json:"next_item_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (AnswerSubmitted) EventType() string     { return TypeAnswerSubmitted }
func (e AnswerSubmitted) AggregateID() string { return e.ActivityID }

// ActivityCompleted is emitted once the service reports the activity complete.
type ActivityCompleted struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (ActivityCompleted) EventType() string     { return TypeActivityCompleted }
func (e ActivityCompleted) AggregateID() string { return e.ActivityID }

// Publisher delivers progression events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish performs no action.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close performs no action.
func (NoopPublisher) Close() error { return nil }
