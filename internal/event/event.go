// Package event publishes attempt lifecycle events for the reporting and export path.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Routing keys on the topic exchange.
const (
	TypeAttemptStarted   = "attempt.started"
	TypeSectionSubmitted = "attempt.section_submitted"
	TypeAttemptCompleted = "attempt.completed"
)

// Event is the envelope written to the exchange.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// SectionSubmitted is the payload of TypeSectionSubmitted.
type SectionSubmitted struct {
	AttemptID uuid.UUID           `json:"attempt_id"`
	TestID    uuid.UUID           `json:"test_id"`
	UserID    int                 `json:"user_id"`
	Section   int                 `json:"section"`
	Score     int                 `json:"score"`
	Stats     model.SectionStats  `json:"stats"`
	Trigger   model.SubmitTrigger `json:"trigger"`
}

// AttemptCompleted is the payload of TypeAttemptCompleted.
type AttemptCompleted struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	TestID         uuid.UUID `json:"test_id"`
	UserID         int       `json:"user_id"`
	TotalScore     int       `json:"total_score"`
	TotalTimeTaken int64     `json:"total_time_taken"`
	CompletedAt    int64     `json:"completed_at"`
}

// AttemptStarted is the payload of TypeAttemptStarted.
type AttemptStarted struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	TestID    uuid.UUID `json:"test_id"`
	UserID    int       `json:"user_id"`
	CreatedAt int64     `json:"created_at"`
}

// New wraps a payload in an envelope.
func New(eventType string, payload any) Event {
	return Event{ID: uuid.New(), Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher sends events. Publishing is best effort; callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
