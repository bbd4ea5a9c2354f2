package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated         EventType = "user.created"
	EventUserUpdated         EventType = "user.updated"
	EventUserDeleted         EventType = "user.deleted"
	EventUserPasswordUpdated EventType = "user.password_updated"
	EventProfileDeleted      EventType = "profile.deleted"
	EventIdentityCleanedUp   EventType = "identity.cleaned_up"
)

// AllTypes lists every event type the service emits.
var AllTypes = []EventType{
	EventUserCreated,
	EventUserUpdated,
	EventUserDeleted,
	EventUserPasswordUpdated,
	EventProfileDeleted,
	EventIdentityCleanedUp,
}

// Actor identifies who caused an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role,omitempty"`
}

// Event is emitted after a command has taken effect.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subjectID string, caller domain.Caller, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     Actor{ID: caller.ID, Role: caller.Role},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	Email      string      `json:"email"`
	Department string      `json:"department"`
	Role       domain.Role `json:"role"`
}

// UserUpdatedPayload payload.
type UserUpdatedPayload struct {
	Department string      `json:"department"`
	Role       domain.Role `json:"role"`
}

// ProfileDeletedPayload payload.
type ProfileDeletedPayload struct {
	DeliveryID string `json:"delivery_id"`
}

// IdentityCleanedUpPayload payload. AlreadyAbsent is set when the identity was gone before cleanup ran.
type IdentityCleanedUpPayload struct {
	AlreadyAbsent bool `json:"already_absent"`
}
