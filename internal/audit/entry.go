// Package audit records every user admin event in an append-only trail.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/user-admin-service/internal/events"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	EventType  string
	SubjectID  string
	ActorID    string
	ActorRole  string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// FromEvent converts an event into an entry. Unparseable event ids get a fresh one.
func FromEvent(e events.Event) (Entry, error) {
	eventID, err := uuid.Parse(e.ID)
	if err != nil {
		eventID = uuid.New()
	}

	var payload json.RawMessage
	if e.Payload != nil {
		payload, err = json.Marshal(e.Payload)
		if err != nil {
			return Entry{}, err
		}
	}

	occurredAt := e.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Entry{
		ID:         uuid.New(),
		EventID:    eventID,
		EventType:  string(e.Type),
		SubjectID:  e.SubjectID,
		ActorID:    e.Actor.ID,
		ActorRole:  e.Actor.Role.String(),
		Payload:    payload,
		OccurredAt: occurredAt,
	}, nil
}
