package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/audit"
	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/events"
)

type memoryRepo struct {
	entries []audit.Entry
	err     error
}

func (m *memoryRepo) Insert(_ context.Context, entry audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryRepo) bySubject(subjectID string) []audit.Entry {
	var out []audit.Entry
	for _, e := range m.entries {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out
}

func TestFromEvent(t *testing.T) {
	caller := domain.NewCaller("admin-1", domain.RoleAdmin)
	e := events.New(events.EventUserCreated, "uid-1", caller, events.UserCreatedPayload{Email: "a@b.com", Department: "X", Role: domain.RoleStaff})

	entry, err := audit.FromEvent(e)
	require.NoError(t, err)
	assert.Equal(t, e.ID, entry.EventID.String())
	assert.Equal(t, "user.created", entry.EventType)
	assert.Equal(t, "uid-1", entry.SubjectID)
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, "admin", entry.ActorRole)
	assert.NotEqual(t, uuid.Nil, entry.ID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(entry.Payload, &payload))
	assert.Equal(t, "a@b.com", payload["email"])
}

func TestFromEvent_NoPayloadAndForeignID(t *testing.T) {
	entry, err := audit.FromEvent(events.Event{ID: "not-a-uuid", Type: events.EventUserDeleted, SubjectID: "uid-2"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, entry.EventID)
	assert.Nil(t, entry.Payload)
	assert.False(t, entry.OccurredAt.IsZero())
}

func TestListener(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	repo := &memoryRepo{}
	audit.NewListener(dispatcher, repo, zap.NewNop()).RegisterHandlers()

	ctx := context.Background()
	for _, et := range events.AllTypes {
		require.NoError(t, dispatcher.Publish(ctx, events.New(et, "uid-1", domain.System(), nil)))
	}

	assert.Len(t, repo.bySubject("uid-1"), len(events.AllTypes))
	assert.Empty(t, repo.bySubject("uid-2"))
}

func TestListener_RepositoryFailureIsReported(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	audit.NewListener(dispatcher, &memoryRepo{err: errors.New("db down")}, zap.NewNop()).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.New(events.EventUserDeleted, "uid-1", domain.System(), nil))
	assert.ErrorContains(t, err, "db down")
}

func TestListener_WithoutRepository(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	audit.NewListener(dispatcher, nil, zap.NewNop()).RegisterHandlers()

	assert.NoError(t, dispatcher.Publish(context.Background(), events.New(events.EventUserDeleted, "uid-1", domain.System(), nil)))
}
