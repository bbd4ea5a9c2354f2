package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/events"
)

// Listener writes dispatched events to the audit trail. With a nil repository it only logs.
type Listener struct {
	dispatcher events.Dispatcher
	repo       Repository
	logger     *zap.Logger
}

// NewListener creates the listener.
func NewListener(dispatcher events.Dispatcher, repo Repository, logger *zap.Logger) *Listener {
	return &Listener{dispatcher: dispatcher, repo: repo, logger: logger}
}

// RegisterHandlers subscribes to every event type.
func (l *Listener) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllTypes {
		l.dispatcher.Subscribe(eventType, l.handle)
	}
}

func (l *Listener) handle(ctx context.Context, event events.Event) error {
	l.logger.Info("audit",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.Actor.ID))

	if l.repo == nil {
		return nil
	}

	entry, err := FromEvent(event)
	if err != nil {
		return err
	}
	// audit writes must not be cut short by the request that produced the event
	if err := l.repo.Insert(context.WithoutCancel(ctx), entry); err != nil {
		l.logger.Error("failed to write audit entry", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}
