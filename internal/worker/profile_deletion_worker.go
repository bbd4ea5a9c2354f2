// Package worker runs the background triggers of the service.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/events"
	"github.com/spec-kit/user-admin-service/internal/observability"
	"github.com/spec-kit/user-admin-service/internal/profile"
)

// Trigger outcomes recorded in metrics.
const (
	OutcomeCleanedUp = "cleaned_up"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Source delivers profile deletions until ctx is done or the stream fails.
type Source interface {
	Run(ctx context.Context, handle profile.HandlerFunc) error
}

// Deduper remembers delivery ids. Forget releases one so it is handled again.
type Deduper interface {
	MarkOnce(ctx context.Context, deliveryID string) (bool, error)
	Forget(ctx context.Context, deliveryID string) error
}

// Cleaner removes the identity behind a deleted profile.
type Cleaner interface {
	OnProfileDeleted(ctx context.Context, id string) error
}

// Config tunes the worker.
type Config struct {
	// RestartDelay is the pause before the source is reopened after a failure.
	RestartDelay time.Duration
}

// ProfileDeletionWorker deletes identities whose profile documents were removed.
type ProfileDeletionWorker struct {
	source     Source
	dedupe     Deduper
	cleaner    Cleaner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        Config
}

// NewProfileDeletionWorker wires the worker. dedupe and dispatcher may be nil.
func NewProfileDeletionWorker(source Source, dedupe Deduper, cleaner Cleaner, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg Config) *ProfileDeletionWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	return &ProfileDeletionWorker{
		source:     source,
		dedupe:     dedupe,
		cleaner:    cleaner,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Run consumes deletions until ctx is cancelled, reopening the source after failures.
func (w *ProfileDeletionWorker) Run(ctx context.Context) error {
	for {
		err := w.source.Run(ctx, w.Handle)
		if ctx.Err() != nil {
			w.logger.Info("profile deletion worker stopped")
			return nil
		}
		if err != nil {
			w.logger.Error("profile deletion stream failed", zap.Error(err), zap.Duration("restart_in", w.cfg.RestartDelay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.cfg.RestartDelay):
		}
	}
}

// Handle processes one deletion. Deliveries seen before are skipped; a failed cleanup
// releases its delivery id so a redelivery is attempted again.
func (w *ProfileDeletionWorker) Handle(ctx context.Context, d profile.Deletion) error {
	logger := w.logger.With(zap.String("identity_id", d.ID), zap.String("delivery_id", d.DeliveryID))

	if w.dedupe != nil && d.DeliveryID != "" {
		first, err := w.dedupe.MarkOnce(ctx, d.DeliveryID)
		switch {
		case err != nil:
			logger.Warn("dedupe unavailable, handling delivery anyway", zap.Error(err))
		case !first:
			logger.Info("duplicate profile deletion skipped")
			w.metrics.RecordTrigger(OutcomeDuplicate)
			return nil
		}
	}

	if w.dispatcher != nil {
		event := events.New(events.EventProfileDeleted, d.ID, domain.System(), events.ProfileDeletedPayload{DeliveryID: d.DeliveryID})
		if err := w.dispatcher.Publish(ctx, event); err != nil {
			logger.Warn("event listeners failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}

	if err := w.cleaner.OnProfileDeleted(ctx, d.ID); err != nil {
		w.metrics.RecordTrigger(OutcomeFailed)
		if w.dedupe != nil && d.DeliveryID != "" {
			if ferr := w.dedupe.Forget(context.WithoutCancel(ctx), d.DeliveryID); ferr != nil {
				logger.Warn("failed to release delivery id", zap.Error(ferr))
			}
		}
		return err
	}

	w.metrics.RecordTrigger(OutcomeCleanedUp)
	return nil
}
