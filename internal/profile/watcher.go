package profile

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// changeStreamHistoryLost is returned when the resume token points past the oplog window.
const changeStreamHistoryLost = 286

// Deletion reports a removed profile document. DeliveryID is stable across redeliveries
// of the same change event and can be used for dedupe.
type Deletion struct {
	ID         string
	DeliveryID string
}

// HandlerFunc processes one deletion. A returned error is logged and the stream moves on.
type HandlerFunc func(ctx context.Context, d Deletion) error

// ResumeStore persists the change stream position across process restarts.
type ResumeStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, token []byte) error
	Clear(ctx context.Context) error
}

// Watcher tails the profile collection for delete operations. Requires a replica set.
type Watcher struct {
	collection  *mongo.Collection
	logger      *zap.Logger
	resume      ResumeStore
	resumeToken bson.Raw
}

// NewWatcher builds a watcher over the given collection.
func NewWatcher(collection *mongo.Collection, logger *zap.Logger) *Watcher {
	return &Watcher{collection: collection, logger: logger}
}

// WithResumeStore makes the watcher load its starting position from s and save
// the position after every handled event.
func (w *Watcher) WithResumeStore(s ResumeStore) *Watcher {
	w.resume = s
	return w
}

// Run blocks until ctx is done or the stream fails. It resumes after the last event
// that was handed to handle, by this process or, with a resume store, a previous one.
func (w *Watcher) Run(ctx context.Context, handle HandlerFunc) error {
	w.restore(ctx)

	stream, err := w.open(ctx)
	if err != nil && w.resumeToken != nil && historyLost(err) {
		w.logger.Warn("resume token expired, watching from now", zap.Error(err))
		w.forget(ctx)
		stream, err = w.open(ctx)
	}
	if err != nil {
		return fmt.Errorf("open profile change stream: %w", err)
	}
	defer func() {
		_ = stream.Close(context.WithoutCancel(ctx))
	}()

	w.logger.Info("watching profile deletions",
		zap.String("collection", w.collection.Name()),
		zap.Bool("resumed", w.resumeToken != nil),
	)

	for stream.Next(ctx) {
		deletion, err := deletionFromChange(stream.Current)
		if err != nil {
			w.logger.Warn("skipping change event", zap.Error(err))
		} else if err := handle(ctx, deletion); err != nil {
			w.logger.Error("profile deletion handler failed",
				zap.String("identity_id", deletion.ID),
				zap.String("delivery_id", deletion.DeliveryID),
				zap.Error(err),
			)
		}
		w.checkpoint(ctx, stream.ResumeToken())
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := stream.Err(); err != nil {
		if historyLost(err) {
			w.forget(ctx)
		}
		return err
	}
	return nil
}

func (w *Watcher) open(ctx context.Context) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "delete"}}}},
	}
	opts := options.ChangeStream()
	if w.resumeToken != nil {
		opts.SetResumeAfter(w.resumeToken)
	}
	return w.collection.Watch(ctx, pipeline, opts)
}

// restore loads the saved position when this process has none yet.
func (w *Watcher) restore(ctx context.Context) {
	if w.resumeToken != nil || w.resume == nil {
		return
	}
	token, err := w.resume.Load(ctx)
	if err != nil {
		w.logger.Warn("failed to load resume token, watching from now", zap.Error(err))
		return
	}
	if len(token) > 0 {
		w.resumeToken = bson.Raw(token)
	}
}

func (w *Watcher) checkpoint(ctx context.Context, token bson.Raw) {
	if token == nil {
		return
	}
	w.resumeToken = token
	if w.resume == nil {
		return
	}
	if err := w.resume.Save(context.WithoutCancel(ctx), token); err != nil {
		w.logger.Warn("failed to save resume token", zap.Error(err))
	}
}

func (w *Watcher) forget(ctx context.Context) {
	w.resumeToken = nil
	if w.resume == nil {
		return
	}
	if err := w.resume.Clear(context.WithoutCancel(ctx)); err != nil {
		w.logger.Warn("failed to clear resume token", zap.Error(err))
	}
}

func historyLost(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(changeStreamHistoryLost)
}

type changeEvent struct {
	ID struct {
		Data string `bson:"_data"`
	} `bson:"_id"`
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID bson.RawValue `bson:"_id"`
	} `bson:"documentKey"`
}

var errNotDelete = errors.New("not a delete event")

func deletionFromChange(raw bson.Raw) (Deletion, error) {
	var ev changeEvent
	if err := bson.Unmarshal(raw, &ev); err != nil {
		return Deletion{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.OperationType != "delete" {
		return Deletion{}, errNotDelete
	}
	id, ok := ev.DocumentKey.ID.StringValueOK()
	if !ok || id == "" {
		return Deletion{}, fmt.Errorf("document key is not an identity id")
	}
	return Deletion{ID: id, DeliveryID: ev.ID.Data}, nil
}
