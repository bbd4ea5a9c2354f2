package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/config"
)

// Mongo wraps the client of the profile document store.
type Mongo struct {
	Client *mongo.Client
	cfg    config.MongoConfig
}

// NewMongo connects and pings the primary.
func NewMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Mongo, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("user-admin-service")

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info("connected to mongodb", zap.String("database", cfg.Database), zap.String("collection", cfg.Collection))
	return &Mongo{Client: client, cfg: cfg}, nil
}

// Profiles returns the collection holding profile documents.
func (m *Mongo) Profiles() *mongo.Collection {
	return m.Client.Database(m.cfg.Database).Collection(m.cfg.Collection)
}

// Ping verifies connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return errors.New("mongo client not configured")
	}
	return m.Client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) {
	if m != nil && m.Client != nil {
		_ = m.Client.Disconnect(ctx)
	}
}
