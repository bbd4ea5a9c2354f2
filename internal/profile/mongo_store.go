package profile

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/domain"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

// DefaultCollection is the namespace profile documents live under.
const DefaultCollection = "users"

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoStore wraps the given collection.
func NewMongoStore(collection *mongo.Collection, logger *zap.Logger) *MongoStore {
	return &MongoStore{collection: collection, logger: logger}
}

// PutProfile upserts the profile. createdAt is assigned by the server on first write
// and kept on later ones.
func (s *MongoStore) PutProfile(ctx context.Context, id string, p domain.Profile) error {
	_, err := s.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, putPipeline(p), options.UpdateOne().SetUpsert(true))
	if err != nil {
		s.logger.Error("failed to put profile", zap.String("identity_id", id), zap.Error(err))
		return handleMongoError(err, "profile")
	}
	return nil
}

// putPipeline builds the upsert stage. Pipeline $set evaluates strings starting with "$"
// as expressions, so every caller supplied value goes through $literal.
func putPipeline(p domain.Profile) mongo.Pipeline {
	fields := bson.D{
		{Key: "name", Value: literal(p.Name)},
		{Key: "email", Value: literal(p.Email)},
		{Key: "department", Value: literal(p.Department)},
		{Key: "role", Value: literal(p.Role.String())},
		{Key: "createdAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", "$$NOW"}}}},
	}
	if p.PhoneNumber != "" {
		fields = append(fields, bson.E{Key: "phoneNumber", Value: literal(p.PhoneNumber)})
	}
	return mongo.Pipeline{{{Key: "$set", Value: fields}}}
}

func literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

// UpdateProfile replaces the mutable fields. An empty phone number removes the stored one.
// createdAt and email are never touched.
func (s *MongoStore) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	res, err := s.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, updateDocument(update))
	if err != nil {
		s.logger.Error("failed to update profile", zap.String("identity_id", id), zap.Error(err))
		return handleMongoError(err, "profile")
	}
	if res.MatchedCount == 0 {
		return apperrors.NewNotFound("profile", map[string]any{"id": id})
	}
	return nil
}

func updateDocument(update domain.ProfileUpdate) bson.D {
	set := bson.D{
		{Key: "name", Value: update.Name},
		{Key: "department", Value: update.Department},
		{Key: "role", Value: update.Role.String()},
	}
	if update.PhoneNumber == "" {
		return bson.D{
			{Key: "$set", Value: set},
			{Key: "$unset", Value: bson.D{{Key: "phoneNumber", Value: ""}}},
		}
	}
	set = append(set, bson.E{Key: "phoneNumber", Value: update.PhoneNumber})
	return bson.D{{Key: "$set", Value: set}}
}

// DeleteProfile removes the profile if present.
func (s *MongoStore) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		s.logger.Error("failed to delete profile", zap.String("identity_id", id), zap.Error(err))
		return handleMongoError(err, "profile")
	}
	if res.DeletedCount == 0 {
		s.logger.Debug("profile already absent", zap.String("identity_id", id))
	}
	return nil
}

func handleMongoError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NewNotFound(resource, nil)
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.NewAlreadyExists(resource+" already exists", nil)
	}
	return apperrors.NewInternal("failed to operate on "+resource, err)
}
