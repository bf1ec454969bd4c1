package storage

import (
	"context"
	"fmt"
	"time"

	"handylink/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceTokenStore tracks push registrations per user.
type DeviceTokenStore struct {
	coll *mongo.Collection
}

func NewDeviceTokenStore(coll *mongo.Collection) *DeviceTokenStore {
	return &DeviceTokenStore{coll: coll}
}

// Register upserts a token for the user, reactivating it if it was
// previously deactivated.
func (s *DeviceTokenStore) Register(ctx context.Context, userID primitive.ObjectID, token, platform string) error {
	now := time.Now()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{
			"$set": bson.M{
				"user_id":    userID,
				"platform":   platform,
				"is_active":  true,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

// Unregister deactivates the token if it belongs to the user.
func (s *DeviceTokenStore) Unregister(ctx context.Context, userID primitive.ObjectID, token string) (bool, error) {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "token": token},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to unregister device token: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// ActiveTokens returns the user's active push tokens.
func (s *DeviceTokenStore) ActiveTokens(ctx context.Context, userID primitive.ObjectID) ([]string, error) {
	cursor, err := s.coll.Find(ctx, bson.M{
		"user_id":   userID,
		"is_active": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var tokens []string
	for cursor.Next(ctx) {
		var dt models.DeviceToken
		if err := cursor.Decode(&dt); err != nil {
			continue
		}
		tokens = append(tokens, dt.Token)
	}
	return tokens, nil
}

// Deactivate marks a token inactive, typically after the push gateway
// reported it as no longer registered.
func (s *DeviceTokenStore) Deactivate(ctx context.Context, token string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}},
	)
	return err
}

// Replace swaps a token for the canonical one the push gateway returned.
func (s *DeviceTokenStore) Replace(ctx context.Context, oldToken, newToken string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"token": oldToken},
		bson.M{"$set": bson.M{"token": newToken, "updated_at": time.Now()}},
	)
	return err
}
