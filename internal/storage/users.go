package storage

import (
	"context"
	"errors"
	"fmt"

	"handylink/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUserNotFound = errors.New("user not found")

// UserStore is the actor directory the notification core resolves
// recipients through.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(coll *mongo.Collection) *UserStore {
	return &UserStore{coll: coll}
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

// GetActor returns the notification-facing view of a user.
func (s *UserStore) GetActor(ctx context.Context, id primitive.ObjectID) (*models.Actor, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Actor(), nil
}
