package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"handylink/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TemplateStore reads and seeds notification templates. Uniqueness of the
// type tag is enforced by an index, which makes lazy default seeding
// idempotent under concurrent dispatches.
type TemplateStore struct {
	coll *mongo.Collection
}

func NewTemplateStore(coll *mongo.Collection) *TemplateStore {
	return &TemplateStore{coll: coll}
}

// FindActive returns the active template for the type, or nil if none exists.
func (s *TemplateStore) FindActive(ctx context.Context, notificationType string) (*models.NotificationTemplate, error) {
	var tmpl models.NotificationTemplate
	err := s.coll.FindOne(ctx, bson.M{
		"type":      notificationType,
		"is_active": true,
	}).Decode(&tmpl)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template for %s: %w", notificationType, err)
	}
	return &tmpl, nil
}

// Insert persists a template. A duplicate-key error means another dispatch
// seeded the same type first; callers should re-read in that case.
func (s *TemplateStore) Insert(ctx context.Context, tmpl *models.NotificationTemplate) error {
	now := time.Now()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("failed to insert template for %s: %w", tmpl.Type, err)
	}
	tmpl.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}
