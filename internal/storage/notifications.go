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
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationFilter narrows List results. Nil/empty fields are ignored.
type NotificationFilter struct {
	IsRead   *bool
	Type     string
	Priority string
	Page     int
	Limit    int
}

// NotificationStore is the durable log of dispatched notifications.
type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(coll *mongo.Collection) *NotificationStore {
	return &NotificationStore{coll: coll}
}

func (s *NotificationStore) Insert(ctx context.Context, n *models.Notification) error {
	n.CreatedAt = time.Now()
	result, err := s.coll.InsertOne(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	n.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// MarkSentVia records a successful delivery on one channel and flips the
// overall sent flag. Both transitions are monotonic; sent_at is stamped only
// by the first channel success.
func (s *NotificationStore) MarkSentVia(ctx context.Context, id primitive.ObjectID, channel string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"sent_via_" + channel: true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s sent via %s: %w", id.Hex(), channel, err)
	}

	now := time.Now()
	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "is_sent": false},
		bson.M{"$set": bson.M{"is_sent": true, "sent_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s sent: %w", id.Hex(), err)
	}
	return nil
}

// MarkRead marks the given notifications read for the recipient; an empty id
// list means all unread. The guard on is_read makes repeated calls update
// zero documents and keeps the original read_at stamp.
func (s *NotificationStore) MarkRead(ctx context.Context, recipientID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"recipient_id": recipientID,
		"is_read":      false,
	}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}

	result, err := s.coll.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{
			"is_read": true,
			"read_at": time.Now(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return result.ModifiedCount, nil
}

// FindByID returns the notification if it belongs to the recipient.
func (s *NotificationStore) FindByID(ctx context.Context, recipientID, id primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	err := s.coll.FindOne(ctx, bson.M{
		"_id":          id,
		"recipient_id": recipientID,
	}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification %s: %w", id.Hex(), err)
	}
	return &n, nil
}

// List returns a page of the recipient's notifications, newest first, plus
// the total count for the filter.
func (s *NotificationStore) List(ctx context.Context, recipientID primitive.ObjectID, f NotificationFilter) ([]models.Notification, int64, error) {
	filter := bson.M{"recipient_id": recipientID}
	if f.IsRead != nil {
		filter["is_read"] = *f.IsRead
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64((page - 1) * limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{
		"recipient_id": recipientID,
		"is_read":      false,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Stats aggregates the recipient's notification counts by type and priority.
func (s *NotificationStore) Stats(ctx context.Context, recipientID primitive.ObjectID) (*models.NotificationStats, error) {
	stats := &models.NotificationStats{
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	var err error
	if stats.TotalCount, err = s.coll.CountDocuments(ctx, bson.M{"recipient_id": recipientID}); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if stats.UnreadCount, err = s.CountUnread(ctx, recipientID); err != nil {
		return nil, err
	}

	if stats.ByType, err = s.countBy(ctx, recipientID, "$type"); err != nil {
		return nil, err
	}
	if stats.ByPriority, err = s.countBy(ctx, recipientID, "$priority"); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *NotificationStore) countBy(ctx context.Context, recipientID primitive.ObjectID, field string) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"recipient_id": recipientID}},
		{"$group": bson.M{
			"_id":   field,
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		counts[row.ID] = row.Count
	}
	return counts, nil
}
