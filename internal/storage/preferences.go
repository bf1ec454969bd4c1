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

// PreferenceStore holds one preference document per user.
type PreferenceStore struct {
	coll *mongo.Collection
}

func NewPreferenceStore(coll *mongo.Collection) *PreferenceStore {
	return &PreferenceStore{coll: coll}
}

// GetOrCreate materializes the user's preferences with defaults on first
// access. The upsert with $setOnInsert is atomic, so concurrent first access
// for the same user yields exactly one document.
func (s *PreferenceStore) GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error) {
	defaults := models.DefaultPreferences(userID)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var prefs models.NotificationPreference
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": defaults},
		opts,
	).Decode(&prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences for %s: %w", userID.Hex(), err)
	}
	return &prefs, nil
}

// Update applies the non-nil fields of the partial update and returns the
// resulting document. The document is created with defaults first if absent.
func (s *PreferenceStore) Update(ctx context.Context, userID primitive.ObjectID, upd models.PreferenceUpdate) (*models.NotificationPreference, error) {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	set := bson.M{}
	setBool := func(key string, v *bool) {
		if v != nil {
			set[key] = *v
		}
	}
	setBool("email_enabled", upd.EmailEnabled)
	setBool("push_enabled", upd.PushEnabled)
	setBool("job_notifications", upd.JobNotifications)
	setBool("payment_notifications", upd.PaymentNotifications)
	setBool("review_notifications", upd.ReviewNotifications)
	setBool("provider_notifications", upd.ProviderNotifications)
	setBool("marketing_notifications", upd.MarketingNotifications)
	setBool("instant_notifications", upd.InstantNotifications)
	setBool("daily_digest", upd.DailyDigest)
	setBool("weekly_summary", upd.WeeklySummary)
	setBool("quiet_hours_enabled", upd.QuietHoursEnabled)
	if upd.QuietStart != nil {
		set["quiet_start"] = *upd.QuietStart
	}
	if upd.QuietEnd != nil {
		set["quiet_end"] = *upd.QuietEnd
	}
	set["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var prefs models.NotificationPreference
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": set},
		opts,
	).Decode(&prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences for %s: %w", userID.Hex(), err)
	}
	return &prefs, nil
}
