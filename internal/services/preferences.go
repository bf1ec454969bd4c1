package services

import (
	"context"
	"errors"
	"time"

	"handylink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidQuietHours = errors.New("quiet hours require valid start and end times in HH:MM format")

type preferenceStore interface {
	GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error)
	Update(ctx context.Context, userID primitive.ObjectID, upd models.PreferenceUpdate) (*models.NotificationPreference, error)
}

// PreferenceService exposes per-user notification preferences.
type PreferenceService struct {
	store preferenceStore
}

func NewPreferenceService(store preferenceStore) *PreferenceService {
	return &PreferenceService{store: store}
}

func (s *PreferenceService) Get(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error) {
	return s.store.GetOrCreate(ctx, userID)
}

// Update validates the partial update and applies it. The quiet-hours window
// in effect after the update must have parseable bounds if quiet hours end
// up enabled.
func (s *PreferenceService) Update(ctx context.Context, userID primitive.ObjectID, upd models.PreferenceUpdate) (*models.NotificationPreference, error) {
	if upd.QuietStart != nil {
		if _, err := parseClock(*upd.QuietStart); err != nil {
			return nil, ErrInvalidQuietHours
		}
	}
	if upd.QuietEnd != nil {
		if _, err := parseClock(*upd.QuietEnd); err != nil {
			return nil, ErrInvalidQuietHours
		}
	}

	if upd.QuietHoursEnabled != nil && *upd.QuietHoursEnabled {
		current, err := s.store.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}
		start := current.QuietStart
		if upd.QuietStart != nil {
			start = *upd.QuietStart
		}
		end := current.QuietEnd
		if upd.QuietEnd != nil {
			end = *upd.QuietEnd
		}
		if _, err := parseClock(start); err != nil {
			return nil, ErrInvalidQuietHours
		}
		if _, err := parseClock(end); err != nil {
			return nil, ErrInvalidQuietHours
		}
	}

	return s.store.Update(ctx, userID, upd)
}

// IsTypeEnabled maps a notification type to its category toggle. Types
// outside the mapping are always delivered.
func IsTypeEnabled(notificationType string, prefs *models.NotificationPreference) bool {
	switch notificationType {
	case models.NotificationTypeJobPosted,
		models.NotificationTypeJobApplication,
		models.NotificationTypeJobAssigned,
		models.NotificationTypeJobCompleted,
		models.NotificationTypeJobCancelled,
		models.NotificationTypeJobDeadline:
		return prefs.JobNotifications
	case models.NotificationTypePaymentReceived,
		models.NotificationTypePaymentFailed,
		models.NotificationTypeRefundIssued,
		models.NotificationTypePaymentReminder:
		return prefs.PaymentNotifications
	case models.NotificationTypeReviewReceived,
		models.NotificationTypeReviewResponse,
		models.NotificationTypeReviewReminder:
		return prefs.ReviewNotifications
	case models.NotificationTypeProviderApproved,
		models.NotificationTypeProviderRejected,
		models.NotificationTypeNewJobMatch,
		models.NotificationTypeApplicationResponse:
		return prefs.ProviderNotifications
	default:
		return true
	}
}

// IsQuietHours reports whether now falls inside the user's quiet-hours
// window. Both boundaries are inclusive. A start at or after the end means
// the window wraps past midnight.
func IsQuietHours(prefs *models.NotificationPreference, now time.Time) bool {
	if !prefs.QuietHoursEnabled {
		return false
	}

	start, err := parseClock(prefs.QuietStart)
	if err != nil {
		return false
	}
	end, err := parseClock(prefs.QuietEnd)
	if err != nil {
		return false
	}

	current := now.Hour()*60 + now.Minute()
	if start < end {
		return start <= current && current <= end
	}
	return current >= start || current <= end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
