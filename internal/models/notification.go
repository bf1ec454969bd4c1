package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types form a closed catalog; each one maps to a preference
// category in the dispatch path.
const (
	// User-related
	NotificationTypeUserWelcome      = "user_welcome"
	NotificationTypeUserVerification = "user_verification"
	NotificationTypeUserSecurity     = "user_security"

	// Provider-related
	NotificationTypeProviderApproved    = "provider_approved"
	NotificationTypeProviderRejected    = "provider_rejected"
	NotificationTypeNewJobMatch         = "new_job_match"
	NotificationTypeApplicationResponse = "application_response"

	// Job-related
	NotificationTypeJobPosted      = "job_posted"
	NotificationTypeJobApplication = "job_application"
	NotificationTypeJobAssigned    = "job_assigned"
	NotificationTypeJobCompleted   = "job_completed"
	NotificationTypeJobCancelled   = "job_cancelled"
	NotificationTypeJobDeadline    = "job_deadline"

	// Review-related
	NotificationTypeReviewReceived = "review_received"
	NotificationTypeReviewResponse = "review_response"
	NotificationTypeReviewReminder = "review_reminder"

	// Payment-related
	NotificationTypePaymentReceived = "payment_received"
	NotificationTypePaymentFailed   = "payment_failed"
	NotificationTypeRefundIssued    = "refund_issued"
	NotificationTypePaymentReminder = "payment_reminder"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// RelatedRefs are weak references to the entities a notification originated
// from. They are used for UI linking and filtering only.
type RelatedRefs struct {
	Job      *primitive.ObjectID `bson:"job_id,omitempty" json:"job_id,omitempty"`
	Provider *primitive.ObjectID `bson:"provider_id,omitempty" json:"provider_id,omitempty"`
	Review   *primitive.ObjectID `bson:"review_id,omitempty" json:"review_id,omitempty"`
	Payment  *primitive.ObjectID `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
}

// Notification is one dispatch attempt. Content is immutable after creation;
// only the read/sent flags ever change, and only from false to true.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RecipientID primitive.ObjectID `bson:"recipient_id" json:"recipient_id"`
	Type        string             `bson:"type" json:"type"`
	Title       string             `bson:"title" json:"title"`
	Message     string             `bson:"message" json:"message"`
	Priority    string             `bson:"priority" json:"priority"`

	Related RelatedRefs `bson:",inline" json:"related"`

	// Data is the context the templates were rendered with, retained for
	// replay and audit.
	Data      map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	ActionURL string                 `bson:"action_url,omitempty" json:"action_url,omitempty"`

	IsRead       bool `bson:"is_read" json:"is_read"`
	IsSent       bool `bson:"is_sent" json:"is_sent"`
	SentViaEmail bool `bson:"sent_via_email" json:"sent_via_email"`
	SentViaPush  bool `bson:"sent_via_push" json:"sent_via_push"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	ReadAt    *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
	SentAt    *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
}

type NotificationStats struct {
	TotalCount  int64            `json:"total_count"`
	UnreadCount int64            `json:"unread_count"`
	ByType      map[string]int64 `json:"by_type"`
	ByPriority  map[string]int64 `json:"by_priority"`
}

// NotificationTemplate holds the per-type text. At most one active template
// exists per type; the dispatcher seeds a default when none does.
type NotificationTemplate struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Type            string             `bson:"type" json:"type"`
	TitleTemplate   string             `bson:"title_template" json:"title_template"`
	MessageTemplate string             `bson:"message_template" json:"message_template"`

	EmailSubjectTemplate string `bson:"email_subject_template,omitempty" json:"email_subject_template,omitempty"`
	EmailBodyTemplate    string `bson:"email_body_template,omitempty" json:"email_body_template,omitempty"`

	SendEmail bool `bson:"send_email" json:"send_email"`
	SendPush  bool `bson:"send_push" json:"send_push"`
	IsActive  bool `bson:"is_active" json:"is_active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NotificationPreference is one per user, lazily created with defaults on
// first access.
type NotificationPreference struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	// Channel toggles
	EmailEnabled bool `bson:"email_enabled" json:"email_enabled"`
	PushEnabled  bool `bson:"push_enabled" json:"push_enabled"`

	// Category toggles
	JobNotifications      bool `bson:"job_notifications" json:"job_notifications"`
	PaymentNotifications  bool `bson:"payment_notifications" json:"payment_notifications"`
	ReviewNotifications   bool `bson:"review_notifications" json:"review_notifications"`
	ProviderNotifications bool `bson:"provider_notifications" json:"provider_notifications"`
	MarketingNotifications bool `bson:"marketing_notifications" json:"marketing_notifications"`

	// Frequency toggles. Advisory: the dispatch path only does instant
	// delivery, digests are not implemented.
	InstantNotifications bool `bson:"instant_notifications" json:"instant_notifications"`
	DailyDigest          bool `bson:"daily_digest" json:"daily_digest"`
	WeeklySummary        bool `bson:"weekly_summary" json:"weekly_summary"`

	// Quiet hours, time-of-day in "HH:MM" 24h format.
	QuietHoursEnabled bool   `bson:"quiet_hours_enabled" json:"quiet_hours_enabled"`
	QuietStart        string `bson:"quiet_start" json:"quiet_start"`
	QuietEnd          string `bson:"quiet_end" json:"quiet_end"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DefaultPreferences are the values materialized on first access.
func DefaultPreferences(userID primitive.ObjectID) NotificationPreference {
	now := time.Now()
	return NotificationPreference{
		UserID:                userID,
		EmailEnabled:          true,
		PushEnabled:           true,
		JobNotifications:      true,
		PaymentNotifications:  true,
		ReviewNotifications:   true,
		ProviderNotifications: true,
		MarketingNotifications: false,
		InstantNotifications:  true,
		DailyDigest:           true,
		WeeklySummary:         false,
		QuietHoursEnabled:     false,
		QuietStart:            "22:00",
		QuietEnd:              "08:00",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// PreferenceUpdate is a partial update; nil fields are left untouched.
type PreferenceUpdate struct {
	EmailEnabled *bool `json:"email_enabled,omitempty"`
	PushEnabled  *bool `json:"push_enabled,omitempty"`

	JobNotifications       *bool `json:"job_notifications,omitempty"`
	PaymentNotifications   *bool `json:"payment_notifications,omitempty"`
	ReviewNotifications    *bool `json:"review_notifications,omitempty"`
	ProviderNotifications  *bool `json:"provider_notifications,omitempty"`
	MarketingNotifications *bool `json:"marketing_notifications,omitempty"`

	InstantNotifications *bool `json:"instant_notifications,omitempty"`
	DailyDigest          *bool `json:"daily_digest,omitempty"`
	WeeklySummary        *bool `json:"weekly_summary,omitempty"`

	QuietHoursEnabled *bool   `json:"quiet_hours_enabled,omitempty"`
	QuietStart        *string `json:"quiet_start,omitempty" binding:"omitempty,timeofday"`
	QuietEnd          *string `json:"quiet_end,omitempty" binding:"omitempty,timeofday"`
}

// DeviceToken is a push registration for one of a user's devices.
type DeviceToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Token     string             `bson:"token" json:"token"`
	Platform  string             `bson:"platform" json:"platform"` // android, ios, web
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
