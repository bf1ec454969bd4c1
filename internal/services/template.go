package services

import (
	"context"
	"fmt"
	"regexp"

	"handylink/internal/models"

	"github.com/sirupsen/logrus"
)

// placeholderPattern matches {name} tokens in template text.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// defaultTemplates is the read-only seed catalog. Types missing from it get
// the generic fallback, so resolution always produces a template.
var defaultTemplates = map[string]models.NotificationTemplate{
	models.NotificationTypeUserWelcome: {
		TitleTemplate:        "Welcome to HandyLink!",
		MessageTemplate:      "Welcome {user_name}! Your account has been created successfully.",
		EmailSubjectTemplate: "Welcome to HandyLink - Get Started Today!",
		EmailBodyTemplate:    "Hi {user_name},\n\nWelcome to HandyLink! We're excited to have you on board.\n\nBest regards,\nThe HandyLink Team",
	},
	models.NotificationTypeJobApplication: {
		TitleTemplate:        "New Job Application",
		MessageTemplate:      "You received a new application for \"{job_title}\" from {provider_name}.",
		EmailSubjectTemplate: "New Application for Your Job: {job_title}",
		EmailBodyTemplate:    "Hi {user_name},\n\nYou have received a new application for your job \"{job_title}\" from {provider_name}.\n\nView the application: {action_url}\n\nBest regards,\nThe HandyLink Team",
	},
	models.NotificationTypeApplicationResponse: {
		TitleTemplate:        "Application Response",
		MessageTemplate:      "Your application for \"{job_title}\" has been {status}.",
		EmailSubjectTemplate: "Application Update for {job_title}",
		EmailBodyTemplate:    "Hi {user_name},\n\nYour application for \"{job_title}\" has been {status}.\n\nView details: {action_url}\n\nBest regards,\nThe HandyLink Team",
	},
	models.NotificationTypePaymentReceived: {
		TitleTemplate:        "Payment Received",
		MessageTemplate:      "You have received a payment of ${amount} for \"{job_title}\".",
		EmailSubjectTemplate: "Payment Received - ${amount}",
		EmailBodyTemplate:    "Hi {user_name},\n\nYou have received a payment of ${amount} for the job \"{job_title}\".\n\nView details: {action_url}\n\nBest regards,\nThe HandyLink Team",
	},
	models.NotificationTypeReviewReceived: {
		TitleTemplate:        "New Review",
		MessageTemplate:      "You received a new {rating}-star review for \"{job_title}\".",
		EmailSubjectTemplate: "New Review Received",
		EmailBodyTemplate:    "Hi {user_name},\n\nYou have received a new {rating}-star review for your work on \"{job_title}\".\n\nView review: {action_url}\n\nBest regards,\nThe HandyLink Team",
	},
}

var genericTemplate = models.NotificationTemplate{
	TitleTemplate:        "HandyLink Notification",
	MessageTemplate:      "You have a new notification.",
	EmailSubjectTemplate: "HandyLink Notification",
	EmailBodyTemplate:    "You have a new notification from HandyLink.",
}

// DefaultTemplate returns the seed template for a type, falling back to the
// generic one for unknown types. Both channels are enabled on seeds.
func DefaultTemplate(notificationType string) *models.NotificationTemplate {
	tmpl, ok := defaultTemplates[notificationType]
	if !ok {
		tmpl = genericTemplate
	}
	tmpl.Type = notificationType
	tmpl.SendEmail = true
	tmpl.SendPush = true
	tmpl.IsActive = true
	return &tmpl
}

type templateStore interface {
	FindActive(ctx context.Context, notificationType string) (*models.NotificationTemplate, error)
	Insert(ctx context.Context, tmpl *models.NotificationTemplate) error
}

// TemplateService resolves per-type templates, seeding defaults lazily.
type TemplateService struct {
	store templateStore
	log   *logrus.Logger
}

func NewTemplateService(store templateStore, log *logrus.Logger) *TemplateService {
	return &TemplateService{store: store, log: log}
}

// Resolve returns the active template for a type. When none is stored, the
// default is seeded and returned; resolution is total over the type catalog.
func (s *TemplateService) Resolve(ctx context.Context, notificationType string) (*models.NotificationTemplate, error) {
	tmpl, err := s.store.FindActive(ctx, notificationType)
	if err != nil {
		return nil, err
	}
	if tmpl != nil {
		return tmpl, nil
	}

	seed := DefaultTemplate(notificationType)
	if err := s.store.Insert(ctx, seed); err != nil {
		// Likely a concurrent dispatch seeded the same type; the unique
		// index on type rejects the second insert.
		existing, findErr := s.store.FindActive(ctx, notificationType)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		s.log.WithFields(logrus.Fields{
			"type":  notificationType,
			"error": err,
		}).Warn("Failed to seed default template, using in-memory default")
	}
	return seed, nil
}

// RenderTemplate substitutes {name} placeholders with values from the
// context. Unknown placeholders stay verbatim; substitution is single-pass,
// so placeholder-like text inside values is never re-expanded.
func RenderTemplate(text string, data map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := token[1 : len(token)-1]
		value, ok := data[key]
		if !ok {
			return token
		}
		return fmt.Sprintf("%v", value)
	})
}
