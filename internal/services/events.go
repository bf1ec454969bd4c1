package services

import (
	"context"
	"fmt"
	"strconv"

	"handylink/internal/models"

	"github.com/sirupsen/logrus"
)

type notificationDispatcher interface {
	Dispatch(ctx context.Context, in DispatchInput) (*models.Notification, error)
}

// EventService translates domain mutations into notifications. Callers pass
// the previous value alongside the current one so status transitions are
// explicit; dispatch failures are logged, never propagated, so a broken
// notification path cannot fail the mutation that triggered it.
type EventService struct {
	dispatcher notificationDispatcher
	log        *logrus.Logger
}

func NewEventService(dispatcher notificationDispatcher, log *logrus.Logger) *EventService {
	return &EventService{dispatcher: dispatcher, log: log}
}

func (s *EventService) dispatch(ctx context.Context, in DispatchInput) {
	if _, err := s.dispatcher.Dispatch(ctx, in); err != nil {
		s.log.WithFields(logrus.Fields{
			"recipient": in.RecipientID.Hex(),
			"type":      in.Type,
			"error":     err,
		}).Error("Failed to dispatch notification")
	}
}

// UserVerified sends the welcome notification once a user confirms their
// email.
func (s *EventService) UserVerified(ctx context.Context, user *models.User) {
	s.dispatch(ctx, DispatchInput{
		RecipientID: user.ID,
		Type:        models.NotificationTypeUserWelcome,
		Context: map[string]interface{}{
			"user_name": user.DisplayName(),
		},
		Priority: models.PriorityMedium,
	})
}

// ApplicationReceived notifies the job owner about a new bid.
func (s *EventService) ApplicationReceived(ctx context.Context, app *models.JobApplication, job *models.Job, provider *models.Provider) {
	s.dispatch(ctx, DispatchInput{
		RecipientID: job.PostedBy,
		Type:        models.NotificationTypeJobApplication,
		Context: map[string]interface{}{
			"job_title":     job.Title,
			"provider_name": provider.BusinessName,
			"bid_amount":    formatAmount(app.BidAmount),
		},
		Related:   models.RelatedRefs{Job: &job.ID, Provider: &provider.ID},
		Priority:  models.PriorityMedium,
		ActionURL: fmt.Sprintf("/jobs/%s/applications/", job.ID.Hex()),
	})
}

// ApplicationStatusChanged notifies the applicant when their bid is accepted
// or rejected. Other transitions stay silent.
func (s *EventService) ApplicationStatusChanged(ctx context.Context, previousStatus string, app *models.JobApplication, job *models.Job, provider *models.Provider) {
	if app.Status == previousStatus {
		return
	}
	if app.Status != models.ApplicationStatusAccepted && app.Status != models.ApplicationStatusRejected {
		return
	}
	s.dispatch(ctx, DispatchInput{
		RecipientID: provider.UserID,
		Type:        models.NotificationTypeApplicationResponse,
		Context: map[string]interface{}{
			"job_title": job.Title,
			"status":    app.Status,
		},
		Related:   models.RelatedRefs{Job: &job.ID},
		Priority:  models.PriorityHigh,
		ActionURL: fmt.Sprintf("/jobs/%s/", job.ID.Hex()),
	})
}

// JobStatusChanged fans out on completion and cancellation. The assigned
// provider may be nil when the job never got assigned.
func (s *EventService) JobStatusChanged(ctx context.Context, previousStatus string, job *models.Job, assignedProvider *models.Provider) {
	if job.Status == previousStatus {
		return
	}

	switch job.Status {
	case models.JobStatusCompleted:
		if assignedProvider == nil {
			return
		}
		// Owner gets nudged towards leaving a review.
		s.dispatch(ctx, DispatchInput{
			RecipientID: job.PostedBy,
			Type:        models.NotificationTypeJobCompleted,
			Context: map[string]interface{}{
				"job_title":     job.Title,
				"provider_name": assignedProvider.BusinessName,
			},
			Related:   models.RelatedRefs{Job: &job.ID},
			Priority:  models.PriorityMedium,
			ActionURL: fmt.Sprintf("/jobs/%s/review/", job.ID.Hex()),
		})
		s.dispatch(ctx, DispatchInput{
			RecipientID: assignedProvider.UserID,
			Type:        models.NotificationTypeJobCompleted,
			Context: map[string]interface{}{
				"job_title": job.Title,
			},
			Related:   models.RelatedRefs{Job: &job.ID},
			Priority:  models.PriorityMedium,
			ActionURL: fmt.Sprintf("/jobs/%s/", job.ID.Hex()),
		})

	case models.JobStatusCancelled:
		if assignedProvider == nil {
			return
		}
		s.dispatch(ctx, DispatchInput{
			RecipientID: assignedProvider.UserID,
			Type:        models.NotificationTypeJobCancelled,
			Context: map[string]interface{}{
				"job_title": job.Title,
			},
			Related:   models.RelatedRefs{Job: &job.ID},
			Priority:  models.PriorityHigh,
			ActionURL: fmt.Sprintf("/jobs/%s/", job.ID.Hex()),
		})
	}
}

// ProviderStatusChanged notifies the owner of a provider profile about
// moderation decisions.
func (s *EventService) ProviderStatusChanged(ctx context.Context, previousStatus string, provider *models.Provider) {
	if provider.Status == previousStatus {
		return
	}

	var notificationType string
	switch provider.Status {
	case models.ProviderStatusApproved:
		notificationType = models.NotificationTypeProviderApproved
	case models.ProviderStatusRejected:
		notificationType = models.NotificationTypeProviderRejected
	default:
		return
	}

	s.dispatch(ctx, DispatchInput{
		RecipientID: provider.UserID,
		Type:        notificationType,
		Context: map[string]interface{}{
			"business_name": provider.BusinessName,
		},
		Related:  models.RelatedRefs{Provider: &provider.ID},
		Priority: models.PriorityHigh,
	})
}

// ReviewCreated notifies the provider about a fresh review.
func (s *EventService) ReviewCreated(ctx context.Context, review *models.Review, job *models.Job, provider *models.Provider, reviewer *models.User) {
	s.dispatch(ctx, DispatchInput{
		RecipientID: provider.UserID,
		Type:        models.NotificationTypeReviewReceived,
		Context: map[string]interface{}{
			"job_title":     job.Title,
			"rating":        review.Rating,
			"reviewer_name": reviewer.DisplayName(),
		},
		Related:   models.RelatedRefs{Review: &review.ID, Job: &job.ID},
		Priority:  models.PriorityMedium,
		ActionURL: fmt.Sprintf("/reviews/%s/", review.ID.Hex()),
	})
}

// ReviewResponseAdded notifies the reviewer when the provider responds.
func (s *EventService) ReviewResponseAdded(ctx context.Context, previousResponse string, review *models.Review, job *models.Job, provider *models.Provider) {
	if review.ProviderResponse == "" || review.ProviderResponse == previousResponse {
		return
	}
	s.dispatch(ctx, DispatchInput{
		RecipientID: review.ReviewerID,
		Type:        models.NotificationTypeReviewResponse,
		Context: map[string]interface{}{
			"job_title":     job.Title,
			"provider_name": provider.BusinessName,
		},
		Related:   models.RelatedRefs{Review: &review.ID, Job: &job.ID},
		Priority:  models.PriorityLow,
		ActionURL: fmt.Sprintf("/reviews/%s/", review.ID.Hex()),
	})
}

// PaymentStatusChanged fans out on completion and failure. Completion goes
// to both sides: the provider sees their cut, the payer sees the full amount.
func (s *EventService) PaymentStatusChanged(ctx context.Context, previousStatus string, payment *models.Payment, job *models.Job, provider *models.Provider) {
	if payment.Status == previousStatus {
		return
	}

	switch payment.Status {
	case models.PaymentStatusCompleted:
		s.dispatch(ctx, DispatchInput{
			RecipientID: provider.UserID,
			Type:        models.NotificationTypePaymentReceived,
			Context: map[string]interface{}{
				"job_title": job.Title,
				"amount":    formatAmount(payment.ProviderAmount),
			},
			Related:   models.RelatedRefs{Payment: &payment.ID, Job: &job.ID},
			Priority:  models.PriorityHigh,
			ActionURL: fmt.Sprintf("/payments/%s/", payment.ID.Hex()),
		})
		s.dispatch(ctx, DispatchInput{
			RecipientID: payment.PayerID,
			Type:        models.NotificationTypePaymentReceived,
			Context: map[string]interface{}{
				"job_title":     job.Title,
				"amount":        formatAmount(payment.Amount),
				"provider_name": provider.BusinessName,
			},
			Related:   models.RelatedRefs{Payment: &payment.ID, Job: &job.ID},
			Priority:  models.PriorityMedium,
			ActionURL: fmt.Sprintf("/payments/%s/", payment.ID.Hex()),
		})

	case models.PaymentStatusFailed:
		s.dispatch(ctx, DispatchInput{
			RecipientID: payment.PayerID,
			Type:        models.NotificationTypePaymentFailed,
			Context: map[string]interface{}{
				"job_title": job.Title,
				"amount":    formatAmount(payment.Amount),
			},
			Related:   models.RelatedRefs{Payment: &payment.ID, Job: &job.ID},
			Priority:  models.PriorityUrgent,
			ActionURL: fmt.Sprintf("/payments/%s/", payment.ID.Hex()),
		})
	}
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
