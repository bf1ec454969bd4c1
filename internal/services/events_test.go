package services

import (
	"context"
	"testing"

	"handylink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeDispatcher struct {
	inputs []DispatchInput
}

func (f *fakeDispatcher) Dispatch(_ context.Context, in DispatchInput) (*models.Notification, error) {
	f.inputs = append(f.inputs, in)
	return &models.Notification{}, nil
}

func newEventFixture() (*EventService, *fakeDispatcher) {
	dispatcher := &fakeDispatcher{}
	return NewEventService(dispatcher, testLogger()), dispatcher
}

func testJob(owner primitive.ObjectID) *models.Job {
	return &models.Job{
		ID:       primitive.NewObjectID(),
		Title:    "Fix sink",
		PostedBy: owner,
		Status:   models.JobStatusOpen,
	}
}

func testProvider() *models.Provider {
	return &models.Provider{
		ID:           primitive.NewObjectID(),
		UserID:       primitive.NewObjectID(),
		BusinessName: "Rivera Plumbing",
		Status:       models.ProviderStatusApproved,
	}
}

func TestUserVerifiedSendsWelcome(t *testing.T) {
	events, dispatcher := newEventFixture()

	user := &models.User{ID: primitive.NewObjectID(), FirstName: "Jamie", LastName: "Rivera"}
	events.UserVerified(context.Background(), user)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, user.ID, in.RecipientID)
	assert.Equal(t, models.NotificationTypeUserWelcome, in.Type)
	assert.Equal(t, "Jamie Rivera", in.Context["user_name"])
}

func TestApplicationReceivedNotifiesJobOwner(t *testing.T) {
	events, dispatcher := newEventFixture()

	owner := primitive.NewObjectID()
	job := testJob(owner)
	provider := testProvider()
	app := &models.JobApplication{
		ID:        primitive.NewObjectID(),
		JobID:     job.ID,
		BidAmount: 125.5,
		Status:    models.ApplicationStatusPending,
	}

	events.ApplicationReceived(context.Background(), app, job, provider)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, owner, in.RecipientID)
	assert.Equal(t, models.NotificationTypeJobApplication, in.Type)
	assert.Equal(t, "Rivera Plumbing", in.Context["provider_name"])
	assert.Equal(t, "125.50", in.Context["bid_amount"])
	assert.Equal(t, "/jobs/"+job.ID.Hex()+"/applications/", in.ActionURL)
	require.NotNil(t, in.Related.Job)
	assert.Equal(t, job.ID, *in.Related.Job)
}

func TestApplicationStatusChangedAccepted(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	app := &models.JobApplication{JobID: job.ID, Status: models.ApplicationStatusAccepted}

	events.ApplicationStatusChanged(context.Background(), models.ApplicationStatusPending, app, job, provider)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, provider.UserID, in.RecipientID)
	assert.Equal(t, models.NotificationTypeApplicationResponse, in.Type)
	assert.Equal(t, models.ApplicationStatusAccepted, in.Context["status"])
	assert.Equal(t, models.PriorityHigh, in.Priority)
}

func TestApplicationStatusChangedIgnoresOtherTransitions(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()

	// Same status, nothing to announce.
	app := &models.JobApplication{JobID: job.ID, Status: models.ApplicationStatusPending}
	events.ApplicationStatusChanged(context.Background(), models.ApplicationStatusPending, app, job, provider)

	// Withdrawal stays silent.
	app.Status = models.ApplicationStatusWithdrawn
	events.ApplicationStatusChanged(context.Background(), models.ApplicationStatusPending, app, job, provider)

	assert.Empty(t, dispatcher.inputs)
}

func TestJobCompletedNotifiesBothSides(t *testing.T) {
	events, dispatcher := newEventFixture()

	owner := primitive.NewObjectID()
	job := testJob(owner)
	job.Status = models.JobStatusCompleted
	provider := testProvider()

	events.JobStatusChanged(context.Background(), models.JobStatusInProgress, job, provider)

	require.Len(t, dispatcher.inputs, 2)

	ownerInput := dispatcher.inputs[0]
	assert.Equal(t, owner, ownerInput.RecipientID)
	assert.Equal(t, models.NotificationTypeJobCompleted, ownerInput.Type)
	assert.Contains(t, ownerInput.ActionURL, "/review/")
	assert.Equal(t, "Rivera Plumbing", ownerInput.Context["provider_name"])

	providerInput := dispatcher.inputs[1]
	assert.Equal(t, provider.UserID, providerInput.RecipientID)
	assert.Equal(t, models.NotificationTypeJobCompleted, providerInput.Type)
}

func TestJobCancelledNotifiesAssignee(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	job.Status = models.JobStatusCancelled
	provider := testProvider()

	events.JobStatusChanged(context.Background(), models.JobStatusInProgress, job, provider)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, provider.UserID, in.RecipientID)
	assert.Equal(t, models.NotificationTypeJobCancelled, in.Type)
	assert.Equal(t, models.PriorityHigh, in.Priority)
}

func TestJobStatusChangedWithoutProviderStaysSilent(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	job.Status = models.JobStatusCancelled

	events.JobStatusChanged(context.Background(), models.JobStatusOpen, job, nil)
	assert.Empty(t, dispatcher.inputs)
}

func TestProviderStatusChanged(t *testing.T) {
	events, dispatcher := newEventFixture()

	provider := testProvider()
	events.ProviderStatusChanged(context.Background(), models.ProviderStatusPending, provider)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, provider.UserID, in.RecipientID)
	assert.Equal(t, models.NotificationTypeProviderApproved, in.Type)
	assert.Equal(t, "Rivera Plumbing", in.Context["business_name"])

	provider.Status = models.ProviderStatusRejected
	events.ProviderStatusChanged(context.Background(), models.ProviderStatusPending, provider)
	require.Len(t, dispatcher.inputs, 2)
	assert.Equal(t, models.NotificationTypeProviderRejected, dispatcher.inputs[1].Type)

	// Suspension has no notification type.
	provider.Status = models.ProviderStatusSuspended
	events.ProviderStatusChanged(context.Background(), models.ProviderStatusApproved, provider)
	assert.Len(t, dispatcher.inputs, 2)
}

func TestReviewCreatedNotifiesProvider(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	reviewer := &models.User{ID: job.PostedBy, FirstName: "Sam", LastName: "Lee"}
	review := &models.Review{
		ID:         primitive.NewObjectID(),
		JobID:      job.ID,
		ReviewerID: reviewer.ID,
		ProviderID: provider.ID,
		Rating:     5,
	}

	events.ReviewCreated(context.Background(), review, job, provider, reviewer)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, provider.UserID, in.RecipientID)
	assert.Equal(t, models.NotificationTypeReviewReceived, in.Type)
	assert.Equal(t, 5, in.Context["rating"])
	assert.Equal(t, "Sam Lee", in.Context["reviewer_name"])
	assert.Equal(t, "/reviews/"+review.ID.Hex()+"/", in.ActionURL)
}

func TestReviewResponseAddedNotifiesReviewer(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	review := &models.Review{
		ID:               primitive.NewObjectID(),
		JobID:            job.ID,
		ReviewerID:       primitive.NewObjectID(),
		ProviderID:       provider.ID,
		ProviderResponse: "Thanks for the kind words!",
	}

	events.ReviewResponseAdded(context.Background(), "", review, job, provider)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, review.ReviewerID, in.RecipientID)
	assert.Equal(t, models.NotificationTypeReviewResponse, in.Type)
	assert.Equal(t, models.PriorityLow, in.Priority)
}

func TestReviewResponseUnchangedStaysSilent(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	review := &models.Review{ProviderResponse: "Thanks!"}

	events.ReviewResponseAdded(context.Background(), "Thanks!", review, job, provider)

	review.ProviderResponse = ""
	events.ReviewResponseAdded(context.Background(), "", review, job, provider)

	assert.Empty(t, dispatcher.inputs)
}

func TestPaymentCompletedNotifiesBothSides(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	payment := &models.Payment{
		ID:             primitive.NewObjectID(),
		JobID:          job.ID,
		PayerID:        job.PostedBy,
		ProviderID:     provider.ID,
		Amount:         100,
		ProviderAmount: 90,
		Status:         models.PaymentStatusCompleted,
	}

	events.PaymentStatusChanged(context.Background(), models.PaymentStatusPending, payment, job, provider)

	require.Len(t, dispatcher.inputs, 2)

	providerInput := dispatcher.inputs[0]
	assert.Equal(t, provider.UserID, providerInput.RecipientID)
	assert.Equal(t, models.NotificationTypePaymentReceived, providerInput.Type)
	assert.Equal(t, "90.00", providerInput.Context["amount"])
	assert.Equal(t, models.PriorityHigh, providerInput.Priority)

	payerInput := dispatcher.inputs[1]
	assert.Equal(t, payment.PayerID, payerInput.RecipientID)
	assert.Equal(t, "100.00", payerInput.Context["amount"])
	assert.Equal(t, "Rivera Plumbing", payerInput.Context["provider_name"])
	assert.Equal(t, models.PriorityMedium, payerInput.Priority)
}

func TestPaymentFailedNotifiesPayer(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	payment := &models.Payment{
		ID:      primitive.NewObjectID(),
		JobID:   job.ID,
		PayerID: job.PostedBy,
		Amount:  100,
		Status:  models.PaymentStatusFailed,
	}

	events.PaymentStatusChanged(context.Background(), models.PaymentStatusPending, payment, job, provider)

	require.Len(t, dispatcher.inputs, 1)
	in := dispatcher.inputs[0]
	assert.Equal(t, payment.PayerID, in.RecipientID)
	assert.Equal(t, models.NotificationTypePaymentFailed, in.Type)
	assert.Equal(t, models.PriorityUrgent, in.Priority)
}

func TestPaymentStatusUnchangedStaysSilent(t *testing.T) {
	events, dispatcher := newEventFixture()

	job := testJob(primitive.NewObjectID())
	provider := testProvider()
	payment := &models.Payment{Status: models.PaymentStatusCompleted}

	events.PaymentStatusChanged(context.Background(), models.PaymentStatusCompleted, payment, job, provider)
	assert.Empty(t, dispatcher.inputs)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "125.50", formatAmount(125.5))
	assert.Equal(t, "0.00", formatAmount(0))
	assert.Equal(t, "1000.00", formatAmount(1000))
}
