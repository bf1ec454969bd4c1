package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"handylink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeTemplateStore struct {
	templates map[string]*models.NotificationTemplate
	insertErr error
	inserts   int
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{templates: make(map[string]*models.NotificationTemplate)}
}

func (s *fakeTemplateStore) FindActive(_ context.Context, notificationType string) (*models.NotificationTemplate, error) {
	tmpl, ok := s.templates[notificationType]
	if !ok || !tmpl.IsActive {
		return nil, nil
	}
	return tmpl, nil
}

func (s *fakeTemplateStore) Insert(_ context.Context, tmpl *models.NotificationTemplate) error {
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	s.templates[tmpl.Type] = tmpl
	return nil
}

func TestDefaultTemplateCoversCatalog(t *testing.T) {
	catalog := []string{
		models.NotificationTypeUserWelcome,
		models.NotificationTypeUserVerification,
		models.NotificationTypeUserSecurity,
		models.NotificationTypeProviderApproved,
		models.NotificationTypeProviderRejected,
		models.NotificationTypeNewJobMatch,
		models.NotificationTypeApplicationResponse,
		models.NotificationTypeJobPosted,
		models.NotificationTypeJobApplication,
		models.NotificationTypeJobAssigned,
		models.NotificationTypeJobCompleted,
		models.NotificationTypeJobCancelled,
		models.NotificationTypeJobDeadline,
		models.NotificationTypeReviewReceived,
		models.NotificationTypeReviewResponse,
		models.NotificationTypeReviewReminder,
		models.NotificationTypePaymentReceived,
		models.NotificationTypePaymentFailed,
		models.NotificationTypeRefundIssued,
		models.NotificationTypePaymentReminder,
	}

	for _, notificationType := range catalog {
		tmpl := DefaultTemplate(notificationType)
		require.NotNil(t, tmpl, notificationType)
		assert.Equal(t, notificationType, tmpl.Type)
		assert.NotEmpty(t, tmpl.TitleTemplate, notificationType)
		assert.NotEmpty(t, tmpl.MessageTemplate, notificationType)
		assert.True(t, tmpl.SendEmail)
		assert.True(t, tmpl.SendPush)
		assert.True(t, tmpl.IsActive)
	}
}

func TestDefaultTemplateUnknownTypeGetsGeneric(t *testing.T) {
	tmpl := DefaultTemplate("something_new")
	require.NotNil(t, tmpl)
	assert.Equal(t, "something_new", tmpl.Type)
	assert.Equal(t, "HandyLink Notification", tmpl.TitleTemplate)
}

func TestRenderTemplate(t *testing.T) {
	data := map[string]interface{}{
		"user_name": "Jamie Rivera",
		"amount":    "50.00",
		"rating":    5,
	}

	assert.Equal(t, "Welcome Jamie Rivera!", RenderTemplate("Welcome {user_name}!", data))
	assert.Equal(t, "Paid $50.00", RenderTemplate("Paid ${amount}", data))
	assert.Equal(t, "5 stars", RenderTemplate("{rating} stars", data))
}

func TestRenderTemplateMissingPlaceholderStaysVerbatim(t *testing.T) {
	out := RenderTemplate("Hello {user_name}, job {job_title} updated", map[string]interface{}{
		"user_name": "Sam",
	})
	assert.Equal(t, "Hello Sam, job {job_title} updated", out)
}

func TestRenderTemplateSinglePass(t *testing.T) {
	// A value containing placeholder syntax must not be expanded again.
	out := RenderTemplate("{title}", map[string]interface{}{
		"title":  "see {secret}",
		"secret": "hidden",
	})
	assert.Equal(t, "see {secret}", out)
}

func TestTemplateServiceResolveSeedsDefault(t *testing.T) {
	store := newFakeTemplateStore()
	svc := NewTemplateService(store, testLogger())

	tmpl, err := svc.Resolve(context.Background(), models.NotificationTypePaymentReceived)
	require.NoError(t, err)
	require.NotNil(t, tmpl)
	assert.Equal(t, "Payment Received", tmpl.TitleTemplate)
	assert.Equal(t, 1, store.inserts)

	// Second resolve reads the stored template, no reseeding.
	again, err := svc.Resolve(context.Background(), models.NotificationTypePaymentReceived)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Type, again.Type)
	assert.Equal(t, 1, store.inserts)
}

func TestTemplateServiceResolvePrefersStored(t *testing.T) {
	store := newFakeTemplateStore()
	store.templates[models.NotificationTypeUserWelcome] = &models.NotificationTemplate{
		Type:            models.NotificationTypeUserWelcome,
		TitleTemplate:   "Custom welcome",
		MessageTemplate: "Hello {user_name}",
		IsActive:        true,
	}
	svc := NewTemplateService(store, testLogger())

	tmpl, err := svc.Resolve(context.Background(), models.NotificationTypeUserWelcome)
	require.NoError(t, err)
	assert.Equal(t, "Custom welcome", tmpl.TitleTemplate)
	assert.Equal(t, 0, store.inserts)
}

func TestTemplateServiceResolveSeedRace(t *testing.T) {
	// A concurrent dispatch seeds the type between the first lookup and the
	// insert; the duplicate insert fails and the stored template wins.
	race := &racingTemplateStore{
		winner: &models.NotificationTemplate{
			Type:            models.NotificationTypeJobApplication,
			TitleTemplate:   "Seeded elsewhere",
			MessageTemplate: "msg",
			IsActive:        true,
		},
	}

	tmpl, err := NewTemplateService(race, testLogger()).Resolve(context.Background(), models.NotificationTypeJobApplication)
	require.NoError(t, err)
	assert.Equal(t, "Seeded elsewhere", tmpl.TitleTemplate)
}

// racingTemplateStore misses on the first lookup, rejects the insert as a
// duplicate, then serves the concurrently seeded template.
type racingTemplateStore struct {
	winner *models.NotificationTemplate
	missed bool
}

func (s *racingTemplateStore) FindActive(_ context.Context, _ string) (*models.NotificationTemplate, error) {
	if !s.missed {
		s.missed = true
		return nil, nil
	}
	return s.winner, nil
}

func (s *racingTemplateStore) Insert(_ context.Context, _ *models.NotificationTemplate) error {
	return errors.New("duplicate key")
}
