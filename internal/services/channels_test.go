package services

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"handylink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type capturedEmail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func newTestEmailSender(t *testing.T) (*EmailSender, *capturedEmail) {
	t.Helper()
	sender, err := NewEmailSender("smtp.example.com", 587, "", "", "no-reply@handylink.app", testLogger())
	require.NoError(t, err)

	captured := &capturedEmail{}
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = msg
		return nil
	}
	return sender, captured
}

func emailRecipient() *models.Actor {
	return &models.Actor{
		ID:          primitive.NewObjectID(),
		DisplayName: "Jamie Rivera",
		Email:       "jamie@example.com",
	}
}

func TestEmailSenderUsesTypeTemplate(t *testing.T) {
	sender, captured := newTestEmailSender(t)

	n := &models.Notification{
		Type:      models.NotificationTypePaymentReceived,
		Title:     "Payment Received",
		Message:   "You received a payment of $50.00 for 'Fix sink'",
		Priority:  models.PriorityHigh,
		ActionURL: "/payments/abc/",
		Data: map[string]interface{}{
			"job_title": "Fix sink",
			"amount":    "50.00",
		},
	}
	tmpl := DefaultTemplate(models.NotificationTypePaymentReceived)

	err := sender.Send(context.Background(), emailRecipient(), n, tmpl)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", captured.addr)
	assert.Equal(t, "no-reply@handylink.app", captured.from)
	assert.Equal(t, []string{"jamie@example.com"}, captured.to)

	body := string(captured.msg)
	assert.Contains(t, body, "Subject: Payment Received")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.Contains(t, body, "$50.00")
	assert.Contains(t, body, "Fix sink")
	assert.Contains(t, body, "Jamie Rivera")
	assert.Contains(t, body, "/payments/abc/")
}

func TestEmailSenderFallsBackToGenericTemplate(t *testing.T) {
	sender, captured := newTestEmailSender(t)

	// No type-specific HTML exists for deadline reminders.
	n := &models.Notification{
		Type:    models.NotificationTypeJobDeadline,
		Title:   "Job Deadline Approaching",
		Message: "The deadline for 'Fix sink' is tomorrow",
	}
	tmpl := DefaultTemplate(models.NotificationTypeJobDeadline)

	err := sender.Send(context.Background(), emailRecipient(), n, tmpl)
	require.NoError(t, err)

	body := string(captured.msg)
	assert.Contains(t, body, "Content-Type: text/html")
	assert.Contains(t, body, "Job Deadline Approaching")
	assert.Contains(t, body, "Jamie Rivera")
	// The generic layout hides the action button when no URL is set.
	assert.NotContains(t, body, "View Details")
}

func TestEmailSenderSubjectFromTemplate(t *testing.T) {
	sender, captured := newTestEmailSender(t)

	n := &models.Notification{
		Type:    models.NotificationTypeUserWelcome,
		Title:   "Welcome to HandyLink!",
		Message: "Hi Jamie Rivera, welcome aboard!",
		Data: map[string]interface{}{
			"user_name": "Jamie Rivera",
		},
	}
	tmpl := DefaultTemplate(models.NotificationTypeUserWelcome)
	tmpl.EmailSubjectTemplate = "Hello {user_name}"

	err := sender.Send(context.Background(), emailRecipient(), n, tmpl)
	require.NoError(t, err)
	assert.Contains(t, string(captured.msg), "Subject: Hello Jamie Rivera")
}

func TestEmailSenderEnabled(t *testing.T) {
	sender, _ := newTestEmailSender(t)
	tmpl := &models.NotificationTemplate{SendEmail: true}

	assert.True(t, sender.Enabled(&models.NotificationPreference{EmailEnabled: true}, tmpl))
	assert.False(t, sender.Enabled(&models.NotificationPreference{EmailEnabled: false}, tmpl))
	assert.False(t, sender.Enabled(&models.NotificationPreference{EmailEnabled: true}, &models.NotificationTemplate{SendEmail: false}))
}

func TestEmailSenderPropagatesSendFailure(t *testing.T) {
	sender, _ := newTestEmailSender(t)
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		return assert.AnError
	}

	n := &models.Notification{Type: models.NotificationTypeUserWelcome, Title: "Welcome", Message: "hi"}
	err := sender.Send(context.Background(), emailRecipient(), n, DefaultTemplate(n.Type))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "jamie@example.com"))
}

type fakeDeviceTokens struct {
	tokens      []string
	deactivated []string
	replaced    map[string]string
}

func (f *fakeDeviceTokens) ActiveTokens(_ context.Context, _ primitive.ObjectID) ([]string, error) {
	return f.tokens, nil
}

func (f *fakeDeviceTokens) Deactivate(_ context.Context, token string) error {
	f.deactivated = append(f.deactivated, token)
	return nil
}

func (f *fakeDeviceTokens) Replace(_ context.Context, oldToken, newToken string) error {
	if f.replaced == nil {
		f.replaced = make(map[string]string)
	}
	f.replaced[oldToken] = newToken
	return nil
}

func TestPushSenderRequiresServerKey(t *testing.T) {
	sender := NewPushSender("", &fakeDeviceTokens{tokens: []string{"token-1"}}, testLogger())

	n := &models.Notification{Type: models.NotificationTypeUserWelcome}
	err := sender.Send(context.Background(), emailRecipient(), n, DefaultTemplate(n.Type))
	assert.Error(t, err)
}

func TestPushSenderRequiresActiveTokens(t *testing.T) {
	sender := NewPushSender("server-key", &fakeDeviceTokens{}, testLogger())

	n := &models.Notification{Type: models.NotificationTypeUserWelcome}
	err := sender.Send(context.Background(), emailRecipient(), n, DefaultTemplate(n.Type))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active device tokens")
}

func TestPushSenderEnabled(t *testing.T) {
	sender := NewPushSender("server-key", &fakeDeviceTokens{}, testLogger())
	tmpl := &models.NotificationTemplate{SendPush: true}

	assert.True(t, sender.Enabled(&models.NotificationPreference{PushEnabled: true}, tmpl))
	assert.False(t, sender.Enabled(&models.NotificationPreference{PushEnabled: false}, tmpl))
	assert.False(t, sender.Enabled(&models.NotificationPreference{PushEnabled: true}, &models.NotificationTemplate{SendPush: false}))
}

func TestPushSenderReconcilesDeadTokens(t *testing.T) {
	tokens := &fakeDeviceTokens{}
	sender := NewPushSender("server-key", tokens, testLogger())

	sender.reconcileTokens(fcmResponse{
		Results: []fcmResult{
			{Error: "NotRegistered"},
			{MessageID: "m1", RegistrationID: "canonical-2"},
			{MessageID: "m2"},
		},
	}, []string{"token-1", "token-2", "token-3"})

	assert.Equal(t, []string{"token-1"}, tokens.deactivated)
	assert.Equal(t, "canonical-2", tokens.replaced["token-2"])
	assert.NotContains(t, tokens.replaced, "token-3")
}

func TestFCMPriorityMapping(t *testing.T) {
	assert.Equal(t, "high", fcmPriority(models.PriorityHigh))
	assert.Equal(t, "high", fcmPriority(models.PriorityUrgent))
	assert.Equal(t, "normal", fcmPriority(models.PriorityMedium))
	assert.Equal(t, "normal", fcmPriority(models.PriorityLow))
}
