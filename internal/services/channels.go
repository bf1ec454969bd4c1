package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"handylink/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

//go:embed emails/*.html
var emailTemplateFS embed.FS

const (
	ChannelEmail = "email"
	ChannelPush  = "push"

	fcmEndpoint  = "https://fcm.googleapis.com/fcm/send"
	fcmBatchSize = 1000
)

// ChannelSender delivers a rendered notification over one channel.
type ChannelSender interface {
	Name() string
	Enabled(prefs *models.NotificationPreference, tmpl *models.NotificationTemplate) bool
	Send(ctx context.Context, recipient *models.Actor, n *models.Notification, tmpl *models.NotificationTemplate) error
}

// smtpSendFunc matches smtp.SendMail, injectable for tests.
type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers notifications over SMTP. Rich content is rendered
// through a chain of HTML templates, falling back to plain text when no
// template renders.
type EmailSender struct {
	host     string
	port     int
	username string
	password string
	from     string

	templates *template.Template
	send      smtpSendFunc
	log       *logrus.Logger
}

func NewEmailSender(host string, port int, username, password, from string, log *logrus.Logger) (*EmailSender, error) {
	templates, err := template.ParseFS(emailTemplateFS, "emails/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &EmailSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		from:      from,
		templates: templates,
		send:      smtp.SendMail,
		log:       log,
	}, nil
}

func (s *EmailSender) Name() string { return ChannelEmail }

func (s *EmailSender) Enabled(prefs *models.NotificationPreference, tmpl *models.NotificationTemplate) bool {
	return prefs.EmailEnabled && tmpl.SendEmail
}

func (s *EmailSender) Send(ctx context.Context, recipient *models.Actor, n *models.Notification, tmpl *models.NotificationTemplate) error {
	data := s.emailContext(recipient, n)

	subjectTemplate := tmpl.EmailSubjectTemplate
	if subjectTemplate == "" {
		subjectTemplate = n.Title
	}
	subject := RenderTemplate(subjectTemplate, data)

	htmlBody := s.renderHTML(n.Type, data)

	var body string
	contentType := "text/html"
	if htmlBody != "" {
		body = htmlBody
	} else {
		contentType = "text/plain"
		bodyTemplate := tmpl.EmailBodyTemplate
		if bodyTemplate == "" {
			bodyTemplate = n.Message
		}
		body = RenderTemplate(bodyTemplate, data)
	}

	msg := s.buildMessage(recipient.Email, subject, contentType, body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := s.send(addr, auth, s.from, []string{recipient.Email}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", recipient.Email, err)
	}
	return nil
}

// emailContext merges the notification payload with the standard keys email
// templates can rely on.
func (s *EmailSender) emailContext(recipient *models.Actor, n *models.Notification) map[string]interface{} {
	data := make(map[string]interface{}, len(n.Data)+6)
	for k, v := range n.Data {
		data[k] = v
	}
	data["recipient_name"] = recipient.DisplayName
	data["notification_title"] = n.Title
	data["notification_message"] = n.Message
	data["action_url"] = n.ActionURL
	data["priority"] = n.Priority
	data["notification_type"] = n.Type
	return data
}

// renderHTML tries the type-specific template, then generic, then base. Each
// attempt is independent; the first that renders wins. An empty result means
// the caller should fall back to plain text.
func (s *EmailSender) renderHTML(notificationType string, data map[string]interface{}) string {
	for _, name := range []string{notificationType + ".html", "generic.html", "base.html"} {
		t := s.templates.Lookup(name)
		if t == nil {
			continue
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			s.log.WithFields(logrus.Fields{
				"template": name,
				"error":    err,
			}).Warn("Failed to render email template")
			continue
		}
		return buf.String()
	}
	return ""
}

func (s *EmailSender) buildMessage(to, subject, contentType, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", s.from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

type deviceTokenSource interface {
	ActiveTokens(ctx context.Context, userID primitive.ObjectID) ([]string, error)
	Deactivate(ctx context.Context, token string) error
	Replace(ctx context.Context, oldToken, newToken string) error
}

type fcmMessage struct {
	RegistrationIDs []string               `json:"registration_ids,omitempty"`
	Notification    fcmNotification        `json:"notification"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Priority        string                 `json:"priority"`
	TimeToLive      int                    `json:"time_to_live,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Sound string `json:"sound,omitempty"`
}

type fcmResponse struct {
	MulticastID int64       `json:"multicast_id"`
	Success     int         `json:"success"`
	Failure     int         `json:"failure"`
	Results     []fcmResult `json:"results"`
}

type fcmResult struct {
	MessageID      string `json:"message_id,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// PushSender delivers notifications through FCM. Tokens the gateway reports
// as dead are deactivated as a side effect of sending.
type PushSender struct {
	serverKey string
	client    *resty.Client
	tokens    deviceTokenSource
	log       *logrus.Logger
}

func NewPushSender(serverKey string, tokens deviceTokenSource, log *logrus.Logger) *PushSender {
	return &PushSender{
		serverKey: serverKey,
		client:    resty.New().SetTimeout(30 * time.Second),
		tokens:    tokens,
		log:       log,
	}
}

func (s *PushSender) Name() string { return ChannelPush }

func (s *PushSender) Enabled(prefs *models.NotificationPreference, tmpl *models.NotificationTemplate) bool {
	return prefs.PushEnabled && tmpl.SendPush
}

func (s *PushSender) Send(ctx context.Context, recipient *models.Actor, n *models.Notification, tmpl *models.NotificationTemplate) error {
	if s.serverKey == "" {
		return fmt.Errorf("FCM server key is not configured")
	}

	deviceTokens, err := s.tokens.ActiveTokens(ctx, recipient.ID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(deviceTokens) == 0 {
		return fmt.Errorf("no active device tokens for user %s", recipient.ID.Hex())
	}

	delivered := 0
	for i := 0; i < len(deviceTokens); i += fcmBatchSize {
		end := i + fcmBatchSize
		if end > len(deviceTokens) {
			end = len(deviceTokens)
		}
		count, err := s.sendBatch(ctx, deviceTokens[i:end], n)
		if err != nil {
			return err
		}
		delivered += count
	}

	if delivered == 0 {
		return fmt.Errorf("push delivery failed for all %d device tokens", len(deviceTokens))
	}
	return nil
}

func (s *PushSender) sendBatch(ctx context.Context, batch []string, n *models.Notification) (int, error) {
	data := map[string]interface{}{
		"notification_id":   n.ID.Hex(),
		"notification_type": n.Type,
		"priority":          n.Priority,
	}
	if n.ActionURL != "" {
		data["action_url"] = n.ActionURL
	}

	message := fcmMessage{
		RegistrationIDs: batch,
		Notification: fcmNotification{
			Title: n.Title,
			Body:  n.Message,
			Icon:  "ic_notification",
			Sound: "default",
		},
		Data:       data,
		Priority:   fcmPriority(n.Priority),
		TimeToLive: 3600,
	}

	var fcmResp fcmResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+s.serverKey).
		SetBody(message).
		SetResult(&fcmResp).
		Post(fcmEndpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to send FCM request: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("FCM request failed with status %d", resp.StatusCode())
	}

	s.reconcileTokens(fcmResp, batch)
	return fcmResp.Success, nil
}

// reconcileTokens deactivates tokens FCM reports as dead and swaps tokens
// for their canonical replacements.
func (s *PushSender) reconcileTokens(response fcmResponse, batch []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i, result := range response.Results {
		if i >= len(batch) {
			break
		}
		token := batch[i]

		if result.Error == "NotRegistered" || result.Error == "InvalidRegistration" {
			if err := s.tokens.Deactivate(ctx, token); err != nil {
				s.log.WithField("error", err).Warn("Failed to deactivate device token")
			}
			continue
		}
		if result.RegistrationID != "" {
			if err := s.tokens.Replace(ctx, token, result.RegistrationID); err != nil {
				s.log.WithField("error", err).Warn("Failed to replace device token")
			}
		}
	}
}

func fcmPriority(priority string) string {
	if priority == models.PriorityHigh || priority == models.PriorityUrgent {
		return "high"
	}
	return "normal"
}
