package services

import (
	"context"
	"time"

	"handylink/internal/models"
	"handylink/internal/storage"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type notificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	MarkSentVia(ctx context.Context, id primitive.ObjectID, channel string) error
	MarkRead(ctx context.Context, recipientID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
	FindByID(ctx context.Context, recipientID, id primitive.ObjectID) (*models.Notification, error)
	List(ctx context.Context, recipientID primitive.ObjectID, f storage.NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error)
	Stats(ctx context.Context, recipientID primitive.ObjectID) (*models.NotificationStats, error)
}

type actorDirectory interface {
	GetActor(ctx context.Context, id primitive.ObjectID) (*models.Actor, error)
}

// Broadcaster pushes a real-time payload to a connected user, if any.
type Broadcaster interface {
	NotifyUser(userID primitive.ObjectID, payload interface{})
}

// DispatchInput describes one notification to create and deliver.
type DispatchInput struct {
	RecipientID primitive.ObjectID
	Type        string
	Context     map[string]interface{}
	Related     models.RelatedRefs
	Priority    string
	ActionURL   string
}

// Dispatcher is the notification pipeline: resolve template, render,
// persist, gate on preferences, deliver over channels. The persisted record
// is the source of truth; channel delivery is best effort.
type Dispatcher struct {
	templates *TemplateService
	prefs     *PreferenceService
	store     notificationStore
	actors    actorDirectory
	senders   []ChannelSender
	queue     *DeliveryQueue
	feed      Broadcaster
	log       *logrus.Logger

	// now is swappable so quiet-hours behavior is testable.
	now func() time.Time
}

func NewDispatcher(templates *TemplateService, prefs *PreferenceService, store notificationStore, actors actorDirectory, senders []ChannelSender, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		templates: templates,
		prefs:     prefs,
		store:     store,
		actors:    actors,
		senders:   senders,
		log:       log,
		now:       time.Now,
	}
}

// UseQueue routes channel delivery through the worker pool instead of
// running it inline.
func (d *Dispatcher) UseQueue(q *DeliveryQueue) { d.queue = q }

// UseFeed broadcasts newly created notifications to connected clients.
func (d *Dispatcher) UseFeed(f Broadcaster) { d.feed = f }

// Dispatch creates a notification and attempts delivery. A persistence
// failure is the only fatal error; everything downstream degrades to a
// persisted-but-unsent record.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (*models.Notification, error) {
	recipient, err := d.actors.GetActor(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}

	tmpl, err := d.templates.Resolve(ctx, in.Type)
	if err != nil {
		return nil, err
	}

	data := in.Context
	if data == nil {
		data = map[string]interface{}{}
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	n := &models.Notification{
		RecipientID: recipient.ID,
		Type:        in.Type,
		Title:       RenderTemplate(tmpl.TitleTemplate, data),
		Message:     RenderTemplate(tmpl.MessageTemplate, data),
		Priority:    priority,
		Related:     in.Related,
		Data:        data,
		ActionURL:   in.ActionURL,
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return nil, err
	}

	if d.feed != nil {
		d.feed.NotifyUser(recipient.ID, n)
	}

	prefs, err := d.prefs.Get(ctx, recipient.ID)
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"recipient": recipient.ID.Hex(),
			"type":      in.Type,
			"error":     err,
		}).Error("Failed to load preferences, skipping delivery")
		return n, nil
	}

	if !IsTypeEnabled(in.Type, prefs) {
		d.log.WithFields(logrus.Fields{
			"recipient": recipient.ID.Hex(),
			"type":      in.Type,
		}).Debug("Notification category disabled, record kept unsent")
		return n, nil
	}

	if IsQuietHours(prefs, d.now()) {
		d.log.WithFields(logrus.Fields{
			"recipient": recipient.ID.Hex(),
			"type":      in.Type,
		}).Debug("Quiet hours active, delivery skipped")
		return n, nil
	}

	task := DeliveryTask{
		Recipient:    recipient,
		Notification: n,
		Template:     tmpl,
		Preferences:  prefs,
	}
	if d.queue != nil {
		d.queue.Enqueue(task)
	} else {
		d.Deliver(task)
	}
	return n, nil
}

// Deliver runs the channel senders for one task. A channel failure never
// aborts the others; sent flags are only set on success.
func (d *Dispatcher) Deliver(task DeliveryTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, sender := range d.senders {
		if !sender.Enabled(task.Preferences, task.Template) {
			continue
		}

		if err := sender.Send(ctx, task.Recipient, task.Notification, task.Template); err != nil {
			d.log.WithFields(logrus.Fields{
				"recipient": task.Recipient.ID.Hex(),
				"type":      task.Notification.Type,
				"channel":   sender.Name(),
				"error":     err,
			}).Error("Channel delivery failed")
			continue
		}

		if err := d.store.MarkSentVia(ctx, task.Notification.ID, sender.Name()); err != nil {
			d.log.WithFields(logrus.Fields{
				"notification": task.Notification.ID.Hex(),
				"channel":      sender.Name(),
				"error":        err,
			}).Error("Failed to record delivery")
		}

		task.Notification.IsSent = true
		switch sender.Name() {
		case ChannelEmail:
			task.Notification.SentViaEmail = true
		case ChannelPush:
			task.Notification.SentViaPush = true
		}
	}
}

// List returns a page of the recipient's notifications plus the total count.
func (d *Dispatcher) List(ctx context.Context, recipientID primitive.ObjectID, f storage.NotificationFilter) ([]models.Notification, int64, error) {
	return d.store.List(ctx, recipientID, f)
}

// Get returns one notification and marks it read as a side effect.
func (d *Dispatcher) Get(ctx context.Context, recipientID, id primitive.ObjectID) (*models.Notification, error) {
	n, err := d.store.FindByID(ctx, recipientID, id)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		if _, err := d.store.MarkRead(ctx, recipientID, []primitive.ObjectID{id}); err != nil {
			return nil, err
		}
		now := d.now()
		n.IsRead = true
		n.ReadAt = &now
	}
	return n, nil
}

// MarkRead marks the given notifications read; empty ids means all unread.
func (d *Dispatcher) MarkRead(ctx context.Context, recipientID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	return d.store.MarkRead(ctx, recipientID, ids)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	return d.store.CountUnread(ctx, recipientID)
}

func (d *Dispatcher) Stats(ctx context.Context, recipientID primitive.ObjectID) (*models.NotificationStats, error) {
	return d.store.Stats(ctx, recipientID)
}
