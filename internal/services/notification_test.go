package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"handylink/internal/models"
	"handylink/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeNotificationStore struct {
	mu        sync.Mutex
	records   []*models.Notification
	insertErr error
}

func (s *fakeNotificationStore) Insert(_ context.Context, n *models.Notification) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now()
	s.records = append(s.records, n)
	return nil
}

func (s *fakeNotificationStore) MarkSentVia(_ context.Context, id primitive.ObjectID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.records {
		if n.ID != id {
			continue
		}
		switch channel {
		case ChannelEmail:
			n.SentViaEmail = true
		case ChannelPush:
			n.SentViaPush = true
		}
		if !n.IsSent {
			n.IsSent = true
			now := time.Now()
			n.SentAt = &now
		}
		return nil
	}
	return errors.New("not found")
}

func (s *fakeNotificationStore) MarkRead(_ context.Context, recipientID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var updated int64
	for _, n := range s.records {
		if n.RecipientID != recipientID || n.IsRead {
			continue
		}
		if len(ids) > 0 && !wanted[n.ID] {
			continue
		}
		now := time.Now()
		n.IsRead = true
		n.ReadAt = &now
		updated++
	}
	return updated, nil
}

func (s *fakeNotificationStore) FindByID(_ context.Context, recipientID, id primitive.ObjectID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.records {
		if n.ID == id && n.RecipientID == recipientID {
			return n, nil
		}
	}
	return nil, storage.ErrNotificationNotFound
}

func (s *fakeNotificationStore) List(_ context.Context, recipientID primitive.ObjectID, _ storage.NotificationFilter) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.records {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeNotificationStore) CountUnread(_ context.Context, recipientID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.records {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) Stats(_ context.Context, recipientID primitive.ObjectID) (*models.NotificationStats, error) {
	stats := &models.NotificationStats{
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.records {
		if n.RecipientID != recipientID {
			continue
		}
		stats.TotalCount++
		if !n.IsRead {
			stats.UnreadCount++
		}
		stats.ByType[n.Type]++
		stats.ByPriority[n.Priority]++
	}
	return stats, nil
}

type fakeActors struct {
	actors map[primitive.ObjectID]*models.Actor
}

func (f *fakeActors) GetActor(_ context.Context, id primitive.ObjectID) (*models.Actor, error) {
	actor, ok := f.actors[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return actor, nil
}

type fakeSender struct {
	name    string
	enabled bool
	err     error
	calls   []*models.Notification
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Enabled(_ *models.NotificationPreference, _ *models.NotificationTemplate) bool {
	return f.enabled
}

func (f *fakeSender) Send(_ context.Context, _ *models.Actor, n *models.Notification, _ *models.NotificationTemplate) error {
	f.calls = append(f.calls, n)
	return f.err
}

type fakeFeed struct {
	notified []primitive.ObjectID
}

func (f *fakeFeed) NotifyUser(userID primitive.ObjectID, _ interface{}) {
	f.notified = append(f.notified, userID)
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	store      *fakeNotificationStore
	prefStore  *fakePreferenceStore
	email      *fakeSender
	push       *fakeSender
	userID     primitive.ObjectID
}

func newDispatcherFixture() *dispatcherFixture {
	userID := primitive.NewObjectID()
	store := &fakeNotificationStore{}
	prefStore := newFakePreferenceStore()
	email := &fakeSender{name: ChannelEmail, enabled: true}
	push := &fakeSender{name: ChannelPush, enabled: true}

	actors := &fakeActors{actors: map[primitive.ObjectID]*models.Actor{
		userID: {ID: userID, DisplayName: "Jamie Rivera", Email: "jamie@example.com", IsVerified: true},
	}}

	dispatcher := NewDispatcher(
		NewTemplateService(newFakeTemplateStore(), testLogger()),
		NewPreferenceService(prefStore),
		store,
		actors,
		[]ChannelSender{email, push},
		testLogger(),
	)

	return &dispatcherFixture{
		dispatcher: dispatcher,
		store:      store,
		prefStore:  prefStore,
		email:      email,
		push:       push,
		userID:     userID,
	}
}

func paymentInput(recipientID primitive.ObjectID) DispatchInput {
	return DispatchInput{
		RecipientID: recipientID,
		Type:        models.NotificationTypePaymentReceived,
		Context: map[string]interface{}{
			"job_title": "Fix sink",
			"amount":    "50.00",
		},
		Priority:  models.PriorityHigh,
		ActionURL: "/payments/abc/",
	}
}

func TestDispatchDeliversEnabledChannels(t *testing.T) {
	f := newDispatcherFixture()
	f.push.enabled = false

	n, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, "Payment Received", n.Title)
	assert.Contains(t, n.Message, "50.00")
	assert.Contains(t, n.Message, "Fix sink")

	assert.Len(t, f.email.calls, 1)
	assert.Empty(t, f.push.calls)

	assert.True(t, n.IsSent)
	assert.True(t, n.SentViaEmail)
	assert.False(t, n.SentViaPush)
	require.Len(t, f.store.records, 1)
	assert.True(t, f.store.records[0].SentViaEmail)
}

func TestDispatchDefaultsPriorityAndData(t *testing.T) {
	f := newDispatcherFixture()

	n, err := f.dispatcher.Dispatch(context.Background(), DispatchInput{
		RecipientID: f.userID,
		Type:        models.NotificationTypeUserWelcome,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, n.Priority)
	assert.NotNil(t, n.Data)
}

func TestDispatchCategoryDisabledKeepsRecordUnsent(t *testing.T) {
	f := newDispatcherFixture()

	off := false
	_, err := NewPreferenceService(f.prefStore).Update(context.Background(), f.userID, models.PreferenceUpdate{
		PaymentNotifications: &off,
	})
	require.NoError(t, err)

	n, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	require.NoError(t, err)

	// The record survives even when no channel fires.
	assert.Len(t, f.store.records, 1)
	assert.False(t, n.IsSent)
	assert.Empty(t, f.email.calls)
	assert.Empty(t, f.push.calls)
}

func TestDispatchQuietHoursSuppressesAllChannels(t *testing.T) {
	f := newDispatcherFixture()

	prefs, err := f.prefStore.GetOrCreate(context.Background(), f.userID)
	require.NoError(t, err)
	prefs.QuietHoursEnabled = true
	prefs.QuietStart = "22:00"
	prefs.QuietEnd = "08:00"

	f.dispatcher.now = func() time.Time { return clock(23, 30) }

	n, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	require.NoError(t, err)

	assert.Len(t, f.store.records, 1)
	assert.False(t, n.IsSent)
	assert.Empty(t, f.email.calls)
	assert.Empty(t, f.push.calls)
}

func TestDispatchOutsideQuietHoursDelivers(t *testing.T) {
	f := newDispatcherFixture()

	prefs, err := f.prefStore.GetOrCreate(context.Background(), f.userID)
	require.NoError(t, err)
	prefs.QuietHoursEnabled = true
	prefs.QuietStart = "22:00"
	prefs.QuietEnd = "08:00"

	f.dispatcher.now = func() time.Time { return clock(14, 0) }

	n, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	require.NoError(t, err)
	assert.True(t, n.IsSent)
	assert.Len(t, f.email.calls, 1)
	assert.Len(t, f.push.calls, 1)
}

func TestDispatchPartialChannelFailure(t *testing.T) {
	f := newDispatcherFixture()
	f.email.err = errors.New("smtp connection refused")

	n, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	require.NoError(t, err)

	assert.True(t, n.IsSent)
	assert.False(t, n.SentViaEmail)
	assert.True(t, n.SentViaPush)
}

func TestDispatchPersistFailureIsFatal(t *testing.T) {
	f := newDispatcherFixture()
	f.store.insertErr = errors.New("write concern error")

	_, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	assert.Error(t, err)
	assert.Empty(t, f.email.calls)
}

func TestDispatchUnknownRecipient(t *testing.T) {
	f := newDispatcherFixture()

	_, err := f.dispatcher.Dispatch(context.Background(), paymentInput(primitive.NewObjectID()))
	assert.Error(t, err)
	assert.Empty(t, f.store.records)
}

func TestDispatchBroadcastsToFeed(t *testing.T) {
	f := newDispatcherFixture()
	feed := &fakeFeed{}
	f.dispatcher.UseFeed(feed)

	_, err := f.dispatcher.Dispatch(context.Background(), paymentInput(f.userID))
	require.NoError(t, err)

	require.Len(t, feed.notified, 1)
	assert.Equal(t, f.userID, feed.notified[0])
}

func TestMarkReadAllThenIdempotent(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.dispatcher.Dispatch(ctx, paymentInput(f.userID))
		require.NoError(t, err)
	}

	unread, err := f.dispatcher.UnreadCount(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), unread)

	updated, err := f.dispatcher.MarkRead(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated)

	// Marking again touches nothing.
	updated, err = f.dispatcher.MarkRead(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	unread, err = f.dispatcher.UnreadCount(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestGetMarksNotificationRead(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	created, err := f.dispatcher.Dispatch(ctx, paymentInput(f.userID))
	require.NoError(t, err)

	fetched, err := f.dispatcher.Get(ctx, f.userID, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsRead)
	require.NotNil(t, fetched.ReadAt)

	unread, err := f.dispatcher.UnreadCount(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestGetUnknownNotification(t *testing.T) {
	f := newDispatcherFixture()

	_, err := f.dispatcher.Get(context.Background(), f.userID, primitive.NewObjectID())
	assert.ErrorIs(t, err, storage.ErrNotificationNotFound)
}

func TestStatsAggregates(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, paymentInput(f.userID))
	require.NoError(t, err)
	_, err = f.dispatcher.Dispatch(ctx, DispatchInput{
		RecipientID: f.userID,
		Type:        models.NotificationTypeUserWelcome,
	})
	require.NoError(t, err)

	stats, err := f.dispatcher.Stats(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalCount)
	assert.Equal(t, int64(2), stats.UnreadCount)
	assert.Equal(t, int64(1), stats.ByType[models.NotificationTypePaymentReceived])
	assert.Equal(t, int64(1), stats.ByPriority[models.PriorityHigh])
}

func TestDeliveryQueueProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	var delivered []DeliveryTask

	queue := NewDeliveryQueue(2, 16, func(task DeliveryTask) {
		mu.Lock()
		delivered = append(delivered, task)
		mu.Unlock()
	}, testLogger())
	queue.Start()

	recipient := &models.Actor{ID: primitive.NewObjectID()}
	for i := 0; i < 3; i++ {
		ok := queue.Enqueue(DeliveryTask{
			Recipient:    recipient,
			Notification: &models.Notification{Type: models.NotificationTypeUserWelcome},
		})
		assert.True(t, ok)
	}

	queue.Shutdown()
	assert.Len(t, delivered, 3)
}

func TestDeliveryQueueDropsWhenFull(t *testing.T) {
	// Workers never started, so the second task has nowhere to go.
	queue := NewDeliveryQueue(1, 1, func(DeliveryTask) {}, testLogger())

	task := DeliveryTask{
		Recipient:    &models.Actor{ID: primitive.NewObjectID()},
		Notification: &models.Notification{Type: models.NotificationTypeUserWelcome},
	}
	assert.True(t, queue.Enqueue(task))
	assert.False(t, queue.Enqueue(task))
}
