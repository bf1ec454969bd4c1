package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"handylink/internal/models"
	"handylink/internal/services"
	"handylink/internal/storage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationHandler struct {
	dispatcher  *services.Dispatcher
	preferences *services.PreferenceService
	devices     *storage.DeviceTokenStore
}

type MarkReadRequest struct {
	// Empty means mark everything unread as read.
	IDs []string `json:"ids,omitempty"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required,oneof=android ios web"`
}

type UnregisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

func NewNotificationHandler(dispatcher *services.Dispatcher, preferences *services.PreferenceService, devices *storage.DeviceTokenStore) *NotificationHandler {
	return &NotificationHandler{
		dispatcher:  dispatcher,
		preferences: preferences,
		devices:     devices,
	}
}

// List returns the current user's notifications with optional is_read, type
// and priority filters.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	filter := storage.NotificationFilter{
		Type:     c.Query("type"),
		Priority: c.Query("priority"),
	}
	if isRead := c.Query("is_read"); isRead != "" {
		value := isRead == "true"
		filter.IsRead = &value
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notifications, total, err := h.dispatcher.List(ctx, userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching notifications",
		})
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
	})
}

// Get returns one notification and marks it read.
func (h *NotificationHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notificationID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notification, err := h.dispatcher.Get(ctx, userID, notificationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Notification not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching notification",
		})
		return
	}

	c.JSON(http.StatusOK, notification)
}

// MarkRead marks the given notifications read, or all unread when no ids
// are passed.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid notification id: " + raw,
			})
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updated, err := h.dispatcher.MarkRead(ctx, userID, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error marking notifications as read",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"updated": updated,
	})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := h.dispatcher.UnreadCount(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error counting notifications",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unread_count": count,
	})
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := h.dispatcher.Stats(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching notification stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetPreferences returns the user's preferences, created with defaults on
// first access.
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefs, err := h.preferences.Get(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching preferences",
		})
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences applies a partial preference update.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var upd models.PreferenceUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefs, err := h.preferences.Update(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, services.ErrInvalidQuietHours) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating preferences",
		})
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// RegisterDevice adds a push token for the current user.
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.devices.Register(ctx, userID, req.Token, req.Platform); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error registering device",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Device registered",
	})
}

// UnregisterDevice deactivates one of the user's push tokens.
func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UnregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	found, err := h.devices.Unregister(ctx, userID, req.Token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error unregistering device",
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Device token not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device unregistered",
	})
}
