package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"handylink/internal/models"
	"handylink/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProviderHandler struct {
	providerCollection *mongo.Collection
	events             *services.EventService
}

type CreateProviderRequest struct {
	BusinessName string `json:"business_name" binding:"required,min=2,max=100"`
	ProviderType string `json:"provider_type" binding:"required,oneof=individual company freelancer"`
	Description  string `json:"description,omitempty"`
	Website      string `json:"website,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
}

type UpdateProviderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected suspended"`
}

func NewProviderHandler(providerCollection *mongo.Collection, events *services.EventService) *ProviderHandler {
	return &ProviderHandler{
		providerCollection: providerCollection,
		events:             events,
	}
}

// Create registers a provider profile for the current user. Profiles start
// pending and need admin approval before they can bid on jobs.
func (h *ProviderHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := h.providerCollection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Provider profile already exists",
		})
		return
	}

	now := time.Now()
	provider := models.Provider{
		UserID:       userID,
		BusinessName: req.BusinessName,
		ProviderType: req.ProviderType,
		Description:  req.Description,
		Website:      req.Website,
		Phone:        req.Phone,
		Address:      req.Address,
		Status:       models.ProviderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := h.providerCollection.InsertOne(ctx, provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating provider profile",
		})
		return
	}

	provider.ID = result.InsertedID.(primitive.ObjectID)
	c.JSON(http.StatusCreated, provider)
}

func (h *ProviderHandler) Get(c *gin.Context) {
	providerID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var provider models.Provider
	err := h.providerCollection.FindOne(ctx, bson.M{"_id": providerID}).Decode(&provider)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Provider not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	c.JSON(http.StatusOK, provider)
}

// List returns approved providers, best rated first.
func (h *ProviderHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := bson.M{"status": models.ProviderStatusApproved}
	if providerType := c.Query("type"); providerType != "" {
		filter["provider_type"] = providerType
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := h.providerCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64((page - 1) * limit)).
		SetSort(bson.D{{Key: "rating", Value: -1}})

	cursor, err := h.providerCollection.Find(ctx, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	defer cursor.Close(ctx)

	providers := []models.Provider{}
	if err := cursor.All(ctx, &providers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding providers",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// UpdateStatus is the admin moderation endpoint. Approval and rejection
// notify the profile owner.
func (h *ProviderHandler) UpdateStatus(c *gin.Context) {
	providerID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req UpdateProviderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var provider models.Provider
	err := h.providerCollection.FindOne(ctx, bson.M{"_id": providerID}).Decode(&provider)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Provider not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	previousStatus := provider.Status

	update := bson.M{
		"status":     req.Status,
		"updated_at": time.Now(),
	}
	if req.Status == models.ProviderStatusApproved {
		update["is_verified"] = true
	}

	_, err = h.providerCollection.UpdateOne(ctx,
		bson.M{"_id": providerID},
		bson.M{"$set": update},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating provider status",
		})
		return
	}

	provider.Status = req.Status
	h.events.ProviderStatusChanged(ctx, previousStatus, &provider)

	c.JSON(http.StatusOK, gin.H{
		"message": "Provider status updated",
		"status":  req.Status,
	})
}
