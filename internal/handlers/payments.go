package handlers

import (
	"context"
	"net/http"
	"time"

	"handylink/internal/models"
	"handylink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// platformFeeRate is the platform's cut of every payment.
const platformFeeRate = 0.10

type PaymentHandler struct {
	paymentCollection  *mongo.Collection
	jobCollection      *mongo.Collection
	providerCollection *mongo.Collection
	events             *services.EventService
}

type CreatePaymentRequest struct {
	JobID         string  `json:"job_id" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" binding:"required,oneof=card paypal bank_transfer mobile_money"`
	Description   string  `json:"description,omitempty"`
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending processing completed failed refunded cancelled"`
}

func NewPaymentHandler(paymentCollection, jobCollection, providerCollection *mongo.Collection, events *services.EventService) *PaymentHandler {
	return &PaymentHandler{
		paymentCollection:  paymentCollection,
		jobCollection:      jobCollection,
		providerCollection: providerCollection,
		events:             events,
	}
}

// Create starts a payment from the job owner to the assigned provider.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	jobID, err := primitive.ObjectIDFromHex(req.JobID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid job_id",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var job models.Job
	if err := h.jobCollection.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if job.PostedBy != userID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Only the job owner can pay for it",
		})
		return
	}
	if job.AssignedTo == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job has no assigned provider",
		})
		return
	}

	var provider models.Provider
	if err := h.providerCollection.FindOne(ctx, bson.M{"user_id": *job.AssignedTo}).Decode(&provider); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	fee := req.Amount * platformFeeRate
	payment := models.Payment{
		JobID:          jobID,
		PayerID:        userID,
		ProviderID:     provider.ID,
		Amount:         req.Amount,
		PlatformFee:    fee,
		ProviderAmount: req.Amount - fee,
		PaymentMethod:  req.PaymentMethod,
		Status:         models.PaymentStatusPending,
		TransactionID:  uuid.NewString(),
		Description:    req.Description,
		CreatedAt:      time.Now(),
	}

	result, err := h.paymentCollection.InsertOne(ctx, payment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating payment",
		})
		return
	}

	payment.ID = result.InsertedID.(primitive.ObjectID)
	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	paymentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var payment models.Payment
	err := h.paymentCollection.FindOne(ctx, bson.M{"_id": paymentID}).Decode(&payment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Payment not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	// Visible to the payer and to the provider's owner only.
	if payment.PayerID != userID {
		var provider models.Provider
		err := h.providerCollection.FindOne(ctx, bson.M{
			"_id":     payment.ProviderID,
			"user_id": userID,
		}).Decode(&provider)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access denied",
			})
			return
		}
	}

	c.JSON(http.StatusOK, payment)
}

// List returns the current user's payments, as payer or as provider.
func (h *PaymentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"payer_id": userID}

	var provider models.Provider
	if err := h.providerCollection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&provider); err == nil {
		filter = bson.M{"$or": []bson.M{
			{"payer_id": userID},
			{"provider_id": provider.ID},
		}}
	}

	cursor, err := h.paymentCollection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding payments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
	})
}

// UpdateStatus is the processor callback surface, admin only. Completion
// notifies both sides; failure notifies the payer.
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	paymentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var payment models.Payment
	if err := h.paymentCollection.FindOne(ctx, bson.M{"_id": paymentID}).Decode(&payment); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Payment not found",
		})
		return
	}

	previousStatus := payment.Status
	now := time.Now()

	update := bson.M{
		"status":       req.Status,
		"processed_at": now,
	}
	if req.Status == models.PaymentStatusCompleted {
		update["completed_at"] = now
	}

	_, err := h.paymentCollection.UpdateOne(ctx,
		bson.M{"_id": paymentID},
		bson.M{"$set": update},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating payment status",
		})
		return
	}

	var job models.Job
	if err := h.jobCollection.FindOne(ctx, bson.M{"_id": payment.JobID}).Decode(&job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	var provider models.Provider
	if err := h.providerCollection.FindOne(ctx, bson.M{"_id": payment.ProviderID}).Decode(&provider); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	payment.Status = req.Status
	h.events.PaymentStatusChanged(ctx, previousStatus, &payment, &job, &provider)

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment status updated",
		"status":  req.Status,
	})
}
