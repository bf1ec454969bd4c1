package handlers

import (
	"context"
	"net/http"
	"time"

	"handylink/internal/models"
	"handylink/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReviewHandler struct {
	reviewCollection   *mongo.Collection
	jobCollection      *mongo.Collection
	providerCollection *mongo.Collection
	userCollection     *mongo.Collection
	events             *services.EventService
}

type CreateReviewRequest struct {
	JobID               string `json:"job_id" binding:"required"`
	Rating              int    `json:"rating" binding:"required,min=1,max=5"`
	Title               string `json:"title,omitempty" binding:"omitempty,max=200"`
	Content             string `json:"content" binding:"required,min=10"`
	QualityRating       int    `json:"quality_rating" binding:"required,min=1,max=5"`
	TimelinessRating    int    `json:"timeliness_rating" binding:"required,min=1,max=5"`
	CommunicationRating int    `json:"communication_rating" binding:"required,min=1,max=5"`
	ValueRating         int    `json:"value_rating" binding:"required,min=1,max=5"`
	WouldRecommend      bool   `json:"would_recommend"`
}

type RespondToReviewRequest struct {
	Response string `json:"response" binding:"required,min=5"`
}

func NewReviewHandler(reviewCollection, jobCollection, providerCollection, userCollection *mongo.Collection, events *services.EventService) *ReviewHandler {
	return &ReviewHandler{
		reviewCollection:   reviewCollection,
		jobCollection:      jobCollection,
		providerCollection: providerCollection,
		userCollection:     userCollection,
		events:             events,
	}
}

// Create lets the job owner review the provider after completion. The
// provider's aggregate rating is recomputed and they get notified.
func (h *ReviewHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
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
			"error": "Only the job owner can review it",
		})
		return
	}
	if job.Status != models.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job must be completed before reviewing",
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

	now := time.Now()
	review := models.Review{
		JobID:               jobID,
		ReviewerID:          userID,
		ProviderID:          provider.ID,
		Rating:              req.Rating,
		Title:               req.Title,
		Content:             req.Content,
		QualityRating:       req.QualityRating,
		TimelinessRating:    req.TimelinessRating,
		CommunicationRating: req.CommunicationRating,
		ValueRating:         req.ValueRating,
		WouldRecommend:      req.WouldRecommend,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	result, err := h.reviewCollection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "You have already reviewed this job",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating review",
		})
		return
	}

	review.ID = result.InsertedID.(primitive.ObjectID)

	h.recalculateProviderRating(ctx, provider.ID)

	var reviewer models.User
	if err := h.userCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&reviewer); err == nil {
		h.events.ReviewCreated(ctx, &review, &job, &provider, &reviewer)
	}

	c.JSON(http.StatusCreated, review)
}

// ListForProvider returns a provider's reviews, newest first.
func (h *ReviewHandler) ListForProvider(c *gin.Context) {
	providerID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.reviewCollection.Find(ctx,
		bson.M{"provider_id": providerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding reviews",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
	})
}

// Respond records the provider's public response and notifies the reviewer.
func (h *ReviewHandler) Respond(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	reviewID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req RespondToReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var review models.Review
	if err := h.reviewCollection.FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Review not found",
		})
		return
	}

	var provider models.Provider
	err := h.providerCollection.FindOne(ctx, bson.M{
		"_id":     review.ProviderID,
		"user_id": userID,
	}).Decode(&provider)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Only the reviewed provider can respond",
		})
		return
	}

	previousResponse := review.ProviderResponse
	now := time.Now()

	_, err = h.reviewCollection.UpdateOne(ctx,
		bson.M{"_id": reviewID},
		bson.M{"$set": bson.M{
			"provider_response": req.Response,
			"response_date":     now,
			"updated_at":        now,
		}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error saving response",
		})
		return
	}

	var job models.Job
	if err := h.jobCollection.FindOne(ctx, bson.M{"_id": review.JobID}).Decode(&job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	review.ProviderResponse = req.Response
	review.ResponseDate = &now
	h.events.ReviewResponseAdded(ctx, previousResponse, &review, &job, &provider)

	c.JSON(http.StatusOK, gin.H{
		"message": "Response saved",
	})
}

// recalculateProviderRating recomputes the provider's average rating and
// review count from the reviews collection.
func (h *ReviewHandler) recalculateProviderRating(ctx context.Context, providerID primitive.ObjectID) {
	pipeline := []bson.M{
		{"$match": bson.M{"provider_id": providerID}},
		{"$group": bson.M{
			"_id":    nil,
			"rating": bson.M{"$avg": "$rating"},
			"count":  bson.M{"$sum": 1},
		}},
	}

	cursor, err := h.reviewCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var result struct {
			Rating float64 `bson:"rating"`
			Count  int     `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			return
		}
		h.providerCollection.UpdateOne(ctx,
			bson.M{"_id": providerID},
			bson.M{"$set": bson.M{
				"rating":        result.Rating,
				"total_reviews": result.Count,
				"updated_at":    time.Now(),
			}},
		)
	}
}
