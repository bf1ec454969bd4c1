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

type JobHandler struct {
	jobCollection         *mongo.Collection
	applicationCollection *mongo.Collection
	providerCollection    *mongo.Collection
	events                *services.EventService
}

type CreateJobRequest struct {
	Title          string     `json:"title" binding:"required,min=5,max=200"`
	Description    string     `json:"description" binding:"required,min=20"`
	Category       string     `json:"category" binding:"required"`
	BudgetMin      float64    `json:"budget_min" binding:"gte=0"`
	BudgetMax      float64    `json:"budget_max" binding:"gtefield=BudgetMin"`
	Location       string     `json:"location,omitempty"`
	Urgency        string     `json:"urgency,omitempty" binding:"omitempty,oneof=low medium high emergency"`
	IsRemote       bool       `json:"is_remote"`
	SkillsRequired []string   `json:"skills_required,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}

type UpdateJobStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open in_progress completed cancelled"`
}

type ApplyRequest struct {
	BidAmount         float64 `json:"bid_amount" binding:"required,gt=0"`
	EstimatedDuration string  `json:"estimated_duration,omitempty"`
	CoverLetter       string  `json:"cover_letter,omitempty"`
}

type RespondToApplicationRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted rejected"`
}

func NewJobHandler(jobCollection, applicationCollection, providerCollection *mongo.Collection, events *services.EventService) *JobHandler {
	return &JobHandler{
		jobCollection:         jobCollection,
		applicationCollection: applicationCollection,
		providerCollection:    providerCollection,
		events:                events,
	}
}

func (h *JobHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.JobUrgencyMedium
	}

	now := time.Now()
	job := models.Job{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		PostedBy:       userID,
		BudgetMin:      req.BudgetMin,
		BudgetMax:      req.BudgetMax,
		Location:       req.Location,
		Urgency:        urgency,
		Status:         models.JobStatusOpen,
		IsRemote:       req.IsRemote,
		SkillsRequired: req.SkillsRequired,
		CreatedAt:      now,
		UpdatedAt:      now,
		Deadline:       req.Deadline,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.jobCollection.InsertOne(ctx, job)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating job",
		})
		return
	}

	job.ID = result.InsertedID.(primitive.ObjectID)
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) Get(c *gin.Context) {
	jobID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var job models.Job
	err := h.jobCollection.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := bson.M{}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	} else {
		filter["status"] = models.JobStatusOpen
	}
	if category := c.Query("category"); category != "" {
		filter["category"] = category
	}
	if c.Query("mine") == "true" {
		if userID, ok := currentUserID(c); ok {
			delete(filter, "status")
			filter["posted_by"] = userID
		} else {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := h.jobCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64((page - 1) * limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := h.jobCollection.Find(ctx, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	defer cursor.Close(ctx)

	jobs := []models.Job{}
	if err := cursor.All(ctx, &jobs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding jobs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// UpdateStatus lets the job owner move the job through its lifecycle.
// Completion and cancellation notify the assigned provider.
func (h *JobHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req UpdateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var job models.Job
	err := h.jobCollection.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	if job.PostedBy != userID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Only the job owner can update its status",
		})
		return
	}

	previousStatus := job.Status

	_, err = h.jobCollection.UpdateOne(ctx,
		bson.M{"_id": jobID},
		bson.M{"$set": bson.M{
			"status":     req.Status,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating job status",
		})
		return
	}

	job.Status = req.Status
	h.events.JobStatusChanged(ctx, previousStatus, &job, h.assignedProvider(ctx, &job))

	c.JSON(http.StatusOK, gin.H{
		"message": "Job status updated",
		"status":  req.Status,
	})
}

// Apply creates a bid on an open job. The bidder must have an approved
// provider profile; the job owner gets notified.
func (h *JobHandler) Apply(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req ApplyRequest
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
	err := h.providerCollection.FindOne(ctx, bson.M{
		"user_id": userID,
		"status":  models.ProviderStatusApproved,
	}).Decode(&provider)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "An approved provider profile is required to apply",
		})
		return
	}

	var job models.Job
	err = h.jobCollection.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	if job.Status != models.JobStatusOpen {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job is not open for applications",
		})
		return
	}
	if job.PostedBy == userID {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Cannot apply to your own job",
		})
		return
	}

	now := time.Now()
	application := models.JobApplication{
		JobID:             jobID,
		ProviderID:        provider.ID,
		BidAmount:         req.BidAmount,
		EstimatedDuration: req.EstimatedDuration,
		CoverLetter:       req.CoverLetter,
		Status:            models.ApplicationStatusPending,
		AppliedAt:         now,
		UpdatedAt:         now,
	}

	result, err := h.applicationCollection.InsertOne(ctx, application)
	if err != nil {
		// The unique job+provider index rejects repeat applications.
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "You have already applied to this job",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating application",
		})
		return
	}

	application.ID = result.InsertedID.(primitive.ObjectID)
	h.events.ApplicationReceived(ctx, &application, &job, &provider)

	c.JSON(http.StatusCreated, application)
}

// ListApplications returns the bids on a job, owner only.
func (h *JobHandler) ListApplications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathObjectID(c, "id")
	if !ok {
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
			"error": "Only the job owner can view applications",
		})
		return
	}

	cursor, err := h.applicationCollection.Find(ctx,
		bson.M{"job_id": jobID},
		options.Find().SetSort(bson.D{{Key: "applied_at", Value: -1}}),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}
	defer cursor.Close(ctx)

	applications := []models.JobApplication{}
	if err := cursor.All(ctx, &applications); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding applications",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": applications,
	})
}

// RespondToApplication accepts or rejects a bid. Acceptance assigns the job
// and moves it in progress; the applicant is notified either way.
func (h *JobHandler) RespondToApplication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	applicationID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req RespondToApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var application models.JobApplication
	if err := h.applicationCollection.FindOne(ctx, bson.M{"_id": applicationID}).Decode(&application); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Application not found",
		})
		return
	}

	var job models.Job
	if err := h.jobCollection.FindOne(ctx, bson.M{"_id": application.JobID}).Decode(&job); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if job.PostedBy != userID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Only the job owner can respond to applications",
		})
		return
	}
	if application.Status != models.ApplicationStatusPending {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Application has already been responded to",
		})
		return
	}

	var provider models.Provider
	if err := h.providerCollection.FindOne(ctx, bson.M{"_id": application.ProviderID}).Decode(&provider); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	previousStatus := application.Status
	now := time.Now()

	_, err := h.applicationCollection.UpdateOne(ctx,
		bson.M{"_id": applicationID},
		bson.M{"$set": bson.M{
			"status":     req.Status,
			"updated_at": now,
		}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating application",
		})
		return
	}

	if req.Status == models.ApplicationStatusAccepted {
		_, err = h.jobCollection.UpdateOne(ctx,
			bson.M{"_id": job.ID},
			bson.M{"$set": bson.M{
				"assigned_to": provider.UserID,
				"status":      models.JobStatusInProgress,
				"updated_at":  now,
			}},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error assigning job",
			})
			return
		}
	}

	application.Status = req.Status
	h.events.ApplicationStatusChanged(ctx, previousStatus, &application, &job, &provider)

	c.JSON(http.StatusOK, gin.H{
		"message": "Application " + req.Status,
		"status":  req.Status,
	})
}

// assignedProvider loads the provider profile of the job's assignee, nil
// when the job has none.
func (h *JobHandler) assignedProvider(ctx context.Context, job *models.Job) *models.Provider {
	if job.AssignedTo == nil {
		return nil
	}
	var provider models.Provider
	err := h.providerCollection.FindOne(ctx, bson.M{"user_id": *job.AssignedTo}).Decode(&provider)
	if err != nil {
		return nil
	}
	return &provider
}
