package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	JobStatusOpen       = "open"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

const (
	JobUrgencyLow       = "low"
	JobUrgencyMedium    = "medium"
	JobUrgencyHigh      = "high"
	JobUrgencyEmergency = "emergency"
)

type Job struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Category    string              `bson:"category" json:"category"`
	PostedBy    primitive.ObjectID  `bson:"posted_by" json:"posted_by"`
	AssignedTo  *primitive.ObjectID `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`

	BudgetMin float64 `bson:"budget_min" json:"budget_min"`
	BudgetMax float64 `bson:"budget_max" json:"budget_max"`
	Location  string  `bson:"location" json:"location"`
	Urgency   string  `bson:"urgency" json:"urgency"`
	Status    string  `bson:"status" json:"status"`

	IsRemote       bool     `bson:"is_remote" json:"is_remote"`
	SkillsRequired []string `bson:"skills_required,omitempty" json:"skills_required,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	Deadline  *time.Time `bson:"deadline,omitempty" json:"deadline,omitempty"`
}

const (
	ApplicationStatusPending   = "pending"
	ApplicationStatusAccepted  = "accepted"
	ApplicationStatusRejected  = "rejected"
	ApplicationStatusWithdrawn = "withdrawn"
)

// JobApplication is a provider's bid on a job. One per job+provider pair.
type JobApplication struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	JobID             primitive.ObjectID `bson:"job_id" json:"job_id"`
	ProviderID        primitive.ObjectID `bson:"provider_id" json:"provider_id"`
	BidAmount         float64            `bson:"bid_amount" json:"bid_amount"`
	EstimatedDuration string             `bson:"estimated_duration" json:"estimated_duration"`
	CoverLetter       string             `bson:"cover_letter" json:"cover_letter"`
	Status            string             `bson:"status" json:"status"`
	AppliedAt         time.Time          `bson:"applied_at" json:"applied_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
