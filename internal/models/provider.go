package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ProviderStatusPending   = "pending"
	ProviderStatusApproved  = "approved"
	ProviderStatusRejected  = "rejected"
	ProviderStatusSuspended = "suspended"
)

const (
	ProviderTypeIndividual = "individual"
	ProviderTypeCompany    = "company"
	ProviderTypeFreelancer = "freelancer"
)

type Provider struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	BusinessName string             `bson:"business_name" json:"business_name"`
	ProviderType string             `bson:"provider_type" json:"provider_type"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Website      string             `bson:"website,omitempty" json:"website,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`

	Status       string  `bson:"status" json:"status"`
	IsVerified   bool    `bson:"is_verified" json:"is_verified"`
	Rating       float64 `bson:"rating" json:"rating"`
	TotalReviews int     `bson:"total_reviews" json:"total_reviews"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
