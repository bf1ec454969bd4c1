package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	JobID      primitive.ObjectID `bson:"job_id" json:"job_id"`
	ReviewerID primitive.ObjectID `bson:"reviewer_id" json:"reviewer_id"`
	ProviderID primitive.ObjectID `bson:"provider_id" json:"provider_id"`

	Rating  int    `bson:"rating" json:"rating"`
	Title   string `bson:"title" json:"title"`
	Content string `bson:"content" json:"content"`

	QualityRating       int `bson:"quality_rating" json:"quality_rating"`
	TimelinessRating    int `bson:"timeliness_rating" json:"timeliness_rating"`
	CommunicationRating int `bson:"communication_rating" json:"communication_rating"`
	ValueRating         int `bson:"value_rating" json:"value_rating"`

	WouldRecommend bool `bson:"would_recommend" json:"would_recommend"`

	ProviderResponse string     `bson:"provider_response,omitempty" json:"provider_response,omitempty"`
	ResponseDate     *time.Time `bson:"response_date,omitempty" json:"response_date,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (r *Review) AverageDetailedRating() float64 {
	return float64(r.QualityRating+r.TimelinessRating+r.CommunicationRating+r.ValueRating) / 4
}
