package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusCancelled  = "cancelled"
)

const (
	PaymentMethodCard         = "card"
	PaymentMethodPaypal       = "paypal"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodMobileMoney  = "mobile_money"
)

type Payment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	JobID      primitive.ObjectID `bson:"job_id" json:"job_id"`
	PayerID    primitive.ObjectID `bson:"payer_id" json:"payer_id"`
	ProviderID primitive.ObjectID `bson:"provider_id" json:"provider_id"`

	Amount      float64 `bson:"amount" json:"amount"`
	PlatformFee float64 `bson:"platform_fee" json:"platform_fee"`
	// ProviderAmount is what the provider keeps: amount minus the platform fee.
	ProviderAmount float64 `bson:"provider_amount" json:"provider_amount"`

	PaymentMethod string `bson:"payment_method" json:"payment_method"`
	Status        string `bson:"status" json:"status"`
	TransactionID string `bson:"transaction_id" json:"transaction_id"`

	Description string `bson:"description,omitempty" json:"description,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
