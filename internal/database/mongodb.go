package database

import (
	"context"
	"fmt"
	"time"

	"handylink/internal/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(cfg *config.Config, log *logrus.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MongoTimeout)*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.DatabaseName)

	log.WithField("database", cfg.DatabaseName).Info("Connected to MongoDB")

	return &MongoDB{
		Client:   client,
		Database: database,
	}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// CreateIndexes creates the indexes every collection depends on. bson.D is
// used for compound keys to keep field order.
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := m.Database.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	providerIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "rating", Value: -1},
			},
		},
	}
	if _, err := m.Database.Collection("providers").Indexes().CreateMany(ctx, providerIndexes); err != nil {
		return fmt.Errorf("failed to create provider indexes: %w", err)
	}

	jobIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "posted_by", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "category", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("jobs").Indexes().CreateMany(ctx, jobIndexes); err != nil {
		return fmt.Errorf("failed to create job indexes: %w", err)
	}

	applicationIndexes := []mongo.IndexModel{
		{
			// One bid per provider per job.
			Keys: bson.D{
				{Key: "job_id", Value: 1},
				{Key: "provider_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "provider_id", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("job_applications").Indexes().CreateMany(ctx, applicationIndexes); err != nil {
		return fmt.Errorf("failed to create application indexes: %w", err)
	}

	paymentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "payer_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "provider_id", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("payments").Indexes().CreateMany(ctx, paymentIndexes); err != nil {
		return fmt.Errorf("failed to create payment indexes: %w", err)
	}

	reviewIndexes := []mongo.IndexModel{
		{
			// One review per reviewer per job.
			Keys: bson.D{
				{Key: "job_id", Value: 1},
				{Key: "reviewer_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "provider_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}
	if _, err := m.Database.Collection("reviews").Indexes().CreateMany(ctx, reviewIndexes); err != nil {
		return fmt.Errorf("failed to create review indexes: %w", err)
	}

	notificationIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "is_read", Value: 1},
			},
		},
	}
	if _, err := m.Database.Collection("notifications").Indexes().CreateMany(ctx, notificationIndexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}

	// Uniqueness here is what makes lazy template seeding idempotent.
	templateIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Database.Collection("notification_templates").Indexes().CreateMany(ctx, templateIndexes); err != nil {
		return fmt.Errorf("failed to create template indexes: %w", err)
	}

	preferenceIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Database.Collection("notification_preferences").Indexes().CreateMany(ctx, preferenceIndexes); err != nil {
		return fmt.Errorf("failed to create preference indexes: %w", err)
	}

	deviceTokenIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Database.Collection("device_tokens").Indexes().CreateMany(ctx, deviceTokenIndexes); err != nil {
		return fmt.Errorf("failed to create device token indexes: %w", err)
	}

	return nil
}
