package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Host string
	Env  string

	// MongoDB
	MongoURI     string
	DatabaseName string
	MongoTimeout int

	// JWT
	JWTSecret     string
	JWTExpiration int

	// Firebase Cloud Messaging
	FirebaseKey string

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	// Delivery workers
	DeliveryWorkers int
	DeliveryBuffer  int

	// Rate limiting
	RateLimit       int
	RateLimitWindow int

	// CORS
	AllowedOrigins []string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		Host:            getEnv("HOST", "0.0.0.0"),
		Env:             getEnv("ENV", "development"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName:    getEnv("DATABASE_NAME", "handylink"),
		MongoTimeout:    getEnvAsInt("MONGO_TIMEOUT", 10),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:   getEnvAsInt("JWT_EXPIRATION", 24), // hours
		FirebaseKey:     getEnv("FIREBASE_KEY", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		EmailFrom:       getEnv("EMAIL_FROM", "noreply@handylink.com"),
		DeliveryWorkers: getEnvAsInt("DELIVERY_WORKERS", 4),
		DeliveryBuffer:  getEnvAsInt("DELIVERY_BUFFER", 256),
		RateLimit:       getEnvAsInt("RATE_LIMIT", 100),
		RateLimitWindow: getEnvAsInt("RATE_LIMIT_WINDOW", 60), // seconds
		AllowedOrigins:  getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
