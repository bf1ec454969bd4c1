package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"handylink/internal/config"
	"handylink/internal/database"
	"handylink/internal/handlers"
	"handylink/internal/middleware"
	"handylink/internal/services"
	"handylink/internal/storage"
	"handylink/internal/ws"
	"handylink/pkg/auth"
	"handylink/pkg/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var serverStartTime = time.Now()

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Env == "development" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := database.NewMongoDB(cfg, log)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithField("error", err).Warn("Error disconnecting from MongoDB")
		}
	}()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateIndexes(indexCtx); err != nil {
		log.WithField("error", err).Warn("Failed to create some indexes")
	}
	cancelIndexes()

	validator.Init()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiration)*time.Hour)

	// Storage layer
	userStore := storage.NewUserStore(db.Database.Collection("users"))
	templateStore := storage.NewTemplateStore(db.Database.Collection("notification_templates"))
	preferenceStore := storage.NewPreferenceStore(db.Database.Collection("notification_preferences"))
	notificationStore := storage.NewNotificationStore(db.Database.Collection("notifications"))
	deviceStore := storage.NewDeviceTokenStore(db.Database.Collection("device_tokens"))

	// Notification core
	templateService := services.NewTemplateService(templateStore, log)
	preferenceService := services.NewPreferenceService(preferenceStore)

	var senders []services.ChannelSender
	if cfg.SMTPHost != "" {
		emailSender, err := services.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom, log)
		if err != nil {
			log.WithField("error", err).Fatal("Failed to initialize email sender")
		}
		senders = append(senders, emailSender)
	} else {
		log.Warn("SMTP not configured, email delivery disabled")
	}
	if cfg.FirebaseKey != "" {
		senders = append(senders, services.NewPushSender(cfg.FirebaseKey, deviceStore, log))
	} else {
		log.Warn("Firebase key not configured, push delivery disabled")
	}

	dispatcher := services.NewDispatcher(templateService, preferenceService, notificationStore, userStore, senders, log)

	queue := services.NewDeliveryQueue(cfg.DeliveryWorkers, cfg.DeliveryBuffer, dispatcher.Deliver, log)
	queue.Start()
	dispatcher.UseQueue(queue)

	hub := ws.NewHub(log)
	go hub.Run()
	dispatcher.UseFeed(hub)

	events := services.NewEventService(dispatcher, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(db.Database.Collection("users"), jwtManager, events)
	providerHandler := handlers.NewProviderHandler(db.Database.Collection("providers"), events)
	jobHandler := handlers.NewJobHandler(
		db.Database.Collection("jobs"),
		db.Database.Collection("job_applications"),
		db.Database.Collection("providers"),
		events,
	)
	paymentHandler := handlers.NewPaymentHandler(
		db.Database.Collection("payments"),
		db.Database.Collection("jobs"),
		db.Database.Collection("providers"),
		events,
	)
	reviewHandler := handlers.NewReviewHandler(
		db.Database.Collection("reviews"),
		db.Database.Collection("jobs"),
		db.Database.Collection("providers"),
		db.Database.Collection("users"),
		events,
	)
	notificationHandler := handlers.NewNotificationHandler(dispatcher, preferenceService, deviceStore)
	wsHandler := ws.NewHandler(hub, jwtManager, log)

	router := setupRouter(cfg, jwtManager, authHandler, providerHandler, jobHandler, paymentHandler, reviewHandler, notificationHandler, wsHandler)

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"host": cfg.Host,
			"port": cfg.Port,
		}).Info("HandyLink backend starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("error", err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithField("error", err).Warn("Server forced to shutdown")
	}

	// Let queued deliveries drain before dropping the DB connection.
	queue.Shutdown()

	log.Info("Server stopped")
}

func setupRouter(
	cfg *config.Config,
	jwtManager *auth.JWTManager,
	authHandler *handlers.AuthHandler,
	providerHandler *handlers.ProviderHandler,
	jobHandler *handlers.JobHandler,
	paymentHandler *handlers.PaymentHandler,
	reviewHandler *handlers.ReviewHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *ws.Handler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, time.Duration(cfg.RateLimitWindow)*time.Second)
	router.Use(rateLimiter.RateLimit())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(serverStartTime).String(),
		})
	})

	router.GET("/ws", wsHandler.HandleConnection)

	api := router.Group("/api/v1")
	{
		// Public
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/verify-email", authHandler.VerifyEmail)

		api.GET("/providers", providerHandler.List)
		api.GET("/providers/:id", providerHandler.Get)
		api.GET("/providers/:id/reviews", reviewHandler.ListForProvider)
		api.GET("/jobs", jobHandler.List)
		api.GET("/jobs/:id", jobHandler.Get)

		// Authenticated
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)
			protected.PUT("/auth/profile", authHandler.UpdateProfile)
			protected.POST("/auth/change-password", authHandler.ChangePassword)

			protected.POST("/providers", providerHandler.Create)

			protected.POST("/jobs", jobHandler.Create)
			protected.PUT("/jobs/:id/status", jobHandler.UpdateStatus)
			protected.POST("/jobs/:id/apply", jobHandler.Apply)
			protected.GET("/jobs/:id/applications", jobHandler.ListApplications)
			protected.PUT("/applications/:id/respond", jobHandler.RespondToApplication)

			protected.POST("/payments", paymentHandler.Create)
			protected.GET("/payments", paymentHandler.List)
			protected.GET("/payments/:id", paymentHandler.Get)

			protected.POST("/reviews", reviewHandler.Create)
			protected.POST("/reviews/:id/respond", reviewHandler.Respond)

			protected.GET("/notifications", notificationHandler.List)
			protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			protected.GET("/notifications/stats", notificationHandler.Stats)
			protected.GET("/notifications/preferences", notificationHandler.GetPreferences)
			protected.PUT("/notifications/preferences", notificationHandler.UpdatePreferences)
			protected.POST("/notifications/mark-read", notificationHandler.MarkRead)
			protected.GET("/notifications/:id", notificationHandler.Get)

			protected.POST("/devices", notificationHandler.RegisterDevice)
			protected.DELETE("/devices", notificationHandler.UnregisterDevice)
		}

		// Admin
		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminMiddleware())
		{
			admin.PUT("/providers/:id/status", providerHandler.UpdateStatus)
			admin.PUT("/payments/:id/status", paymentHandler.UpdateStatus)
		}
	}

	return router
}
