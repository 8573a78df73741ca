package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/config"
	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/handlers"
	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/services"
	"github.com/smarttransit/booking-engine/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit Booking Engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	redisClient := database.NewRedisClient(cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var events services.BookingEventPublisher
	if cfg.RabbitMQ.Enabled {
		events = services.NewAMQPEventPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueuePrefix, logger)
		logger.WithField("queue_prefix", cfg.RabbitMQ.QueuePrefix).Info("Booking events will be published to RabbitMQ")
	} else {
		events = services.NewNoopEventPublisher(logger)
		logger.Info("RabbitMQ disabled, booking events are only logged")
	}
	defer events.Close()

	// Repositories
	bookingRepository := database.NewBookingRepository(db)
	inventoryRepository := database.NewSeatInventoryRepository(db, cfg.Booking.LockTimeout)
	travelOptionRepository := database.NewTravelOptionRepository(db)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	seatMapCache := services.NewSeatMapCache(redisClient, cfg.Redis.SeatMapTTL, logger)
	seatMapService := services.NewSeatMapService(
		travelOptionRepository,
		inventoryRepository,
		services.NewSeatLayoutProjector(),
		seatMapCache,
		logger,
	)
	bookingService := services.NewBookingService(
		db,
		bookingRepository,
		inventoryRepository,
		travelOptionRepository,
		services.NewFareDecomposer(),
		seatMapCache,
		events,
		services.BookingServiceConfigFrom(cfg.Booking),
		logger,
	)

	cronService := services.NewCronService(bookingService, cfg.Booking.HoldSweepSchedule, cfg.Booking.HoldSweepBatch, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("✓ Cron service started - lapsed seat holds will be released")

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	seatMapHandler := handlers.NewSeatMapHandler(seatMapService, logger)
	adminHandler := handlers.NewAdminHandler(bookingService, logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient, version)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		// Public seat maps
		v1.GET("/travel-options/:id/seat-map", seatMapHandler.GetSeatMap)

		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListMyBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger))
		admin.Use(middleware.RequireRole(jwt.RoleAdmin, jwt.RoleOperator))
		{
			admin.PUT("/bookings/:id/payment-status", adminHandler.UpdatePaymentStatus)
			admin.POST("/bookings/:id/seats", adminHandler.BookSeats)
			admin.POST("/travel-options/:id/reset-seats", adminHandler.ResetSeats)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}
