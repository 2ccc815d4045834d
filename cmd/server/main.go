package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/config"
	"github.com/campuspoints/loyalty-backend/internal/database"
	"github.com/campuspoints/loyalty-backend/internal/handlers"
	"github.com/campuspoints/loyalty-backend/internal/middleware"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	logger.Info("Starting loyalty program backend...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	// Validate production security settings
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	// Run GORM auto-migration
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed the superuser account
	if err := database.SeedSuperuser(db, cfg); err != nil {
		logger.Warn("Failed to seed superuser", "error", err)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	promotionRepo := repositories.NewPromotionRepository(db)

	// Services
	userService := services.NewUserService(userRepo, cfg)
	transactionService := services.NewTransactionService(db, cfg.PurchaseEarnRate)
	eventService := services.NewEventService(eventRepo, userRepo)
	promotionService := services.NewPromotionService(promotionRepo)

	// Middleware and handlers
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerIP, time.Minute, cfg.GetResetCooldown())
	defer limiter.Stop()
	auth := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret, handlers.WriteError)

	router := handlers.NewRouter(
		auth,
		handlers.NewAuthHandler(userService, limiter),
		handlers.NewUserHandler(userService),
		handlers.NewTransactionHandler(transactionService, txRepo),
		handlers.NewEventHandler(eventService),
		handlers.NewPromotionHandler(promotionService),
	)

	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
