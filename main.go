package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cohort-points-system/handlers"
	"cohort-points-system/middleware"
	"cohort-points-system/models"
	"cohort-points-system/services"
	"cohort-points-system/utils"
	"cohort-points-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: only Gateway requests allowed — hooks are service-to-service
	app.Use(middleware.GatewayAuthMiddleware())

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.LedgerEntry{},
		&models.LoginMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	archiveEnabled := utils.R2Configured()
	if archiveEnabled {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	}

	serviceToken := os.Getenv("POINTS_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("POINTS_SERVICE_TOKEN environment variable not set")
	}

	notificationURL := os.Getenv("NOTIFICATION_SERVICE_URL")
	if notificationURL == "" {
		log.Fatal("NOTIFICATION_SERVICE_URL environment variable not set")
	}
	sessionServiceURL := os.Getenv("SESSION_SERVICE_URL")
	if sessionServiceURL == "" {
		log.Fatal("SESSION_SERVICE_URL environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifyWorker := workers.NewNotifyWorker(notificationURL, serviceToken)
	notifyWorker.Start(ctx)

	ledgerService := services.NewLedgerService(db, notifyWorker)
	ledgerService.StartSchedulers(archiveEnabled)

	loginSync := workers.NewLoginSyncWorker(db, sessionServiceURL, "/api/v1/public/logins", serviceToken)
	loginSync.Start(ctx)

	handlers.SetupHookRoutes(app, ledgerService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Login Sync Worker running")
	log.Println("✅ Notification Dispatch Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
