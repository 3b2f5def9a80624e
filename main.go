package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"casino-wager-system/handlers"
	"casino-wager-system/middleware"
	"casino-wager-system/models"
	"casino-wager-system/services"
	"casino-wager-system/utils"
	"casino-wager-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.GameRecord{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledger := services.NewGormLedger(db)
	if err := ledger.EnsureHouseAccount(); err != nil {
		log.Fatal("failed to seed house account:", err)
	}

	var notifier services.Notifier = services.LogNotifier{}
	if webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL"); webhookURL != "" {
		notifier = services.NewWebhookNotifier(webhookURL, os.Getenv("WAGER_SERVICE_TOKEN"))
		log.Printf("✅ Notifications relayed to %s", webhookURL)
	}

	journal := services.NewGormJournal(db)
	progression := services.NewProgressionService(db)
	outcomes := services.NewRandOutcomeSource()
	executor := services.NewSettlementExecutor(ledger, journal, notifier, progression)
	registry := services.NewChallengeRegistry(ledger, executor, notifier)
	houseGames := services.NewHouseGameService(ledger, outcomes, progression, notifier)
	challengeService := services.NewChallengeService(registry, houseGames, outcomes)
	accountService := services.NewAccountService(db, ledger)

	scheduler, err := registry.StartTimeoutScheduler()
	if err != nil {
		log.Fatal("failed to start timeout scheduler:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollUnsettled(ctx, executor, journal, 15*time.Second)

	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupAccountRoutes(app, accountService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Settlement retry worker running (every 15s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
