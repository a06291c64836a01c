package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"eventpay/internal/handlers"
	authMiddleware "eventpay/internal/middleware"
	"eventpay/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	cache, err := services.NewRedisCache(redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()

	// Initialize Firebase (actor identity for the organizer API)
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}
	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Organizer API will reject requests until valid credentials are provided")
	}

	// Payment gateway client
	gateway := services.NewMidtransService(
		os.Getenv("MIDTRANS_SERVER_KEY"),
		os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		cache,
	)

	// Core services: explicit dependencies, no singletons
	store := services.NewGormStore(db)
	ledger := services.NewLedgerService(store)
	lateFee := services.NewLateFeeRecalculator(store, ledger)
	notifier := services.NewEventNotifier(db, cache, services.NewEmailService())
	engine := services.NewReconcileEngine(store, ledger, gateway, notifier)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(engine)
	planHandler := handlers.NewPlanHandler(db)
	registrationHandler := handlers.NewRegistrationHandler(db, ledger, lateFee)
	installmentHandler := handlers.NewInstallmentHandler(ledger)

	// Public: the gateway authenticates with its signature, not a token
	e.POST("/webhooks/payment", webhookHandler.HandleGatewayWebhook)

	// Organizer API
	api := e.Group("/api")
	api.Use(authMiddleware.RequireAuth(authClient))

	api.POST("/events/:id/plans", planHandler.CreatePlan)
	api.GET("/events/:id/plans", planHandler.ListPlans)
	api.GET("/plans/:id", planHandler.GetPlan)

	api.POST("/events/:id/registrations", registrationHandler.CreateRegistration)
	api.POST("/registrations/:id/enroll", registrationHandler.Enroll)
	api.GET("/registrations/:id", registrationHandler.GetRegistration)

	api.POST("/installments/:id/payments", installmentHandler.ProcessPayment)
	api.POST("/installments/:id/refunds", installmentHandler.ProcessRefund)
	api.POST("/installments/:id/discounts", installmentHandler.ApplyDiscount)
	api.POST("/installments/:id/late-fees", installmentHandler.ApplyLateFee)

	api.POST("/late-fee-sweeps", registrationHandler.RunLateFeeSweep)
	api.GET("/webhook-events/review", registrationHandler.ListReviewQueue)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
