package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"faqbridge/internal/config"
	"faqbridge/internal/handlers"
	"faqbridge/internal/logging"
	"faqbridge/internal/middleware"
	"faqbridge/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting FAQ bridge server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, FAQ: %s)", cfg.Port, cfg.FAQPath)

	if cfg.LineChannelSecret == "" || cfg.LineChannelAccessToken == "" {
		log.Fatal("❌ LINE_CHANNEL_SECRET and LINE_CHANNEL_ACCESS_TOKEN are required")
	}

	// Resolve deployment mode. Online mode needs completion/embedding
	// credentials; without them the service degrades to offline behavior.
	offline := cfg.OfflineMode
	if !offline && cfg.OpenAIAPIKey == "" {
		log.Println("⚠️  OPENAI_API_KEY not set - falling back to offline mode (lexical retrieval, no generation)")
		offline = true
	}
	mode := "online"
	if offline {
		mode = "offline"
	}
	log.Printf("🧭 Deployment mode: %s", mode)

	// Message audit log (NDJSON, append-only)
	msgLog, err := services.NewMessageLog(cfg.MessageLogPath)
	if err != nil {
		log.Printf("⚠️  Failed to open message log at %s: %v (falling back to stderr)", cfg.MessageLogPath, err)
		msgLog = services.NewStderrMessageLog()
	} else {
		defer msgLog.Close()
		log.Printf("📝 Message log: %s", cfg.MessageLogPath)
	}

	// Collaborator clients
	var llm *services.LLMService
	if !offline {
		llm = services.NewLLMService(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.CompletionModel, cfg.EmbeddingModel)
		log.Printf("🤖 Completion model: %s, embedding model: %s", cfg.CompletionModel, cfg.EmbeddingModel)
	}
	lineService := services.NewLineService(cfg.LineChannelAccessToken, cfg.HandoffWebhookURL)
	if cfg.HandoffWebhookURL != "" {
		log.Printf("🙋 Handoff notifications: %s", cfg.HandoffWebhookURL)
	}

	// FAQ catalog. A failed load is recoverable: the service runs with an
	// empty catalog and answers from the model or the no-hit guidance.
	ctx, cancelServices := context.WithCancel(context.Background())
	defer cancelServices()

	var embedder services.Embedder
	if llm != nil {
		embedder = llm
	}
	faqService := services.NewFAQService(cfg.FAQPath, embedder)
	defer faqService.Close()
	if err := faqService.Reload(ctx); err != nil {
		log.Printf("⚠️  FAQ catalog load failed: %v (continuing with empty catalog)", err)
	}
	if err := faqService.Watch(ctx); err != nil {
		log.Printf("⚠️  FAQ file watch disabled: %v", err)
	}
	if cfg.FAQReloadCron != "" {
		if err := faqService.ScheduleReload(ctx, cfg.FAQReloadCron); err != nil {
			log.Printf("⚠️  FAQ scheduled reload disabled: %v", err)
		}
	}

	// Retrieval strategy follows the deployment mode
	var retriever services.Retriever
	if offline {
		retriever = services.NewLexicalRetriever(faqService, cfg.DomainKeywords)
	} else {
		retriever = services.NewSemanticRetriever(faqService, llm)
	}

	memoryService := services.NewMemoryService(cfg.MemoryMaxTurns, cfg.MemoryContextTurns)

	var completer services.CompletionClient
	if llm != nil {
		completer = llm
	}
	routerService := services.NewRouterService(memoryService, retriever, completer, lineService, cfg.HandoffKeywords, cfg.FAQTopK)

	dedupService := services.NewDedupService(10 * time.Minute)
	userLimiter := middleware.NewUserRateLimiter(cfg.UserRatePerMinute)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "faqbridge v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // webhook deliveries are small
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("faqbridge")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Line-Signature,X-Admin-Key",
	}))

	app.Use(middleware.GlobalRateLimiter(300))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(faqService, mode)
	webhookHandler := handlers.NewWebhookHandler(cfg.LineChannelSecret, lineService, routerService, memoryService, msgLog, dedupService, userLimiter)
	adminHandler := handlers.NewAdminHandler(faqService)

	// Routes
	app.Get("/health", healthHandler.Handle)
	app.Get("/webhook", webhookHandler.Probe)
	app.Head("/webhook", webhookHandler.Probe)
	app.Post("/webhook", webhookHandler.Handle)

	if cfg.AdminAPIKey != "" {
		admin := app.Group("/api/admin", middleware.RequireAdminKey(cfg.AdminAPIKey))
		admin.Post("/faq/reload", adminHandler.ReloadFAQ)
		log.Println("🔧 Admin FAQ reload endpoint enabled")
	} else {
		log.Println("⚠️  ADMIN_API_KEY not set - admin endpoints disabled")
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		cancelServices()
		faqService.Close()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
