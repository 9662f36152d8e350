package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/batyrai/backend/internal/assistant"
	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/config"
	"github.com/batyrai/backend/internal/database"
	"github.com/batyrai/backend/internal/handlers"
	"github.com/batyrai/backend/internal/imaging"
	"github.com/batyrai/backend/internal/jobs"
	"github.com/batyrai/backend/internal/middleware"
	"github.com/batyrai/backend/internal/models"
	"github.com/batyrai/backend/internal/piapi"
	"github.com/batyrai/backend/internal/regions"
	"github.com/batyrai/backend/internal/services"
	"github.com/batyrai/backend/internal/speech"
	"github.com/batyrai/backend/internal/telegram"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownGrace = 30 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	quotaLoc, _ := time.LoadLocation(cfg.QuotaTimezone)

	// Connect to Postgres and Redis; the service does not start without them
	stores, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("StoreUnavailable: %v", err)
	}
	defer stores.Close()

	// Run migrations
	if err := models.AutoMigrate(stores.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Cache batyr portraits
	references := imaging.NewReferences(time.Now().UnixNano())
	if err := references.Load(cfg.BatyrImageDir); err != nil {
		log.Printf("Warning: %v", err)
	}
	if references.Len() == 0 {
		log.Printf("Warning: no batyr images in %s, face swap jobs will fail", cfg.BatyrImageDir)
	}

	// Region data for the map
	catalog := regions.NewCatalog()
	if err := catalog.Load(cfg.RegionDataFile); err != nil {
		log.Printf("Warning: %v", err)
	} else {
		log.Printf("Loaded %d regions from %s", catalog.Len(), cfg.RegionDataFile)
	}

	clk := clock.Real()

	// Face swap pipeline
	runner := jobs.NewRunner()
	jobStore := jobs.NewStore(stores.Redis, cfg.JobTTL)
	bot := telegram.NewBot(cfg.TelegramBotToken, cfg.TelegramAPIURL)
	opts := jobs.Options{
		PollInterval: cfg.PollInterval,
		PollBudget:   cfg.PollBudget,
		MaxImageSize: cfg.MaxImageSize,
	}
	orchestrator := jobs.NewOrchestrator(jobStore, piapi.NewClient(cfg.PiAPIKey, cfg.PiAPIBaseURL),
		references, bot, clk, runner, opts)
	log.Printf("Job orchestrator ready (%s)", opts)

	registry := services.NewUserRegistry(stores.DB, clk, quotaLoc)
	quota := services.NewQuotaGate(stores.DB, clk, quotaLoc, cfg.DailyLimit, cfg.AdminUserID)

	// Voice features are optional
	var tts handlers.Synthesizer
	var asst handlers.Assistant
	if cfg.SpeechEnabled() {
		sp := speech.NewClient(cfg.SpeechKey, cfg.SpeechRegion, cfg.SpeechVoice, cfg.SpeechLanguage)
		tts = sp
		if cfg.AssistantEnabled() {
			asst = assistant.New(sp, assistant.NewChatClient(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIAPIVersion, cfg.OpenAIDeployment))
		} else {
			log.Println("Warning: Azure OpenAI settings missing, /api/ask-assistant is disabled")
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Batyr AI API v1.0",
		ServerHeader: "BatyrAI",
		BodyLimit:    20 * 1024 * 1024, // 20MB
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	rateLimiter := middleware.NewRateLimiter(cfg.APIRateLimit, time.Minute)
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(cfg.CORSOrigins))

	api := app.Group("/api")
	api.Use(rateLimiter.Handler())

	routes := &handlers.Routes{
		FaceSwap: handlers.NewFaceSwapHandler(registry, quota, jobStore, orchestrator, clk),
		System:   handlers.NewSystemHandler(registry, stores, references, clk),
		Region:   handlers.NewRegionHandler(catalog),
		Voice:    handlers.NewVoiceHandler(tts, asst),
	}
	routes.Register(api, middleware.TelegramAuth(telegram.NewVerifier(cfg.TelegramBotToken)), middleware.AuditLogger())

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		rateLimiter.Stop()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting Batyr AI API server on %s (daily limit %d)", addr, cfg.DailyLimit)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Listen has returned; let running jobs finish before closing the stores.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		log.Printf("Some jobs were interrupted: %v", err)
	}
	log.Println("Server stopped")
}
