package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alertforge/alertforge/internal/alerts/adapters"
	"github.com/alertforge/alertforge/internal/config"
	"github.com/alertforge/alertforge/internal/database"
	"github.com/alertforge/alertforge/internal/handlers"
	"github.com/alertforge/alertforge/internal/middleware"
	"github.com/alertforge/alertforge/internal/notify"
	"github.com/alertforge/alertforge/internal/pipeline"
	"github.com/alertforge/alertforge/internal/triage"
	"github.com/alertforge/alertforge/internal/workflow"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"
)

const version = "1.0.0"

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting AlertForge pipeline...")

	// Authentication middleware
	var passwordHash string
	if cfg.AuthEnabled {
		passwordHash, err = middleware.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
		log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)
	} else {
		log.Printf("ADMIN_PASSWORD not set, API authentication is DISABLED")
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           cfg.AuthEnabled,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/webhook/*",
			"/ws/*",
			"/auth/login",
			"/auth/verify",
		},
	})

	// Database
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}
	store := database.NewAlertStore(database.DB)

	// Pipeline engines
	filterEngine := pipeline.NewFilterEngine()
	if cfg.FilterRulesFile != "" {
		if err := filterEngine.LoadRulesFile(cfg.FilterRulesFile); err != nil {
			log.Fatalf("Failed to load filter rules: %v", err)
		}
	} else if rules, err := store.FilterRules(); err != nil {
		log.Printf("Warning: Failed to load persisted filter rules: %v", err)
	} else if len(rules) > 0 {
		filterEngine.SetRules(rules)
		log.Printf("Loaded %d filter rules from database", len(rules))
	}

	dedupCache := pipeline.NewDedupCache(time.Duration(cfg.DedupWindowSeconds) * time.Second)
	correlator := pipeline.NewCorrelationEngine(time.Duration(cfg.CorrelationWindowSeconds) * time.Second)

	triager := triage.NewWithFallback(triage.NewSimulatedTriager(),
		time.Duration(cfg.TriageTimeoutSeconds)*time.Second)

	// Workflows
	definitions, err := workflow.LoadDir(cfg.WorkflowDir)
	if err != nil {
		log.Printf("Warning: Failed to load workflows from %s: %v", cfg.WorkflowDir, err)
	}
	workflowEngine := workflow.NewEngine(definitions)
	workflowEngine.RegisterProvider("ai", &workflow.AIProvider{Triager: triager})

	// Slack (optional)
	notifier := notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel)
	if notifier != nil {
		workflowEngine.RegisterProvider("slack", &workflow.SlackProvider{
			Client:         notify.NewSlackClient(cfg.SlackToken),
			DefaultChannel: cfg.SlackChannel,
		})
		log.Printf("Slack notifications enabled for channel %s", cfg.SlackChannel)
	} else {
		log.Printf("Slack notifications disabled (SLACK_BOT_TOKEN not set)")
	}

	stats := pipeline.NewProcessStats()
	orchestrator := pipeline.NewOrchestrator(filterEngine, dedupCache, correlator,
		triager, workflowEngine, stats, cfg.AutoAckWorkflowID)

	// Handlers
	streamHandler := handlers.NewStreamHandler()
	alertHandler := handlers.NewAlertHandler(orchestrator, store, streamHandler, notifier, cfg.WebhookSecret)
	alertHandler.RegisterAdapter(adapters.NewAlertmanagerAdapter())
	alertHandler.RegisterAdapter(adapters.NewGrafanaAdapter())
	alertHandler.RegisterAdapter(adapters.NewDatadogAdapter())
	alertHandler.RegisterAdapter(adapters.NewWebhookAdapter())

	httpHandler := handlers.NewHTTPHandler(version)
	apiHandler := handlers.NewAPIHandler(store, filterEngine, dedupCache, stats,
		workflowEngine, alertHandler, streamHandler)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware, cfg.JWTExpiryHours)

	// Routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	alertHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	streamHandler.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...)
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("AlertForge is running! Press Ctrl+C to exit.")
	log.Printf("Alert webhook endpoint: http://localhost:%d/webhook/alert/{source}", cfg.HTTPPort)
	log.Printf("Event stream endpoint: ws://localhost:%d/ws/events", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	log.Println("Shutdown complete")
}
