package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP server
	HTTPPort int

	// Database
	DatabaseURL string

	// Pipeline tuning
	DedupWindowSeconds       int
	CorrelationWindowSeconds int
	TriageTimeoutSeconds     int
	WorkflowDir              string
	FilterRulesFile          string
	AutoAckWorkflowID        string

	// Webhook ingestion
	WebhookSecret string

	// CORS; empty means every origin is allowed
	CORSAllowedOrigins []string

	// Slack notifications
	SlackToken   string
	SlackChannel string

	// Authentication
	AuthEnabled    bool
	AdminUsername  string
	AdminPassword  string
	JWTSecret      string
	JWTExpiryHours int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsIntOrDefault("HTTP_PORT", 8080)

	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "alertforge.db")

	cfg.DedupWindowSeconds = getEnvAsIntOrDefault("DEDUP_WINDOW_SECONDS", 300)
	cfg.CorrelationWindowSeconds = getEnvAsIntOrDefault("CORRELATION_WINDOW_SECONDS", 300)
	cfg.TriageTimeoutSeconds = getEnvAsIntOrDefault("TRIAGE_TIMEOUT_SECONDS", 30)
	cfg.WorkflowDir = getEnvOrDefault("WORKFLOW_DIR", "workflows")
	cfg.FilterRulesFile = os.Getenv("FILTER_RULES_FILE")
	cfg.AutoAckWorkflowID = getEnvOrDefault("AUTO_ACK_WORKFLOW_ID", "auto-acknowledge")

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	cfg.SlackToken = os.Getenv("SLACK_BOT_TOKEN")
	cfg.SlackChannel = getEnvOrDefault("SLACK_ALERTS_CHANNEL", "#alerts")

	cfg.AdminUsername = getEnvOrDefault("ADMIN_USERNAME", "admin")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD") // no default, auth stays off without it
	cfg.AuthEnabled = cfg.AdminPassword != ""
	cfg.JWTExpiryHours = getEnvAsIntOrDefault("JWT_EXPIRY_HOURS", 24)
	cfg.JWTSecret = loadOrGenerateJWTSecret(getEnvOrDefault("JWT_SECRET_FILE", ".jwt_secret"))

	return cfg, nil
}

// loadOrGenerateJWTSecret loads the JWT secret from file or generates one.
// The JWT_SECRET env var takes precedence over the file.
func loadOrGenerateJWTSecret(secretPath string) string {
	if envSecret := os.Getenv("JWT_SECRET"); envSecret != "" {
		log.Printf("Using JWT secret from environment variable")
		return envSecret
	}

	if data, err := os.ReadFile(secretPath); err == nil {
		secret := strings.TrimSpace(string(data))
		if secret != "" {
			log.Printf("Loaded JWT secret from %s", secretPath)
			return secret
		}
	}

	secret := generateSecureSecret(32)

	if err := os.MkdirAll(filepath.Dir(secretPath), 0755); err != nil {
		log.Printf("Warning: Could not create directory for JWT secret: %v", err)
		return secret
	}
	if err := os.WriteFile(secretPath, []byte(secret), 0600); err != nil {
		log.Printf("Warning: Could not save JWT secret to file: %v", err)
	} else {
		log.Printf("Generated and saved new JWT secret to %s", secretPath)
	}
	return secret
}

// generateSecureSecret generates a cryptographically secure random string
func generateSecureSecret(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		log.Printf("Warning: Could not generate secure random bytes: %v", err)
		return "fallback-insecure-secret-please-set-jwt-secret-env"
	}
	return hex.EncodeToString(b)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
