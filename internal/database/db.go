package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes the database connection. A DSN containing "host=" or a
// postgres:// scheme selects PostgreSQL; anything else is treated as a SQLite
// file path (":memory:" included).
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	if strings.Contains(dsn, "host=") || strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		DB, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		DB, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs migrations on the given connection
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&AlertRecord{},
		&CorrelationRecord{},
		&WorkflowRunRecord{},
		&FilterRuleRecord{},
		&PipelineSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults() error {
	log.Println("Initializing default database records...")

	var settingsCount int64
	DB.Model(&PipelineSettings{}).Count(&settingsCount)
	if settingsCount == 0 {
		settings := PipelineSettings{
			DedupWindowSeconds:       300,
			CorrelationWindowSeconds: 300,
			TriageTimeoutSeconds:     30,
			AutoAckWorkflowID:        "auto-acknowledge",
		}
		if err := DB.Create(&settings).Error; err != nil {
			return fmt.Errorf("failed to create default pipeline settings: %w", err)
		}
		log.Println("Created default pipeline settings")
	}

	defaults := []FilterRuleRecord{
		{
			Name:        "high_severity_only",
			Field:       "severity",
			Operator:    "in",
			Value:       JSONB{"values": []interface{}{"critical", "high"}},
			Description: "Only process critical and high severity alerts",
			Enabled:     true,
		},
		{
			Name:        "active_status_only",
			Field:       "status",
			Operator:    "equals",
			Value:       JSONB{"value": "active"},
			Description: "Only process active alerts",
			Enabled:     true,
		},
		{
			Name:        "exclude_test_alerts",
			Field:       "title",
			Operator:    "not_regex",
			Value:       JSONB{"value": ".*test.*|.*demo.*"},
			Description: "Exclude test and demo alerts",
			Enabled:     true,
		},
	}
	for _, rule := range defaults {
		var count int64
		DB.Model(&FilterRuleRecord{}).Where("name = ?", rule.Name).Count(&count)
		if count == 0 {
			if err := DB.Create(&rule).Error; err != nil {
				return fmt.Errorf("failed to create default filter rule %s: %w", rule.Name, err)
			}
		}
	}

	log.Println("Default database records initialized")
	return nil
}
