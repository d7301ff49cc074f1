package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// AlertRecord is the persisted form of a processed alert
type AlertRecord struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title         string     `gorm:"type:varchar(512);not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Severity      string     `gorm:"type:varchar(20);not null;index" json:"severity"`
	Status        string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Source        string     `gorm:"type:varchar(128);not null;index" json:"source"`
	Service       string     `gorm:"type:varchar(255);index" json:"service"`
	Fingerprint   string     `gorm:"type:varchar(64);index" json:"fingerprint"`
	Labels        JSONB      `gorm:"type:jsonb" json:"labels"`
	Annotations   JSONB      `gorm:"type:jsonb" json:"annotations"`
	Enrichments   JSONB      `gorm:"type:jsonb" json:"enrichments"`
	CorrelationID string     `gorm:"type:varchar(64);index" json:"correlation_id"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	ResolvedAt    *time.Time `json:"resolved_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (AlertRecord) TableName() string {
	return "alerts"
}

// CorrelationRecord is a persisted correlation between alerts
type CorrelationRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Pattern    string    `gorm:"type:varchar(64);not null;index" json:"pattern"`
	Confidence float64   `gorm:"type:decimal(3,2)" json:"confidence"`
	Service    string    `gorm:"type:varchar(255)" json:"service"`
	AlertIDs   JSONB     `gorm:"type:jsonb" json:"alert_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CorrelationRecord) TableName() string {
	return "correlations"
}

// WorkflowRunRecord is a persisted workflow execution outcome
type WorkflowRunRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	WorkflowID string    `gorm:"type:varchar(128);not null;index" json:"workflow_id"`
	Trigger    string    `gorm:"type:varchar(128)" json:"trigger"`
	Status     string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Steps      JSONB     `gorm:"type:jsonb" json:"steps"`
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (WorkflowRunRecord) TableName() string {
	return "workflow_runs"
}

// FilterRuleRecord is a persisted filtering rule managed over the API
type FilterRuleRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;type:varchar(128);not null" json:"name"`
	Field       string    `gorm:"type:varchar(128);not null" json:"field"`
	Operator    string    `gorm:"type:varchar(32);not null" json:"operator"`
	Value       JSONB     `gorm:"type:jsonb" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	Enabled     bool      `gorm:"default:true" json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (FilterRuleRecord) TableName() string {
	return "filter_rules"
}

// PipelineSettings stores tunable pipeline parameters
type PipelineSettings struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	DedupWindowSeconds       int       `gorm:"default:300" json:"dedup_window_seconds"`
	CorrelationWindowSeconds int       `gorm:"default:300" json:"correlation_window_seconds"`
	TriageTimeoutSeconds     int       `gorm:"default:30" json:"triage_timeout_seconds"`
	AutoAckWorkflowID        string    `gorm:"type:varchar(128);default:'auto-acknowledge'" json:"auto_ack_workflow_id"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (PipelineSettings) TableName() string {
	return "pipeline_settings"
}
