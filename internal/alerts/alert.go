package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Severity represents normalized severity levels
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Status represents the alert lifecycle status
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusSuppressed   Status = "suppressed"
)

// Enrichment is a single piece of context attached to an alert during processing
type Enrichment struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is the common alert format all ingestion adapters produce and the
// pipeline operates on. Fingerprint identifies the logical alert independent
// of timestamp and status; the dedup cache computes it when absent.
type Alert struct {
	ID          string            `json:"id"`
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description,omitempty"`
	Severity    Severity          `json:"severity" validate:"required,oneof=critical high medium low info"`
	Status      Status            `json:"status" validate:"required,oneof=active acknowledged resolved suppressed"`
	Source      string            `json:"source" validate:"required"`
	Service     string            `json:"service,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	StartedAt   time.Time         `json:"started_at"`

	Enrichments   []Enrichment `json:"enrichments,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that an inbound alert carries the required fields and
// normalized enum values. Alerts failing validation are rejected before
// entering the pipeline.
func Validate(a *Alert) error {
	if err := validate.Struct(a); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid alert: field %s %s", strings.ToLower(fe.Field()), validationHint(fe))
		}
		return fmt.Errorf("invalid alert: %w", err)
	}
	return nil
}

func validationHint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Prepare fills in defaults on a freshly ingested alert: identifier, status,
// service fallback from labels, and start timestamp.
func (a *Alert) Prepare(now time.Time) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.Service == "" && a.Labels != nil {
		a.Service = a.Labels["service"]
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = now
	}
}

// Field resolves a named value on the alert using the three-tier lookup:
// top-level fields first, then labels, then annotations. The second return
// is false when the field is absent at every tier.
func (a *Alert) Field(name string) (string, bool) {
	switch name {
	case "id":
		return a.ID, true
	case "title", "name":
		return a.Title, true
	case "description":
		return a.Description, true
	case "severity":
		return string(a.Severity), true
	case "status":
		return string(a.Status), true
	case "source":
		return a.Source, true
	case "service":
		if a.Service != "" {
			return a.Service, true
		}
	case "fingerprint":
		return a.Fingerprint, true
	}
	if v, ok := a.Labels[name]; ok {
		return v, true
	}
	if v, ok := a.Annotations[name]; ok {
		return v, true
	}
	return "", false
}

// Enrich appends an enrichment record to the alert.
func (a *Alert) Enrich(key, value, source string, now time.Time) {
	a.Enrichments = append(a.Enrichments, Enrichment{
		Key:       key,
		Value:     value,
		Source:    source,
		CreatedAt: now,
	})
}

// NormalizeSeverity maps source-specific severity strings to standard values
func NormalizeSeverity(severity string) Severity {
	switch strings.ToLower(severity) {
	case "critical", "disaster", "p1", "emergency", "fatal":
		return SeverityCritical
	case "high", "major", "p2", "error", "severe":
		return SeverityHigh
	case "medium", "warning", "minor", "p3", "average", "warn":
		return SeverityMedium
	case "low", "p4", "notice":
		return SeverityLow
	case "info", "informational", "debug":
		return SeverityInfo
	default:
		return SeverityMedium
	}
}

// NormalizeStatus maps source-specific status strings to standard values
func NormalizeStatus(status string) Status {
	switch strings.ToLower(status) {
	case "firing", "alerting", "triggered", "active", "problem":
		return StatusActive
	case "resolved", "ok", "recovery", "inactive":
		return StatusResolved
	case "acknowledged", "acked":
		return StatusAcknowledged
	case "suppressed", "silenced", "muted":
		return StatusSuppressed
	default:
		return StatusActive
	}
}
