package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

// DatadogAdapter handles Datadog webhooks
type DatadogAdapter struct {
	alerts.BaseAdapter
}

// NewDatadogAdapter creates a new Datadog adapter
func NewDatadogAdapter() *DatadogAdapter {
	return &DatadogAdapter{
		BaseAdapter: alerts.BaseAdapter{Source: "datadog"},
	}
}

// DatadogPayload represents the webhook payload from Datadog
type DatadogPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	AlertType   string   `json:"alert_type"` // error, warning, info, success
	EventType   string   `json:"event_type"`
	Priority    string   `json:"priority"` // normal, low
	AlertID     string   `json:"alert_id"`
	AlertTitle  string   `json:"alert_title"`
	AlertStatus string   `json:"alert_status"` // Triggered, Recovered, etc.
	Hostname    string   `json:"hostname"`
	Date        int64    `json:"date"`
	Tags        []string `json:"tags"`
	AlertMetric string   `json:"alert_metric"`
	AlertQuery  string   `json:"alert_query"`
}

// ValidateSecret validates the Datadog webhook secret
func (a *DatadogAdapter) ValidateSecret(r *http.Request, body []byte, secret string) error {
	if secret == "" {
		return nil // No secret configured, allow request
	}

	provided := r.Header.Get("X-Datadog-Signature")
	if provided == "" {
		provided = r.Header.Get("DD-API-KEY")
	}
	if provided == "" {
		provided = r.Header.Get("Authorization")
	}

	if provided != secret && provided != "Bearer "+secret {
		return fmt.Errorf("invalid webhook secret")
	}

	return nil
}

// ParsePayload parses Datadog webhook payload into normalized alerts
func (a *DatadogAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload DatadogPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse datadog payload: %w", err)
	}

	return []alerts.Alert{a.parseAlert(payload)}, nil
}

func (a *DatadogAdapter) parseAlert(payload DatadogPayload) alerts.Alert {
	labels := parseTags(payload.Tags)

	title := payload.AlertTitle
	if title == "" {
		title = payload.Title
	}
	if title == "" {
		title = "Datadog Alert"
	}

	annotations := map[string]string{}
	if payload.AlertMetric != "" {
		annotations["metric"] = payload.AlertMetric
	}
	if payload.AlertQuery != "" {
		annotations["query"] = payload.AlertQuery
	}
	if payload.Hostname != "" {
		labels["host"] = payload.Hostname
	}

	var startedAt time.Time
	if payload.Date > 0 {
		startedAt = time.Unix(payload.Date, 0).UTC()
	}

	return alerts.Alert{
		Title:       title,
		Description: payload.Body,
		Severity:    a.mapSeverity(payload.AlertType, payload.Priority),
		Status:      a.mapStatus(payload.AlertStatus),
		Source:      a.SourceType(),
		Service:     labels["service"],
		Labels:      labels,
		Annotations: annotations,
		StartedAt:   startedAt,
	}
}

// mapSeverity maps Datadog alert_type + priority to normalized severity
func (a *DatadogAdapter) mapSeverity(alertType, priority string) alerts.Severity {
	switch strings.ToLower(alertType) {
	case "error":
		if strings.ToLower(priority) == "low" {
			return alerts.SeverityHigh
		}
		return alerts.SeverityCritical
	case "warning":
		return alerts.SeverityMedium
	case "success":
		return alerts.SeverityInfo
	default:
		return alerts.SeverityInfo
	}
}

// mapStatus maps Datadog alert_status to normalized status
func (a *DatadogAdapter) mapStatus(alertStatus string) alerts.Status {
	switch strings.ToLower(alertStatus) {
	case "recovered", "recovery":
		return alerts.StatusResolved
	default:
		return alerts.StatusActive
	}
}

// parseTags converts Datadog "key:value" tags into a label map
func parseTags(tags []string) map[string]string {
	labels := make(map[string]string, len(tags))
	for _, tag := range tags {
		parts := strings.SplitN(tag, ":", 2)
		if len(parts) == 2 {
			labels[parts[0]] = parts[1]
		} else {
			labels[tag] = ""
		}
	}
	return labels
}
