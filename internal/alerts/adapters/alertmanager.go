package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

// AlertmanagerAdapter handles Prometheus Alertmanager webhooks
type AlertmanagerAdapter struct {
	alerts.BaseAdapter
}

// NewAlertmanagerAdapter creates a new Alertmanager adapter
func NewAlertmanagerAdapter() *AlertmanagerAdapter {
	return &AlertmanagerAdapter{
		BaseAdapter: alerts.BaseAdapter{Source: "alertmanager"},
	}
}

// AlertmanagerPayload represents the webhook payload from Alertmanager
type AlertmanagerPayload struct {
	Alerts            []AlertmanagerAlert `json:"alerts"`
	Status            string              `json:"status"`
	GroupLabels       map[string]string   `json:"groupLabels"`
	CommonLabels      map[string]string   `json:"commonLabels"`
	CommonAnnotations map[string]string   `json:"commonAnnotations"`
	ExternalURL       string              `json:"externalURL"`
	Version           string              `json:"version"`
	GroupKey          string              `json:"groupKey"`
}

// AlertmanagerAlert represents a single alert in the payload
type AlertmanagerAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// ValidateSecret validates the webhook secret header
func (a *AlertmanagerAdapter) ValidateSecret(r *http.Request, body []byte, secret string) error {
	if secret == "" {
		return nil // No secret configured, allow request
	}

	provided := r.Header.Get("X-Alertmanager-Secret")
	if provided == "" {
		provided = r.Header.Get("Authorization")
	}

	if provided != secret && provided != "Bearer "+secret {
		return fmt.Errorf("invalid webhook secret")
	}

	return nil
}

// ParsePayload parses Alertmanager webhook payload into normalized alerts
func (a *AlertmanagerAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload AlertmanagerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse alertmanager payload: %w", err)
	}

	var normalized []alerts.Alert
	for _, am := range payload.Alerts {
		normalized = append(normalized, a.parseAlert(am))
	}

	return normalized, nil
}

func (a *AlertmanagerAdapter) parseAlert(am AlertmanagerAlert) alerts.Alert {
	title := am.Labels["alertname"]
	if title == "" {
		title = "Unnamed Alertmanager alert"
	}

	alert := alerts.Alert{
		Title:       title,
		Description: am.Annotations["description"],
		Severity:    alerts.NormalizeSeverity(am.Labels["severity"]),
		Status:      alerts.NormalizeStatus(am.Status),
		Source:      a.SourceType(),
		Service:     am.Labels["job"],
		Labels:      am.Labels,
		Annotations: am.Annotations,
		Fingerprint: am.Fingerprint,
		StartedAt:   am.StartsAt,
	}
	if alert.Service == "" {
		alert.Service = am.Labels["service"]
	}
	if alert.Description == "" {
		alert.Description = am.Annotations["summary"]
	}
	return alert
}
