package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

// GrafanaAdapter handles Grafana alerting webhooks
type GrafanaAdapter struct {
	alerts.BaseAdapter
}

// NewGrafanaAdapter creates a new Grafana adapter
func NewGrafanaAdapter() *GrafanaAdapter {
	return &GrafanaAdapter{
		BaseAdapter: alerts.BaseAdapter{Source: "grafana"},
	}
}

// GrafanaPayload represents the webhook payload from Grafana.
// Supports both legacy alerting and unified alerting.
type GrafanaPayload struct {
	// Unified Alerting format
	Receiver string         `json:"receiver"`
	Status   string         `json:"status"`
	Alerts   []GrafanaAlert `json:"alerts"`

	// Legacy alerting format
	RuleName    string `json:"ruleName"`
	State       string `json:"state"`
	Message     string `json:"message"`
	RuleURL     string `json:"ruleUrl"`
	RuleID      int    `json:"ruleId"`
	Title       string `json:"title"`
	EvalMatches []struct {
		Value  float64           `json:"value"`
		Metric string            `json:"metric"`
		Tags   map[string]string `json:"tags"`
	} `json:"evalMatches"`
}

// GrafanaAlert represents a single alert in unified alerting
type GrafanaAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	Fingerprint  string            `json:"fingerprint"`
	GeneratorURL string            `json:"generatorURL"`
}

// ValidateSecret validates the Grafana webhook secret header
func (a *GrafanaAdapter) ValidateSecret(r *http.Request, body []byte, secret string) error {
	if secret == "" {
		return nil // No secret configured, allow request
	}

	provided := r.Header.Get("X-Grafana-Secret")
	if provided == "" {
		provided = r.Header.Get("Authorization")
	}

	if provided != secret && provided != "Bearer "+secret {
		return fmt.Errorf("invalid webhook secret")
	}

	return nil
}

// ParsePayload parses Grafana webhook payload into normalized alerts
func (a *GrafanaAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload GrafanaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse grafana payload: %w", err)
	}

	var normalized []alerts.Alert

	if len(payload.Alerts) > 0 {
		// Unified Alerting format
		for _, ga := range payload.Alerts {
			normalized = append(normalized, a.parseUnifiedAlert(ga))
		}
	} else {
		// Legacy alerting format
		normalized = append(normalized, a.parseLegacyAlert(payload))
	}

	return normalized, nil
}

func (a *GrafanaAdapter) parseUnifiedAlert(ga GrafanaAlert) alerts.Alert {
	title := ga.Labels["alertname"]
	if title == "" {
		title = "Grafana Alert"
	}

	alert := alerts.Alert{
		Title:       title,
		Description: ga.Annotations["description"],
		Severity:    alerts.NormalizeSeverity(ga.Labels["severity"]),
		Status:      alerts.NormalizeStatus(ga.Status),
		Source:      a.SourceType(),
		Service:     ga.Labels["job"],
		Labels:      ga.Labels,
		Annotations: ga.Annotations,
		Fingerprint: ga.Fingerprint,
		StartedAt:   ga.StartsAt,
	}
	if alert.Service == "" {
		alert.Service = ga.Labels["service"]
	}
	return alert
}

func (a *GrafanaAdapter) parseLegacyAlert(payload GrafanaPayload) alerts.Alert {
	title := payload.RuleName
	if title == "" {
		title = payload.Title
	}
	if title == "" {
		title = "Grafana Alert"
	}

	labels := map[string]string{}
	if len(payload.EvalMatches) > 0 {
		for k, v := range payload.EvalMatches[0].Tags {
			labels[k] = v
		}
	}

	// Legacy states: alerting, ok, no_data, paused
	severity := alerts.SeverityHigh
	if payload.State != "alerting" {
		severity = alerts.SeverityInfo
	}

	return alerts.Alert{
		Title:       title,
		Description: payload.Message,
		Severity:    severity,
		Status:      alerts.NormalizeStatus(payload.State),
		Source:      a.SourceType(),
		Service:     labels["service"],
		Labels:      labels,
		Annotations: map[string]string{"rule_url": payload.RuleURL},
	}
}
