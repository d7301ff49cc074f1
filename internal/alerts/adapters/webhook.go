package adapters

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

// WebhookAdapter handles generic alert webhooks from incident platforms.
// The payload wraps a single alert in an event envelope and is authenticated
// with an HMAC-SHA256 signature over the raw body.
type WebhookAdapter struct {
	alerts.BaseAdapter
}

// NewWebhookAdapter creates a new generic webhook adapter
func NewWebhookAdapter() *WebhookAdapter {
	return &WebhookAdapter{
		BaseAdapter: alerts.BaseAdapter{Source: "webhook"},
	}
}

// WebhookPayload is the event envelope of the generic webhook
type WebhookPayload struct {
	Event string        `json:"event"` // alert.created, alert.updated
	Alert *WebhookAlert `json:"alert"`
}

// WebhookAlert is the alert record inside the envelope
type WebhookAlert struct {
	Title       string            `json:"title"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    string            `json:"severity"`
	Status      string            `json:"status"`
	Source      string            `json:"source"`
	Service     string            `json:"service"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	Fingerprint string            `json:"fingerprint"`
	StartedAt   time.Time         `json:"started_at"`
}

// ValidateSecret verifies the HMAC-SHA256 signature of the request body.
// Accepted headers: X-Webhook-Signature or X-Hub-Signature-256, with the
// value formatted as "sha256=<hexdigest>".
func (a *WebhookAdapter) ValidateSecret(r *http.Request, body []byte, secret string) error {
	if secret == "" {
		return nil // No secret configured, allow request
	}

	provided := r.Header.Get("X-Webhook-Signature")
	if provided == "" {
		provided = r.Header.Get("X-Hub-Signature-256")
	}
	if !strings.HasPrefix(provided, "sha256=") {
		return fmt.Errorf("invalid signature header")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.TrimPrefix(provided, "sha256=")), []byte(expected)) {
		return fmt.Errorf("signature mismatch")
	}

	return nil
}

// ParsePayload parses the generic webhook envelope into a normalized alert
func (a *WebhookAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if payload.Event != "alert.created" && payload.Event != "alert.updated" {
		return nil, fmt.Errorf("unsupported event: %q", payload.Event)
	}
	if payload.Alert == nil {
		return nil, fmt.Errorf("payload has no alert")
	}

	wa := payload.Alert
	title := wa.Title
	if title == "" {
		title = wa.Name
	}

	source := wa.Source
	if source == "" {
		source = a.SourceType()
	}

	alert := alerts.Alert{
		Title:       title,
		Description: wa.Description,
		Severity:    alerts.NormalizeSeverity(wa.Severity),
		Status:      alerts.NormalizeStatus(wa.Status),
		Source:      source,
		Service:     wa.Service,
		Labels:      wa.Labels,
		Annotations: wa.Annotations,
		Fingerprint: wa.Fingerprint,
		StartedAt:   wa.StartedAt,
	}
	return []alerts.Alert{alert}, nil
}
