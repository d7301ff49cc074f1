package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/database"
	"github.com/alertforge/alertforge/internal/notify"
	"github.com/alertforge/alertforge/internal/pipeline"
)

// processTimeout bounds one pipeline run triggered by a webhook
const processTimeout = 2 * time.Minute

// AlertHandler handles webhook requests from multiple alert sources
type AlertHandler struct {
	orchestrator *pipeline.Orchestrator
	store        *database.AlertStore
	stream       *StreamHandler
	notifier     *notify.SlackNotifier
	secret       string

	// registered adapters by source type
	adapters map[string]alerts.Adapter
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(orchestrator *pipeline.Orchestrator, store *database.AlertStore,
	stream *StreamHandler, notifier *notify.SlackNotifier, secret string) *AlertHandler {
	return &AlertHandler{
		orchestrator: orchestrator,
		store:        store,
		stream:       stream,
		notifier:     notifier,
		secret:       secret,
		adapters:     make(map[string]alerts.Adapter),
	}
}

// RegisterAdapter registers an alert adapter for a source type
func (h *AlertHandler) RegisterAdapter(adapter alerts.Adapter) {
	h.adapters[adapter.SourceType()] = adapter
	log.Printf("Registered alert adapter: %s", adapter.SourceType())
}

// SetupRoutes configures webhook routes
func (h *AlertHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/alert/{source}", h.HandleWebhook)
}

// HandleWebhook processes incoming webhook requests.
// Route: POST /webhook/alert/{source}
func (h *AlertHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	source := normalizeSource(r.PathValue("source"))
	if source == "" {
		http.Error(w, "Missing alert source", http.StatusBadRequest)
		return
	}

	adapter, ok := h.adapters[source]
	if !ok {
		log.Printf("No adapter for source type: %s", source)
		http.Error(w, "Unsupported source type", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := adapter.ValidateSecret(r, body, h.secret); err != nil {
		log.Printf("Webhook secret validation failed for %s: %v", source, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	parsed, err := adapter.ParsePayload(body)
	if err != nil {
		log.Printf("Failed to parse %s payload: %v", source, err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if len(parsed) == 0 {
		http.Error(w, "Payload contains no alerts", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	batch := make([]*alerts.Alert, 0, len(parsed))
	for i := range parsed {
		a := &parsed[i]
		a.Prepare(now)
		if err := alerts.Validate(a); err != nil {
			log.Printf("Rejected %s alert: %v", source, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		batch = append(batch, a)
	}

	// Process asynchronously so the webhook sender gets a fast ack.
	go h.processBatch(batch)

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "Accepted %d alerts from %s", len(batch), source)
}

// processBatch runs one pipeline run and persists its outcome
func (h *AlertHandler) processBatch(batch []*alerts.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	report := h.orchestrator.Process(ctx, batch)
	h.persistRun(batch, report)

	if h.stream != nil {
		h.stream.Broadcast("pipeline.report", report)
	}
	if h.notifier != nil {
		critical := make([]*alerts.Alert, 0)
		for _, a := range batch {
			if a.Severity == alerts.SeverityCritical && a.Status == alerts.StatusActive {
				critical = append(critical, a)
			}
		}
		h.notifier.NotifyReport(ctx, report, critical)
	}
}

// persistRun saves processed alerts and correlations. Persistence failures
// are logged and never fail the run: the store records outcomes, the
// pipeline never depends on it.
func (h *AlertHandler) persistRun(batch []*alerts.Alert, report *pipeline.Report) {
	if h.store == nil {
		return
	}
	for _, a := range batch {
		if a.Fingerprint == "" {
			continue // never fingerprinted, dropped before dedup
		}
		if err := h.store.Save(a); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	for i := range report.Correlations {
		if err := h.store.SaveCorrelation(&report.Correlations[i]); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
}

// ProcessBatchSync runs the pipeline inline for the batch API endpoint
func (h *AlertHandler) ProcessBatchSync(ctx context.Context, batch []*alerts.Alert) *pipeline.Report {
	report := h.orchestrator.Process(ctx, batch)
	h.persistRun(batch, report)
	if h.stream != nil {
		h.stream.Broadcast("pipeline.report", report)
	}
	return report
}

// normalizeSource lowercases and trims a source path segment
func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}
