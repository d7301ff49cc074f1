package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/api"
	"github.com/alertforge/alertforge/internal/database"
	"github.com/alertforge/alertforge/internal/pipeline"
	"github.com/alertforge/alertforge/internal/workflow"
)

// APIHandler serves the management REST API
type APIHandler struct {
	store        *database.AlertStore
	filter       *pipeline.FilterEngine
	dedup        *pipeline.DedupCache
	stats        *pipeline.ProcessStats
	workflows    *workflow.Engine
	alertHandler *AlertHandler
	stream       *StreamHandler
}

// NewAPIHandler creates the REST API handler
func NewAPIHandler(store *database.AlertStore, filter *pipeline.FilterEngine,
	dedup *pipeline.DedupCache, stats *pipeline.ProcessStats,
	workflows *workflow.Engine, alertHandler *AlertHandler, stream *StreamHandler) *APIHandler {
	return &APIHandler{
		store:        store,
		filter:       filter,
		dedup:        dedup,
		stats:        stats,
		workflows:    workflows,
		alertHandler: alertHandler,
		stream:       stream,
	}
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{id}", h.handleGetAlert)
	mux.HandleFunc("PATCH /api/alerts/{id}", h.handlePatchAlert)
	mux.HandleFunc("DELETE /api/alerts/{id}", h.handleDeleteAlert)

	mux.HandleFunc("GET /api/filter-rules", h.handleListFilterRules)
	mux.HandleFunc("POST /api/filter-rules", h.handleCreateFilterRule)
	mux.HandleFunc("DELETE /api/filter-rules/{name}", h.handleDeleteFilterRule)

	mux.HandleFunc("GET /api/workflows", h.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows/{id}/execute", h.handleExecuteWorkflow)

	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("POST /api/stats/reset", h.handleStatsReset)

	mux.HandleFunc("POST /api/pipeline/process", h.handleProcessBatch)
}

func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	p := api.ParsePagination(r)
	filter := database.AlertFilter{
		Severity: r.URL.Query().Get("severity"),
		Status:   r.URL.Query().Get("status"),
		Source:   r.URL.Query().Get("source"),
		Service:  r.URL.Query().Get("service"),
	}

	items, total, err := h.store.List(filter, p.Offset(), p.PerPage)
	if err != nil {
		log.Printf("Failed to list alerts: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	api.RespondPaginated(w, items, p, total)
}

func (h *APIHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Get(r.PathValue("id"))
	if errors.Is(err, database.ErrAlertNotFound) {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		log.Printf("Failed to load alert: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, a)
}

func (h *APIHandler) handlePatchAlert(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := api.DecodeJSON(r, &patch); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if status, ok := patch["status"].(string); ok {
		normalized := string(alerts.NormalizeStatus(status))
		if normalized != status {
			api.RespondError(w, http.StatusBadRequest, "Invalid status value")
			return
		}
	}

	a, err := h.store.Update(r.PathValue("id"), patch)
	if errors.Is(err, database.ErrAlertNotFound) {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		log.Printf("Failed to update alert: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, a)
}

func (h *APIHandler) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.PathValue("id"))
	if errors.Is(err, database.ErrAlertNotFound) {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		log.Printf("Failed to delete alert: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}
	api.RespondNoContent(w)
}

func (h *APIHandler) handleListFilterRules(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"rules": h.filter.Rules(),
	})
}

func (h *APIHandler) handleCreateFilterRule(w http.ResponseWriter, r *http.Request) {
	var rule pipeline.Rule
	if err := api.DecodeJSON(r, &rule); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.filter.AddRule(rule); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.store != nil {
		if err := h.store.SaveFilterRule(rule); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	api.RespondJSON(w, http.StatusCreated, rule)
}

func (h *APIHandler) handleDeleteFilterRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.filter.RemoveRule(name) {
		api.RespondError(w, http.StatusNotFound, "Filter rule not found")
		return
	}
	if h.store != nil {
		if err := h.store.DeleteFilterRule(name); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	api.RespondNoContent(w)
}

func (h *APIHandler) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": h.workflows.Workflows(),
	})
}

func (h *APIHandler) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Trigger string                 `json:"trigger"`
		Context map[string]interface{} `json:"context"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Trigger == "" {
		req.Trigger = "manual"
	}

	result, err := h.workflows.Execute(r.Context(), r.PathValue("id"), req.Trigger, req.Context)
	if errors.Is(err, workflow.ErrWorkflowNotFound) {
		api.RespondError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	if err != nil {
		log.Printf("Workflow execution failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Workflow execution failed")
		return
	}

	if h.store != nil {
		if err := h.store.SaveWorkflowRun(result); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	api.RespondJSON(w, http.StatusOK, result)
}

func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"pipeline": h.stats.Snapshot(),
		"dedup":    h.dedup.Stats(),
	}
	if h.stream != nil {
		response["stream_clients"] = h.stream.ClientCount()
	}
	api.RespondJSON(w, http.StatusOK, response)
}

func (h *APIHandler) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	h.stats.Reset()
	api.RespondNoContent(w)
}

// handleProcessBatch runs a batch of alerts through the pipeline inline and
// returns the report. Used by tooling and tests that need synchronous runs.
func (h *APIHandler) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alerts []alerts.Alert `json:"alerts"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Alerts) == 0 {
		api.RespondError(w, http.StatusBadRequest, "No alerts in request")
		return
	}

	now := time.Now().UTC()
	batch := make([]*alerts.Alert, 0, len(req.Alerts))
	for i := range req.Alerts {
		a := &req.Alerts[i]
		a.Prepare(now)
		if err := alerts.Validate(a); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		batch = append(batch, a)
	}

	report := h.alertHandler.ProcessBatchSync(r.Context(), batch)
	api.RespondJSON(w, http.StatusOK, report)
}
