package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alertforge/alertforge/internal/database"
	"github.com/alertforge/alertforge/internal/pipeline"
	"github.com/alertforge/alertforge/internal/triage"
	"github.com/alertforge/alertforge/internal/workflow"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newAPIStack wires the full pipeline over an in-memory database
func newAPIStack(t *testing.T) *http.ServeMux {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store := database.NewAlertStore(db)

	filter := pipeline.NewFilterEngine()
	dedup := pipeline.NewDedupCache(5 * time.Minute)
	stats := pipeline.NewProcessStats()
	workflows := workflow.NewEngine([]workflow.Workflow{
		{
			ID:       "auto-acknowledge",
			Name:     "Auto acknowledge",
			Triggers: []string{"alert.auto_acknowledge"},
			Actions:  []workflow.Action{{Name: "done", Provider: "noop"}},
		},
	})

	orchestrator := pipeline.NewOrchestrator(filter, dedup,
		pipeline.NewCorrelationEngine(5*time.Minute),
		triage.NewSimulatedTriager(), workflows, stats, "auto-acknowledge")

	alertHandler := NewAlertHandler(orchestrator, store, nil, nil, "")
	apiHandler := NewAPIHandler(store, filter, dedup, stats, workflows, alertHandler, nil)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestProcessBatchEndpoint(t *testing.T) {
	mux := newAPIStack(t)

	body := `{
		"alerts": [
			{"title": "DB down", "severity": "critical", "status": "active", "source": "prometheus", "service": "db"},
			{"title": "DB slow queries", "severity": "high", "status": "active", "source": "prometheus", "service": "db"},
			{"title": "Routine deploy", "severity": "info", "status": "active", "source": "ci"}
		]
	}`

	w := doJSON(t, mux, "POST", "/api/pipeline/process", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var report pipeline.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}

	if report.Received != 3 || report.Processed != 2 || report.FilteredOut != 1 {
		t.Errorf("counts: %+v", report)
	}
	// db pair correlates by entity and by time
	if len(report.Correlations) != 2 {
		t.Errorf("expected 2 correlations, got %d", len(report.Correlations))
	}
	if len(report.TriageInsights) != 1 {
		t.Errorf("expected 1 triage insight, got %d", len(report.TriageInsights))
	}
	if len(report.Automations) != 1 {
		t.Errorf("expected 1 automation, got %d", len(report.Automations))
	}
	if len(report.Incidents) != 2 {
		t.Errorf("expected 2 incident matches, got %d", len(report.Incidents))
	}
	if report.Stats.AlertsProcessed != 2 {
		t.Errorf("report must carry cumulative stats, alerts_processed = %d", report.Stats.AlertsProcessed)
	}

	// processed alerts are persisted and queryable
	list := doJSON(t, mux, "GET", "/api/alerts?severity=critical", "")
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}
	var page struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("persisted critical alerts = %d, want 1", page.Total)
	}
}

func TestProcessBatchValidation(t *testing.T) {
	mux := newAPIStack(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty batch", `{"alerts": []}`, http.StatusBadRequest},
		{"invalid severity", `{"alerts": [{"title":"X","severity":"urgent","status":"active","source":"s"}]}`, http.StatusBadRequest},
		{"missing title", `{"alerts": [{"severity":"high","status":"active","source":"s"}]}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, "POST", "/api/pipeline/process", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAlertCRUD(t *testing.T) {
	mux := newAPIStack(t)

	seed := `{"alerts": [{"title": "Crash loop", "severity": "critical", "status": "active", "source": "k8s", "service": "api"}]}`
	if w := doJSON(t, mux, "POST", "/api/pipeline/process", seed); w.Code != http.StatusOK {
		t.Fatalf("seed failed: %s", w.Body.String())
	}

	list := doJSON(t, mux, "GET", "/api/alerts", "")
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &page); err != nil || len(page.Items) == 0 {
		t.Fatalf("no alerts listed: %v %s", err, list.Body.String())
	}
	id := page.Items[0].ID

	get := doJSON(t, mux, "GET", "/api/alerts/"+id, "")
	if get.Code != http.StatusOK {
		t.Errorf("get status = %d", get.Code)
	}

	patch := doJSON(t, mux, "PATCH", "/api/alerts/"+id, `{"status": "resolved"}`)
	if patch.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", patch.Code, patch.Body.String())
	}
	if !strings.Contains(patch.Body.String(), `"resolved"`) {
		t.Errorf("patched alert not resolved: %s", patch.Body.String())
	}

	if w := doJSON(t, mux, "PATCH", "/api/alerts/"+id, `{"status": "bogus"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status patch = %d, want 400", w.Code)
	}

	del := doJSON(t, mux, "DELETE", "/api/alerts/"+id, "")
	if del.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", del.Code)
	}
	if w := doJSON(t, mux, "GET", "/api/alerts/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("deleted alert still found: %d", w.Code)
	}
}

func TestFilterRuleEndpoints(t *testing.T) {
	mux := newAPIStack(t)

	create := doJSON(t, mux, "POST", "/api/filter-rules",
		`{"name": "block_staging", "field": "source", "operator": "not_in", "value": ["staging"]}`)
	if create.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", create.Code, create.Body.String())
	}

	if w := doJSON(t, mux, "POST", "/api/filter-rules", `{"field": "x", "operator": "equals"}`); w.Code != http.StatusBadRequest {
		t.Errorf("nameless rule accepted: %d", w.Code)
	}

	list := doJSON(t, mux, "GET", "/api/filter-rules", "")
	if !strings.Contains(list.Body.String(), "block_staging") {
		t.Errorf("created rule missing from list: %s", list.Body.String())
	}

	if w := doJSON(t, mux, "DELETE", "/api/filter-rules/block_staging", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := doJSON(t, mux, "DELETE", "/api/filter-rules/block_staging", ""); w.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", w.Code)
	}
}

func TestWorkflowEndpoints(t *testing.T) {
	mux := newAPIStack(t)

	list := doJSON(t, mux, "GET", "/api/workflows", "")
	if !strings.Contains(list.Body.String(), "auto-acknowledge") {
		t.Errorf("workflow missing from list: %s", list.Body.String())
	}

	exec := doJSON(t, mux, "POST", "/api/workflows/auto-acknowledge/execute",
		`{"trigger": "manual", "context": {"alert": {"id": "a-1"}}}`)
	if exec.Code != http.StatusOK {
		t.Fatalf("execute status = %d: %s", exec.Code, exec.Body.String())
	}
	if !strings.Contains(exec.Body.String(), `"success"`) {
		t.Errorf("unexpected execution result: %s", exec.Body.String())
	}

	if w := doJSON(t, mux, "POST", "/api/workflows/missing/execute", `{}`); w.Code != http.StatusNotFound {
		t.Errorf("missing workflow status = %d, want 404", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	mux := newAPIStack(t)

	seed := `{"alerts": [{"title": "Crash", "severity": "critical", "status": "active", "source": "k8s"}]}`
	doJSON(t, mux, "POST", "/api/pipeline/process", seed)

	stats := doJSON(t, mux, "GET", "/api/stats", "")
	if stats.Code != http.StatusOK {
		t.Fatalf("stats status = %d", stats.Code)
	}

	var payload struct {
		Pipeline pipeline.StatsSnapshot `json:"pipeline"`
		Dedup    pipeline.DedupStats    `json:"dedup"`
	}
	if err := json.Unmarshal(stats.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Pipeline.AlertsProcessed != 1 {
		t.Errorf("alerts processed = %d, want 1", payload.Pipeline.AlertsProcessed)
	}
	if payload.Dedup.Admitted != 1 {
		t.Errorf("dedup admitted = %d, want 1", payload.Dedup.Admitted)
	}

	if w := doJSON(t, mux, "POST", "/api/stats/reset", ""); w.Code != http.StatusNoContent {
		t.Errorf("reset status = %d", w.Code)
	}
	after := doJSON(t, mux, "GET", "/api/stats", "")
	if !strings.Contains(after.Body.String(), `"alerts_processed":0`) {
		t.Errorf("counters not reset: %s", after.Body.String())
	}
}
