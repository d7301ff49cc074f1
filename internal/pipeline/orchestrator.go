package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/alertforge/alertforge/internal/triage"
	"github.com/alertforge/alertforge/internal/workflow"
	"github.com/google/uuid"
)

// ProcessStats holds cumulative counters across all pipeline runs. It is
// injected into the orchestrator at construction and shared with the stats
// API, so all access goes through its methods.
type ProcessStats struct {
	mu sync.Mutex

	alertsProcessed      int64
	phasesCompleted      int64
	correlationsFound    int64
	automationsTriggered int64
}

// StatsSnapshot is a point-in-time copy of cumulative counters
type StatsSnapshot struct {
	AlertsProcessed      int64 `json:"alerts_processed"`
	PhasesCompleted      int64 `json:"phases_completed"`
	CorrelationsFound    int64 `json:"correlations_found"`
	AutomationsTriggered int64 `json:"automations_triggered"`
}

func NewProcessStats() *ProcessStats {
	return &ProcessStats{}
}

func (s *ProcessStats) record(processed, phases, correlations, automations int) {
	s.mu.Lock()
	s.alertsProcessed += int64(processed)
	s.phasesCompleted += int64(phases)
	s.correlationsFound += int64(correlations)
	s.automationsTriggered += int64(automations)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters
func (s *ProcessStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		AlertsProcessed:      s.alertsProcessed,
		PhasesCompleted:      s.phasesCompleted,
		CorrelationsFound:    s.correlationsFound,
		AutomationsTriggered: s.automationsTriggered,
	}
}

// Reset zeroes all cumulative counters
func (s *ProcessStats) Reset() {
	s.mu.Lock()
	s.alertsProcessed = 0
	s.phasesCompleted = 0
	s.correlationsFound = 0
	s.automationsTriggered = 0
	s.mu.Unlock()
}

// PhaseEntry is one line of a pipeline run's phase log
type PhaseEntry struct {
	Phase   string                 `json:"phase"`
	Status  string                 `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Automation records one automatic action taken on an alert
type Automation struct {
	AlertID string `json:"alert_id"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

// IncidentMatch ties an alert to the live incident it was scored into
type IncidentMatch struct {
	AlertID    string  `json:"alert_id"`
	IncidentID string  `json:"incident_id"`
	Confidence float64 `json:"confidence"`
}

// TriageInsight is the AI triage outcome for one alert
type TriageInsight struct {
	AlertID    string  `json:"alert_id"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// Report is the outcome of one pipeline run. If a phase fails the report
// carries everything accumulated up to that phase; completed phases are not
// rolled back.
type Report struct {
	RunID          string          `json:"run_id"`
	Received       int             `json:"received"`
	Processed      int             `json:"processed"`
	FilteredOut    int             `json:"filtered_out"`
	Duplicates     int             `json:"duplicates"`
	Correlations   []Correlation   `json:"correlations"`
	Incidents      []IncidentMatch `json:"incidents"`
	Automations    []Automation    `json:"automations"`
	TriageInsights []TriageInsight `json:"triage_insights"`
	Phases         []PhaseEntry    `json:"phases"`
	Stats          StatsSnapshot   `json:"stats"`
	StartedAt      time.Time       `json:"started_at"`
	DurationMS     int64           `json:"duration_ms"`
}

// Orchestrator runs alerts through filter, dedup, enrichment, correlation,
// triage and automation, producing a per-run report.
type Orchestrator struct {
	filter        *FilterEngine
	dedup         *DedupCache
	correlator    *CorrelationEngine
	triager       triage.Triager
	workflows     *workflow.Engine
	stats         *ProcessStats
	autoAckFlowID string
}

// NewOrchestrator wires the pipeline stages together. stats is shared state
// and may be read concurrently by callers.
func NewOrchestrator(filter *FilterEngine, dedup *DedupCache, correlator *CorrelationEngine,
	triager triage.Triager, workflows *workflow.Engine, stats *ProcessStats, autoAckFlowID string) *Orchestrator {
	return &Orchestrator{
		filter:        filter,
		dedup:         dedup,
		correlator:    correlator,
		triager:       triager,
		workflows:     workflows,
		stats:         stats,
		autoAckFlowID: autoAckFlowID,
	}
}

// Process runs a batch of alerts through every pipeline phase in order.
// A phase error stops the pipeline and returns the partial report; work done
// by completed phases (dedup admissions, correlations) stays in place.
func (o *Orchestrator) Process(ctx context.Context, batch []*alerts.Alert) *Report {
	now := time.Now().UTC()
	report := &Report{
		RunID:          uuid.New().String(),
		Received:       len(batch),
		Correlations:   []Correlation{},
		Incidents:      []IncidentMatch{},
		Automations:    []Automation{},
		TriageInsights: []TriageInsight{},
		Phases:         []PhaseEntry{},
		StartedAt:      now,
	}

	log.Printf("Pipeline run %s started: %d alerts", report.RunID, len(batch))

	passed := o.filter.FilterAlerts(batch)
	report.FilteredOut = len(batch) - len(passed)
	report.Phases = append(report.Phases, PhaseEntry{
		Phase:  "filter",
		Status: "completed",
		Details: map[string]interface{}{
			"received": len(batch),
			"passed":   len(passed),
		},
	})

	unique := o.dedup.DeduplicateBatch(passed, now)
	report.Duplicates = len(passed) - len(unique)
	report.Processed = len(unique)
	report.Phases = append(report.Phases, PhaseEntry{
		Phase:  "dedup",
		Status: "completed",
		Details: map[string]interface{}{
			"unique":     len(unique),
			"duplicates": report.Duplicates,
		},
	})

	phases := []struct {
		name string
		run  func(context.Context, []*alerts.Alert, *Report) (map[string]interface{}, error)
	}{
		{"enrichment", o.runEnrichment},
		{"correlation", o.runCorrelation},
		{"triage", o.runTriage},
		{"automation", o.runAutomation},
	}

	for _, phase := range phases {
		details, err := phase.run(ctx, unique, report)
		if err != nil {
			report.Phases = append(report.Phases, PhaseEntry{
				Phase:  phase.name,
				Status: "error",
				Error:  err.Error(),
			})
			log.Printf("Pipeline run %s aborted in %s phase: %v", report.RunID, phase.name, err)
			break
		}
		report.Phases = append(report.Phases, PhaseEntry{
			Phase:   phase.name,
			Status:  "completed",
			Details: details,
		})
	}

	completed := 0
	for _, entry := range report.Phases {
		if entry.Status == "completed" {
			completed++
		}
	}

	report.DurationMS = time.Since(now).Milliseconds()
	o.stats.record(report.Processed, completed, len(report.Correlations), len(report.Automations))
	report.Stats = o.stats.Snapshot()

	log.Printf("Pipeline run %s finished in %dms: %d processed, %d correlations, %d automations",
		report.RunID, report.DurationMS, report.Processed, len(report.Correlations), len(report.Automations))
	return report
}

// runEnrichment attaches static contextual annotations to every alert
func (o *Orchestrator) runEnrichment(ctx context.Context, batch []*alerts.Alert, report *Report) (map[string]interface{}, error) {
	now := time.Now().UTC()
	for _, a := range batch {
		a.Enrich("processed_by", "alertforge-pipeline", "enrichment", now)
		a.Enrich("processed_at", now.Format(time.RFC3339), "enrichment", now)
		if a.Service != "" {
			a.Enrich("service", a.Service, "enrichment", now)
		}
	}
	return map[string]interface{}{"enriched": len(batch)}, nil
}

// runCorrelation applies entity and temporal correlation to the batch, then
// scores every surviving alert against the live incident stream so even a
// singleton ingest gets an incident assignment.
func (o *Orchestrator) runCorrelation(ctx context.Context, batch []*alerts.Alert, report *Report) (map[string]interface{}, error) {
	now := time.Now().UTC()
	correlations := o.correlator.Correlate(batch, now)
	report.Correlations = append(report.Correlations, correlations...)

	for _, a := range batch {
		match := o.correlator.CorrelateLive(a)
		a.Enrich("incident_id", match.IncidentID, "correlation", now)
		report.Incidents = append(report.Incidents, IncidentMatch{
			AlertID:    a.ID,
			IncidentID: match.IncidentID,
			Confidence: match.Confidence,
		})
	}

	return map[string]interface{}{
		"correlations": len(correlations),
		"incidents":    len(report.Incidents),
	}, nil
}

// runTriage asks the AI collaborator for a summary of every critical alert.
// Non-critical alerts never reach the collaborator.
func (o *Orchestrator) runTriage(ctx context.Context, batch []*alerts.Alert, report *Report) (map[string]interface{}, error) {
	triaged := 0
	for _, a := range batch {
		if a.Severity != alerts.SeverityCritical {
			continue
		}
		result, err := o.triager.Triage(ctx, a)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("triage interrupted: %w", err)
			}
			log.Printf("Triage failed for alert %s: %v", a.ID, err)
			continue
		}
		a.Enrich("triage_summary", result.Summary, "triage", time.Now().UTC())
		report.TriageInsights = append(report.TriageInsights, TriageInsight{
			AlertID:    a.ID,
			Summary:    result.Summary,
			Confidence: result.Confidence,
		})
		triaged++
	}
	return map[string]interface{}{"triaged": triaged}, nil
}

// runAutomation acknowledges every non-critical alert and fires the
// auto-acknowledge workflow for each. Critical alerts are excluded from
// auto-remediation and stay active for a human.
func (o *Orchestrator) runAutomation(ctx context.Context, batch []*alerts.Alert, report *Report) (map[string]interface{}, error) {
	automated := 0
	for _, a := range batch {
		if a.Severity == alerts.SeverityCritical {
			continue
		}
		a.Status = alerts.StatusAcknowledged
		reason := fmt.Sprintf("auto-acknowledged: %s severity below critical threshold", a.Severity)
		report.Automations = append(report.Automations, Automation{
			AlertID: a.ID,
			Action:  "auto_acknowledge",
			Reason:  reason,
		})
		automated++

		if o.workflows == nil || o.autoAckFlowID == "" {
			continue
		}
		_, err := o.workflows.Execute(ctx, o.autoAckFlowID, "alert.auto_acknowledge", map[string]interface{}{
			"alert": map[string]interface{}{
				"id":       a.ID,
				"title":    a.Title,
				"severity": string(a.Severity),
				"service":  a.Service,
				"source":   a.Source,
			},
			"reason": reason,
		})
		if err != nil {
			if errors.Is(err, workflow.ErrWorkflowNotFound) {
				log.Printf("Auto-acknowledge workflow %q not loaded, skipping", o.autoAckFlowID)
				continue
			}
			return nil, fmt.Errorf("automation workflow failed: %w", err)
		}
	}
	return map[string]interface{}{"automated": automated}, nil
}
