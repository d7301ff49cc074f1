package pipeline

import (
	"testing"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

func corrAlert(id, service string, severity alerts.Severity, startedAt time.Time) *alerts.Alert {
	return &alerts.Alert{
		ID:        id,
		Title:     "alert-" + id,
		Severity:  severity,
		Status:    alerts.StatusActive,
		Source:    "test",
		Service:   service,
		StartedAt: startedAt,
	}
}

func TestServiceGrouping(t *testing.T) {
	engine := NewCorrelationEngine(5 * time.Minute)
	now := time.Now().UTC()

	// a1/a2 share a service an hour apart, so only entity grouping fires.
	a1 := corrAlert("a1", "payments", alerts.SeverityCritical, now)
	a2 := corrAlert("a2", "payments", alerts.SeverityHigh, now.Add(time.Hour))
	a3 := corrAlert("a3", "search", alerts.SeverityHigh, now.Add(2*time.Hour))

	correlations := engine.Correlate([]*alerts.Alert{a1, a2, a3}, now)
	if len(correlations) != 1 {
		t.Fatalf("expected 1 correlation, got %d", len(correlations))
	}

	c := correlations[0]
	if c.Pattern != "service_failure" {
		t.Errorf("pattern = %s, want service_failure", c.Pattern)
	}
	if c.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", c.Confidence)
	}
	if c.Service != "payments" {
		t.Errorf("service = %s, want payments", c.Service)
	}
	if len(c.AlertIDs) != 2 {
		t.Errorf("expected 2 members, got %d", len(c.AlertIDs))
	}
	if a1.CorrelationID != c.ID || a2.CorrelationID != c.ID {
		t.Error("group members must carry the correlation id")
	}
	if a3.CorrelationID != "" {
		t.Error("singleton service must not be correlated")
	}
}

func TestNoServiceNoGrouping(t *testing.T) {
	engine := NewCorrelationEngine(time.Minute)
	now := time.Now().UTC()

	a1 := corrAlert("a1", "", alerts.SeverityHigh, now)
	a2 := corrAlert("a2", "", alerts.SeverityHigh, now.Add(time.Hour))

	correlations := engine.Correlate([]*alerts.Alert{a1, a2}, now)
	if len(correlations) != 0 {
		t.Errorf("alerts without a service must not group, got %d correlations", len(correlations))
	}
}

func TestTemporalProximity(t *testing.T) {
	engine := NewCorrelationEngine(5 * time.Minute)
	now := time.Now().UTC()

	a1 := corrAlert("a1", "api", alerts.SeverityHigh, now)
	a2 := corrAlert("a2", "db", alerts.SeverityCritical, now.Add(2*time.Minute))
	a3 := corrAlert("a3", "cache", alerts.SeverityHigh, now.Add(20*time.Minute))

	correlations := engine.Correlate([]*alerts.Alert{a1, a2, a3}, now)
	if len(correlations) != 1 {
		t.Fatalf("expected 1 temporal correlation, got %d", len(correlations))
	}
	c := correlations[0]
	if c.Pattern != "temporal_proximity" || c.Confidence != 0.75 {
		t.Errorf("got pattern=%s confidence=%v, want temporal_proximity 0.75", c.Pattern, c.Confidence)
	}
	if len(c.AlertIDs) != 2 || c.AlertIDs[0] != "a1" || c.AlertIDs[1] != "a2" {
		t.Errorf("unexpected members: %v", c.AlertIDs)
	}
}

func TestBothStrategiesReportSamePair(t *testing.T) {
	engine := NewCorrelationEngine(5 * time.Minute)
	now := time.Now().UTC()

	// Same service and within the window: both strategies report the pair.
	// Correlation records are intentionally not cross-deduplicated.
	a1 := corrAlert("a1", "payments", alerts.SeverityCritical, now)
	a2 := corrAlert("a2", "payments", alerts.SeverityHigh, now.Add(time.Minute))

	correlations := engine.Correlate([]*alerts.Alert{a1, a2}, now)
	if len(correlations) != 2 {
		t.Fatalf("expected 2 correlations (entity + temporal), got %d", len(correlations))
	}

	patterns := map[string]bool{}
	for _, c := range correlations {
		patterns[c.Pattern] = true
	}
	if !patterns["service_failure"] || !patterns["temporal_proximity"] {
		t.Errorf("expected both patterns, got %v", patterns)
	}
}

func TestCorrelateLive(t *testing.T) {
	engine := NewCorrelationEngine(5 * time.Minute)

	tests := []struct {
		name       string
		severity   alerts.Severity
		confidence float64
	}{
		{"critical", alerts.SeverityCritical, 0.95},
		{"high", alerts.SeverityHigh, 0.85},
		{"medium", alerts.SeverityMedium, 0.75},
		{"low", alerts.SeverityLow, 0.70},
		{"info", alerts.SeverityInfo, 0.70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &alerts.Alert{Source: "s", Service: "api", Title: "X", Severity: tt.severity}
			match := engine.CorrelateLive(a)

			if match.Confidence != tt.confidence {
				t.Errorf("confidence = %v, want %v", match.Confidence, tt.confidence)
			}
			if len(match.IncidentID) != len("inc-")+8 {
				t.Errorf("incident id %q has unexpected length", match.IncidentID)
			}
			if a.Fingerprint == "" {
				t.Error("CorrelateLive must populate the fingerprint")
			}
		})
	}

	t.Run("same failure lands on same incident", func(t *testing.T) {
		a := &alerts.Alert{Source: "s", Service: "api", Title: "X", Severity: alerts.SeverityHigh}
		b := &alerts.Alert{Source: "s", Service: "api", Title: "X", Severity: alerts.SeverityHigh}
		if engine.CorrelateLive(a).IncidentID != engine.CorrelateLive(b).IncidentID {
			t.Error("identical alerts must map to the same incident")
		}
	})
}

func TestCorrelateLiveSuppliedFingerprint(t *testing.T) {
	engine := NewCorrelationEngine(5 * time.Minute)

	tests := []struct {
		name        string
		fingerprint string
		incidentID  string
	}{
		{"short upstream fingerprint", "abc", "inc-abc"},
		{"exactly eight chars", "12345678", "inc-12345678"},
		{"long upstream fingerprint", "deadbeefcafe", "inc-deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &alerts.Alert{Source: "s", Service: "api", Title: "X",
				Severity: alerts.SeverityHigh, Fingerprint: tt.fingerprint}
			match := engine.CorrelateLive(a)
			if match.IncidentID != tt.incidentID {
				t.Errorf("incident id = %q, want %q", match.IncidentID, tt.incidentID)
			}
		})
	}
}
