package pipeline

import (
	"log"
	"sort"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
	"github.com/google/uuid"
)

// Correlation groups related alerts under a shared incident pattern
type Correlation struct {
	ID         string    `json:"id"`
	Pattern    string    `json:"pattern"`
	Confidence float64   `json:"confidence"`
	AlertIDs   []string  `json:"alert_ids"`
	Service    string    `json:"service,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LiveMatch is the result of correlating a single incoming alert against an
// existing incident stream.
type LiveMatch struct {
	IncidentID string  `json:"incident_id"`
	Confidence float64 `json:"confidence"`
}

// CorrelationEngine detects related alerts through entity grouping and
// temporal proximity.
type CorrelationEngine struct {
	temporalWindow time.Duration
}

// NewCorrelationEngine creates a correlation engine with the given temporal
// proximity window.
func NewCorrelationEngine(temporalWindow time.Duration) *CorrelationEngine {
	return &CorrelationEngine{temporalWindow: temporalWindow}
}

// Correlate runs entity grouping followed by temporal pairing over a batch
// of alerts and stamps each correlated alert with its correlation ID via
// the most recent correlation that claims it.
func (c *CorrelationEngine) Correlate(batch []*alerts.Alert, now time.Time) []Correlation {
	correlations := make([]Correlation, 0)
	correlations = append(correlations, c.groupByService(batch, now)...)
	correlations = append(correlations, c.temporalPairs(batch, now)...)

	byID := make(map[string]*alerts.Alert, len(batch))
	for _, a := range batch {
		byID[a.ID] = a
	}
	for _, corr := range correlations {
		for _, id := range corr.AlertIDs {
			if a, ok := byID[id]; ok {
				a.CorrelationID = corr.ID
			}
		}
	}

	log.Printf("Correlation complete: %d alerts, %d correlations", len(batch), len(correlations))
	return correlations
}

// groupByService emits one correlation per service that has two or more
// alerts in the batch. Alerts without a service are never grouped.
func (c *CorrelationEngine) groupByService(batch []*alerts.Alert, now time.Time) []Correlation {
	groups := make(map[string][]*alerts.Alert)
	for _, a := range batch {
		if a.Service == "" {
			continue
		}
		groups[a.Service] = append(groups[a.Service], a)
	}

	services := make([]string, 0, len(groups))
	for svc := range groups {
		services = append(services, svc)
	}
	sort.Strings(services)

	correlations := make([]Correlation, 0)
	for _, svc := range services {
		members := groups[svc]
		if len(members) < 2 {
			continue
		}
		ids := make([]string, 0, len(members))
		for _, a := range members {
			ids = append(ids, a.ID)
		}
		correlations = append(correlations, Correlation{
			ID:         uuid.New().String(),
			Pattern:    "service_failure",
			Confidence: 0.85,
			AlertIDs:   ids,
			Service:    svc,
			CreatedAt:  now,
		})
	}
	return correlations
}

// temporalPairs emits one correlation per ordered pair of distinct alerts
// whose start times fall within the temporal window.
func (c *CorrelationEngine) temporalPairs(batch []*alerts.Alert, now time.Time) []Correlation {
	correlations := make([]Correlation, 0)
	for i := 0; i < len(batch); i++ {
		for j := i + 1; j < len(batch); j++ {
			gap := batch[j].StartedAt.Sub(batch[i].StartedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap > c.temporalWindow {
				continue
			}
			correlations = append(correlations, Correlation{
				ID:         uuid.New().String(),
				Pattern:    "temporal_proximity",
				Confidence: 0.75,
				AlertIDs:   []string{batch[i].ID, batch[j].ID},
				CreatedAt:  now,
			})
		}
	}
	return correlations
}

// CorrelateLive scores a single alert against the running incident stream.
// The incident identity derives from the alert fingerprint, so repeats of
// the same failure land on the same incident. Confidence starts at a 0.70
// baseline and grows with severity, capped at 1.0.
func (c *CorrelationEngine) CorrelateLive(a *alerts.Alert) LiveMatch {
	fp := a.Fingerprint
	if fp == "" {
		fp = Fingerprint(a)
		a.Fingerprint = fp
	}

	// Supplied fingerprints may be shorter than the 8 chars the incident
	// id truncates to.
	short := fp
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		short = "auto"
	}

	confidence := 0.70
	switch a.Severity {
	case alerts.SeverityCritical:
		confidence += 0.25
	case alerts.SeverityHigh:
		confidence += 0.15
	case alerts.SeverityMedium:
		confidence += 0.05
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return LiveMatch{
		IncidentID: "inc-" + short,
		Confidence: confidence,
	}
}
