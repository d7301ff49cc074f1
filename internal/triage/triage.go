package triage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

// Result is the outcome of an AI triage request for one alert
type Result struct {
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// Triager summarizes an alert for on-call responders. Implementations must
// honor ctx cancellation and return promptly when it expires.
type Triager interface {
	Triage(ctx context.Context, a *alerts.Alert) (Result, error)
}

// SimulatedTriager produces deterministic placeholder summaries without
// calling an external model. It is the default collaborator and the fallback
// when a real one fails.
type SimulatedTriager struct {
	Delay time.Duration
}

// NewSimulatedTriager creates a triager with no artificial delay
func NewSimulatedTriager() *SimulatedTriager {
	return &SimulatedTriager{}
}

func (t *SimulatedTriager) Triage(ctx context.Context, a *alerts.Alert) (Result, error) {
	if t.Delay > 0 {
		select {
		case <-time.After(t.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	service := a.Service
	if service == "" {
		service = "unknown service"
	}

	return Result{
		Summary: fmt.Sprintf("%s alert %q on %s from %s requires operator review",
			a.Severity, a.Title, service, a.Source),
		Confidence: 0.80,
	}, nil
}

// WithFallback wraps a primary triager and falls back to the simulated one
// when the primary fails or times out.
type WithFallback struct {
	Primary  Triager
	Fallback Triager
	Timeout  time.Duration
}

// NewWithFallback wraps primary with a simulated fallback and per-request timeout
func NewWithFallback(primary Triager, timeout time.Duration) *WithFallback {
	return &WithFallback{
		Primary:  primary,
		Fallback: NewSimulatedTriager(),
		Timeout:  timeout,
	}
}

func (w *WithFallback) Triage(ctx context.Context, a *alerts.Alert) (Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	result, err := w.Primary.Triage(reqCtx, a)
	if err == nil {
		return result, nil
	}

	log.Printf("Triage failed for alert %s, using fallback: %v", a.ID, err)
	return w.Fallback.Triage(ctx, a)
}
