package alerts

import "net/http"

// Adapter defines the interface for source-specific alert parsing
type Adapter interface {
	// SourceType returns the source type name (e.g., "alertmanager")
	SourceType() string

	// ValidateSecret validates the incoming webhook using the configured
	// secret. An empty secret disables validation for that source.
	ValidateSecret(r *http.Request, body []byte, secret string) error

	// ParsePayload parses the raw request body into normalized alerts.
	// A single webhook can contain multiple alerts (e.g., Alertmanager groups).
	ParsePayload(body []byte) ([]Alert, error)
}

// BaseAdapter provides common functionality for all adapters
type BaseAdapter struct {
	Source string
}

// SourceType returns the source type name
func (b *BaseAdapter) SourceType() string {
	return b.Source
}
