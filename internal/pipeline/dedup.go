package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/alertforge/alertforge/internal/alerts"
)

// DedupCache suppresses duplicate alerts inside a sliding time window.
// The first alert with a given fingerprint is admitted and recorded; any
// alert with the same fingerprint arriving within the window is a
// duplicate and does not extend the window.
type DedupCache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time

	admitted   int64
	duplicates int64
}

// NewDedupCache creates a deduplication cache with the given window
func NewDedupCache(window time.Duration) *DedupCache {
	return &DedupCache{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// Fingerprint computes the identity hash of an alert from its source,
// service, title and severity. Missing components take the value "unknown"
// so that two alerts missing the same component still collide.
func Fingerprint(a *alerts.Alert) string {
	parts := []string{
		orUnknown(a.Source),
		orUnknown(a.Service),
		orUnknown(a.Title),
		orUnknown(string(a.Severity)),
	}
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// IsDuplicate reports whether the alert is a duplicate of one already
// admitted inside the window. A non-duplicate is recorded as admitted.
// A fingerprint supplied by the source is honored; one is computed only
// when the alert arrives without it.
func (d *DedupCache) IsDuplicate(a *alerts.Alert, now time.Time) bool {
	fp := a.Fingerprint
	if fp == "" {
		fp = Fingerprint(a)
		a.Fingerprint = fp
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.prune(now)

	if _, ok := d.seen[fp]; ok {
		d.duplicates++
		return true
	}

	d.seen[fp] = now
	d.admitted++
	return false
}

// DeduplicateBatch returns the alerts that are not duplicates, in input
// order. Alerts within the batch deduplicate against each other as well as
// against earlier batches.
func (d *DedupCache) DeduplicateBatch(batch []*alerts.Alert, now time.Time) []*alerts.Alert {
	unique := make([]*alerts.Alert, 0, len(batch))
	for _, a := range batch {
		if !d.IsDuplicate(a, now) {
			unique = append(unique, a)
		}
	}
	log.Printf("Deduplication complete: %d total, %d unique, %d duplicates",
		len(batch), len(unique), len(batch)-len(unique))
	return unique
}

// prune drops entries older than the window. Caller must hold d.mu.
func (d *DedupCache) prune(now time.Time) {
	cutoff := now.Add(-d.window)
	for fp, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, fp)
		}
	}
}

// DedupStats is a point-in-time snapshot of cache counters
type DedupStats struct {
	ActiveFingerprints int           `json:"active_fingerprints"`
	Admitted           int64         `json:"admitted"`
	Duplicates         int64         `json:"duplicates"`
	Window             time.Duration `json:"window"`
}

// Stats returns current cache counters
func (d *DedupCache) Stats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DedupStats{
		ActiveFingerprints: len(d.seen),
		Admitted:           d.admitted,
		Duplicates:         d.duplicates,
		Window:             d.window,
	}
}

// Reset clears all recorded fingerprints but keeps cumulative counters
func (d *DedupCache) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]time.Time)
	d.mu.Unlock()
}
