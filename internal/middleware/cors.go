package middleware

import (
	"net/http"
	"strings"
)

// CORSMiddleware handles Cross-Origin Resource Sharing for the dashboard
// and API clients. With no configured origins every origin is allowed.
type CORSMiddleware struct {
	allowedOrigins []string
	allowAll       bool
}

// NewCORSMiddleware creates a CORS middleware for the given origins
func NewCORSMiddleware(allowedOrigins ...string) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
		allowAll:       len(allowedOrigins) == 0,
	}
}

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS, PATCH"
	// X-Webhook-Signature lets browser-based tooling replay signed webhooks
	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With, X-Webhook-Signature"
)

// Wrap wraps an http.Handler with CORS headers and preflight handling
func (c *CORSMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Credentials", "true")
			// Clients correlate responses with server logs via the request ID
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *CORSMiddleware) originAllowed(origin string) bool {
	if c.allowAll {
		return true
	}
	for _, allowed := range c.allowedOrigins {
		if strings.EqualFold(allowed, origin) || allowed == "*" {
			return true
		}
	}
	return false
}
