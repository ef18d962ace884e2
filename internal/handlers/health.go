package handlers

import (
	"net/http"
	"time"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	started time.Time
	ready   func() error
}

// HealthOption customises health handler behaviour.
type HealthOption func(*HealthHandlers)

// WithReadinessCheck registers a readiness probe; a non-nil error marks the
// service unready.
func WithReadinessCheck(check func() error) HealthOption {
	return func(h *HealthHandlers) {
		h.ready = check
	}
}

// NewHealthHandlers constructs health handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{started: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports readiness to take traffic.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}
