package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HealthAggregator answers GET /health on the external port by querying the
// REST backend's own /health endpoint with a short timeout.
//
// The response status is always 200, even when the payload reports
// "unhealthy": existing monitors inspect the body, not the HTTP status, and
// that contract is preserved deliberately.
type HealthAggregator struct {
	rest   Target
	client *http.Client
	logger *slog.Logger
}

// NewHealthAggregator creates a HealthAggregator targeting the REST backend.
// The timeout is distinct from the general proxy timeout; health checks must
// fail fast.
func NewHealthAggregator(rest Target, timeout time.Duration, logger *slog.Logger) *HealthAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthAggregator{
		rest: rest,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "HealthAggregator"),
	}
}

// ServeHTTP relays the REST backend's health payload verbatim, or synthesizes
// an unhealthy payload when the backend is unreachable.
func (h *HealthAggregator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := h.rest.URL().String() + "/health"

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		h.writeUnhealthy(w, err)
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("Health check failed", "url", url, "error", err)
		h.writeUnhealthy(w, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.Error("Health check read failed", "url", url, "error", err)
		h.writeUnhealthy(w, err)
		return
	}
	if !json.Valid(body) {
		h.logger.Error("Health check returned non-JSON payload", "url", url)
		h.writeUnhealthy(w, fmt.Errorf("backend health payload is not valid JSON"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *HealthAggregator) writeUnhealthy(w http.ResponseWriter, cause error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "unhealthy",
		"error":  cause.Error(),
	})
}
