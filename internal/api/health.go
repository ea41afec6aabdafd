package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/EpaphrasSam/verse-catch/internal/ingest"
)

// HealthChecker reports readiness of the translation store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionReporter reports broker connectivity.
type ConnectionReporter interface {
	IsConnected() bool
}

// WatcherReporter reports drop-folder watcher state.
type WatcherReporter interface {
	Status() ingest.WatcherStatus
}

// HealthResponse is the body for GET /api/v1/health.
type HealthResponse struct {
	Status        string                `json:"status"`
	Version       string                `json:"version"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Checks        map[string]string     `json:"checks"`
	Watcher       *ingest.WatcherStatus `json:"watcher,omitempty"`
}

// HealthHandler aggregates component checks into one readiness endpoint.
// MQTT and the watcher are optional; nil means not configured.
type HealthHandler struct {
	db        HealthChecker
	mqtt      ConnectionReporter
	watcher   WatcherReporter
	version   string
	startTime time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db HealthChecker, mqtt ConnectionReporter, watcher WatcherReporter, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		watcher:   watcher,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	if h.watcher != nil {
		ws := h.watcher.Status()
		checks["file_watcher"] = ws.Status
		resp.Watcher = &ws
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
