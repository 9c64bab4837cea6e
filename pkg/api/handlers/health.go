package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/wolflogic/wolfmem/pkg/api/response"
)

// Pinger reports whether the memory store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store Pinger
	// dirs maps a service name to the queue directory it depends on.
	dirs map[string]string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, dirs map[string]string) *HealthHandler {
	return &HealthHandler{store: store, dirs: dirs}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Database  string            `json:"database"`
	Services  map[string]string `json:"services"`
}

// Health handles the /health endpoint. The database ping and each queue
// directory probe contribute to the healthy vs degraded distinction, so
// the response names the subsystem that is failing.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthy := true

	database := "connected"
	if err := h.store.Ping(r.Context()); err != nil {
		database = "unreachable"
		healthy = false
	}

	services := make(map[string]string, len(h.dirs))
	for name, dir := range h.dirs {
		info, err := os.Stat(dir)
		switch {
		case err != nil:
			services[name] = "missing"
			healthy = false
		case !info.IsDir():
			services[name] = "not a directory"
			healthy = false
		default:
			services[name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response.JSON(w, code, healthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  database,
		Services:  services,
	})
}

// Ready handles the /ready endpoint (readiness probe). Only the store
// matters here; a missing queue directory degrades but does not block.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}
