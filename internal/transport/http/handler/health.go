package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 2 * time.Second

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

// HealthEnvelope lists the dependencies that failed a readiness check.
type HealthEnvelope struct {
	Message string   `json:"message"`
	Failing []string `json:"failing,omitempty"`
}

// HealthHandler serves liveness ("ping") and readiness ("ready") checks.
type HealthHandler struct {
	probes map[string]Probe
}

func NewHealthHandler(probes map[string]Probe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		h.ready(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	var failing []string
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			slog.Warn("readiness probe failed", "dependency", name, "err", err)
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		writeJSON(w, http.StatusServiceUnavailable, HealthEnvelope{Message: "not ready", Failing: failing})
		return
	}
	writeJSON(w, http.StatusOK, HealthEnvelope{Message: "ready"})
}
