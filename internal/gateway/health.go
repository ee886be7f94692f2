// ABOUTME: Health, status and metrics HTTP handlers
// ABOUTME: Health reports storage reachability in the body and always answers 200

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthTimeout bounds the storage probe
const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

type statusResponse struct {
	App         string `json:"app"`
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

// handleHealth probes the store.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusOK, healthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Database: "connected"})
}

// handleRoot reports the deployment identity.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		App:         g.config.App.Name,
		Status:      "running",
		Environment: g.config.App.Environment,
	})
}

func (g *Gateway) metricsHandler() http.Handler {
	return promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})
}
