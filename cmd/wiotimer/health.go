package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/wiotimer/internal/connection"
	"github.com/rickgao/wiotimer/internal/version"
)

// newHandler serves Prometheus metrics on metricsPath and a JSON /health
// report on the hub connection.
func newHandler(gatherer prometheus.Gatherer, metricsPath string, registry *connection.Registry, socketID string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string                 `json:"status"`
			Version    map[string]string      `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Fields(),
			Components: make(map[string]interface{}),
		}

		state, ok := registry.State(socketID)
		switch {
		case !ok:
			health.Status = "unhealthy"
			health.Components["hub"] = map[string]string{"status": "unregistered"}
		case state != connection.StateOpen:
			health.Status = "degraded"
			health.Components["hub"] = map[string]string{"status": state.String()}
		default:
			hub := map[string]string{"status": state.String()}
			if h, ok := registry.Get(socketID); ok {
				hub["session"] = h.Session()
			}
			health.Components["hub"] = hub
		}

		stats := registry.Stats()
		health.Components["registry"] = map[string]int{
			"registered": stats.Registered,
			"open":       stats.Open,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
