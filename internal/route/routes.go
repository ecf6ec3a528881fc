package route

import (
	"net/http"

	"pairgen/internal/handler"
	"pairgen/internal/logger"
	"pairgen/internal/service/websocket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the progress stream, metrics and health endpoints.
func SetupRoutes(hub *websocket.HubService, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/progress", handler.ProgressWebsocketHandler(hub, logger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handler.HealthHandler)

	return mux
}
