// handler.go — основной обработчик API, объединяющий /oai и health endpoints.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIHandler — основной обработчик API OAI-провайдера.
// Реализует server.Handler, делегируя запросы в OAIHandler и HealthHandler.
type APIHandler struct {
	oai    *OAIHandler
	health *HealthHandler
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	oai *OAIHandler,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		oai:    oai,
		health: health,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// ServeOAI — запрос OAI-PMH.
func (h *APIHandler) ServeOAI(w http.ResponseWriter, r *http.Request) {
	h.oai.ServeOAI(w, r)
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
