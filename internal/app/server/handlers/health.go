package handlers

import (
	"net/http"
	"time"

	"novahub/internal/core/domain"
	"novahub/internal/core/services"
)

type HealthHandler struct {
	service string
	now     func() time.Time
}

func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service, now: time.Now}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": domain.FormatTimestamp(h.now()),
		"service":   h.service,
	})
}

type StatsHandler struct {
	manager *services.ManagerService
}

func NewStatsHandler(manager *services.ManagerService) *StatsHandler {
	return &StatsHandler{manager: manager}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.manager.Stats())
}
