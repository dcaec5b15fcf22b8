package handler

import (
	"context"
	"net/http"
	"time"

	"userdesk/internal/app/service"
	"userdesk/internal/common"
	"userdesk/internal/platform/logging"

	"github.com/go-chi/chi/v5"
)

const readyTimeout = 2 * time.Second

type HealthHandler struct {
	userService *service.UserService
}

func NewHealthHandler(us *service.UserService) *HealthHandler {
	return &HealthHandler{userService: us}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/readyz", h.ready)
}

func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ready fails only when the database is unreachable; a broken cache is
// reported but degrades to direct database reads.
func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	dbErr, cacheErr := h.userService.Ping(ctx)
	resp := readyResponse{Status: "ok", Checks: map[string]string{"database": "ok", "cache": "ok"}}
	status := http.StatusOK

	if cacheErr != nil {
		logging.FromContext(ctx).Warn("readiness: cache unreachable", "error", cacheErr)
		resp.Checks["cache"] = "degraded"
	}
	if dbErr != nil {
		logging.FromContext(ctx).Error("readiness: database unreachable", "error", dbErr)
		resp.Checks["database"] = "unavailable"
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	common.RespondWithJSON(w, status, resp)
}
