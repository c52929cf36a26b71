package handlers

import (
	"net/http"
	"strconv"

	"udl/internal/engine/webhooks"
	"udl/internal/pkg/errors"
	"udl/internal/platform/repositories"
)

// AdminHandler exposes the read-only observability surface of the webhook
// pipeline.
type AdminHandler struct {
	registry     *webhooks.Registry
	queue        *webhooks.Queue
	deliveryRepo *repositories.DeliveryRepository
}

func NewAdminHandler(registry *webhooks.Registry, queue *webhooks.Queue, deliveryRepo *repositories.DeliveryRepository) *AdminHandler {
	return &AdminHandler{
		registry:     registry,
		queue:        queue,
		deliveryRepo: deliveryRepo,
	}
}

func (h *AdminHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, obj{"size": h.queue.Size()})
}

func (h *AdminHandler) GetRegistrations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, obj{"registrations": h.registry.List()})
}

func (h *AdminHandler) GetDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid limit", nil)
			return
		}
		limit = n
	}

	deliveries, err := h.deliveryRepo.ListRecent(limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list deliveries", nil)
		return
	}
	writeJSON(w, http.StatusOK, obj{"deliveries": deliveries})
}
