package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"udl/internal/engine/webhooks"
	"udl/internal/platform/repositories"
)

type HealthHandler struct {
	db           *sql.DB
	queue        *webhooks.Queue
	deliveryRepo *repositories.DeliveryRepository
}

func NewHealthHandler(db *sql.DB, queue *webhooks.Queue, deliveryRepo *repositories.DeliveryRepository) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, deliveryRepo: deliveryRepo}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	degraded := false

	if err := h.db.Ping(); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		degraded = true
	} else {
		checks["database"] = "healthy"
	}

	failedLastHour := 0
	if n, err := h.deliveryRepo.CountFailedSince(time.Now().Add(-time.Hour).Unix()); err != nil {
		checks["deliveries"] = "unhealthy: " + err.Error()
		degraded = true
	} else {
		failedLastHour = n
		if n > 0 {
			// Failed outbound deliveries are worth surfacing but destinations
			// being down does not make this service unhealthy.
			checks["deliveries"] = fmt.Sprintf("%d failed in the last hour", n)
		} else {
			checks["deliveries"] = "healthy"
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if degraded {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	response := struct {
		Status         string            `json:"status"`
		Timestamp      int64             `json:"timestamp"`
		QueueSize      int               `json:"queue_size"`
		FailedLastHour int               `json:"failed_deliveries_last_hour"`
		Checks         map[string]string `json:"checks"`
	}{
		Status:         status,
		Timestamp:      time.Now().Unix(),
		QueueSize:      h.queue.Size(),
		FailedLastHour: failedLastHour,
		Checks:         checks,
	}

	writeJSON(w, statusCode, response)
}
