package handler

import (
	"context"
	"net/http"
	"time"

	"taskspace/pkg/response"
)

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"service": "taskspace", "status": "healthy", "store": "up"}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if up, err := h.store.Ping(ctx); err != nil || !up {
			status["status"] = "degraded"
			status["store"] = "down"
			response.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}

	response.Success(w, status)
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) (bool, error)

func (f PingFunc) Ping(ctx context.Context) (bool, error) {
	return f(ctx)
}
