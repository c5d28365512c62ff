package handlers

import (
	"context"
	"detour-route-service/internal/services"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// HealthHandler reports liveness plus the state of each component.
type HealthHandler struct {
	// Components maps a component name to a static description such as
	// "ors" or "mock".
	Components map[string]string
	Checks     map[string]Check
	Stats      func() services.Stats
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	res := gin.H{
		"status":     status,
		"components": h.Components,
		"checks":     checks,
	}
	if h.Stats != nil {
		res["stats"] = h.Stats()
	}
	c.JSON(http.StatusOK, res)
}
