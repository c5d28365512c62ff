package handlers

import (
	"detour-route-service/internal/domain"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "location not found"
	case errors.Is(err, domain.ErrNoRouteFound):
		return http.StatusUnprocessableEntity, "no route found"
	case errors.Is(err, domain.ErrProviderTimeout):
		return http.StatusGatewayTimeout, "upstream provider timed out"
	case errors.Is(err, domain.ErrProviderError):
		return http.StatusBadGateway, "upstream provider failed"
	}
	return http.StatusInternalServerError, "internal server error"
}
