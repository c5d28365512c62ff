package ports

import (
	"context"
	"detour-route-service/internal/domain"
)

// Contract for reachable-area polygons.
type IsochroneProvider interface {
	// Isochrone returns the outer ring reachable from center within minutes.
	// Callers cap minutes to the provider maximum before calling.
	Isochrone(ctx context.Context, center domain.Coordinates, minutes int, mode domain.TravelMode) ([]domain.Coordinates, error)
}
