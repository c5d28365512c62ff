package ports

import (
	"context"
	"detour-route-service/internal/domain"
)

// Contract for reordering interior stops between a fixed start and end.
type TripOptimizer interface {
	// Order returns interior reordered; the result is a permutation of interior.
	Order(ctx context.Context, start, end domain.Coordinates, interior []domain.Coordinates, mode domain.TravelMode) ([]domain.Coordinates, error)
}
