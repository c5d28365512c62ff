package ports

import (
	"context"
	"detour-route-service/internal/domain"
)

type DirectionsRequest struct {
	Points       []domain.Coordinates
	Mode         domain.TravelMode
	Constraints  domain.Constraints
	Alternatives bool
}

// Distance, duration and geometry of one provider route through all
// requested points.
type Leg struct {
	DistanceMeters  float64
	DurationSeconds int
	Instructions    []string
	EncodedPath     string
}

// Contract for point-to-point routing.
type Directions interface {
	// Route returns at least one leg, or an error matching
	// domain.ErrNoRouteFound when the provider has no route.
	// Alternatives are only honored for two-point requests.
	Route(ctx context.Context, req DirectionsRequest) ([]Leg, error)
}
