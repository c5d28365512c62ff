package ports

import (
	"context"
	"detour-route-service/internal/domain"
)

// Contract for resolving free-form place text to coordinates.
type Geocoder interface {
	// Resolve returns the best match for address or an error matching
	// domain.ErrNotFound when nothing matches.
	Resolve(ctx context.Context, address string) (domain.Coordinates, error)
}
