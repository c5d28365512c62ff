package ports

import (
	"context"
	"detour-route-service/internal/domain"
)

// Contract for finding ranked points of interest inside a zone.
type WaypointSearcher interface {
	// Search returns waypoints inside ring matching any of the tag queries,
	// each carrying its relevance score and the query that produced it.
	Search(ctx context.Context, ring []domain.Coordinates, queries []string) ([]domain.Waypoint, error)
}
