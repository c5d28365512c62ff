package services

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/ports"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Offset of a synthetic via point from the route midpoint.
const viaOffsetMeters = 250

type RouteBuilderConfig struct {
	// Most stops, endpoints included, handed to the trip optimizer.
	ReorderLimit int
}

// RouteBuilder turns an ordered waypoint subset into a concrete route with
// one directions call per leg.
type RouteBuilder struct {
	directions ports.Directions
	optimizer  ports.TripOptimizer
	cfg        RouteBuilderConfig
	log        *zap.Logger
}

// NewRouteBuilder returns a builder. optimizer may be nil, in which case
// waypoints keep their given order.
func NewRouteBuilder(
	directions ports.Directions,
	optimizer ports.TripOptimizer,
	cfg RouteBuilderConfig,
	log *zap.Logger,
) *RouteBuilder {
	if cfg.ReorderLimit <= 0 {
		cfg.ReorderLimit = 12
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteBuilder{directions: directions, optimizer: optimizer, cfg: cfg, log: log.Named("route_builder")}
}

// BuildRoute chains origin -> waypoints -> destination. With two or more
// waypoints and few enough stops the interior order comes from the trip
// optimizer; any optimizer failure keeps the given order.
func (b *RouteBuilder) BuildRoute(
	ctx context.Context,
	origin, destination domain.Coordinates,
	waypoints []domain.Waypoint,
	constraints domain.Constraints,
) (_ domain.Route, err error) {
	defer obs.Time(ctx, b.log, "route.BuildRoute")(&err)

	ordered := waypoints
	if len(waypoints) >= 2 && 2+len(waypoints) <= b.cfg.ReorderLimit && b.optimizer != nil {
		ordered = b.reorder(ctx, origin, destination, waypoints, constraints.TransportMode)
	}

	stops := make([]domain.Coordinates, 0, len(ordered)+2)
	stops = append(stops, origin)
	for _, w := range ordered {
		stops = append(stops, w.Coordinates)
	}
	stops = append(stops, destination)

	segments := make([]domain.RouteSegment, 0, len(stops)-1)
	for i := 1; i < len(stops); i++ {
		seg, err := b.leg(ctx, []domain.Coordinates{stops[i-1], stops[i]}, constraints)
		if err != nil {
			return domain.Route{}, fmt.Errorf("build route: leg %d: %w", i, err)
		}
		segments = append(segments, seg)
	}

	return domain.NewRoute(origin, destination, ordered, segments, constraints)
}

// BuildDirectRoute is the single-leg route with no waypoints.
func (b *RouteBuilder) BuildDirectRoute(
	ctx context.Context,
	origin, destination domain.Coordinates,
	constraints domain.Constraints,
) (domain.Route, error) {
	return b.BuildRoute(ctx, origin, destination, nil, constraints)
}

// BuildDirectRoutes returns up to maxRoutes waypoint-free routes sorted by
// duration. Native alternatives come first; if there are too few, routes via
// synthetic points north, east, south and west of the midpoint fill in.
func (b *RouteBuilder) BuildDirectRoutes(
	ctx context.Context,
	origin, destination domain.Coordinates,
	constraints domain.Constraints,
	maxRoutes int,
) (_ []domain.Route, err error) {
	defer obs.Time(ctx, b.log, "route.BuildDirectRoutes")(&err)

	if maxRoutes <= 0 {
		maxRoutes = 1
	}

	legs, err := b.directions.Route(ctx, ports.DirectionsRequest{
		Points:       []domain.Coordinates{origin, destination},
		Mode:         constraints.TransportMode,
		Constraints:  constraints,
		Alternatives: maxRoutes > 1,
	})
	if err != nil {
		return nil, fmt.Errorf("build direct routes: %w", err)
	}

	var routes []domain.Route
	for _, l := range legs {
		r, err := domain.NewRoute(origin, destination, nil, []domain.RouteSegment{segmentOf(origin, destination, l)}, constraints)
		if err != nil {
			return nil, fmt.Errorf("build direct routes: %w", err)
		}
		routes = append(routes, r)
	}

	if len(routes) < maxRoutes {
		mid := domain.Midpoint(origin, destination)
		vias := []domain.Coordinates{
			mid.Offset(viaOffsetMeters, 0),
			mid.Offset(0, viaOffsetMeters),
			mid.Offset(-viaOffsetMeters, 0),
			mid.Offset(0, -viaOffsetMeters),
		}
		for _, via := range vias {
			if len(routes) >= maxRoutes {
				break
			}
			seg, err := b.leg(ctx, []domain.Coordinates{origin, via, destination}, constraints)
			if err != nil {
				b.log.Debug("synthetic via route failed", zap.Error(err))
				continue
			}
			r, err := domain.NewRoute(origin, destination, nil, []domain.RouteSegment{seg}, constraints)
			if err != nil {
				continue
			}
			routes = append(routes, r)
		}
	}

	if len(routes) == 0 {
		return nil, domain.NewProviderError("directions", "direct routes", domain.ErrNoRouteFound)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].TotalDurationSeconds < routes[j].TotalDurationSeconds
	})
	if len(routes) > maxRoutes {
		routes = routes[:maxRoutes]
	}
	return routes, nil
}

// reorder asks the trip optimizer for the interior order and maps the
// returned coordinates back onto waypoints.
func (b *RouteBuilder) reorder(
	ctx context.Context,
	origin, destination domain.Coordinates,
	waypoints []domain.Waypoint,
	mode domain.TravelMode,
) []domain.Waypoint {
	interior := make([]domain.Coordinates, len(waypoints))
	for i, w := range waypoints {
		interior[i] = w.Coordinates
	}

	got, err := b.optimizer.Order(ctx, origin, destination, interior, mode)
	if err != nil {
		b.log.Warn("trip optimizer failed, keeping given order", zap.Error(err))
		return waypoints
	}

	ordered, err := permute(waypoints, got)
	if err != nil {
		b.log.Warn("trip optimizer returned invalid order, keeping given order", zap.Error(err))
		return waypoints
	}
	return ordered
}

// permute returns waypoints arranged in the order of coords, which must be
// a permutation of their coordinates.
func permute(waypoints []domain.Waypoint, coords []domain.Coordinates) ([]domain.Waypoint, error) {
	if len(coords) != len(waypoints) {
		return nil, fmt.Errorf("got %d points for %d waypoints", len(coords), len(waypoints))
	}

	used := make([]bool, len(waypoints))
	out := make([]domain.Waypoint, 0, len(waypoints))
	for _, c := range coords {
		found := -1
		for i, w := range waypoints {
			if !used[i] && w.Coordinates.Rounded() == c.Rounded() {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, errors.New("point does not match any waypoint")
		}
		used[found] = true
		out = append(out, waypoints[found])
	}
	return out, nil
}

// leg makes one directions call through points and reports it as a single
// segment from the first to the last point.
func (b *RouteBuilder) leg(ctx context.Context, points []domain.Coordinates, c domain.Constraints) (domain.RouteSegment, error) {
	legs, err := b.directions.Route(ctx, ports.DirectionsRequest{
		Points:      points,
		Mode:        c.TransportMode,
		Constraints: c,
	})
	if err != nil {
		return domain.RouteSegment{}, err
	}
	if len(legs) == 0 {
		return domain.RouteSegment{}, domain.NewProviderError("directions", "route", domain.ErrNoRouteFound)
	}
	return segmentOf(points[0], points[len(points)-1], legs[0]), nil
}

func segmentOf(start, end domain.Coordinates, l ports.Leg) domain.RouteSegment {
	return domain.RouteSegment{
		Start:           start,
		End:             end,
		DistanceMeters:  l.DistanceMeters,
		DurationSeconds: l.DurationSeconds,
		Instructions:    append([]string(nil), l.Instructions...),
		EncodedPath:     l.EncodedPath,
	}
}
