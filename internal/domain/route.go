package domain

import "fmt"

type TravelMode string

const (
	ModeWalking TravelMode = "walking"
	ModeDriving TravelMode = "driving"
	ModeCycling TravelMode = "cycling"
)

// ParseTravelMode maps loose mode names onto the supported modes.
func ParseTravelMode(s string) (TravelMode, error) {
	switch s {
	case "walking", "walk", "foot", "foot-walking":
		return ModeWalking, nil
	case "driving", "drive", "car", "driving-car":
		return ModeDriving, nil
	case "cycling", "bike", "bicycle", "cycling-regular":
		return ModeCycling, nil
	}
	return "", fmt.Errorf("parse travel mode %q: %w", s, ErrInvalidInput)
}

// Routing constraints requested by the user. Avoid flags a provider cannot
// honor for the chosen mode are ignored, not rejected.
type Constraints struct {
	TransportMode TravelMode `json:"transport_mode"`
	AvoidTolls    bool       `json:"avoid_tolls"`
	AvoidFerries  bool       `json:"avoid_ferries"`
	AvoidStairs   bool       `json:"avoid_stairs"`
	AvoidHighways bool       `json:"avoid_highways"`
	AvoidHills    bool       `json:"avoid_hills"`
}

// One point-to-point hop between two consecutive stops on a route.
type RouteSegment struct {
	Start           Coordinates `json:"start"`
	End             Coordinates `json:"end"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds int         `json:"duration_seconds"`
	Instructions    []string    `json:"instructions"`
	EncodedPath     string      `json:"polyline"`
}

// A complete route from origin to destination through ordered waypoints.
// Segments has exactly one more entry than Waypoints and the totals are the
// sums over segments. Routes are not mutated after NewRoute returns.
type Route struct {
	Origin               Coordinates    `json:"origin"`
	Destination          Coordinates    `json:"destination"`
	Waypoints            []Waypoint     `json:"waypoints"`
	Segments             []RouteSegment `json:"segments"`
	TotalDistanceMeters  float64        `json:"total_distance_meters"`
	TotalDurationSeconds int            `json:"total_duration_seconds"`
	Constraints          Constraints    `json:"constraints_applied"`
	SourceQueries        []string       `json:"input_queries"`
}

// NewRoute assembles a Route and derives its totals and source queries.
func NewRoute(
	origin, destination Coordinates,
	waypoints []Waypoint,
	segments []RouteSegment,
	constraints Constraints,
) (Route, error) {
	if len(segments) != len(waypoints)+1 {
		return Route{}, fmt.Errorf(
			"new route: %d segments for %d waypoints: %w",
			len(segments), len(waypoints), ErrInvalidInput,
		)
	}

	r := Route{
		Origin:      origin,
		Destination: destination,
		Waypoints:   append([]Waypoint(nil), waypoints...),
		Segments:    append([]RouteSegment(nil), segments...),
		Constraints: constraints,
	}
	for _, s := range segments {
		r.TotalDistanceMeters += s.DistanceMeters
		r.TotalDurationSeconds += s.DurationSeconds
	}

	seen := make(map[string]struct{}, len(waypoints))
	for _, w := range waypoints {
		if w.SourceQuery == "" {
			continue
		}
		if _, ok := seen[w.SourceQuery]; ok {
			continue
		}
		seen[w.SourceQuery] = struct{}{}
		r.SourceQueries = append(r.SourceQueries, w.SourceQuery)
	}

	return r, nil
}

// Validate checks the structural invariants of a route.
func (r Route) Validate() error {
	if len(r.Segments) != len(r.Waypoints)+1 {
		return fmt.Errorf("route: %d segments for %d waypoints", len(r.Segments), len(r.Waypoints))
	}

	var meters float64
	var seconds int
	for _, s := range r.Segments {
		meters += s.DistanceMeters
		seconds += s.DurationSeconds
	}
	if seconds != r.TotalDurationSeconds || meters != r.TotalDistanceMeters {
		return fmt.Errorf("route: totals do not match segment sums")
	}
	return nil
}
