// Package mock provides deterministic offline providers. They back the
// PROVIDERS=mock mode and the service tests.
package mock

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/geo"
	"detour-route-service/internal/ports"
	"fmt"
	"math"
	"sync"
)

// Straight-line distance is stretched by this factor to mimic a street grid.
const detourFactor = 1.3

// Speeds in meters per second.
var speeds = map[domain.TravelMode]float64{
	domain.ModeWalking: 1.4,
	domain.ModeCycling: 4.5,
	domain.ModeDriving: 11,
}

func speed(mode domain.TravelMode) float64 {
	if v, ok := speeds[mode]; ok {
		return v
	}
	return speeds[domain.ModeWalking]
}

// Directions answers routing requests from great-circle distance at a fixed
// speed per mode. It is safe for concurrent use.
type Directions struct {
	// Alternates is how many extra routes a two-point request with
	// Alternatives yields. Each is 10% longer than the previous.
	Alternates int
	// NoRoute makes a request fail with ErrNoRouteFound when it returns true.
	NoRoute func(points []domain.Coordinates) bool
	// Stall makes a request block until its context ends when it returns true.
	Stall func(points []domain.Coordinates) bool

	mu    sync.Mutex
	calls int
}

func (d *Directions) Route(ctx context.Context, req ports.DirectionsRequest) ([]ports.Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if len(req.Points) < 2 {
		return nil, fmt.Errorf("mock directions: %d points: %w", len(req.Points), domain.ErrInvalidInput)
	}
	if d.Stall != nil && d.Stall(req.Points) {
		<-ctx.Done()
		return nil, domain.NewProviderError("mock", "directions", ctx.Err())
	}
	if d.NoRoute != nil && d.NoRoute(req.Points) {
		return nil, domain.NewProviderError("mock", "directions", domain.ErrNoRouteFound)
	}

	var meters float64
	for i := 1; i < len(req.Points); i++ {
		meters += req.Points[i-1].DistanceMeters(req.Points[i]) * detourFactor
	}

	primary := leg(req.Points, meters, req.Mode)
	out := []ports.Leg{primary}
	if req.Alternatives && len(req.Points) == 2 {
		for i := 1; i <= d.Alternates; i++ {
			out = append(out, leg(req.Points, meters*(1+0.1*float64(i)), req.Mode))
		}
	}
	return out, nil
}

// Calls reports how many Route calls were made.
func (d *Directions) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func leg(points []domain.Coordinates, meters float64, mode domain.TravelMode) ports.Leg {
	return ports.Leg{
		DistanceMeters:  math.Round(meters*10) / 10,
		DurationSeconds: int(math.Round(meters / speed(mode))),
		Instructions:    []string{fmt.Sprintf("Head to %.5f,%.5f", points[len(points)-1].Lat, points[len(points)-1].Lon)},
		EncodedPath:     geo.EncodePath(points),
	}
}

// Isochrones returns circles whose radius is the straight-line distance
// reachable in the given minutes.
type Isochrones struct {
	// Fail makes every call return a provider error.
	Fail bool

	mu    sync.Mutex
	calls int
}

func (m *Isochrones) Isochrone(ctx context.Context, center domain.Coordinates, minutes int, mode domain.TravelMode) ([]domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Fail {
		return nil, domain.NewProviderError("mock", "isochrone", fmt.Errorf("isochrone unavailable"))
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("mock isochrone: minutes %d: %w", minutes, domain.ErrInvalidInput)
	}

	radius := speed(mode) * float64(minutes) * 60 / detourFactor
	return geo.PointBuffer(center, radius, 32), nil
}

func (m *Isochrones) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
