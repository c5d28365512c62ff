// Package tsp orders interior stops locally with an exact Held-Karp solve
// over great-circle distances. It needs no network and serves as the trip
// optimizer when no optimization endpoint is configured.
package tsp

import (
	"context"
	"detour-route-service/internal/domain"
	"fmt"

	"github.com/lvlath/go/matrix"
	lvtsp "github.com/lvlath/go/tsp"
)

// Forbidden edges get a penalty no real path can reach.
const blocked = 1e12

// Optimizer implements ports.TripOptimizer.
type Optimizer struct {
	maxStops int
}

// NewOptimizer returns an optimizer that accepts up to maxStops points,
// endpoints included. Values outside (3, MaxExactN] fall back to the solver
// limit.
func NewOptimizer(maxStops int) *Optimizer {
	if maxStops < 3 || maxStops > lvtsp.MaxExactN {
		maxStops = lvtsp.MaxExactN
	}
	return &Optimizer{maxStops: maxStops}
}

// Order returns interior rearranged to minimize the path start -> ... -> end.
func (o *Optimizer) Order(
	ctx context.Context,
	start, end domain.Coordinates,
	interior []domain.Coordinates,
	_ domain.TravelMode,
) ([]domain.Coordinates, error) {
	out := append([]domain.Coordinates(nil), interior...)
	if len(interior) < 2 {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]domain.Coordinates, 0, len(interior)+2)
	points = append(points, start)
	points = append(points, interior...)
	points = append(points, end)

	n := len(points)
	if n > o.maxStops {
		return nil, fmt.Errorf("tsp order: %d stops exceeds limit %d: %w", n, o.maxStops, domain.ErrInvalidInput)
	}

	dist, err := pathMatrix(points)
	if err != nil {
		return nil, fmt.Errorf("tsp order: %w", err)
	}

	opts := lvtsp.DefaultOptions()
	opts.Symmetric = false
	opts.StartVertex = 0

	res, err := lvtsp.HeldKarp(dist, opts)
	if err != nil {
		return nil, fmt.Errorf("tsp order: solve: %w", err)
	}

	order, err := interiorOrder(res.Tour, n)
	if err != nil {
		return nil, fmt.Errorf("tsp order: %w", err)
	}
	for i, idx := range order {
		out[i] = points[idx]
	}
	return out, nil
}

// pathMatrix builds a cycle matrix whose optimal tour is the best open path
// from vertex 0 to vertex n-1: the only way back into 0 is a free edge from
// n-1, and 0 -> n-1 directly is blocked.
func pathMatrix(points []domain.Coordinates) (*matrix.Dense, error) {
	n := len(points)
	m, err := matrix.NewDense(n, n)
	if err != nil {
		return nil, err
	}
	last := n - 1

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var w float64
			switch {
			case i == j:
				w = 0
			case j == 0 && i == last:
				w = 0
			case j == 0, i == last, i == 0 && j == last:
				w = blocked
			default:
				w = points[i].DistanceMeters(points[j])
			}
			if err := m.Set(i, j, w); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// interiorOrder extracts the interior vertex indices (1..n-2) from a closed
// tour that starts at 0 and reaches n-1 right before closing.
func interiorOrder(tour []int, n int) ([]int, error) {
	if len(tour) == n+1 && tour[0] == tour[n] {
		tour = tour[:n]
	}
	if len(tour) != n {
		return nil, fmt.Errorf("tour length %d, want %d", len(tour), n)
	}

	startAt := -1
	for i, v := range tour {
		if v == 0 {
			startAt = i
			break
		}
	}
	if startAt < 0 {
		return nil, fmt.Errorf("tour misses start vertex")
	}

	rotated := make([]int, 0, n)
	rotated = append(rotated, tour[startAt:]...)
	rotated = append(rotated, tour[:startAt]...)
	if rotated[n-1] != n-1 {
		return nil, fmt.Errorf("tour does not end at the destination")
	}
	return rotated[1 : n-1], nil
}
