// Package geo holds the planar polygon operations behind search zones:
// ring intersection and union, largest-part selection, geodesic area and
// GeoJSON output. Coordinates map to planar X=lon, Y=lat.
package geo

import (
	"detour-route-service/internal/domain"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Region is a possibly multi-part planar region.
type Region = polyclip.Polygon

// FromRing converts a ring into a single-contour region. The closing point,
// if present, is dropped since contours are implicitly closed.
func FromRing(ring []domain.Coordinates) Region {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return nil
	}

	c := make(polyclip.Contour, 0, n)
	for _, p := range ring[:n] {
		c = append(c, polyclip.Point{X: p.Lon, Y: p.Lat})
	}
	return Region{c}
}

// Empty reports whether r has no contour with positive area.
func Empty(r Region) bool {
	for _, c := range r {
		if len(c) >= 3 && contourArea(c) > 0 {
			return false
		}
	}
	return true
}

// Intersect returns a ∩ b.
func Intersect(a, b Region) Region {
	if Empty(a) || Empty(b) {
		return nil
	}
	return a.Construct(polyclip.INTERSECTION, b)
}

// Union merges all regions, skipping empty ones.
func Union(regions []Region) Region {
	var acc Region
	for _, r := range regions {
		if Empty(r) {
			continue
		}
		if acc == nil {
			acc = r
			continue
		}
		acc = acc.Construct(polyclip.UNION, r)
	}
	return acc
}

// LargestRing returns the closed boundary ring of the largest contour in r,
// or nil when r is empty. Holes are always smaller than the contour that
// encloses them, so the largest contour is an outer boundary.
func LargestRing(r Region) []domain.Coordinates {
	best := -1
	bestArea := 0.0
	for i, c := range r {
		if len(c) < 3 {
			continue
		}
		if a := contourArea(c); a > bestArea {
			best, bestArea = i, a
		}
	}
	if best < 0 {
		return nil
	}

	return contourRing(r[best])
}

// PointBuffer approximates a circle of radiusMeters around center with a
// closed ring of n vertices.
func PointBuffer(center domain.Coordinates, radiusMeters float64, n int) []domain.Coordinates {
	if n < 3 {
		n = 3
	}
	ring := make([]domain.Coordinates, 0, n+1)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, center.Offset(radiusMeters*math.Cos(theta), radiusMeters*math.Sin(theta)))
	}
	return domain.CloseRing(ring)
}

// AreaKm2 is the geodesic area enclosed by ring.
func AreaKm2(ring []domain.Coordinates) float64 {
	if len(ring) < 4 {
		return 0
	}
	return math.Abs(orbgeo.Area(toOrbRing(ring))) / 1e6
}

// PlanarArea is the area enclosed by ring in squared degrees.
func PlanarArea(ring []domain.Coordinates) float64 {
	if len(ring) < 4 {
		return 0
	}
	return math.Abs(planar.Area(toOrbRing(ring)))
}

// Contains reports whether p lies inside ring (boundary included).
func Contains(ring []domain.Coordinates, p domain.Coordinates) bool {
	if len(ring) < 4 {
		return false
	}
	return planar.RingContains(toOrbRing(ring), orb.Point{p.Lon, p.Lat})
}

func contourArea(c polyclip.Contour) float64 {
	return PlanarArea(contourRing(c))
}

// contourRing converts a contour into a closed ring.
func contourRing(c polyclip.Contour) []domain.Coordinates {
	ring := make([]domain.Coordinates, 0, len(c)+1)
	for _, p := range c {
		ring = append(ring, domain.Coordinates{Lat: p.Y, Lon: p.X})
	}
	return domain.CloseRing(ring)
}

func toOrbRing(ring []domain.Coordinates) orb.Ring {
	out := make(orb.Ring, 0, len(ring)+1)
	for _, p := range ring {
		out = append(out, orb.Point{p.Lon, p.Lat})
	}
	if len(out) > 0 && !out[0].Equal(out[len(out)-1]) {
		out = append(out, out[0])
	}
	return out
}
