package domain

// Reachable area around a point within Minutes under a travel mode.
// Ring is closed: the first and last points are equal.
type Isochrone struct {
	Center  Coordinates   `json:"center"`
	Minutes int           `json:"travel_time_minutes"`
	Ring    []Coordinates `json:"polygon"`
}

// Closed reports whether the ring has at least 4 points and ends where it starts.
func (i Isochrone) Closed() bool {
	return len(i.Ring) >= 4 && i.Ring[0] == i.Ring[len(i.Ring)-1]
}

// Region plausible for a detour without exceeding the time budget.
// IntersectionRing is empty when no detour area exists.
// The isochrone pair is a representative split kept for display.
type SearchZone struct {
	OriginIsochrone      Isochrone     `json:"origin_isochrone"`
	DestinationIsochrone Isochrone     `json:"destination_isochrone"`
	IntersectionRing     []Coordinates `json:"intersection_polygon"`
}

func (z SearchZone) Empty() bool { return len(z.IntersectionRing) < 4 }

// CloseRing returns a copy of ring whose last point equals its first.
func CloseRing(ring []Coordinates) []Coordinates {
	if len(ring) == 0 {
		return nil
	}
	out := make([]Coordinates, 0, len(ring)+1)
	out = append(out, ring...)
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}
