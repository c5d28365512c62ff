package domain

import "math"

const earthRadiusMeters = 6371008.8

// Immutable geographic coordinates (latitude, longitude) in degrees.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Rounded returns the coordinates rounded to 6 decimal places (~0.1 m),
// the precision used for cache keys and de-duplication.
func (c Coordinates) Rounded() Coordinates {
	return Coordinates{Lat: Round6(c.Lat), Lon: Round6(c.Lon)}
}

func (c Coordinates) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }

func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lon)
}

// DistanceMeters is the great-circle (haversine) distance to o.
func (c Coordinates) DistanceMeters(o Coordinates) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	dLat := (o.Lat - c.Lat) * math.Pi / 180
	dLon := (o.Lon - c.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Offset moves the point by the given meters north and east using a local
// equirectangular approximation. Accurate enough for sub-kilometer offsets.
func (c Coordinates) Offset(northMeters, eastMeters float64) Coordinates {
	dLat := northMeters / earthRadiusMeters * 180 / math.Pi
	dLon := eastMeters / (earthRadiusMeters * math.Cos(c.Lat*math.Pi/180)) * 180 / math.Pi
	return Coordinates{Lat: c.Lat + dLat, Lon: c.Lon + dLon}
}

// Midpoint returns the arithmetic midpoint of two nearby coordinates.
func Midpoint(a, b Coordinates) Coordinates {
	return Coordinates{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

func Round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
