package geo

import (
	"detour-route-service/internal/domain"

	"github.com/twpayne/go-polyline"
)

// DecodePath decodes an encoded polyline (precision 5, lat/lng order).
func DecodePath(encoded string) ([]domain.Coordinates, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Coordinates, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, domain.Coordinates{Lat: c[0], Lon: c[1]})
	}
	return out, nil
}

func EncodePath(path []domain.Coordinates) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// PathMidpoint returns the point halfway along the decoded path by length.
// ok is false when the path is empty or does not decode.
func PathMidpoint(encoded string) (domain.Coordinates, bool) {
	if encoded == "" {
		return domain.Coordinates{}, false
	}
	path, err := DecodePath(encoded)
	if err != nil || len(path) == 0 {
		return domain.Coordinates{}, false
	}
	if len(path) == 1 {
		return path[0], true
	}

	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].DistanceMeters(path[i])
	}
	half := total / 2

	walked := 0.0
	for i := 1; i < len(path); i++ {
		step := path[i-1].DistanceMeters(path[i])
		if walked+step >= half && step > 0 {
			f := (half - walked) / step
			return domain.Coordinates{
				Lat: path[i-1].Lat + f*(path[i].Lat-path[i-1].Lat),
				Lon: path[i-1].Lon + f*(path[i].Lon-path[i-1].Lon),
			}, true
		}
		walked += step
	}
	return path[len(path)-1], true
}
