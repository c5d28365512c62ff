package mock

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/ports"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Geocoder resolves from a fixed table keyed by lower-cased, trimmed text.
type Geocoder struct {
	places map[string]domain.Coordinates
}

func NewGeocoder(places map[string]domain.Coordinates) *Geocoder {
	m := make(map[string]domain.Coordinates, len(places))
	for k, v := range places {
		m[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Geocoder{places: m}
}

func (g *Geocoder) Resolve(_ context.Context, address string) (domain.Coordinates, error) {
	c, ok := g.places[strings.ToLower(strings.TrimSpace(address))]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("mock geocode %q: %w", address, domain.ErrNotFound)
	}
	return c, nil
}

// NearestNeighborOptimizer orders stops greedily by straight-line distance
// from the current position. Ties go to the earlier input index.
type NearestNeighborOptimizer struct{}

func (NearestNeighborOptimizer) Order(
	_ context.Context,
	start, _ domain.Coordinates,
	interior []domain.Coordinates,
	_ domain.TravelMode,
) ([]domain.Coordinates, error) {
	remaining := append([]domain.Coordinates(nil), interior...)
	out := make([]domain.Coordinates, 0, len(interior))
	current := start

	for len(remaining) > 0 {
		best := -1
		minDistance := math.Inf(1)
		for i, p := range remaining {
			if d := current.DistanceMeters(p); d < minDistance {
				minDistance = d
				best = i
			}
		}
		current = remaining[best]
		out = append(out, current)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out, nil
}

// Searcher returns the fixed waypoints whose SourceQuery is among the
// requested queries. An empty SourceQuery matches every query.
type Searcher struct {
	Waypoints []domain.Waypoint
	Err       error
}

func (s *Searcher) Search(_ context.Context, ring []domain.Coordinates, queries []string) ([]domain.Waypoint, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	want := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		want[q] = struct{}{}
	}

	var out []domain.Waypoint
	for _, w := range s.Waypoints {
		if _, ok := want[w.SourceQuery]; ok || w.SourceQuery == "" {
			out = append(out, w)
		}
	}
	return out, nil
}

// Imagery yields one image per bbox, identified by the bbox center.
type Imagery struct {
	// Empty makes every bbox lookup return no images.
	Empty bool
}

func (m Imagery) Nearby(_ context.Context, b ports.BBox) ([]string, error) {
	if m.Empty {
		return nil, nil
	}
	return []string{fmt.Sprintf("%.5f,%.5f", (b.MinLat+b.MaxLat)/2, (b.MinLon+b.MaxLon)/2)}, nil
}

func (m Imagery) ThumbnailURL(_ context.Context, id string) (string, error) {
	return "mock://image/" + id, nil
}

// Embedding derives a stable similarity in [-1,1] from a hash of its inputs.
type Embedding struct{}

func (Embedding) Similarity(_ context.Context, text, imageURL string) (float64, error) {
	h := xxhash.Sum64String(text + "|" + imageURL)
	return float64(h%2001)/1000 - 1, nil
}

// Extractor returns fixed parameters, or Err when set.
type Extractor struct {
	Params ports.ExtractedParameters
	Err    error
}

func (e Extractor) Extract(_ context.Context, prompt string) (ports.ExtractedParameters, error) {
	if e.Err != nil {
		return ports.ExtractedParameters{}, e.Err
	}
	p := e.Params
	if p.PreferencesText == "" {
		p.PreferencesText = prompt
	}
	return p, nil
}
