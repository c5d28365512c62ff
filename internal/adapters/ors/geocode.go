package ors

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/obs"
	"fmt"
	"net/url"
	"strings"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Resolve geocodes a single address using /geocode/search.
func (o *Client) Resolve(ctx context.Context, address string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, o.log, "ors.Resolve")(&err)

	norm := strings.Join(strings.Fields(address), " ")
	if norm == "" {
		return domain.Coordinates{}, fmt.Errorf("resolve: empty address: %w", domain.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("text", norm)
	q.Set("size", "1")
	if o.country != "" {
		q.Set("boundary.country", o.country)
	}

	var decoded geocodeResponse
	if err := o.http.GetJSON(ctx, o.baseURL+"/geocode/search?"+q.Encode(), &decoded); err != nil {
		return domain.Coordinates{}, providerErr("geocode", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, providerErr("geocode", fmt.Errorf("no geocode results for %q: %w", norm, domain.ErrNotFound))
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, providerErr("geocode", fmt.Errorf("invalid coordinate format for %q", norm))
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
