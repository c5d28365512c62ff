package ors

import (
	"bytes"
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/geo"
	"detour-route-service/internal/platform/obs"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/paulmach/orb/geojson"
)

type isochroneRequest struct {
	Locations [][]float64 `json:"locations"`
	Range     []int       `json:"range"`
	RangeType string      `json:"range_type"`
}

// Isochrone implements ports.IsochroneProvider using /v2/isochrones/{profile}.
// The response is GeoJSON; the outer ring of the first polygon is returned.
func (o *Client) Isochrone(
	ctx context.Context,
	center domain.Coordinates,
	minutes int,
	mode domain.TravelMode,
) (_ []domain.Coordinates, err error) {
	defer obs.Time(ctx, o.log, "ors.Isochrone")(&err)

	if minutes <= 0 {
		return nil, fmt.Errorf("ors isochrone: minutes must be positive, got %d: %w", minutes, domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(isochroneRequest{
		Locations: [][]float64{center.CoordsToList()},
		Range:     []int{minutes * 60},
		RangeType: "time",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal isochrone request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/isochrones/%s", o.baseURL, profile(mode))
	resp, err := o.http.DoWithRetry(ctx, func() (*http.Request, error) {
		return o.http.NewRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, providerErr("isochrone", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerErr("isochrone", fmt.Errorf("read isochrone response: %w", err))
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, providerErr("isochrone", fmt.Errorf("decode isochrone response: %w", err))
	}

	ring := geo.RingFromGeoJSON(fc)
	if len(ring) < 4 {
		return nil, providerErr("isochrone", fmt.Errorf("isochrone response has no polygon"))
	}
	return ring, nil
}
