package ors

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/obs"
	"fmt"
)

type optimizationRequest struct {
	Jobs     []optimizationJob     `json:"jobs"`
	Vehicles []optimizationVehicle `json:"vehicles"`
}

type optimizationJob struct {
	ID       int       `json:"id"`
	Location []float64 `json:"location"`
}

type optimizationVehicle struct {
	ID      int       `json:"id"`
	Profile string    `json:"profile"`
	Start   []float64 `json:"start"`
	End     []float64 `json:"end"`
}

type optimizationResponse struct {
	Routes []struct {
		Steps []struct {
			Type string `json:"type"`
			Job  int    `json:"job"`
		} `json:"steps"`
	} `json:"routes"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
}

// Order implements ports.TripOptimizer using the /optimization endpoint with
// a single vehicle whose start and end are fixed.
func (o *Client) Order(
	ctx context.Context,
	start, end domain.Coordinates,
	interior []domain.Coordinates,
	mode domain.TravelMode,
) (_ []domain.Coordinates, err error) {
	defer obs.Time(ctx, o.log, "ors.Order")(&err)

	if len(interior) < 2 {
		return append([]domain.Coordinates(nil), interior...), nil
	}

	body := optimizationRequest{
		Vehicles: []optimizationVehicle{{
			ID:      1,
			Profile: profile(mode),
			Start:   start.CoordsToList(),
			End:     end.CoordsToList(),
		}},
	}
	// Job ids are 1-based indexes into interior.
	for i, p := range interior {
		body.Jobs = append(body.Jobs, optimizationJob{ID: i + 1, Location: p.CoordsToList()})
	}

	var decoded optimizationResponse
	if err := o.http.PostJSON(ctx, o.baseURL+"/optimization", body, &decoded); err != nil {
		return nil, providerErr("optimization", err)
	}

	if len(decoded.Routes) != 1 || len(decoded.Unassigned) > 0 {
		return nil, providerErr("optimization", fmt.Errorf(
			"expected 1 route with all jobs assigned; got routes=%d unassigned=%d",
			len(decoded.Routes), len(decoded.Unassigned),
		))
	}

	out := make([]domain.Coordinates, 0, len(interior))
	for _, s := range decoded.Routes[0].Steps {
		if s.Type != "job" {
			continue
		}
		if s.Job < 1 || s.Job > len(interior) {
			return nil, providerErr("optimization", fmt.Errorf("unknown job id %d", s.Job))
		}
		out = append(out, interior[s.Job-1])
	}

	if len(out) != len(interior) {
		return nil, providerErr("optimization", fmt.Errorf("optimization returned %d of %d jobs", len(out), len(interior)))
	}
	return out, nil
}
