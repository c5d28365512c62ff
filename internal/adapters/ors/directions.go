package ors

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/httpx"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/ports"
	"errors"
	"fmt"
	"math"
	"net/http"
)

type directionsRequest struct {
	Coordinates  [][]float64        `json:"coordinates"`
	Instructions bool               `json:"instructions"`
	Options      *directionsOptions `json:"options,omitempty"`
	Alternatives *alternativeRoutes `json:"alternative_routes,omitempty"`
}

type directionsOptions struct {
	AvoidFeatures []string `json:"avoid_features,omitempty"`
}

type alternativeRoutes struct {
	TargetCount  int     `json:"target_count"`
	WeightFactor float64 `json:"weight_factor"`
	ShareFactor  float64 `json:"share_factor"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Segments []struct {
			Steps []struct {
				Instruction string `json:"instruction"`
			} `json:"steps"`
		} `json:"segments"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// Route implements ports.Directions using /v2/directions/{profile}/json.
// ORS only supports alternative routes for two-point requests.
func (o *Client) Route(ctx context.Context, req ports.DirectionsRequest) (_ []ports.Leg, err error) {
	defer obs.Time(ctx, o.log, "ors.Route")(&err)

	if len(req.Points) < 2 {
		return nil, fmt.Errorf("ors route: need at least 2 points, got %d: %w", len(req.Points), domain.ErrInvalidInput)
	}

	body := directionsRequest{Instructions: true}
	for _, p := range req.Points {
		body.Coordinates = append(body.Coordinates, p.CoordsToList())
	}
	if avoid := avoidFeatures(req.Mode, req.Constraints); len(avoid) > 0 {
		body.Options = &directionsOptions{AvoidFeatures: avoid}
	}
	if req.Alternatives && len(req.Points) == 2 {
		body.Alternatives = &alternativeRoutes{TargetCount: 3, WeightFactor: 1.6, ShareFactor: 0.6}
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/json", o.baseURL, profile(req.Mode))

	var decoded directionsResponse
	if err := o.http.PostJSON(ctx, endpoint, body, &decoded); err != nil {
		var he *httpx.StatusError
		if errors.As(err, &he) && he.Code == http.StatusNotFound {
			return nil, providerErr("directions", fmt.Errorf("%w: %v", domain.ErrNoRouteFound, err))
		}
		return nil, providerErr("directions", err)
	}

	if len(decoded.Routes) == 0 {
		return nil, providerErr("directions", domain.ErrNoRouteFound)
	}

	legs := make([]ports.Leg, 0, len(decoded.Routes))
	for _, r := range decoded.Routes {
		var instructions []string
		for _, s := range r.Segments {
			for _, step := range s.Steps {
				if step.Instruction != "" {
					instructions = append(instructions, step.Instruction)
				}
			}
		}

		legs = append(legs, ports.Leg{
			DistanceMeters:  r.Summary.Distance,
			DurationSeconds: int(math.Round(r.Summary.Duration)),
			Instructions:    instructions,
			EncodedPath:     r.Geometry,
		})
	}

	return legs, nil
}
