package handlers

import (
	"context"
	"detour-route-service/internal/api/dto"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/geo"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/services"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxResultsLimit = 20

type Planner interface {
	Plan(ctx context.Context, req services.Request) (services.Response, error)
}

type RoutesHandler struct {
	Planner Planner
	// Upper bound on one planning request; 0 means no extra bound.
	Timeout time.Duration
	Log     *zap.Logger
}

// Plan handles POST /v1/routes.
func (h *RoutesHandler) Plan(c *gin.Context) {
	var req dto.RoutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	svcReq, err := toServiceRequest(req)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	resp, err := h.Planner.Plan(ctx, svcReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrProviderTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError && h.Log != nil {
			h.Log.Error("plan routes failed", zap.String("req_id", obs.RequestID(ctx)), zap.Error(err))
		}
		writeError(c, status, msg)
		return
	}

	c.JSON(http.StatusOK, toRoutesResponse(resp, req.IncludeZone))
}

func toServiceRequest(req dto.RoutesRequest) (services.Request, error) {
	origin, err := toEndpoint("origin", req.Origin)
	if err != nil {
		return services.Request{}, err
	}
	destination, err := toEndpoint("destination", req.Destination)
	if err != nil {
		return services.Request{}, err
	}

	if strings.TrimSpace(req.Prompt) == "" && (origin == nil || destination == nil) {
		return services.Request{}, errors.New("prompt is required unless origin and destination are given")
	}
	if req.MaxResults < 0 || req.MaxResults > maxResultsLimit {
		return services.Request{}, fmt.Errorf("max_results must be at most %d", maxResultsLimit)
	}
	if req.MaxDuration != nil && *req.MaxDuration < 0 {
		return services.Request{}, errors.New("max_duration must not be negative")
	}

	return services.Request{
		UserPrompt:              req.Prompt,
		MaxResults:              req.MaxResults,
		Origin:                  origin,
		Destination:             destination,
		MaxDurationMinutes:      req.MaxDuration,
		BaselineDurationSeconds: req.BaselineS,
		EvaluationMode:          req.EvaluationMode,
	}, nil
}

func toEndpoint(name string, in *dto.EndpointRequest) (*services.Endpoint, error) {
	if in == nil {
		return nil, nil
	}
	if (in.Lat == nil) != (in.Lon == nil) {
		return nil, fmt.Errorf("%s: lat and lon must be given together", name)
	}
	if in.Lat != nil {
		c := domain.Coordinates{Lat: *in.Lat, Lon: *in.Lon}
		if !c.Valid() {
			return nil, fmt.Errorf("%s: coordinates out of range", name)
		}
		return &services.Endpoint{Text: in.Address, Coordinates: &c}, nil
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, nil
	}
	return &services.Endpoint{Text: in.Address}, nil
}

func toRoutesResponse(resp services.Response, includeZone bool) dto.RoutesResponse {
	md := resp.Metadata
	out := dto.RoutesResponse{
		Routes: make([]dto.RouteResponse, 0, len(resp.Routes)),
		Metadata: dto.MetadataResponse{
			TotalRoutesGenerated: md.RoutesBuilt,
			RoutesScored:         md.RoutesScored,
			CandidateCount:       md.CandidateCount,
			WaypointsFound:       md.WaypointCount,
			SearchZoneAreaKm2:    md.SearchZoneAreaKm2,
			Strategy:             md.Strategy,
			TransportMode:        string(md.TransportMode),
			TagQueries:           md.TagQueries,
			TotalProcessingMs:    resp.TotalProcessingTime.Milliseconds(),
			TimingsMs:            make(map[string]int64, len(md.StageTimings)),
		},
	}
	for stage, d := range md.StageTimings {
		out.Metadata.TimingsMs[stage] = d.Milliseconds()
	}

	for _, sc := range resp.Routes {
		out.Routes = append(out.Routes, toRouteResponse(sc))
	}
	if includeZone && !resp.SearchZone.Empty() {
		out.SearchZone = geo.ZoneFeatures(resp.SearchZone)
	}
	return out
}

func toRouteResponse(sc domain.RouteScore) dto.RouteResponse {
	r := sc.Route
	res := dto.RouteResponse{
		Score: sc.Overall,
		Scores: dto.ScoresResponse{
			Visual:     sc.Visual,
			Efficiency: sc.Efficiency,
			ImagesUsed: sc.ImagesUsed,
		},
		DistanceMeters:  r.TotalDistanceMeters,
		DurationSeconds: r.TotalDurationSeconds,
		TransportMode:   string(r.Constraints.TransportMode),
		Origin:          coords(r.Origin),
		Destination:     coords(r.Destination),
		Waypoints:       make([]dto.WaypointResponse, 0, len(r.Waypoints)),
		Segments:        make([]dto.SegmentResponse, 0, len(r.Segments)),
	}
	if sc.Preference.Valid {
		v := sc.Preference.Value
		res.Scores.Preference = &v
	}

	for _, w := range r.Waypoints {
		res.Waypoints = append(res.Waypoints, dto.WaypointResponse{
			Name:           w.Name,
			Category:       w.Category,
			RelevanceScore: w.RelevanceScore,
			InputQuery:     w.SourceQuery,
			Coordinates:    coords(w.Coordinates),
		})
	}
	for _, s := range r.Segments {
		res.Segments = append(res.Segments, dto.SegmentResponse{
			DistanceMeters:  s.DistanceMeters,
			DurationSeconds: s.DurationSeconds,
			Instructions:    s.Instructions,
			Polyline:        s.EncodedPath,
			Start:           coords(s.Start),
			End:             coords(s.End),
		})
	}
	return res
}

func coords(c domain.Coordinates) dto.CoordinatesResponse {
	return dto.CoordinatesResponse{Lat: c.Lat, Lon: c.Lon}
}
