package dto

import "github.com/paulmach/orb/geojson"

// EndpointRequest is either a free-form address or explicit coordinates.
type EndpointRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type RoutesRequest struct {
	Prompt      string           `json:"prompt"`
	Origin      *EndpointRequest `json:"origin"`
	Destination *EndpointRequest `json:"destination"`
	MaxResults  int              `json:"max_results"`
	// Extra minutes allowed beyond the direct route.
	MaxDuration    *int `json:"max_duration"`
	BaselineS      int  `json:"baseline_duration_s"`
	EvaluationMode bool `json:"evaluation_mode"`
	IncludeZone    bool `json:"include_search_zone"`
}

type CoordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type ScoresResponse struct {
	Visual     float64 `json:"visual"`
	Efficiency float64 `json:"efficiency"`
	// Null when the route has no waypoints or evaluation mode is on.
	Preference *float64 `json:"preference"`
	ImagesUsed int      `json:"images_used"`
}

type WaypointResponse struct {
	Name           string              `json:"name"`
	Category       string              `json:"category"`
	RelevanceScore float64             `json:"relevance_score"`
	InputQuery     string              `json:"input_query"`
	Coordinates    CoordinatesResponse `json:"coordinates"`
}

type SegmentResponse struct {
	DistanceMeters  float64             `json:"distance_m"`
	DurationSeconds int                 `json:"duration_s"`
	Instructions    []string            `json:"instructions"`
	Polyline        string              `json:"polyline"`
	Start           CoordinatesResponse `json:"start"`
	End             CoordinatesResponse `json:"end"`
}

type RouteResponse struct {
	Score           float64             `json:"score"`
	Scores          ScoresResponse      `json:"scores"`
	DistanceMeters  float64             `json:"distance_m"`
	DurationSeconds int                 `json:"duration_s"`
	TransportMode   string              `json:"transport_mode"`
	Origin          CoordinatesResponse `json:"origin"`
	Destination     CoordinatesResponse `json:"destination"`
	Waypoints       []WaypointResponse  `json:"waypoints"`
	Segments        []SegmentResponse   `json:"segments"`
}

type MetadataResponse struct {
	TotalRoutesGenerated int              `json:"total_routes_generated"`
	RoutesScored         int              `json:"routes_scored"`
	CandidateCount       int              `json:"candidate_count"`
	WaypointsFound       int              `json:"waypoints_found"`
	SearchZoneAreaKm2    float64          `json:"search_zone_area_km2"`
	Strategy             string           `json:"strategy"`
	TransportMode        string           `json:"transport_mode"`
	TagQueries           []string         `json:"tag_queries"`
	TotalProcessingMs    int64            `json:"total_processing_ms"`
	TimingsMs            map[string]int64 `json:"timings_ms"`
}

type RoutesResponse struct {
	Routes     []RouteResponse            `json:"routes"`
	Metadata   MetadataResponse           `json:"metadata"`
	SearchZone *geojson.FeatureCollection `json:"search_zone,omitempty"`
}
