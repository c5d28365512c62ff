package ports

import (
	"context"
	"detour-route-service/internal/domain"
)

// Structured route parameters pulled out of a free-form prompt.
type ExtractedParameters struct {
	OriginText             string             `json:"origin"`
	DestinationText        string             `json:"destination"`
	TimeFlexibilityMinutes int                `json:"time_flexibility_minutes"`
	TagQueries             []string           `json:"waypoint_queries"`
	Constraints            domain.Constraints `json:"constraints"`
	PreferencesText        string             `json:"preferences"`
}

type Extractor interface {
	Extract(ctx context.Context, prompt string) (ExtractedParameters, error)
}
