// Package ors adapts OpenRouteService geocoding, directions, isochrone and
// optimization endpoints to the core ports.
package ors

import (
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/httpx"
	"errors"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.openrouteservice.org"

// Client implements Geocoder, Directions, IsochroneProvider and
// TripOptimizer on top of OpenRouteService. It is safe for concurrent use.
type Client struct {
	http    *httpx.Client
	baseURL string
	country string
	log     *zap.Logger
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Country restricts geocoding results (ISO alpha-2), empty for worldwide.
	Country string
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		http:    httpx.New(cfg.Timeout, httpx.WithHeader("Authorization", cfg.APIKey)),
		baseURL: cfg.BaseURL,
		country: cfg.Country,
		log:     log.Named("ors"),
	}, nil
}

// profile maps a travel mode onto an ORS routing profile.
func profile(mode domain.TravelMode) string {
	switch mode {
	case domain.ModeDriving:
		return "driving-car"
	case domain.ModeCycling:
		return "cycling-regular"
	default:
		return "foot-walking"
	}
}

// avoidFeatures maps avoid flags onto ORS avoid_features for the profile.
// Combinations the profile does not support are dropped silently.
func avoidFeatures(mode domain.TravelMode, c domain.Constraints) []string {
	var out []string
	switch mode {
	case domain.ModeDriving:
		if c.AvoidHighways {
			out = append(out, "highways")
		}
		if c.AvoidTolls {
			out = append(out, "tollways")
		}
		if c.AvoidFerries {
			out = append(out, "ferries")
		}
	default:
		if c.AvoidFerries {
			out = append(out, "ferries")
		}
		if c.AvoidStairs {
			out = append(out, "steps")
		}
	}
	return out
}

func providerErr(op string, err error) error {
	return domain.NewProviderError("ors", op, err)
}
