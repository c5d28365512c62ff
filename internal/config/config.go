package config

import (
	"detour-route-service/internal/domain"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ProviderConfig struct {
	// "live" talks to the real providers; "mock" runs fully offline.
	Mode           string
	ORSAPIKey      string
	ORSBaseURL     string
	OverpassURL    string
	MapillaryToken string
	EmbeddingURL   string
	OllamaBaseURL  string
	OllamaModel    string
	// "ors" or "local" (exact solver in-process).
	TripOptimizer string
	Timeout       time.Duration
}

type ZoneConfig struct {
	IsochroneMaxMinutes int
	IsochroneWorkers    int
}

type CandidateConfig struct {
	TopK          int
	MaxSingles    int
	MaxPairs      int
	MaxTriples    int
	MaxWaypoints  int
	MaxCandidates int
}

type RoutingConfig struct {
	ReorderLimit       int
	DirectAlternatives int
	Strategy           string
	BuildWorkers       int
	ScoreWorkers       int
	// Deadline for one candidate build or one route's scoring.
	TaskTimeout time.Duration
}

type ScoringConfig struct {
	MaxImages         int
	BBoxDegrees       float64
	WeightVisual      float64
	WeightEfficiency  float64
	WeightPreference  float64
	WaypointBonusRate float64
	EvaluationMode    bool
}

type PlanningConfig struct {
	NearThresholdMeters  float64
	DefaultTransportMode domain.TravelMode
	// Empty unless every request must use one mode.
	ForceTransportMode  domain.TravelMode
	DefaultTagQueries   []string
	DefaultExtraMinutes int
	MaxResults          int
}

// Config holds all configuration for the detour service.
type Config struct {
	Port        string
	AppEnv      string
	RedisURL    string
	DatabaseURL string

	Providers  ProviderConfig
	Zone       ZoneConfig
	Candidates CandidateConfig
	Routing    RoutingConfig
	Scoring    ScoringConfig
	Planning   PlanningConfig
}

var defaults = map[string]any{
	"PORT":                   "8080",
	"APP_ENV":                "development",
	"PROVIDERS":              "live",
	"ORS_BASE_URL":           "https://api.openrouteservice.org",
	"OVERPASS_URL":           "https://overpass-api.de/api/interpreter",
	"EMBEDDING_URL":          "http://localhost:8001",
	"OLLAMA_BASE_URL":        "http://localhost:11434",
	"OLLAMA_MODEL":           "llama3.1",
	"TRIP_OPTIMIZER":         "ors",
	"EXECUTION_STRATEGY":     "parallel",
	"PROVIDER_TIMEOUT":       "15s",
	"TASK_TIMEOUT":           "45s",
	"ISOCHRONE_MAX_MINUTES":  60,
	"ISOCHRONE_WORKERS":      3,
	"WP_TOP_K":               12,
	"ROUTE_MAX_SINGLE":       6,
	"ROUTE_MAX_PAIRS":        6,
	"ROUTE_MAX_TRIPLES":      0,
	"ROUTE_MAX_WAYPOINTS":    2,
	"ROUTE_MAX_CANDIDATES":   20,
	"REORDER_LIMIT":          12,
	"DIRECT_ALTERNATIVES":    1,
	"BUILD_WORKERS":          3,
	"SCORE_WORKERS":          2,
	"SCORING_MAX_IMAGES":     8,
	"SCORING_BBOX_DEGREES":   0.00025,
	"WEIGHT_VISUAL":          0.4,
	"WEIGHT_EFFICIENCY":      0.3,
	"WEIGHT_PREFERENCE":      0.3,
	"WAYPOINT_BONUS_RATE":    0.1,
	"EVALUATION_MODE":        false,
	"NEAR_THRESHOLD_METERS":  100.0,
	"DEFAULT_TRANSPORT_MODE": "walking",
	"FORCE_TRANSPORT_MODE":   "",
	"DEFAULT_TAG_QUERIES":    "leisure=park,amenity=cafe,tourism=viewpoint",
	"DEFAULT_EXTRA_MINUTES":  30,
	"MAX_RESULTS":            5,
}

// Load reads .env (if present) and the environment on top of defaults.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("PORT"),
		AppEnv:      v.GetString("APP_ENV"),
		RedisURL:    v.GetString("REDIS_URL"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		Providers: ProviderConfig{
			Mode:           strings.ToLower(v.GetString("PROVIDERS")),
			ORSAPIKey:      v.GetString("ORS_API_KEY"),
			ORSBaseURL:     v.GetString("ORS_BASE_URL"),
			OverpassURL:    v.GetString("OVERPASS_URL"),
			MapillaryToken: v.GetString("MAPILLARY_TOKEN"),
			EmbeddingURL:   v.GetString("EMBEDDING_URL"),
			OllamaBaseURL:  v.GetString("OLLAMA_BASE_URL"),
			OllamaModel:    v.GetString("OLLAMA_MODEL"),
			TripOptimizer:  strings.ToLower(v.GetString("TRIP_OPTIMIZER")),
			Timeout:        v.GetDuration("PROVIDER_TIMEOUT"),
		},
		Zone: ZoneConfig{
			IsochroneMaxMinutes: v.GetInt("ISOCHRONE_MAX_MINUTES"),
			IsochroneWorkers:    v.GetInt("ISOCHRONE_WORKERS"),
		},
		Candidates: CandidateConfig{
			TopK:          v.GetInt("WP_TOP_K"),
			MaxSingles:    v.GetInt("ROUTE_MAX_SINGLE"),
			MaxPairs:      v.GetInt("ROUTE_MAX_PAIRS"),
			MaxTriples:    v.GetInt("ROUTE_MAX_TRIPLES"),
			MaxWaypoints:  v.GetInt("ROUTE_MAX_WAYPOINTS"),
			MaxCandidates: v.GetInt("ROUTE_MAX_CANDIDATES"),
		},
		Routing: RoutingConfig{
			ReorderLimit:       v.GetInt("REORDER_LIMIT"),
			DirectAlternatives: v.GetInt("DIRECT_ALTERNATIVES"),
			Strategy:           strings.ToLower(v.GetString("EXECUTION_STRATEGY")),
			BuildWorkers:       v.GetInt("BUILD_WORKERS"),
			ScoreWorkers:       v.GetInt("SCORE_WORKERS"),
			TaskTimeout:        v.GetDuration("TASK_TIMEOUT"),
		},
		Scoring: ScoringConfig{
			MaxImages:         v.GetInt("SCORING_MAX_IMAGES"),
			BBoxDegrees:       v.GetFloat64("SCORING_BBOX_DEGREES"),
			WeightVisual:      v.GetFloat64("WEIGHT_VISUAL"),
			WeightEfficiency:  v.GetFloat64("WEIGHT_EFFICIENCY"),
			WeightPreference:  v.GetFloat64("WEIGHT_PREFERENCE"),
			WaypointBonusRate: v.GetFloat64("WAYPOINT_BONUS_RATE"),
			EvaluationMode:    v.GetBool("EVALUATION_MODE"),
		},
		Planning: PlanningConfig{
			NearThresholdMeters: v.GetFloat64("NEAR_THRESHOLD_METERS"),
			DefaultTagQueries:   splitList(v.GetString("DEFAULT_TAG_QUERIES")),
			DefaultExtraMinutes: v.GetInt("DEFAULT_EXTRA_MINUTES"),
			MaxResults:          v.GetInt("MAX_RESULTS"),
		},
	}

	mode, err := domain.ParseTravelMode(strings.ToLower(v.GetString("DEFAULT_TRANSPORT_MODE")))
	if err != nil {
		return nil, fmt.Errorf("load config: DEFAULT_TRANSPORT_MODE: %w", err)
	}
	cfg.Planning.DefaultTransportMode = mode

	if force := strings.ToLower(strings.TrimSpace(v.GetString("FORCE_TRANSPORT_MODE"))); force != "" {
		mode, err := domain.ParseTravelMode(force)
		if err != nil {
			return nil, fmt.Errorf("load config: FORCE_TRANSPORT_MODE: %w", err)
		}
		cfg.Planning.ForceTransportMode = mode
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Providers.Mode {
	case "live":
		if strings.TrimSpace(c.Providers.ORSAPIKey) == "" {
			errs = append(errs, errors.New("ORS_API_KEY is required unless PROVIDERS=mock"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("PROVIDERS must be live or mock, got %q", c.Providers.Mode))
	}
	if c.Providers.TripOptimizer != "ors" && c.Providers.TripOptimizer != "local" {
		errs = append(errs, fmt.Errorf("TRIP_OPTIMIZER must be ors or local, got %q", c.Providers.TripOptimizer))
	}
	if c.Routing.Strategy != "parallel" && c.Routing.Strategy != "sequential" {
		errs = append(errs, fmt.Errorf("EXECUTION_STRATEGY must be parallel or sequential, got %q", c.Routing.Strategy))
	}
	if c.Providers.Timeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.Routing.TaskTimeout < c.Providers.Timeout {
		errs = append(errs, errors.New("TASK_TIMEOUT must be at least PROVIDER_TIMEOUT"))
	}
	if c.Planning.MaxResults < 1 {
		errs = append(errs, errors.New("MAX_RESULTS must be at least 1"))
	}
	if c.Scoring.WeightVisual < 0 || c.Scoring.WeightEfficiency < 0 || c.Scoring.WeightPreference < 0 {
		errs = append(errs, errors.New("scoring weights must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
