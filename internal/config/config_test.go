package config

import (
	"detour-route-service/internal/domain"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDefaults(overrides map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(withDefaults(map[string]any{"PROVIDERS": "mock"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 60, cfg.Zone.IsochroneMaxMinutes)
	assert.Equal(t, 12, cfg.Candidates.TopK)
	assert.Equal(t, 6, cfg.Candidates.MaxSingles)
	assert.Equal(t, "parallel", cfg.Routing.Strategy)
	assert.Equal(t, 45*time.Second, cfg.Routing.TaskTimeout)
	assert.Equal(t, 0.4, cfg.Scoring.WeightVisual)
	assert.Equal(t, domain.ModeWalking, cfg.Planning.DefaultTransportMode)
	assert.Empty(t, cfg.Planning.ForceTransportMode)
	assert.Equal(t, []string{"leisure=park", "amenity=cafe", "tourism=viewpoint"}, cfg.Planning.DefaultTagQueries)
	assert.Equal(t, 30, cfg.Planning.DefaultExtraMinutes)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PROVIDERS", "mock")
	t.Setenv("EXECUTION_STRATEGY", "sequential")
	t.Setenv("FORCE_TRANSPORT_MODE", "bike")
	t.Setenv("DEFAULT_TAG_QUERIES", " amenity=library , ,leisure=garden")
	t.Setenv("PROVIDER_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sequential", cfg.Routing.Strategy)
	assert.Equal(t, domain.ModeCycling, cfg.Planning.ForceTransportMode)
	assert.Equal(t, []string{"amenity=library", "leisure=garden"}, cfg.Planning.DefaultTagQueries)
	assert.Equal(t, 3*time.Second, cfg.Providers.Timeout)
}

func TestValidation(t *testing.T) {
	tests := map[string]map[string]any{
		"live without key":   {"PROVIDERS": "live"},
		"unknown providers":  {"PROVIDERS": "fake"},
		"bad optimizer":      {"PROVIDERS": "mock", "TRIP_OPTIMIZER": "gurobi"},
		"bad strategy":       {"PROVIDERS": "mock", "EXECUTION_STRATEGY": "eager"},
		"bad mode":           {"PROVIDERS": "mock", "DEFAULT_TRANSPORT_MODE": "teleport"},
		"zero results":       {"PROVIDERS": "mock", "MAX_RESULTS": 0},
		"negative weight":    {"PROVIDERS": "mock", "WEIGHT_VISUAL": -1},
		"short task timeout": {"PROVIDERS": "mock", "TASK_TIMEOUT": "5s"},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromViper(withDefaults(overrides))
			assert.Error(t, err)
		})
	}

	cfg, err := FromViper(withDefaults(map[string]any{"ORS_API_KEY": "key"}))
	require.NoError(t, err)
	assert.Equal(t, "live", cfg.Providers.Mode)
}
