package services

import (
	"context"
	"detour-route-service/internal/adapters/cache"
	"detour-route-service/internal/adapters/mock"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/ports"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtractor struct {
	mock.Extractor
	mu    sync.Mutex
	calls int
}

func (c *countingExtractor) Extract(ctx context.Context, prompt string) (ports.ExtractedParameters, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Extractor.Extract(ctx, prompt)
}

type countingSearcher struct {
	mock.Searcher
	mu    sync.Mutex
	calls int
}

func (c *countingSearcher) Search(ctx context.Context, ring []domain.Coordinates, queries []string) ([]domain.Waypoint, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Searcher.Search(ctx, ring, queries)
}

type fixture struct {
	extractor  *countingExtractor
	searcher   *countingSearcher
	directions *mock.Directions
	isochrones *mock.Isochrones
	imagery    ports.Imagery
	cache      ports.Cache
	cfg        OrchestratorConfig
	strategy   Strategy
}

func newFixture() *fixture {
	return &fixture{
		extractor: &countingExtractor{Extractor: mock.Extractor{Params: ports.ExtractedParameters{
			OriginText:             "Berkeley Marina",
			DestinationText:        "UC Berkeley",
			TimeFlexibilityMinutes: 20,
			TagQueries:             []string{"leisure=park"},
			Constraints:            domain.Constraints{TransportMode: domain.ModeWalking},
			PreferencesText:        "leafy parks",
		}}},
		searcher: &countingSearcher{Searcher: mock.Searcher{Waypoints: []domain.Waypoint{
			wp("Ohlone Park", 37.8735, -122.2680, 8),
			wp("Strawberry Creek", 37.8700, -122.2640, 6),
			wp("Live Oak Park", 37.8745, -122.2610, 7),
			wp("Ohlone Park", 37.8735, -122.2680, 5),
			wp("Marina Lawn", berkeley.Lat+0.0002, berkeley.Lon, 9),
		}}},
		directions: &mock.Directions{},
		isochrones: &mock.Isochrones{},
		imagery:    mock.Imagery{},
		cache:      newMemCache(),
		cfg: OrchestratorConfig{
			MaxResults:          5,
			TopK:                12,
			NearThresholdMeters: 100,
			DefaultTagQueries:   []string{"leisure=garden"},
		},
		strategy: ParallelStrategy(3, 2),
	}
}

func (f *fixture) build(t *testing.T) *Orchestrator {
	t.Helper()
	geocoder := mock.NewGeocoder(map[string]domain.Coordinates{
		"Berkeley Marina": berkeley,
		"UC Berkeley":     campus,
	})
	o, err := NewOrchestrator(Dependencies{
		Extractor:  f.extractor,
		Geocoder:   geocoder,
		Searcher:   f.searcher,
		Zones:      NewSearchZoneBuilder(f.directions, f.isochrones, f.cache, SearchZoneConfig{}, nil),
		Builder:    NewRouteBuilder(f.directions, mock.NearestNeighborOptimizer{}, RouteBuilderConfig{}, nil),
		Scorer:     NewRouteScorer(f.imagery, mock.Embedding{}, ScorerConfig{MaxImages: 4, BonusRate: 0.1}, nil),
		Candidates: NewCandidateGenerator(CandidateConfig{TopK: 12, MaxWaypoints: 2, MaxCandidates: 20}),
		Cache:      f.cache,
	}, f.cfg, f.strategy, nil)
	require.NoError(t, err)
	return o
}

func promptRequest() Request {
	return Request{UserPrompt: "From Berkeley Marina to UC Berkeley through some leafy parks"}
}

func TestPlanRanksRoutes(t *testing.T) {
	f := newFixture()
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)

	require.NotEmpty(t, resp.Routes)
	assert.LessOrEqual(t, len(resp.Routes), 5)
	for i, sc := range resp.Routes {
		require.NoError(t, sc.Route.Validate())
		assert.Equal(t, berkeley, sc.Route.Origin)
		assert.Equal(t, campus, sc.Route.Destination)
		assert.GreaterOrEqual(t, sc.Overall, 0.0)
		assert.LessOrEqual(t, sc.Overall, 100.0)
		if i > 0 {
			assert.LessOrEqual(t, sc.Overall, resp.Routes[i-1].Overall)
		}
	}

	md := resp.Metadata
	// Duplicate Ohlone Park collapses and Marina Lawn sits on the origin.
	assert.Equal(t, 3, md.WaypointCount)
	// Empty subset, 3 singles, 3 pairs.
	assert.Equal(t, 7, md.CandidateCount)
	assert.Equal(t, 7, md.RoutesBuilt)
	assert.Equal(t, 7, md.RoutesScored)
	assert.Greater(t, md.SearchZoneAreaKm2, 0.0)
	assert.Equal(t, "parallel", md.Strategy)
	assert.Equal(t, domain.ModeWalking, md.TransportMode)
	assert.Equal(t, []string{"leisure=park"}, md.TagQueries)
	for _, stage := range []string{"extract", "geocode", "search_zone", "waypoints", "candidates", "build", "score"} {
		assert.Contains(t, md.StageTimings, stage)
	}
	assert.False(t, resp.SearchZone.Empty())
	assert.Positive(t, resp.TotalProcessingTime)

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.Requests)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(7), stats.RoutesBuilt)
}

func TestPlanTruncatesToMaxResults(t *testing.T) {
	o := newFixture().build(t)

	req := promptRequest()
	req.MaxResults = 2
	resp, err := o.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.Routes, 2)
	assert.Equal(t, 7, resp.Metadata.RoutesScored)
}

func TestPlanReusesCache(t *testing.T) {
	f := newFixture()
	o := f.build(t)
	ctx := context.Background()

	first, err := o.Plan(ctx, promptRequest())
	require.NoError(t, err)
	isoCalls := f.isochrones.Calls()

	second, err := o.Plan(ctx, promptRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, 1, f.searcher.calls)
	assert.Equal(t, isoCalls, f.isochrones.Calls())
	assert.Equal(t, first.Routes, second.Routes)
}

func TestPlanStrategiesAgree(t *testing.T) {
	run := func(strategy Strategy) Response {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		f := newFixture()
		f.cache = cache.NewRedisCache(rdb, nil)
		f.strategy = strategy
		resp, err := f.build(t).Plan(context.Background(), promptRequest())
		require.NoError(t, err)
		return resp
	}

	par := run(ParallelStrategy(4, 3))
	seq := run(SequentialStrategy())

	assert.Equal(t, "sequential", seq.Metadata.Strategy)
	assert.Equal(t, par.Metadata.CandidateCount, seq.Metadata.CandidateCount)
	assert.Equal(t, par.Routes, seq.Routes)
}

func TestPlanExplicitCoordinatesSurviveExtractionFailure(t *testing.T) {
	f := newFixture()
	f.extractor.Err = domain.NewProviderError("ollama", "generate", errors.New("model not loaded"))
	f.searcher.Waypoints = append(f.searcher.Waypoints, domain.Waypoint{
		Name:           "Rose Garden",
		Coordinates:    domain.Coordinates{Lat: 37.8725, Lon: -122.2650},
		RelevanceScore: 6,
		SourceQuery:    "leisure=garden",
	})
	o := f.build(t)

	resp, err := o.Plan(context.Background(), Request{
		UserPrompt:  "somewhere green",
		Origin:      &Endpoint{Coordinates: &berkeley},
		Destination: &Endpoint{Coordinates: &campus},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"leisure=garden"}, resp.Metadata.TagQueries)
	assert.NotEmpty(t, resp.Routes)
}

func TestPlanExtractionFailureIsFatalWithoutCoordinates(t *testing.T) {
	f := newFixture()
	f.extractor.Err = domain.NewProviderError("ollama", "generate", errors.New("model not loaded"))
	o := f.build(t)

	_, err := o.Plan(context.Background(), promptRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderError)
	assert.Equal(t, int64(1), o.Stats().Failed)
}

func TestPlanRequestTextOverridesExtraction(t *testing.T) {
	f := newFixture()
	f.extractor.Params.OriginText = "Nowhere Special"
	o := f.build(t)

	req := promptRequest()
	req.Origin = &Endpoint{Text: "Berkeley Marina"}
	resp, err := o.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, berkeley, resp.Routes[0].Route.Origin)
}

func TestPlanUnknownPlace(t *testing.T) {
	f := newFixture()
	f.extractor.Params.DestinationText = "Atlantis"
	o := f.build(t)

	_, err := o.Plan(context.Background(), promptRequest())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlanRejectsInvalidInput(t *testing.T) {
	o := newFixture().build(t)
	bad := domain.Coordinates{Lat: 120, Lon: 0}
	negative := -5

	for name, req := range map[string]Request{
		"empty":            {},
		"bad coordinates":  {UserPrompt: "x", Origin: &Endpoint{Coordinates: &bad}},
		"negative minutes": {UserPrompt: "x", MaxDurationMinutes: &negative},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := o.Plan(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestPlanWithoutPromptUsesDefaults(t *testing.T) {
	f := newFixture()
	o := f.build(t)

	resp, err := o.Plan(context.Background(), Request{
		Origin:      &Endpoint{Text: "Berkeley Marina"},
		Destination: &Endpoint{Text: "UC Berkeley"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.extractor.calls)
	assert.Equal(t, []string{"leisure=garden"}, resp.Metadata.TagQueries)
}

func TestPlanNoRouteAnywhere(t *testing.T) {
	f := newFixture()
	f.directions.NoRoute = func([]domain.Coordinates) bool { return true }
	o := f.build(t)

	_, err := o.Plan(context.Background(), promptRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoRouteFound)
}

func TestPlanEmptyZoneSkipsSearch(t *testing.T) {
	f := newFixture()
	f.isochrones.Fail = true
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, f.searcher.calls)
	require.Len(t, resp.Routes, 1)
	assert.Empty(t, resp.Routes[0].Route.Waypoints)
	assert.Zero(t, resp.Metadata.SearchZoneAreaKm2)
}

func TestPlanSearchFailureFallsBackToDirect(t *testing.T) {
	f := newFixture()
	f.searcher.Err = domain.NewProviderError("overpass", "search", errors.New("rate limited"))
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Metadata.WaypointCount)
	require.Len(t, resp.Routes, 1)
	assert.Empty(t, resp.Routes[0].Route.Waypoints)
	assert.Equal(t, 100.0, resp.Routes[0].Efficiency)
	assert.False(t, resp.Routes[0].Preference.Valid)
}

func TestPlanFailedCandidatesAreDropped(t *testing.T) {
	f := newFixture()
	blocked := domain.Coordinates{Lat: 37.8745, Lon: -122.2610}
	f.directions.NoRoute = func(points []domain.Coordinates) bool {
		for _, p := range points {
			if p == blocked {
				return true
			}
		}
		return false
	}
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)
	// Live Oak Park is in 1 single and 2 pairs.
	assert.Equal(t, 4, resp.Metadata.RoutesBuilt)
	assert.Equal(t, int64(3), o.Stats().BuildFailures)
	for _, sc := range resp.Routes {
		assert.NotContains(t, names(sc.Route.Waypoints), "Live Oak Park")
	}
}

func TestPlanScoringFailureKeepsRoutes(t *testing.T) {
	f := newFixture()
	f.imagery = &countingImagery{fail: true}
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Metadata.RoutesScored)
	for _, sc := range resp.Routes {
		assert.Zero(t, sc.Visual)
	}
}

func TestPlanDirectAlternatives(t *testing.T) {
	f := newFixture()
	f.cfg.DirectAlternatives = 3
	f.searcher.Waypoints = nil
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Metadata.CandidateCount)
	assert.Equal(t, 3, resp.Metadata.RoutesBuilt)
	for _, sc := range resp.Routes {
		assert.Empty(t, sc.Route.Waypoints)
	}
}

func TestPlanForcedTransportMode(t *testing.T) {
	f := newFixture()
	f.cfg.ForceTransportMode = domain.ModeCycling
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCycling, resp.Metadata.TransportMode)
	assert.Equal(t, domain.ModeCycling, resp.Routes[0].Route.Constraints.TransportMode)
}

func TestPlanEvaluationMode(t *testing.T) {
	o := newFixture().build(t)

	req := promptRequest()
	req.EvaluationMode = true
	resp, err := o.Plan(context.Background(), req)
	require.NoError(t, err)
	for _, sc := range resp.Routes {
		assert.False(t, sc.Preference.Valid)
	}
}

func TestNewOrchestratorRequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator(Dependencies{}, OrchestratorConfig{}, Strategy{}, nil)
	assert.Error(t, err)
}

func TestPlanHungLegFailsOnlyItsCandidate(t *testing.T) {
	f := newFixture()
	stalled := domain.Coordinates{Lat: 37.8745, Lon: -122.2610}
	f.directions.Stall = func(points []domain.Coordinates) bool {
		for _, p := range points {
			if p == stalled {
				return true
			}
		}
		return false
	}
	f.cfg.TaskTimeout = 50 * time.Millisecond
	o := f.build(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := o.Plan(ctx, promptRequest())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	// Live Oak Park is in 1 single and 2 pairs.
	assert.Equal(t, 4, resp.Metadata.RoutesBuilt)
	assert.Equal(t, int64(3), o.Stats().BuildFailures)
	require.NotEmpty(t, resp.Routes)
	for _, sc := range resp.Routes {
		assert.NotContains(t, names(sc.Route.Waypoints), "Live Oak Park")
		assert.Positive(t, sc.ImagesUsed)
		assert.Positive(t, sc.Visual)
	}
}

// failingCache refuses every read and write.
type failingCache struct{}

func (failingCache) Get(context.Context, string, string, any) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func (failingCache) Set(context.Context, string, string, any, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

// staleCache reports a hit for every key whose stored shape no longer decodes.
type staleCache struct{}

func (staleCache) Get(_ context.Context, _, _ string, dst any) (bool, error) {
	return true, json.Unmarshal([]byte(`"old format"`), dst)
}

func (staleCache) Set(context.Context, string, string, any, time.Duration) error { return nil }

func TestPlanDegradesWhenCacheMisbehaves(t *testing.T) {
	want, err := newFixture().build(t).Plan(context.Background(), promptRequest())
	require.NoError(t, err)

	for name, c := range map[string]ports.Cache{
		"unavailable": failingCache{},
		"stale":       staleCache{},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.cache = c
			o := f.build(t)

			resp, err := o.Plan(context.Background(), promptRequest())
			require.NoError(t, err)
			assert.Equal(t, want.Routes, resp.Routes)
			assert.Equal(t, want.Metadata.CandidateCount, resp.Metadata.CandidateCount)
			assert.Equal(t, 1, f.extractor.calls)
			assert.Equal(t, 1, f.searcher.calls)
		})
	}
}

func TestPlanGeocodeCacheKeyIsHashed(t *testing.T) {
	f := newFixture()
	mem := newMemCache()
	f.cache = mem
	o := f.build(t)

	_, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, mem.count(nsGeocode))
	key := cacheKey(struct {
		Text string `json:"text"`
	}{"uc berkeley"})
	var c domain.Coordinates
	ok, err := mem.Get(context.Background(), nsGeocode, key, &c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, campus, c)
}

// spotImagery has imagery only around one point; lookups elsewhere fail.
type spotImagery struct {
	spot domain.Coordinates
}

func (s spotImagery) Nearby(ctx context.Context, b ports.BBox) ([]string, error) {
	if s.spot.Lat < b.MinLat || s.spot.Lat > b.MaxLat || s.spot.Lon < b.MinLon || s.spot.Lon > b.MaxLon {
		return nil, errors.New("imagery timeout")
	}
	return mock.Imagery{}.Nearby(ctx, b)
}

func (s spotImagery) ThumbnailURL(ctx context.Context, id string) (string, error) {
	return mock.Imagery{}.ThumbnailURL(ctx, id)
}

func TestPlanEfficiencyAnchoredOnWholeBatch(t *testing.T) {
	f := newFixture()
	f.imagery = spotImagery{spot: domain.Coordinates{Lat: 37.8735, Lon: -122.2680}}
	o := f.build(t)

	resp, err := o.Plan(context.Background(), promptRequest())
	require.NoError(t, err)

	// Only routes through Ohlone Park find imagery; the direct route is
	// dropped but stays the efficiency reference.
	assert.Equal(t, 7, resp.Metadata.RoutesBuilt)
	assert.Equal(t, 3, resp.Metadata.RoutesScored)
	for _, sc := range resp.Routes {
		assert.Contains(t, names(sc.Route.Waypoints), "Ohlone Park")
		assert.Less(t, sc.Efficiency, 100.0)
	}
}

func TestEfficiencyReference(t *testing.T) {
	routes := []domain.Route{
		{TotalDurationSeconds: 900},
		{TotalDurationSeconds: 600},
		{TotalDurationSeconds: 750},
	}
	assert.Equal(t, 600, efficiencyReference(routes, 0))
	assert.Equal(t, 480, efficiencyReference(routes, 480))
	assert.Equal(t, 0, efficiencyReference(nil, 0))
}

func TestPlanTimesConcurrentGeocoding(t *testing.T) {
	o := newFixture().build(t)

	resp, err := o.Plan(context.Background(), Request{
		UserPrompt:  "through some leafy parks",
		Origin:      &Endpoint{Text: "Berkeley Marina"},
		Destination: &Endpoint{Text: "UC Berkeley"},
	})
	require.NoError(t, err)
	for _, stage := range []string{"extract", "geocode_origin", "geocode_destination", "geocode"} {
		assert.Contains(t, resp.Metadata.StageTimings, stage)
	}
}
