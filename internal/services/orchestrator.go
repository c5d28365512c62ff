package services

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/geo"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/platform/textnorm"
	"detour-route-service/internal/ports"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Endpoint is a caller-supplied origin or destination: explicit coordinates
// win over text.
type Endpoint struct {
	Text        string
	Coordinates *domain.Coordinates
}

func (e *Endpoint) explicit() bool { return e != nil && e.Coordinates != nil }

// independent reports whether the endpoint resolves without extraction.
func (e *Endpoint) independent() bool {
	return e != nil && (e.Coordinates != nil || strings.TrimSpace(e.Text) != "")
}

type Request struct {
	UserPrompt string
	// Number of ranked routes to return; <= 0 means the configured default.
	MaxResults  int
	Origin      *Endpoint
	Destination *Endpoint
	// Extra minutes allowed on top of the direct travel time.
	MaxDurationMinutes *int
	// Reference duration for efficiency; <= 0 uses the batch minimum.
	BaselineDurationSeconds int
	EvaluationMode          bool
}

type Metadata struct {
	CandidateCount    int
	WaypointCount     int
	RoutesBuilt       int
	RoutesScored      int
	SearchZoneAreaKm2 float64
	Strategy          string
	TagQueries        []string
	TransportMode     domain.TravelMode
	StageTimings      map[string]time.Duration
}

type Response struct {
	Routes              []domain.RouteScore
	SearchZone          domain.SearchZone
	TotalProcessingTime time.Duration
	Metadata            Metadata
}

type OrchestratorConfig struct {
	// Default number of routes returned.
	MaxResults          int
	TopK                int
	NearThresholdMeters float64
	// Queries used when extraction yields none or fails softly.
	DefaultTagQueries   []string
	DefaultExtraMinutes int
	// Mode used when extraction does not name one.
	DefaultTransportMode domain.TravelMode
	// Overrides every other mode source when set.
	ForceTransportMode domain.TravelMode
	// Routes requested for the empty candidate; > 1 enables alternatives.
	DirectAlternatives int
	// Deadline for each build or score task.
	TaskTimeout time.Duration
}

// Dependencies wired into an Orchestrator. Cache may be nil.
type Dependencies struct {
	Extractor  ports.Extractor
	Geocoder   ports.Geocoder
	Searcher   ports.WaypointSearcher
	Zones      *SearchZoneBuilder
	Builder    *RouteBuilder
	Scorer     *RouteScorer
	Candidates CandidateGenerator
	Cache      ports.Cache
}

// Stats are process-lifetime counters.
type Stats struct {
	Requests      int64 `json:"requests"`
	Failed        int64 `json:"failed"`
	RoutesBuilt   int64 `json:"routes_built"`
	BuildFailures int64 `json:"build_failures"`
	ScoreFailures int64 `json:"score_failures"`
}

// Orchestrator runs the detour pipeline: extraction, endpoint resolution,
// search zone, waypoints, candidates, route building and scoring. Its
// Strategy decides how much of that runs concurrently.
type Orchestrator struct {
	deps     Dependencies
	cfg      OrchestratorConfig
	strategy Strategy
	log      *zap.Logger

	requests      atomic.Int64
	failed        atomic.Int64
	routesBuilt   atomic.Int64
	buildFailures atomic.Int64
	scoreFailures atomic.Int64
}

func NewOrchestrator(deps Dependencies, cfg OrchestratorConfig, strategy Strategy, log *zap.Logger) (*Orchestrator, error) {
	if deps.Extractor == nil || deps.Geocoder == nil || deps.Searcher == nil ||
		deps.Zones == nil || deps.Builder == nil || deps.Scorer == nil || deps.Candidates == nil {
		return nil, errors.New("new orchestrator: missing dependency")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.DefaultExtraMinutes <= 0 {
		cfg.DefaultExtraMinutes = 30
	}
	if cfg.DefaultTransportMode == "" {
		cfg.DefaultTransportMode = domain.ModeWalking
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 12
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 45 * time.Second
	}
	if strategy.Name == "" {
		strategy = ParallelStrategy(0, 0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{deps: deps, cfg: cfg, strategy: strategy, log: log.Named("orchestrator")}, nil
}

func (o *Orchestrator) Strategy() Strategy { return o.strategy }

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Requests:      o.requests.Load(),
		Failed:        o.failed.Load(),
		RoutesBuilt:   o.routesBuilt.Load(),
		BuildFailures: o.buildFailures.Load(),
		ScoreFailures: o.scoreFailures.Load(),
	}
}

// stageClock records per-stage durations. Stages may overlap, so it is safe
// for concurrent use.
type stageClock struct {
	mu      sync.Mutex
	timings map[string]time.Duration
}

func (c *stageClock) track(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		c.mu.Lock()
		c.timings[name] = elapsed
		c.mu.Unlock()
	}
}

// snapshot copies the recorded timings.
func (c *stageClock) snapshot() map[string]time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Duration, len(c.timings))
	for k, v := range c.timings {
		out[k] = v
	}
	return out
}

// Plan runs the pipeline for one request. Errors match exactly one of the
// domain taxonomy sentinels.
func (o *Orchestrator) Plan(ctx context.Context, req Request) (_ Response, err error) {
	defer obs.Time(ctx, o.log, "orchestrator.Plan")(&err)

	started := time.Now()
	o.requests.Inc()
	defer func() {
		if err != nil {
			o.failed.Inc()
		}
	}()

	if err := validate(req); err != nil {
		return Response{}, err
	}
	clock := &stageClock{timings: map[string]time.Duration{}}

	// 1-2. Extraction and endpoint resolution.
	params, origin, destination, err := o.resolveInputs(ctx, req, clock)
	if err != nil {
		return Response{}, err
	}

	constraints := params.Constraints
	constraints.TransportMode = o.mode(params)

	// 3. Search zone.
	extra := o.cfg.DefaultExtraMinutes
	switch {
	case req.MaxDurationMinutes != nil:
		extra = max(0, *req.MaxDurationMinutes)
	case params.TimeFlexibilityMinutes > 0:
		extra = params.TimeFlexibilityMinutes
	}

	done := clock.track("search_zone")
	zk := zoneKey{Origin: origin.Rounded(), Destination: destination.Rounded(), ExtraMinutes: extra, Mode: constraints.TransportMode}
	zone := o.searchZone(ctx, zk)
	done()

	// 4. Waypoints.
	queries := params.TagQueries
	if len(queries) == 0 {
		queries = o.cfg.DefaultTagQueries
	}
	done = clock.track("waypoints")
	waypoints := o.waypoints(ctx, zk, zone, queries, origin, destination)
	done()

	// 5. Candidates.
	done = clock.track("candidates")
	candidates := o.deps.Candidates.Generate(waypoints)
	done()

	// 6. Build.
	done = clock.track("build")
	routes, err := o.buildAll(ctx, origin, destination, candidates, constraints)
	done()
	if err != nil {
		return Response{}, err
	}

	// 7-8. Score and rank.
	text := params.PreferencesText
	if strings.TrimSpace(text) == "" {
		text = req.UserPrompt
	}
	done = clock.track("score")
	scored := o.scoreAll(ctx, routes, text, req)
	done()

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = o.cfg.MaxResults
	}
	ranked := scored
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	return Response{
		Routes:              ranked,
		SearchZone:          zone,
		TotalProcessingTime: time.Since(started),
		Metadata: Metadata{
			CandidateCount:    len(candidates),
			WaypointCount:     len(waypoints),
			RoutesBuilt:       len(routes),
			RoutesScored:      len(scored),
			SearchZoneAreaKm2: geo.AreaKm2(zone.IntersectionRing),
			Strategy:          o.strategy.Name,
			TagQueries:        queries,
			TransportMode:     constraints.TransportMode,
			StageTimings:      clock.snapshot(),
		},
	}, nil
}

func validate(req Request) error {
	for _, ep := range []*Endpoint{req.Origin, req.Destination} {
		if ep.explicit() && !ep.Coordinates.Valid() {
			return fmt.Errorf("plan: coordinates out of range: %w", domain.ErrInvalidInput)
		}
	}
	if strings.TrimSpace(req.UserPrompt) == "" && !(req.Origin.independent() && req.Destination.independent()) {
		return fmt.Errorf("plan: prompt or both endpoints required: %w", domain.ErrInvalidInput)
	}
	if req.MaxDurationMinutes != nil && *req.MaxDurationMinutes < 0 {
		return fmt.Errorf("plan: negative max duration: %w", domain.ErrInvalidInput)
	}
	return nil
}

// surface wraps err so that errors.Is matches its taxonomy kind.
func surface(op string, err error) error {
	kind := domain.Classify(err)
	if errors.Is(err, kind) {
		return fmt.Errorf("plan: %s: %w", op, err)
	}
	return fmt.Errorf("plan: %s: %w: %w", op, kind, err)
}

func (o *Orchestrator) mode(params ports.ExtractedParameters) domain.TravelMode {
	switch {
	case o.cfg.ForceTransportMode != "":
		return o.cfg.ForceTransportMode
	case params.Constraints.TransportMode != "":
		return params.Constraints.TransportMode
	}
	return o.cfg.DefaultTransportMode
}

// resolveInputs runs extraction and endpoint resolution. Endpoints that do
// not depend on extraction resolve alongside it under an overlapping
// strategy.
func (o *Orchestrator) resolveInputs(
	ctx context.Context,
	req Request,
	clock *stageClock,
) (params ports.ExtractedParameters, origin, destination domain.Coordinates, err error) {
	var (
		extractErr, originErr, destErr error
		originDone, destDone           bool
	)

	extract := func() {
		defer clock.track("extract")()
		if strings.TrimSpace(req.UserPrompt) == "" {
			params = ports.ExtractedParameters{TagQueries: o.cfg.DefaultTagQueries}
			return
		}
		params, extractErr = o.extract(ctx, req.UserPrompt)
	}
	resolveOrigin := func() {
		defer clock.track("geocode_origin")()
		origin, originErr = o.resolveEndpoint(ctx, req.Origin, "")
		originDone = true
	}
	resolveDest := func() {
		defer clock.track("geocode_destination")()
		destination, destErr = o.resolveEndpoint(ctx, req.Destination, "")
		destDone = true
	}

	if o.strategy.Overlap {
		var wg sync.WaitGroup
		run := func(f func()) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f()
			}()
		}
		run(extract)
		if req.Origin.independent() {
			run(resolveOrigin)
		}
		if req.Destination.independent() {
			run(resolveDest)
		}
		wg.Wait()
	} else {
		extract()
		if req.Origin.independent() {
			resolveOrigin()
		}
		if req.Destination.independent() {
			resolveDest()
		}
	}

	if extractErr != nil {
		if !(req.Origin.explicit() && req.Destination.explicit()) {
			return params, origin, destination, surface("extract", extractErr)
		}
		o.log.Warn("extraction failed, using default tag queries", zap.Error(extractErr))
		params = ports.ExtractedParameters{TagQueries: o.cfg.DefaultTagQueries}
	}

	done := clock.track("geocode")
	defer done()
	if !originDone {
		origin, originErr = o.resolveEndpoint(ctx, req.Origin, params.OriginText)
	}
	if originErr != nil {
		return params, origin, destination, surface("resolve origin", originErr)
	}
	if !destDone {
		destination, destErr = o.resolveEndpoint(ctx, req.Destination, params.DestinationText)
	}
	if destErr != nil {
		return params, origin, destination, surface("resolve destination", destErr)
	}
	return params, origin, destination, nil
}

func (o *Orchestrator) extract(ctx context.Context, prompt string) (ports.ExtractedParameters, error) {
	key := cacheKey(struct {
		Prompt string `json:"prompt"`
	}{strings.TrimSpace(prompt)})

	var params ports.ExtractedParameters
	if cachedJSON(ctx, o.deps.Cache, o.log, nsExtract, key, &params) {
		return params, nil
	}

	params, err := o.deps.Extractor.Extract(ctx, prompt)
	if err != nil {
		return ports.ExtractedParameters{}, err
	}
	storeJSON(ctx, o.deps.Cache, o.log, nsExtract, key, params, ttlExtract)
	return params, nil
}

// resolveEndpoint prefers explicit coordinates, then request text, then the
// extracted text.
func (o *Orchestrator) resolveEndpoint(ctx context.Context, ep *Endpoint, extracted string) (domain.Coordinates, error) {
	if ep.explicit() {
		return *ep.Coordinates, nil
	}
	text := extracted
	if ep != nil && strings.TrimSpace(ep.Text) != "" {
		text = ep.Text
	}

	norm := textnorm.Address(text)
	if norm == "" {
		return domain.Coordinates{}, fmt.Errorf("endpoint has no location: %w", domain.ErrInvalidInput)
	}
	key := cacheKey(struct {
		Text string `json:"text"`
	}{norm})

	var c domain.Coordinates
	if cachedJSON(ctx, o.deps.Cache, o.log, nsGeocode, key, &c) {
		return c, nil
	}

	c, err := o.deps.Geocoder.Resolve(ctx, text)
	if err != nil {
		return domain.Coordinates{}, err
	}
	storeJSON(ctx, o.deps.Cache, o.log, nsGeocode, key, c, ttlGeocode)
	return c, nil
}

type zoneKey struct {
	Origin       domain.Coordinates `json:"o"`
	Destination  domain.Coordinates `json:"d"`
	ExtraMinutes int                `json:"max_additional"`
	Mode         domain.TravelMode  `json:"mode"`
}

// searchZone returns the cached or freshly built zone. A failed build is
// logged and yields an empty zone, which leads to direct routes only.
func (o *Orchestrator) searchZone(ctx context.Context, zk zoneKey) domain.SearchZone {
	key := cacheKey(zk)

	var zone domain.SearchZone
	if cachedJSON(ctx, o.deps.Cache, o.log, nsSearchZone, key, &zone) {
		return zone
	}

	zone, err := o.deps.Zones.Build(ctx, zk.Origin, zk.Destination, zk.ExtraMinutes, zk.Mode)
	if err != nil {
		o.log.Warn("search zone failed, continuing without detour area", zap.Error(err))
		return domain.SearchZone{}
	}
	storeJSON(ctx, o.deps.Cache, o.log, nsSearchZone, key, zone, ttlSearchZone)
	return zone
}

// waypoints fetches, de-duplicates, ranks and filters points of interest in
// the zone. An empty zone or a failed search yields none.
func (o *Orchestrator) waypoints(
	ctx context.Context,
	zk zoneKey,
	zone domain.SearchZone,
	queries []string,
	origin, destination domain.Coordinates,
) []domain.Waypoint {
	if zone.Empty() || len(queries) == 0 {
		return nil
	}

	key := cacheKey(struct {
		Zone    zoneKey  `json:"zone"`
		Queries []string `json:"queries"`
	}{zk, queries})

	var cached []domain.Waypoint
	if cachedJSON(ctx, o.deps.Cache, o.log, nsWaypoints, key, &cached) {
		return cached
	}

	found, err := o.deps.Searcher.Search(ctx, zone.IntersectionRing, queries)
	if err != nil {
		o.log.Warn("waypoint search failed", zap.Error(err))
		return nil
	}

	out := PrepareWaypoints(found, origin, destination, o.cfg.TopK, o.cfg.NearThresholdMeters)
	storeJSON(ctx, o.deps.Cache, o.log, nsWaypoints, key, out, ttlWaypoints)
	return out
}

// buildAll builds every candidate through the build pool. Failed candidates
// are dropped; with none left the direct route is the fallback.
func (o *Orchestrator) buildAll(
	ctx context.Context,
	origin, destination domain.Coordinates,
	candidates [][]domain.Waypoint,
	constraints domain.Constraints,
) ([]domain.Route, error) {
	tasks := make([]func(context.Context) ([]domain.Route, error), len(candidates))
	for i, c := range candidates {
		tasks[i] = func(ctx context.Context) ([]domain.Route, error) {
			if len(c) == 0 && o.cfg.DirectAlternatives > 1 {
				return o.deps.Builder.BuildDirectRoutes(ctx, origin, destination, constraints, o.cfg.DirectAlternatives)
			}
			r, err := o.deps.Builder.BuildRoute(ctx, origin, destination, c, constraints)
			if err != nil {
				return nil, err
			}
			return []domain.Route{r}, nil
		}
	}

	var routes []domain.Route
	for i, res := range RunTasks(ctx, o.strategy.BuildWorkers, o.cfg.TaskTimeout, tasks) {
		if res.Err != nil {
			o.buildFailures.Inc()
			o.log.Warn("candidate build failed",
				zap.String("req_id", obs.RequestID(ctx)),
				zap.Int("candidate", i),
				zap.Int("waypoints", len(candidates[i])),
				zap.Error(res.Err),
			)
			continue
		}
		routes = append(routes, res.Value...)
	}

	if len(routes) == 0 {
		o.log.Warn("no routes built, trying direct route")
		r, err := o.deps.Builder.BuildDirectRoute(ctx, origin, destination, constraints)
		if err != nil {
			return nil, fmt.Errorf("plan: direct route: %w (%v)", domain.ErrNoRouteFound, err)
		}
		routes = []domain.Route{r}
	}

	o.routesBuilt.Add(int64(len(routes)))
	return routes, nil
}

// scoreAll fetches visual signals through the score pool and ranks the
// routes. Routes whose visual task failed are dropped unless every task
// failed, in which case all routes rank with a zero visual score. The
// efficiency reference always comes from the whole built batch.
func (o *Orchestrator) scoreAll(ctx context.Context, routes []domain.Route, text string, req Request) []domain.RouteScore {
	tasks := make([]func(context.Context) (Visual, error), len(routes))
	for i, r := range routes {
		tasks[i] = func(ctx context.Context) (Visual, error) {
			return o.deps.Scorer.VisualScore(ctx, r, text)
		}
	}

	results := RunTasks(ctx, o.strategy.ScoreWorkers, o.cfg.TaskTimeout, tasks)

	kept := make([]domain.Route, 0, len(routes))
	visuals := make([]Visual, 0, len(routes))
	for i, res := range results {
		if res.Err != nil {
			o.scoreFailures.Inc()
			o.log.Warn("route scoring failed", zap.Int("route", i), zap.Error(res.Err))
			continue
		}
		kept = append(kept, routes[i])
		visuals = append(visuals, res.Value)
	}

	if len(kept) == 0 {
		o.log.Warn("all scoring failed, ranking without visual signal")
		kept = routes
		visuals = make([]Visual, len(routes))
	}

	return o.deps.Scorer.Score(kept, visuals, efficiencyReference(routes, req.BaselineDurationSeconds), req.EvaluationMode)
}

// efficiencyReference is baseline when set, else the fastest built route, so
// a route whose scoring failed still anchors the efficiency of the others.
func efficiencyReference(routes []domain.Route, baseline int) int {
	if baseline > 0 {
		return baseline
	}
	ref := 0
	for i, r := range routes {
		if i == 0 || r.TotalDurationSeconds < ref {
			ref = r.TotalDurationSeconds
		}
	}
	return ref
}
