package services

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/geo"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/ports"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Splits switch from fixed steps to even spacing above this base time.
	evenSplitThreshold = 60
	maxEvenSplits      = 20
	splitStepMinutes   = 5

	// A zero-minute isochrone is a tiny polygon around the point itself.
	pointBufferMeters   = 10
	pointBufferVertices = 16
)

type SearchZoneConfig struct {
	// Provider maximum for a single isochrone request, in minutes.
	IsochroneMaxMinutes int
	// Concurrent isochrone fetches per build.
	Workers int
}

// SearchZoneBuilder computes the area where a detour fits the time budget:
// the union over time splits o of isochrone(origin, o) ∩
// isochrone(destination, budget-o).
type SearchZoneBuilder struct {
	directions ports.Directions
	isochrones ports.IsochroneProvider
	cache      ports.Cache
	cfg        SearchZoneConfig
	log        *zap.Logger
}

func NewSearchZoneBuilder(
	directions ports.Directions,
	isochrones ports.IsochroneProvider,
	cache ports.Cache,
	cfg SearchZoneConfig,
	log *zap.Logger,
) *SearchZoneBuilder {
	if cfg.IsochroneMaxMinutes <= 0 {
		cfg.IsochroneMaxMinutes = 60
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchZoneBuilder{
		directions: directions,
		isochrones: isochrones,
		cache:      cache,
		cfg:        cfg,
		log:        log.Named("search_zone"),
	}
}

// BaseTravelTime returns the direct travel time in whole minutes, rounded
// up and at least 1.
func (b *SearchZoneBuilder) BaseTravelTime(
	ctx context.Context,
	origin, destination domain.Coordinates,
	mode domain.TravelMode,
) (_ int, err error) {
	defer obs.Time(ctx, b.log, "zone.BaseTravelTime")(&err)

	legs, err := b.directions.Route(ctx, ports.DirectionsRequest{
		Points: []domain.Coordinates{origin, destination},
		Mode:   mode,
	})
	if err != nil {
		return 0, domain.NewProviderError("directions", "base travel time", err)
	}
	if len(legs) == 0 {
		return 0, domain.NewProviderError("directions", "base travel time", domain.ErrNoRouteFound)
	}

	minutes := int(math.Ceil(float64(legs[0].DurationSeconds) / 60))
	return max(1, minutes), nil
}

type isoKey struct {
	Center  domain.Coordinates `json:"center"`
	Minutes int                `json:"minutes"`
	Mode    domain.TravelMode  `json:"mode"`
}

// Isochrone returns the reachable area around center. Minutes are capped to
// the provider maximum; minutes <= 0 yields a point buffer without a
// provider call.
func (b *SearchZoneBuilder) Isochrone(
	ctx context.Context,
	center domain.Coordinates,
	minutes int,
	mode domain.TravelMode,
) (domain.Isochrone, error) {
	if minutes <= 0 {
		return domain.Isochrone{
			Center: center,
			Ring:   geo.PointBuffer(center, pointBufferMeters, pointBufferVertices),
		}, nil
	}

	capped := min(minutes, b.cfg.IsochroneMaxMinutes)
	key := cacheKey(isoKey{Center: center.Rounded(), Minutes: capped, Mode: mode})

	var ring []domain.Coordinates
	if cachedJSON(ctx, b.cache, b.log, nsIsochrone, key, &ring) && len(ring) >= 4 {
		return domain.Isochrone{Center: center, Minutes: capped, Ring: ring}, nil
	}

	ring, err := b.isochrones.Isochrone(ctx, center, capped, mode)
	if err != nil {
		return domain.Isochrone{}, domain.NewProviderError("isochrone", "fetch", err)
	}
	ring = domain.CloseRing(ring)
	if len(ring) < 4 {
		return domain.Isochrone{}, domain.NewProviderError("isochrone", "fetch",
			fmt.Errorf("ring has %d points", len(ring)))
	}

	storeJSON(ctx, b.cache, b.log, nsIsochrone, key, ring, ttlIsochrone)
	return domain.Isochrone{Center: center, Minutes: capped, Ring: ring}, nil
}

// Splits returns the origin-side minutes for each time split of budget.
// Above the threshold base time it spaces at most 20 splits evenly over
// [0, budget]; otherwise it steps every 5 minutes from 0 up to budget.
func Splits(base, budget int) []int {
	if budget < 0 {
		budget = 0
	}

	if base > evenSplitThreshold {
		n := min(maxEvenSplits, budget+1)
		if n <= 1 {
			return []int{0}
		}
		out := make([]int, 0, n)
		for i := 0; i < n; i++ {
			v := int(math.Round(float64(i) * float64(budget) / float64(n-1)))
			if len(out) > 0 && out[len(out)-1] == v {
				continue
			}
			out = append(out, v)
		}
		return out
	}

	out := make([]int, 0, budget/splitStepMinutes+1)
	for o := 0; o <= budget; o += splitStepMinutes {
		out = append(out, o)
	}
	return out
}

// Build computes the search zone. An empty intersection ring is a valid
// result meaning no detour area exists.
func (b *SearchZoneBuilder) Build(
	ctx context.Context,
	origin, destination domain.Coordinates,
	extraMinutes int,
	mode domain.TravelMode,
) (_ domain.SearchZone, err error) {
	defer obs.Time(ctx, b.log, "zone.Build")(&err)

	base, err := b.BaseTravelTime(ctx, origin, destination, mode)
	if err != nil {
		return domain.SearchZone{}, fmt.Errorf("build search zone: %w", err)
	}
	budget := base + max(0, extraMinutes)
	splits := Splits(base, budget)

	memo := b.fetchAll(ctx, origin, destination, splits, budget, mode)

	type pair struct{ o, d domain.Isochrone }
	var (
		parts    []geo.Region
		usable   []pair
		failures []error
	)
	for _, o := range splits {
		oi, oerr := memo.get(origin, o)
		di, derr := memo.get(destination, budget-o)
		if oerr != nil || derr != nil {
			failures = append(failures, errors.Join(oerr, derr))
			continue
		}
		usable = append(usable, pair{oi, di})

		part := geo.Intersect(geo.FromRing(oi.Ring), geo.FromRing(di.Ring))
		if !geo.Empty(part) {
			parts = append(parts, part)
		}
	}

	if len(usable) == 0 {
		return domain.SearchZone{}, domain.NewProviderError("isochrone", "build search zone", errors.Join(failures...))
	}
	if len(failures) > 0 {
		b.log.Warn("some time splits failed", zap.Int("failed", len(failures)), zap.Int("splits", len(splits)))
	}

	mid := usable[len(usable)/2]
	zone := domain.SearchZone{
		OriginIsochrone:      mid.o,
		DestinationIsochrone: mid.d,
		IntersectionRing:     geo.LargestRing(geo.Union(parts)),
	}

	b.log.Debug("search zone built",
		zap.Int("base_min", base),
		zap.Int("budget_min", budget),
		zap.Int("splits", len(splits)),
		zap.Int("parts", len(parts)),
		zap.Float64("area_km2", geo.AreaKm2(zone.IntersectionRing)),
	)
	return zone, nil
}

// isoMemo holds the isochrones of one build, keyed by center and requested
// minutes.
type isoMemo struct {
	mu   sync.Mutex
	data map[isoKey]Result[domain.Isochrone]
}

func (m *isoMemo) get(center domain.Coordinates, minutes int) (domain.Isochrone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.data[isoKey{Center: center, Minutes: minutes}]
	return r.Value, r.Err
}

// fetchAll loads every distinct isochrone the splits need through a bounded
// pool. Requests that cap to the same minutes share one provider call.
func (b *SearchZoneBuilder) fetchAll(
	ctx context.Context,
	origin, destination domain.Coordinates,
	splits []int,
	budget int,
	mode domain.TravelMode,
) *isoMemo {
	memo := &isoMemo{data: map[isoKey]Result[domain.Isochrone]{}}

	type job struct {
		center    domain.Coordinates
		requested int
	}
	var jobs []job
	seen := map[isoKey]struct{}{}
	add := func(c domain.Coordinates, m int) {
		k := isoKey{Center: c, Minutes: m}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		jobs = append(jobs, job{c, m})
	}
	for _, o := range splits {
		add(origin, o)
		add(destination, budget-o)
	}

	var (
		sfMu   sync.Mutex
		shared = map[isoKey]*onceIso{}
	)
	fetch := func(c domain.Coordinates, minutes int) (domain.Isochrone, error) {
		capped := minutes
		if minutes > 0 {
			capped = min(minutes, b.cfg.IsochroneMaxMinutes)
		}
		k := isoKey{Center: c, Minutes: capped}

		sfMu.Lock()
		o, ok := shared[k]
		if !ok {
			o = &onceIso{}
			shared[k] = o
		}
		sfMu.Unlock()

		o.once.Do(func() { o.iso, o.err = b.Isochrone(ctx, c, minutes, mode) })
		return o.iso, o.err
	}

	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			iso, err := fetch(j.center, j.requested)
			if err == nil {
				iso.Minutes = min(max(0, j.requested), b.cfg.IsochroneMaxMinutes)
			}
			memo.mu.Lock()
			memo.data[isoKey{Center: j.center, Minutes: j.requested}] = Result[domain.Isochrone]{Value: iso, Err: err}
			memo.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return memo
}

type onceIso struct {
	once sync.Once
	iso  domain.Isochrone
	err  error
}
