// Package overpass finds waypoints inside a search zone with the Overpass
// API and ranks them by how well their tags and names match the query.
package overpass

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/geo"
	"detour-route-service/internal/platform/httpx"
	"detour-route-service/internal/platform/obs"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultURL = "https://overpass-api.de/api/interpreter"

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	// Pause between queries; Overpass is a shared resource.
	Pause time.Duration
	// Server-side query timeout in seconds.
	QueryTimeoutSeconds int
}

// Searcher implements ports.WaypointSearcher.
type Searcher struct {
	http *httpx.Client
	cfg  Config
	log  *zap.Logger
}

func NewSearcher(cfg Config, log *zap.Logger) *Searcher {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "detour-route-service/1.0"
	}
	if cfg.QueryTimeoutSeconds <= 0 {
		cfg.QueryTimeoutSeconds = 45
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Duration(cfg.QueryTimeoutSeconds+10) * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Searcher{
		http: httpx.New(cfg.Timeout, httpx.WithHeader("User-Agent", cfg.UserAgent)),
		cfg:  cfg,
		log:  log.Named("overpass"),
	}
}

type element struct {
	Type   string   `json:"type"`
	ID     int64    `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

// Search runs one Overpass query per tag query, keeps elements inside ring
// and returns the ranked union. A failed query is logged and skipped; the
// search fails only when every query fails.
func (s *Searcher) Search(ctx context.Context, ring []domain.Coordinates, queries []string) (_ []domain.Waypoint, err error) {
	defer obs.Time(ctx, s.log, "overpass.Search")(&err)

	if len(ring) < 4 || len(queries) == 0 {
		return nil, nil
	}

	var all []domain.Waypoint
	var failures []error
	for i, q := range queries {
		if i > 0 && s.cfg.Pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.Pause):
			}
		}

		elements, err := s.query(ctx, ring, q)
		if err != nil {
			s.log.Warn("overpass query failed", zap.String("query", q), zap.Error(err))
			failures = append(failures, err)
			continue
		}

		var found []domain.Waypoint
		for _, e := range elements {
			pt, ok := e.point()
			if !ok || !geo.Contains(ring, pt) {
				continue
			}
			found = append(found, toWaypoint(e, pt, q))
		}
		all = append(all, rank(found, q)...)
	}

	if len(failures) == len(queries) {
		return nil, domain.NewProviderError("overpass", "search", errors.Join(failures...))
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].RelevanceScore > all[j].RelevanceScore })
	return all, nil
}

func (s *Searcher) query(ctx context.Context, ring []domain.Coordinates, q string) ([]element, error) {
	filter := NormalizeFilter(q)
	if filter == "" {
		return nil, fmt.Errorf("empty filter for query %q: %w", q, domain.ErrInvalidInput)
	}

	var pairs []string
	for _, p := range ring {
		pairs = append(pairs, fmt.Sprintf("%.6f %.6f", p.Lat, p.Lon))
	}
	poly := strings.Join(pairs, " ")

	ql := fmt.Sprintf(`[out:json][timeout:%d];
(
  node%[2]s(poly:"%[3]s");
  way%[2]s(poly:"%[3]s");
  relation%[2]s(poly:"%[3]s");
);
out center tags;`, s.cfg.QueryTimeoutSeconds, filter, poly)

	form := url.Values{"data": {ql}}.Encode()
	resp, err := s.http.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := s.http.NewRequest(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded response
	if err := decodeJSON(resp.Body, &decoded); err != nil {
		return nil, err
	}
	return decoded.Elements, nil
}

// point returns the representative location of a node, or the center of a
// way or relation.
func (e element) point() (domain.Coordinates, bool) {
	if e.Type == "node" {
		if e.Lat == nil || e.Lon == nil {
			return domain.Coordinates{}, false
		}
		return domain.Coordinates{Lat: *e.Lat, Lon: *e.Lon}, true
	}
	if e.Center != nil {
		return domain.Coordinates{Lat: e.Center.Lat, Lon: e.Center.Lon}, true
	}
	return domain.Coordinates{}, false
}

func toWaypoint(e element, pt domain.Coordinates, query string) domain.Waypoint {
	name := e.Tags["name"]
	if name == "" {
		name = e.Tags["alt_name"]
	}
	if name == "" {
		name = fmt.Sprintf("%s (%s %d)", query, e.Type, e.ID)
	}

	return domain.Waypoint{
		Name:        name,
		Coordinates: pt,
		Category:    category(e.Tags, query),
		Metadata: map[string]any{
			"osm_id":   e.ID,
			"osm_type": e.Type,
			"tags":     e.Tags,
		},
		SourceQuery: query,
	}
}

var categoryKeys = []string{"leisure", "amenity", "tourism", "landuse", "natural", "water", "shop", "sport"}

func category(tags map[string]string, fallback string) string {
	for _, k := range categoryKeys {
		if v, ok := tags[k]; ok {
			return k + "=" + v
		}
	}
	return fallback
}
