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
	"sort"

	"go.uber.org/zap"
)

// The imagery bbox grows by this factor on the single retry.
const bboxExpansion = 1.8

type Weights struct {
	Visual     float64
	Efficiency float64
	Preference float64
}

func DefaultWeights() Weights {
	return Weights{Visual: 0.4, Efficiency: 0.3, Preference: 0.3}
}

type ScorerConfig struct {
	Weights Weights
	// Most sample points looked up for imagery per route; 0 disables the
	// visual signal.
	MaxImages int
	// Half-width of the imagery lookup box in degrees.
	BBoxDegrees float64
	// Preference bonus per waypoint beyond the first.
	BonusRate float64
	// EvaluationMode scores routes independent of preference match.
	EvaluationMode bool
}

// RouteScorer ranks routes by street-level visual match, time efficiency and
// waypoint preference. Imagery and embedding may be nil, which leaves every
// visual score at 0.
type RouteScorer struct {
	imagery   ports.Imagery
	embedding ports.Embedding
	cfg       ScorerConfig
	log       *zap.Logger
}

func NewRouteScorer(imagery ports.Imagery, embedding ports.Embedding, cfg ScorerConfig, log *zap.Logger) *RouteScorer {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.BBoxDegrees <= 0 {
		cfg.BBoxDegrees = 0.00025
	}
	if cfg.BonusRate < 0 {
		cfg.BonusRate = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteScorer{imagery: imagery, embedding: embedding, cfg: cfg, log: log.Named("scorer")}
}

// Raw visual signal of one route: mean rescaled similarity in [0,1] and the
// number of images behind it.
type Visual struct {
	Raw    float64
	Images int
}

// VisualScore measures one route against text over the sample points that
// yielded an image. Points whose lookups fail are skipped; the call fails
// only if every lookup failed.
func (s *RouteScorer) VisualScore(ctx context.Context, route domain.Route, text string) (_ Visual, err error) {
	defer obs.Time(ctx, s.log, "score.Visual")(&err)

	if s.imagery == nil || s.embedding == nil || s.cfg.MaxImages <= 0 {
		return Visual{}, nil
	}

	points := SamplePoints(route, s.cfg.MaxImages)
	var (
		sum      float64
		images   int
		failures []error
	)
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return Visual{}, err
		}

		sim, ok, err := s.pointSimilarity(ctx, p, text)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if ok {
			sum += (sim + 1) / 2
			images++
		}
	}

	if len(points) > 0 && len(failures) == len(points) {
		return Visual{}, fmt.Errorf("visual score: %w", errors.Join(failures...))
	}
	if images == 0 {
		return Visual{}, nil
	}
	return Visual{Raw: sum / float64(images), Images: images}, nil
}

// pointSimilarity finds the first image near p with a thumbnail and scores
// it against text. ok is false when no image is available.
func (s *RouteScorer) pointSimilarity(ctx context.Context, p domain.Coordinates, text string) (float64, bool, error) {
	ids, err := s.imagery.Nearby(ctx, bboxAround(p, s.cfg.BBoxDegrees))
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		ids, err = s.imagery.Nearby(ctx, bboxAround(p, s.cfg.BBoxDegrees*bboxExpansion))
		if err != nil {
			return 0, false, err
		}
	}

	for _, id := range ids {
		url, err := s.imagery.ThumbnailURL(ctx, id)
		if err != nil || url == "" {
			continue
		}
		sim, err := s.embedding.Similarity(ctx, text, url)
		if err != nil {
			return 0, false, err
		}
		return math.Max(-1, math.Min(1, sim)), true, nil
	}
	return 0, false, nil
}

func bboxAround(c domain.Coordinates, d float64) ports.BBox {
	return ports.BBox{MinLon: c.Lon - d, MinLat: c.Lat - d, MaxLon: c.Lon + d, MaxLat: c.Lat + d}
}

// SamplePoints returns origin, waypoints and destination, then segment
// midpoints, up to limit points. A segment midpoint lies halfway along its
// decoded path, or between its endpoints when the path does not decode.
func SamplePoints(route domain.Route, limit int) []domain.Coordinates {
	points := make([]domain.Coordinates, 0, len(route.Waypoints)+2+len(route.Segments))
	points = append(points, route.Origin)
	for _, w := range route.Waypoints {
		points = append(points, w.Coordinates)
	}
	points = append(points, route.Destination)

	for _, seg := range route.Segments {
		if len(points) >= limit {
			break
		}
		if mid, ok := geo.PathMidpoint(seg.EncodedPath); ok {
			points = append(points, mid)
			continue
		}
		points = append(points, domain.Midpoint(seg.Start, seg.End))
	}

	if limit >= 0 && len(points) > limit {
		points = points[:limit]
	}
	return points
}

// EfficiencyScore penalizes duration d beyond reference m cubically:
// 100 - 10*(ratio+1)^3 with ratio = (d-m)/max(1,m), clamped to [0,100].
// Durations at or under the reference score 100, as does m <= 0. The curve
// itself starts at 90, so there is a deliberate step from 100 to about 90
// just past m: the reference route must score 100 and a route at 2m must
// score 20.
func EfficiencyScore(d, m float64) float64 {
	if m <= 0 || d <= m {
		return 100
	}
	ratio := (d - m) / math.Max(1, m)
	return clamp(100 - 10*math.Pow(ratio+1, 3))
}

// PreferenceScore is the mean waypoint relevance with a linear bonus per
// extra waypoint, capped at 100. Routes without waypoints are not
// applicable.
func PreferenceScore(waypoints []domain.Waypoint, bonusRate float64) domain.OptionalScore {
	if len(waypoints) == 0 {
		return domain.NotApplicable()
	}
	var sum float64
	for _, w := range waypoints {
		sum += w.RelevanceScore
	}
	mean := sum / float64(len(waypoints))
	bonus := 1 + bonusRate*float64(len(waypoints)-1)
	return domain.ScoreOf(math.Min(100, mean*bonus))
}

// Combine weights the sub-scores. A not-applicable preference hands its
// weight to visual and efficiency in proportion to theirs.
func Combine(visual, efficiency float64, preference domain.OptionalScore, w Weights) float64 {
	if !preference.Valid {
		total := w.Visual + w.Efficiency
		vw, ew := 0.5, 0.5
		if total > 0 {
			vw, ew = w.Visual/total, w.Efficiency/total
		}
		return clamp(vw*visual + ew*efficiency)
	}
	return clamp(w.Visual*visual + w.Efficiency*efficiency + w.Preference*preference.Value)
}

// Score computes the breakdown for a batch from per-route visual results
// (visuals[i] belongs to routes[i]). baselineSeconds > 0 replaces the batch
// minimum duration as the efficiency reference. evaluationMode forces
// preference to not applicable, as does the configured mode. The result is
// ranked.
func (s *RouteScorer) Score(routes []domain.Route, visuals []Visual, baselineSeconds int, evaluationMode bool) []domain.RouteScore {
	if len(routes) == 0 {
		return nil
	}

	ref := float64(baselineSeconds)
	if baselineSeconds <= 0 {
		ref = math.Inf(1)
		for _, r := range routes {
			ref = math.Min(ref, float64(r.TotalDurationSeconds))
		}
	}

	var maxRaw float64
	for _, v := range visuals {
		maxRaw = math.Max(maxRaw, v.Raw)
	}

	out := make([]domain.RouteScore, len(routes))
	for i, r := range routes {
		var v Visual
		if i < len(visuals) {
			v = visuals[i]
		}
		normalized := 0.0
		if maxRaw > 0 {
			normalized = clamp(v.Raw / maxRaw * 100)
		}

		pref := PreferenceScore(r.Waypoints, s.cfg.BonusRate)
		if s.cfg.EvaluationMode || evaluationMode {
			pref = domain.NotApplicable()
		}

		eff := EfficiencyScore(float64(r.TotalDurationSeconds), ref)
		out[i] = domain.RouteScore{
			Route:      r,
			Visual:     normalized,
			VisualRaw:  v.Raw,
			Efficiency: eff,
			Preference: pref,
			Overall:    Combine(normalized, eff, pref, s.cfg.Weights),
			ImagesUsed: v.Images,
		}
	}
	return Rank(out)
}

// Recombine recomputes overall scores from existing sub-scores under other
// weights or evaluation mode, without refetching anything. Preference
// dropped by an earlier evaluation-mode pass is recomputed from waypoints.
func Recombine(scores []domain.RouteScore, w Weights, bonusRate float64, evaluationMode bool) []domain.RouteScore {
	out := make([]domain.RouteScore, len(scores))
	for i, sc := range scores {
		pref := PreferenceScore(sc.Route.Waypoints, bonusRate)
		if evaluationMode {
			pref = domain.NotApplicable()
		}
		sc.Preference = pref
		sc.Overall = Combine(sc.Visual, sc.Efficiency, pref, w)
		out[i] = sc
	}
	return Rank(out)
}

// Rank returns a copy stably sorted by overall score, highest first.
func Rank(scores []domain.RouteScore) []domain.RouteScore {
	out := append([]domain.RouteScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Overall > out[j].Overall })
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
