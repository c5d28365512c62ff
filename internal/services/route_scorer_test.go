package services

import (
	"context"
	"detour-route-service/internal/adapters/mock"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/ports"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEfficiencyScore(t *testing.T) {
	tests := []struct {
		name string
		d, m float64
		want float64
	}{
		{"at baseline", 600, 600, 100},
		{"faster than baseline", 500, 600, 100},
		{"just past baseline steps down", 600.6, 600, 89.96996999},
		{"twice baseline", 1200, 600, 20},
		{"far beyond baseline", 3000, 600, 0},
		{"no baseline", 1200, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EfficiencyScore(tt.d, tt.m), 1e-9)
		})
	}
}

func TestPreferenceScore(t *testing.T) {
	assert.False(t, PreferenceScore(nil, 0.1).Valid)

	got := PreferenceScore([]domain.Waypoint{wp("a", 0, 0, 5), wp("b", 0, 0, 7)}, 0.1)
	require.True(t, got.Valid)
	assert.InDelta(t, 6.6, got.Value, 1e-9)

	many := make([]domain.Waypoint, 30)
	for i := range many {
		many[i] = wp("x", 0, 0, 10)
	}
	assert.Equal(t, 100.0, PreferenceScore(many, 1).Value)
}

func TestCombineRedistributesNotApplicable(t *testing.T) {
	w := DefaultWeights()

	assert.InDelta(t, 0.4*50+0.3*100+0.3*80, Combine(50, 100, domain.ScoreOf(80), w), 1e-9)
	assert.InDelta(t, 50*4.0/7+100*3.0/7, Combine(50, 100, domain.NotApplicable(), w), 1e-9)
	assert.InDelta(t, 75, Combine(50, 100, domain.NotApplicable(), Weights{Preference: 1}), 1e-9)
}

func routeWithDuration(t *testing.T, seconds int, waypoints ...domain.Waypoint) domain.Route {
	t.Helper()
	segs := make([]domain.RouteSegment, len(waypoints)+1)
	for i := range segs {
		segs[i] = domain.RouteSegment{Start: berkeley, End: campus}
	}
	segs[0].DurationSeconds = seconds
	segs[0].DistanceMeters = float64(seconds)
	r, err := domain.NewRoute(berkeley, campus, waypoints, segs, walking)
	require.NoError(t, err)
	return r
}

func TestScoreNormalizesAndRanks(t *testing.T) {
	s := NewRouteScorer(nil, nil, ScorerConfig{BonusRate: 0.1}, nil)
	routes := []domain.Route{
		routeWithDuration(t, 600),
		routeWithDuration(t, 900, wp("a", 37.88, -122.26, 9)),
		routeWithDuration(t, 1200, wp("b", 37.88, -122.27, 2)),
	}
	visuals := []Visual{{Raw: 0.2, Images: 3}, {Raw: 0.4, Images: 4}, {Raw: 0.1, Images: 1}}

	scores := s.Score(routes, visuals, 0, false)
	require.Len(t, scores, 3)

	byDuration := map[int]domain.RouteScore{}
	for i, sc := range scores {
		byDuration[sc.Route.TotalDurationSeconds] = sc
		if i > 0 {
			assert.LessOrEqual(t, sc.Overall, scores[i-1].Overall)
		}
		assert.GreaterOrEqual(t, sc.Overall, 0.0)
		assert.LessOrEqual(t, sc.Overall, 100.0)
	}

	assert.Equal(t, 100.0, byDuration[900].Visual)
	assert.Equal(t, 50.0, byDuration[600].Visual)
	assert.Equal(t, 100.0, byDuration[600].Efficiency)
	assert.InDelta(t, 20, byDuration[1200].Efficiency, 1e-9)
	assert.False(t, byDuration[600].Preference.Valid)
	assert.Equal(t, 9.0, byDuration[900].Preference.Value)
	assert.Equal(t, 4, byDuration[900].ImagesUsed)
}

func TestScoreZeroVisualBatch(t *testing.T) {
	s := NewRouteScorer(nil, nil, ScorerConfig{}, nil)
	routes := []domain.Route{routeWithDuration(t, 600), routeWithDuration(t, 600)}

	scores := s.Score(routes, make([]Visual, 2), 0, false)
	for _, sc := range scores {
		assert.Equal(t, 0.0, sc.Visual)
	}
}

func TestScoreBaselineOverridesBatchMinimum(t *testing.T) {
	s := NewRouteScorer(nil, nil, ScorerConfig{}, nil)

	scores := s.Score([]domain.Route{routeWithDuration(t, 1200)}, nil, 600, false)
	require.Len(t, scores, 1)
	assert.InDelta(t, 20, scores[0].Efficiency, 1e-9)
}

func TestScoreEvaluationMode(t *testing.T) {
	s := NewRouteScorer(nil, nil, ScorerConfig{BonusRate: 0.1}, nil)
	routes := []domain.Route{routeWithDuration(t, 600, wp("a", 37.88, -122.26, 9))}

	scores := s.Score(routes, []Visual{{Raw: 0.5}}, 0, true)
	assert.False(t, scores[0].Preference.Valid)

	back := Recombine(scores, DefaultWeights(), 0.1, false)
	require.True(t, back[0].Preference.Valid)
	assert.InDelta(t, 0.4*100+0.3*100+0.3*9, back[0].Overall, 1e-9)
}

func TestRankIsStable(t *testing.T) {
	in := []domain.RouteScore{
		{Overall: 50, ImagesUsed: 1},
		{Overall: 70, ImagesUsed: 2},
		{Overall: 50, ImagesUsed: 3},
	}
	out := Rank(in)
	assert.Equal(t, []int{2, 1, 3}, []int{out[0].ImagesUsed, out[1].ImagesUsed, out[2].ImagesUsed})
	assert.Equal(t, 1, in[0].ImagesUsed, "input must not be reordered")
}

func TestSamplePoints(t *testing.T) {
	r := routeWithDuration(t, 600, wp("a", 37.88, -122.26, 9))

	pts := SamplePoints(r, 10)
	require.Len(t, pts, 5)
	assert.Equal(t, berkeley, pts[0])
	assert.Equal(t, r.Waypoints[0].Coordinates, pts[1])
	assert.Equal(t, campus, pts[2])
	assert.Equal(t, domain.Midpoint(berkeley, campus), pts[3])

	assert.Len(t, SamplePoints(r, 2), 2)
}

func TestVisualScoreWithMocks(t *testing.T) {
	s := NewRouteScorer(mock.Imagery{}, mock.Embedding{}, ScorerConfig{MaxImages: 4}, nil)
	r := routeWithDuration(t, 600, wp("a", 37.88, -122.26, 9))

	v, err := s.VisualScore(context.Background(), r, "quiet tree-lined streets")
	require.NoError(t, err)
	assert.Equal(t, 4, v.Images)
	assert.GreaterOrEqual(t, v.Raw, 0.0)
	assert.LessOrEqual(t, v.Raw, 1.0)

	again, err := s.VisualScore(context.Background(), r, "quiet tree-lined streets")
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestVisualScoreNoImages(t *testing.T) {
	s := NewRouteScorer(mock.Imagery{Empty: true}, mock.Embedding{}, ScorerConfig{MaxImages: 4}, nil)

	v, err := s.VisualScore(context.Background(), routeWithDuration(t, 600), "parks")
	require.NoError(t, err)
	assert.Equal(t, Visual{}, v)
}

type countingImagery struct {
	mu    sync.Mutex
	boxes []ports.BBox
	fail  bool
}

func (c *countingImagery) Nearby(_ context.Context, b ports.BBox) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boxes = append(c.boxes, b)
	if c.fail {
		return nil, errors.New("imagery down")
	}
	return nil, nil
}

func (c *countingImagery) ThumbnailURL(context.Context, string) (string, error) { return "", nil }

func TestVisualScoreExpandsBBoxOnce(t *testing.T) {
	img := &countingImagery{}
	s := NewRouteScorer(img, mock.Embedding{}, ScorerConfig{MaxImages: 1, BBoxDegrees: 0.001}, nil)

	_, err := s.VisualScore(context.Background(), routeWithDuration(t, 600), "parks")
	require.NoError(t, err)
	require.Len(t, img.boxes, 2)
	assert.InDelta(t, 0.002, img.boxes[0].MaxLat-img.boxes[0].MinLat, 1e-12)
	assert.InDelta(t, 0.0036, img.boxes[1].MaxLat-img.boxes[1].MinLat, 1e-12)
}

func TestVisualScoreAllLookupsFail(t *testing.T) {
	s := NewRouteScorer(&countingImagery{fail: true}, mock.Embedding{}, ScorerConfig{MaxImages: 3}, nil)

	_, err := s.VisualScore(context.Background(), routeWithDuration(t, 600), "parks")
	assert.Error(t, err)
}
