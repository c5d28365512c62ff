package services

import "detour-route-service/internal/domain"

type CandidateConfig struct {
	// Size of the ranked waypoint window candidates are drawn from.
	TopK int
	// Legacy mode limits. Any of them > 0 selects legacy mode.
	MaxSingles int
	MaxPairs   int
	MaxTriples int
	// Largest subset size in generic mode.
	MaxWaypoints int
	// Hard ceiling on candidates, the empty subset included.
	MaxCandidates int
}

// CandidateGenerator enumerates waypoint subsets to build routes for. The
// first candidate is always the empty subset (the direct route).
type CandidateGenerator interface {
	Generate(waypoints []domain.Waypoint) [][]domain.Waypoint
}

// NewCandidateGenerator picks the legacy generator when any explicit
// single/pair/triple count is set, else the generic one.
func NewCandidateGenerator(cfg CandidateConfig) CandidateGenerator {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 20
	}
	if cfg.MaxSingles > 0 || cfg.MaxPairs > 0 || cfg.MaxTriples > 0 {
		return legacyCandidates{cfg: cfg}
	}
	if cfg.MaxWaypoints <= 0 {
		cfg.MaxWaypoints = 2
	}
	return genericCandidates{cfg: cfg}
}

// legacyCandidates emits singles by rank, then pairs and triples in
// ascending index order, each up to its own limit.
type legacyCandidates struct {
	cfg CandidateConfig
}

func (g legacyCandidates) Generate(waypoints []domain.Waypoint) [][]domain.Waypoint {
	window := RankWaypoints(waypoints, g.cfg.TopK)
	out := [][]domain.Waypoint{{}}
	n := len(window)

	for i := 0; i < min(g.cfg.MaxSingles, n); i++ {
		out = append(out, []domain.Waypoint{window[i]})
	}

	pairs := 0
	for i := 0; i < n && pairs < g.cfg.MaxPairs; i++ {
		for j := i + 1; j < n && pairs < g.cfg.MaxPairs; j++ {
			out = append(out, []domain.Waypoint{window[i], window[j]})
			pairs++
		}
	}

	triples := 0
	for i := 0; i < n && triples < g.cfg.MaxTriples; i++ {
		for j := i + 1; j < n && triples < g.cfg.MaxTriples; j++ {
			for k := j + 1; k < n && triples < g.cfg.MaxTriples; k++ {
				out = append(out, []domain.Waypoint{window[i], window[j], window[k]})
				triples++
			}
		}
	}

	return capCandidates(out, g.cfg.MaxCandidates)
}

// genericCandidates emits every combination of size 1..MaxWaypoints,
// smaller sizes first, lexicographic within a size.
type genericCandidates struct {
	cfg CandidateConfig
}

func (g genericCandidates) Generate(waypoints []domain.Waypoint) [][]domain.Waypoint {
	window := RankWaypoints(waypoints, g.cfg.TopK)
	out := [][]domain.Waypoint{{}}
	limit := g.cfg.MaxCandidates

	for size := 1; size <= min(g.cfg.MaxWaypoints, len(window)) && len(out) < limit; size++ {
		idx := make([]int, size)
		for i := range idx {
			idx[i] = i
		}
		for len(out) < limit {
			c := make([]domain.Waypoint, size)
			for i, v := range idx {
				c[i] = window[v]
			}
			out = append(out, c)
			if !nextCombination(idx, len(window)) {
				break
			}
		}
	}

	return capCandidates(out, limit)
}

// nextCombination advances idx to the next k-combination of [0,n) in
// lexicographic order and reports whether one exists.
func nextCombination(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

func capCandidates(cs [][]domain.Waypoint, limit int) [][]domain.Waypoint {
	if limit > 0 && len(cs) > limit {
		return cs[:limit]
	}
	return cs
}
