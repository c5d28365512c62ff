package services

import (
	"detour-route-service/internal/domain"
	"sort"
)

// DedupeWaypoints keeps one waypoint per (name, rounded coordinates), the
// one with the higher relevance. Output keeps first-seen order.
func DedupeWaypoints(ws []domain.Waypoint) []domain.Waypoint {
	index := make(map[domain.WaypointKey]int, len(ws))
	out := make([]domain.Waypoint, 0, len(ws))
	for _, w := range ws {
		k := w.Key()
		if i, ok := index[k]; ok {
			if w.RelevanceScore > out[i].RelevanceScore {
				out[i] = w
			}
			continue
		}
		index[k] = len(out)
		out = append(out, w)
	}
	return out
}

// RankWaypoints returns a copy stably sorted by relevance, highest first,
// trimmed to topK (topK <= 0 keeps all).
func RankWaypoints(ws []domain.Waypoint, topK int) []domain.Waypoint {
	out := append([]domain.Waypoint(nil), ws...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// DropNearEndpoints removes waypoints within thresholdMeters of origin or
// destination; visiting them adds nothing to the trip.
func DropNearEndpoints(ws []domain.Waypoint, origin, destination domain.Coordinates, thresholdMeters float64) []domain.Waypoint {
	if thresholdMeters <= 0 {
		return ws
	}
	out := make([]domain.Waypoint, 0, len(ws))
	for _, w := range ws {
		if w.Coordinates.DistanceMeters(origin) < thresholdMeters ||
			w.Coordinates.DistanceMeters(destination) < thresholdMeters {
			continue
		}
		out = append(out, w)
	}
	return out
}

// PrepareWaypoints applies de-duplication, ranking, the top-K trim and the
// endpoint filter, in that order.
func PrepareWaypoints(
	ws []domain.Waypoint,
	origin, destination domain.Coordinates,
	topK int,
	nearMeters float64,
) []domain.Waypoint {
	ranked := RankWaypoints(DedupeWaypoints(ws), topK)
	return DropNearEndpoints(ranked, origin, destination, nearMeters)
}
