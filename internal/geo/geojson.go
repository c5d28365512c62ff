package geo

import (
	"detour-route-service/internal/domain"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ZoneFeatures renders a search zone for display: the representative
// isochrone pair and the intersection ring, one feature each.
func ZoneFeatures(z domain.SearchZone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	add := func(ring []domain.Coordinates, role string, minutes int) {
		if len(ring) < 4 {
			return
		}
		f := geojson.NewFeature(orb.Polygon{toOrbRing(ring)})
		f.Properties["role"] = role
		if minutes >= 0 {
			f.Properties["minutes"] = minutes
		}
		fc.Append(f)
	}

	add(z.OriginIsochrone.Ring, "origin_isochrone", z.OriginIsochrone.Minutes)
	add(z.DestinationIsochrone.Ring, "destination_isochrone", z.DestinationIsochrone.Minutes)
	add(z.IntersectionRing, "search_zone", -1)

	return fc
}

// RingFromGeoJSON extracts the outer ring of the first polygon feature.
func RingFromGeoJSON(fc *geojson.FeatureCollection) []domain.Coordinates {
	for _, f := range fc.Features {
		var outer orb.Ring
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) > 0 {
				outer = g[0]
			}
		case orb.MultiPolygon:
			if len(g) > 0 && len(g[0]) > 0 {
				outer = g[0][0]
			}
		}
		if len(outer) == 0 {
			continue
		}

		ring := make([]domain.Coordinates, 0, len(outer)+1)
		for _, p := range outer {
			ring = append(ring, domain.Coordinates{Lat: p.Lat(), Lon: p.Lon()})
		}
		return domain.CloseRing(ring)
	}
	return nil
}
