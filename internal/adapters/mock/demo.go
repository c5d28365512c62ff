package mock

import "detour-route-service/internal/domain"

// DemoPlaces backs the offline geocoder in PROVIDERS=mock mode.
var DemoPlaces = map[string]domain.Coordinates{
	"Berkeley Marina":   {Lat: 37.8665, Lon: -122.3140},
	"UC Berkeley":       {Lat: 37.8719, Lon: -122.2585},
	"Downtown Berkeley": {Lat: 37.8700, Lon: -122.2680},
	"Lake Merritt":      {Lat: 37.8027, Lon: -122.2590},
	"Rockridge":         {Lat: 37.8444, Lon: -122.2513},
}

// DemoWaypoints are the points of interest the offline searcher knows.
var DemoWaypoints = []domain.Waypoint{
	{Name: "Aquatic Park", Coordinates: domain.Coordinates{Lat: 37.8610, Lon: -122.2960}, Category: "leisure", RelevanceScore: 8.5, SourceQuery: "leisure=park"},
	{Name: "Ohlone Park", Coordinates: domain.Coordinates{Lat: 37.8735, Lon: -122.2780}, Category: "leisure", RelevanceScore: 8.1, SourceQuery: "leisure=park"},
	{Name: "Civic Center Park", Coordinates: domain.Coordinates{Lat: 37.8692, Lon: -122.2722}, Category: "leisure", RelevanceScore: 7.4, SourceQuery: "leisure=park"},
	{Name: "Strawberry Creek Park", Coordinates: domain.Coordinates{Lat: 37.8665, Lon: -122.2840}, Category: "leisure", RelevanceScore: 7.0, SourceQuery: "leisure=park"},
	{Name: "Caffe Strada", Coordinates: domain.Coordinates{Lat: 37.8690, Lon: -122.2545}, Category: "amenity", RelevanceScore: 6.8, SourceQuery: "amenity=cafe"},
	{Name: "Berkeley Rose Garden", Coordinates: domain.Coordinates{Lat: 37.8855, Lon: -122.2620}, Category: "leisure", RelevanceScore: 6.5, SourceQuery: "leisure=garden"},
	{Name: "Indian Rock", Coordinates: domain.Coordinates{Lat: 37.8925, Lon: -122.2720}, Category: "tourism", RelevanceScore: 6.2, SourceQuery: "tourism=viewpoint"},
}
