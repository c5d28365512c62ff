package domain

// A point of interest that can be used as a route waypoint.
// Waypoints are created by the waypoint search and ranking step and are
// read-only afterwards.
type Waypoint struct {
	Name           string         `json:"name"`
	Coordinates    Coordinates    `json:"coordinates"`
	Category       string         `json:"category"`
	RelevanceScore float64        `json:"relevance_score"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	SourceQuery    string         `json:"input_query"`
}

// Key identifies a waypoint for de-duplication: name plus coordinates
// rounded to 6 decimal places. The source query is not part of the key.
func (w Waypoint) Key() WaypointKey {
	return WaypointKey{Name: w.Name, Coordinates: w.Coordinates.Rounded()}
}

type WaypointKey struct {
	Name        string
	Coordinates Coordinates
}
