package domain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorKinds(t *testing.T) {
	timeout := NewProviderError("ors", "route", context.DeadlineExceeded)
	assert.ErrorIs(t, timeout, ErrProviderTimeout)
	assert.NotErrorIs(t, timeout, ErrProviderError)

	failed := NewProviderError("ors", "route", errors.New("500"))
	assert.ErrorIs(t, failed, ErrProviderError)

	noRoute := NewProviderError("ors", "route", ErrNoRouteFound)
	assert.ErrorIs(t, noRoute, ErrNoRouteFound)
	assert.NotErrorIs(t, noRoute, ErrProviderError)

	assert.Same(t, failed, NewProviderError("other", "op", failed))
	assert.NoError(t, NewProviderError("ors", "route", nil))
}

func TestNewRouteInvariants(t *testing.T) {
	a := Coordinates{Lat: 1, Lon: 1}
	b := Coordinates{Lat: 1, Lon: 2}
	w := Waypoint{Name: "p", Coordinates: Coordinates{Lat: 1, Lon: 1.5}, SourceQuery: "leisure=park"}

	r, err := NewRoute(a, b, []Waypoint{w, w}, []RouteSegment{
		{DistanceMeters: 100, DurationSeconds: 60},
		{DistanceMeters: 50, DurationSeconds: 30},
		{DistanceMeters: 25, DurationSeconds: 15},
	}, Constraints{TransportMode: ModeWalking})
	require.NoError(t, err)
	assert.Equal(t, 175.0, r.TotalDistanceMeters)
	assert.Equal(t, 105, r.TotalDurationSeconds)
	assert.Equal(t, []string{"leisure=park"}, r.SourceQueries)
	assert.NoError(t, r.Validate())

	_, err = NewRoute(a, b, []Waypoint{w}, []RouteSegment{{}}, Constraints{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseTravelMode(t *testing.T) {
	for in, want := range map[string]TravelMode{
		"walking": ModeWalking, "foot": ModeWalking,
		"car": ModeDriving, "driving-car": ModeDriving,
		"bike": ModeCycling,
	} {
		got, err := ParseTravelMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTravelMode("hovercraft")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOptionalScoreJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A OptionalScore `json:"a"`
		B OptionalScore `json:"b"`
	}{ScoreOf(42.5), NotApplicable()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42.5,"b":null}`, string(b))
}

func TestCoordinatesHelpers(t *testing.T) {
	c := Coordinates{Lat: 37.87151234, Lon: -122.27304567}
	assert.Equal(t, Coordinates{Lat: 37.871512, Lon: -122.273046}, c.Rounded())
	assert.False(t, Coordinates{Lat: 91}.Valid())

	north := c.Offset(250, 0)
	assert.InDelta(t, 250, c.DistanceMeters(north), 0.5)
	east := c.Offset(0, 250)
	assert.InDelta(t, 250, c.DistanceMeters(east), 0.5)
}

func TestCloseRing(t *testing.T) {
	ring := CloseRing([]Coordinates{{0, 0}, {0, 1}, {1, 1}})
	assert.Len(t, ring, 4)
	assert.Equal(t, ring[0], ring[3])
	assert.Len(t, CloseRing(ring), 4)
	assert.Nil(t, CloseRing(nil))
}
