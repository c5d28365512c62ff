package tsp

import (
	"context"
	"detour-route-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderVisitsStopsAlongTheLine(t *testing.T) {
	start := domain.Coordinates{Lat: 0, Lon: 0}
	end := domain.Coordinates{Lat: 0, Lon: 0.05}
	a := domain.Coordinates{Lat: 0, Lon: 0.01}
	b := domain.Coordinates{Lat: 0, Lon: 0.02}
	c := domain.Coordinates{Lat: 0, Lon: 0.04}

	got, err := NewOptimizer(12).Order(context.Background(), start, end, []domain.Coordinates{c, a, b}, domain.ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, []domain.Coordinates{a, b, c}, got)
}

func TestOrderKeepsShortInput(t *testing.T) {
	a := domain.Coordinates{Lat: 1, Lon: 1}
	got, err := NewOptimizer(12).Order(context.Background(), domain.Coordinates{}, domain.Coordinates{Lat: 2, Lon: 2}, []domain.Coordinates{a}, domain.ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, []domain.Coordinates{a}, got)
}

func TestOrderRejectsTooManyStops(t *testing.T) {
	interior := make([]domain.Coordinates, 4)
	for i := range interior {
		interior[i] = domain.Coordinates{Lat: float64(i) * 0.01, Lon: 0.01}
	}
	_, err := NewOptimizer(4).Order(context.Background(), domain.Coordinates{}, domain.Coordinates{Lat: 1}, interior, domain.ModeWalking)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInteriorOrderRotatesTour(t *testing.T) {
	got, err := interiorOrder([]int{0, 3, 1, 2, 0}, 4)
	require.Error(t, err, "destination must close the path")
	assert.Nil(t, got)

	got, err = interiorOrder([]int{2, 1, 3, 0, 2}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, got)
}
