package cache

import (
	"context"
	"detour-route-service/internal/domain"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	rows    map[string]domain.Coordinates
	readErr error
	puts    int
}

func (m *memStore) GetMany(_ context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := map[string]domain.Coordinates{}
	for _, a := range addresses {
		if c, ok := m.rows[a]; ok {
			out[a] = c
		}
	}
	return out, nil
}

func (m *memStore) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	m.puts++
	for k, v := range results {
		m.rows[k] = v
	}
	return nil
}

type countingResolver struct {
	calls int
	c     domain.Coordinates
	err   error
}

func (r *countingResolver) Resolve(context.Context, string) (domain.Coordinates, error) {
	r.calls++
	return r.c, r.err
}

func TestPersistentGeocoderStoresAndReuses(t *testing.T) {
	store := &memStore{rows: map[string]domain.Coordinates{}}
	next := &countingResolver{c: domain.Coordinates{Lat: 1, Lon: 2}}
	g := NewPersistentGeocoder(next, store, nil)
	ctx := context.Background()

	got, err := g.Resolve(ctx, "Union  Square")
	require.NoError(t, err)
	assert.Equal(t, next.c, got)

	got, err = g.Resolve(ctx, "union square")
	require.NoError(t, err)
	assert.Equal(t, next.c, got)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, store.puts)
}

func TestPersistentGeocoderIgnoresStoreErrors(t *testing.T) {
	store := &memStore{rows: map[string]domain.Coordinates{}, readErr: errors.New("db down")}
	next := &countingResolver{c: domain.Coordinates{Lat: 3, Lon: 4}}

	got, err := NewPersistentGeocoder(next, store, nil).Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, next.c, got)
}

func TestPersistentGeocoderPropagatesNotFound(t *testing.T) {
	store := &memStore{rows: map[string]domain.Coordinates{}}
	next := &countingResolver{err: domain.ErrNotFound}

	_, err := NewPersistentGeocoder(next, store, nil).Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, store.puts)
}

func TestSQLGeocodeCacheNilDB(t *testing.T) {
	_, err := NewSQLGeocodeCache(nil, nil).GetMany(context.Background(), []string{"a"})
	assert.Error(t, err)
}
