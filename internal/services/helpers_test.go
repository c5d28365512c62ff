package services

import (
	"context"
	"detour-route-service/internal/domain"
	"encoding/json"
	"sync"
	"time"
)

// memCache is an in-process ports.Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, ns, key string, dst any) (bool, error) {
	c.mu.Lock()
	b, ok := c.data[ns+":"+key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, ns, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[ns+":"+key] = b
	c.sets++
	return nil
}

func (c *memCache) count(ns string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if len(k) > len(ns) && k[:len(ns)+1] == ns+":" {
			n++
		}
	}
	return n
}

var (
	berkeley = domain.Coordinates{Lat: 37.8715, Lon: -122.2730}
	// About 1.3 km east of berkeley.
	campus = domain.Coordinates{Lat: 37.8715, Lon: -122.2580}
)

func wp(name string, lat, lon, relevance float64) domain.Waypoint {
	return domain.Waypoint{
		Name:           name,
		Coordinates:    domain.Coordinates{Lat: lat, Lon: lon},
		Category:       "park",
		RelevanceScore: relevance,
		SourceQuery:    "leisure=park",
	}
}

func names(ws []domain.Waypoint) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Name
	}
	return out
}
