package services

import (
	"context"
	"detour-route-service/internal/ports"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Cache namespaces. Bump the suffix when the stored shape changes.
const (
	nsExtract    = "llm_extract_v1"
	nsGeocode    = "geocode_v1"
	nsIsochrone  = "isochrone_v1"
	nsSearchZone = "search_zone_v1"
	nsWaypoints  = "waypoints_v2"
)

const (
	ttlExtract    = 30 * time.Minute
	ttlGeocode    = 24 * time.Hour
	ttlIsochrone  = 6 * time.Hour
	ttlSearchZone = 30 * time.Minute
	ttlWaypoints  = 30 * time.Minute
)

// cacheKey hashes the JSON encoding of v. Structs encode in field order and
// maps in sorted key order, so equal inputs always give equal keys.
func cacheKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// cachedJSON reads ns/key into dst. Store failures count as misses.
func cachedJSON(ctx context.Context, c ports.Cache, log *zap.Logger, ns, key string, dst any) bool {
	if c == nil || key == "" {
		return false
	}
	ok, err := c.Get(ctx, ns, key, dst)
	if err != nil {
		log.Warn("cache read failed", zap.String("ns", ns), zap.Error(err))
		return false
	}
	return ok
}

// storeJSON writes v under ns/key, logging and otherwise ignoring failures.
func storeJSON(ctx context.Context, c ports.Cache, log *zap.Logger, ns, key string, v any, ttl time.Duration) {
	if c == nil || key == "" {
		return
	}
	if err := c.Set(ctx, ns, key, v, ttl); err != nil {
		log.Warn("cache write failed", zap.String("ns", ns), zap.Error(err))
	}
}
