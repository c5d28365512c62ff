package ports

import (
	"context"
	"time"
)

// Shared key-value cache reachable by all orchestrator instances.
// Values are JSON-serializable. Implementations must be safe for
// concurrent use; concurrent writers on one key are last-write-wins.
type Cache interface {
	// Get decodes the value stored under (namespace, key) into dst and
	// reports whether it was found.
	Get(ctx context.Context, namespace, key string, dst any) (bool, error)
	Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
}
