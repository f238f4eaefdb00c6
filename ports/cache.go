package ports

import (
	"context"
	"time"
)

// Cache is the pluggable external cache used to memoize block timestamps and
// impersonation decisions. Every entry carries an explicit TTL chosen by the
// caller. The validator is correct without a cache: absence and failure are
// both treated as a miss, never as a validation failure.
type Cache interface {
	// GetValue returns the cached value for key, and whether it was found
	GetValue(ctx context.Context, key string) (string, bool, error)

	// SetValue stores value under key for the given TTL
	SetValue(ctx context.Context, key string, value string, ttl time.Duration) error
}
