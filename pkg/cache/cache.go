// Package cache provides byte-level caching for backend lookups.
//
// Three backends implement [Cache]:
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: JSON entry files under a directory, for the CLI
//   - [RedisCache]: shared cache for `rootline serve` deployments
//
// Keys are produced by a [Keyer] so that every component namespaces its
// entries the same way, and [NewScopedKeyer] can isolate tenants.
//
// Only reference data (places, cemeteries, ethnicities) and HTTP responses
// for it are cached. Traversals and profile snapshots must always reflect the
// backend's current state and are never written here.
package cache

import (
	"context"
	"strings"
	"time"
)

// Default TTLs per entry type.
const (
	// TTLHTTP is the lifetime of a cached HTTP response body.
	TTLHTTP = 24 * time.Hour

	// TTLLabel is the lifetime of a cached reference record.
	TTLLabel = 24 * time.Hour
)

// Cache stores opaque byte values under string keys.
//
// Get returns (nil, false, nil) on a miss. Implementations treat expired or
// corrupt entries as misses. A ttl of 0 means no expiration.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// =============================================================================
// Keys
// =============================================================================

// Keyer generates cache keys.
type Keyer interface {
	// HTTPKey is the key for a raw HTTP response in namespace.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

type scopedKeyer struct {
	inner Keyer
	scope string
}

// NewScopedKeyer prefixes every key of inner with scope, so rootline servers
// pointed at different backends can share one Redis. A missing trailing ":"
// is added to scope. A nil inner uses [DefaultKeyer].
func NewScopedKeyer(inner Keyer, scope string) Keyer {
	if inner == nil {
		inner = DefaultKeyer{}
	}
	if scope != "" && !strings.HasSuffix(scope, ":") {
		scope += ":"
	}
	return scopedKeyer{inner: inner, scope: scope}
}

func (k scopedKeyer) HTTPKey(namespace, key string) string {
	return k.scope + k.inner.HTTPKey(namespace, key)
}

// =============================================================================
// NullCache
// =============================================================================

// NullCache disables caching: every Get misses and writes are dropped. Calls
// on a cancelled context still report the context error so callers behave
// the same with and without a cache.
type NullCache struct{}

// NewNullCache returns a [NullCache].
func NewNullCache() Cache {
	return &NullCache{}
}

func (*NullCache) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	return nil, false, ctx.Err()
}

func (*NullCache) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	return ctx.Err()
}

func (*NullCache) Delete(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (*NullCache) Close() error { return nil }

var (
	_ Keyer = DefaultKeyer{}
	_ Keyer = scopedKeyer{}
	_ Cache = (*NullCache)(nil)
)
