// Package observability lets rootline's libraries report what they do
// without depending on a metrics backend.
//
// Each area has a hooks interface and a no-op default. A binary swaps in real
// implementations at startup; `rootline serve` installs the Prometheus
// collector from the metrics subpackage:
//
//	collector := metrics.New("rootline")
//	collector.Install()
//
// Library code fetches the current hooks at the call site:
//
//	observability.Tree().OnTraversalStart(ctx, rootRef)
//	// ... fetch and build ...
//	observability.Tree().OnTraversalComplete(ctx, rootRef, nodeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// TreeHooks receives events from tree views.
type TreeHooks interface {
	OnTraversalStart(ctx context.Context, rootRef string)
	OnTraversalComplete(ctx context.Context, rootRef string, nodeCount int, duration time.Duration, err error)

	// OnTraversalSuperseded records a load abandoned in favour of a newer one.
	OnTraversalSuperseded(ctx context.Context, rootRef string)

	// OnHop records a jump to another appearance of ref.
	OnHop(ctx context.Context, ref string, groupSize int)
}

// ResolveHooks receives events from place, cemetery and ethnicity lookups.
type ResolveHooks interface {
	// OnLookup records one lookup. err is nil on success.
	OnLookup(ctx context.Context, kind, id string, duration time.Duration, err error)
	OnBatch(ctx context.Context, resolved, failed int, duration time.Duration)
}

// CacheHooks receives events from the cached backend client. keyType is the
// client's key prefix.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events for every backend request. OnError covers
// transport failures only; error statuses arrive through OnResponse.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

type NoopTreeHooks struct{}

func (NoopTreeHooks) OnTraversalStart(context.Context, string)                              {}
func (NoopTreeHooks) OnTraversalComplete(context.Context, string, int, time.Duration, error) {}
func (NoopTreeHooks) OnTraversalSuperseded(context.Context, string)                         {}
func (NoopTreeHooks) OnHop(context.Context, string, int)                                    {}

type NoopResolveHooks struct{}

func (NoopResolveHooks) OnLookup(context.Context, string, string, time.Duration, error) {}
func (NoopResolveHooks) OnBatch(context.Context, int, int, time.Duration)               {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// slot holds the registered implementation of one hooks interface.
type slot[T any] struct {
	mu  sync.RWMutex
	cur T
	def T
}

func newSlot[T any](def T) *slot[T] { return &slot[T]{cur: def, def: def} }

func (s *slot[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *slot[T]) set(h T, isNil bool) {
	if isNil {
		return
	}
	s.mu.Lock()
	s.cur = h
	s.mu.Unlock()
}

func (s *slot[T]) reset() {
	s.mu.Lock()
	s.cur = s.def
	s.mu.Unlock()
}

var (
	treeSlot    = newSlot[TreeHooks](NoopTreeHooks{})
	resolveSlot = newSlot[ResolveHooks](NoopResolveHooks{})
	cacheSlot   = newSlot[CacheHooks](NoopCacheHooks{})
	httpSlot    = newSlot[HTTPHooks](NoopHTTPHooks{})
)

// Setters ignore nil.

func SetTreeHooks(h TreeHooks)       { treeSlot.set(h, h == nil) }
func SetResolveHooks(h ResolveHooks) { resolveSlot.set(h, h == nil) }
func SetCacheHooks(h CacheHooks)     { cacheSlot.set(h, h == nil) }
func SetHTTPHooks(h HTTPHooks)       { httpSlot.set(h, h == nil) }

func Tree() TreeHooks       { return treeSlot.get() }
func Resolve() ResolveHooks { return resolveSlot.get() }
func Cache() CacheHooks     { return cacheSlot.get() }
func HTTP() HTTPHooks       { return httpSlot.get() }

// Reset puts the no-op hooks back.
func Reset() {
	treeSlot.reset()
	resolveSlot.reset()
	cacheSlot.reset()
	httpSlot.reset()
}
