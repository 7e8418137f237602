// Package computed memoizes expensive derived values for the lifetime of
// an audit run. Concurrent requests for the same value share one
// computation.
package computed

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/metrics"
)

// Kind names a family of computations
type Kind string

const (
	KindProcessedTrace    Kind = "processed-trace"
	KindNormalizedRecords Kind = "normalized-records"
	KindGraph             Kind = "graph"
	KindSimulation        Kind = "simulation"
	KindTimeline          Kind = "timeline"
	KindMetric            Kind = "metric"
)

type entry struct {
	value any
	err   error
}

// Cache memoizes values and errors by (kind, identity). It is safe for
// concurrent use.
type Cache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
	metrics *metrics.Registry
	logger  logging.Logger
}

// New creates an empty cache. A nil registry disables instrumentation.
func New(registry *metrics.Registry, logger logging.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		metrics: registry,
		logger:  logging.OrDefault(logger),
	}
}

func key(kind Kind, identity string) string {
	return string(kind) + "|" + identity
}

// Request returns the memoized result for (kind, identity), running
// compute once if there is none. A caller whose ctx ends first gets
// ctx.Err(); the computation still finishes and is stored.
func (c *Cache) Request(ctx context.Context, kind Kind, identity string, compute func() (any, error)) (any, error) {
	k := key(kind, identity)
	if e, ok := c.lookup(k); ok {
		c.record(kind, metrics.CacheHit)
		return e.value, e.err
	}

	ch := c.group.DoChan(k, func() (any, error) {
		if e, ok := c.lookup(k); ok {
			return e.value, e.err
		}
		c.record(kind, metrics.CacheMiss)
		c.logger.Debug("computing cached value", logging.Component("computed"),
			logging.String("kind", string(kind)), logging.String("identity", identity))

		v, err := safeCompute(compute)
		c.store(k, entry{value: v, err: err})
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.record(kind, metrics.CacheCollapsed)
		}
		return res.Val, res.Err
	}
}

// Get is the typed form of Cache.Request
func Get[T any](ctx context.Context, c *Cache, kind Kind, identity string, compute func() (T, error)) (T, error) {
	v, err := c.Request(ctx, kind, identity, func() (any, error) {
		return compute()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cached %s value has type %T", kind, v)
	}
	return typed, nil
}

// Len returns the number of memoized entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(k string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[k]
	return e, ok
}

func (c *Cache) store(k string, e entry) {
	c.mu.Lock()
	c.entries[k] = e
	n := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetCacheEntries(n)
	}
}

func (c *Cache) record(kind Kind, result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheRequest(string(kind), result)
	}
}

// safeCompute turns a panic into an error; singleflight would otherwise
// re-panic on a goroutine nobody can recover.
func safeCompute(compute func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("computation panicked: %v", r)
		}
	}()
	return compute()
}
