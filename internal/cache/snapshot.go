package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader materializes the value stored under key, typically by fetching the
// whole collection named by key and normalizing it.
type Loader[K ~string, V any] func(ctx context.Context, key K) (V, error)

// Snapshots caches one materialized value per key with explicit invalidation
// and optional TTL expiry.
//
// Keys are constrained to string kinds so a live store handle can never be
// used as a key. Concurrent loads of a missing key share a single refill, and
// a refill that began before Invalidate is never stored after it.
type Snapshots[K ~string, V any] struct {
	load    Loader[K, V]
	entries *LRUCache[V]
	group   singleflight.Group

	mu  sync.Mutex
	gen map[K]uint64

	hits          atomic.Int64
	misses        atomic.Int64
	refills       atomic.Int64
	invalidations atomic.Int64
}

// Stats reports cache activity counters
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Refills       int64 `json:"refills"`
	Invalidations int64 `json:"invalidations"`
	Entries       int   `json:"entries"`
}

// NewSnapshots creates a snapshot cache. ttl <= 0 means entries only leave
// the cache through Invalidate.
func NewSnapshots[K ~string, V any](load Loader[K, V], ttl time.Duration) *Snapshots[K, V] {
	return &Snapshots[K, V]{
		load:    load,
		entries: NewLRUCache[V](64, ttl),
		gen:     make(map[K]uint64),
	}
}

// Load returns the cached value for key, refilling it through the loader on a
// miss or after expiry.
func (s *Snapshots[K, V]) Load(ctx context.Context, key K) (V, error) {
	if v, ok := s.entries.Get(string(key)); ok {
		s.hits.Add(1)
		return v, nil
	}
	s.misses.Add(1)

	s.mu.Lock()
	gen := s.gen[key]
	s.mu.Unlock()

	// Loads issued after an Invalidate never join a refill started before it.
	flight := fmt.Sprintf("%s\x00%d", key, gen)
	ch := s.group.DoChan(flight, func() (any, error) {
		v, err := s.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return v, err
		}
		s.refills.Add(1)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen[key] == gen {
			s.entries.Set(string(key), v)
		} else {
			slog.DebugContext(ctx, "Discarding refill that raced an invalidation",
				"component", "cache", "collection", string(key))
		}
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate drops the cached value for key. The next Load refetches.
func (s *Snapshots[K, V]) Invalidate(key K) {
	s.mu.Lock()
	s.gen[key]++
	s.entries.Delete(string(key))
	s.mu.Unlock()
	s.invalidations.Add(1)
}

// Cached reports whether a live entry exists for key without touching counters.
func (s *Snapshots[K, V]) Cached(key K) bool {
	_, ok := s.entries.Get(string(key))
	return ok
}

// CleanExpired implements Cleaner
func (s *Snapshots[K, V]) CleanExpired() int {
	return s.entries.CleanExpired()
}

func (s *Snapshots[K, V]) Stats() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Refills:       s.refills.Load(),
		Invalidations: s.invalidations.Load(),
		Entries:       s.entries.Size(),
	}
}
