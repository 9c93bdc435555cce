package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resource tags. A mutation invalidates every cached query carrying its tag.
const (
	TagLead      = "Lead"
	TagLeadStage = "LeadStage"
	TagPipeline  = "Pipeline"
)

// Cache stores encoded query results under a key and a set of resource tags.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, tags []string, value []byte, ttl time.Duration) error
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Fetcher serves queries through a Cache and collapses concurrent misses for
// the same key into a single call. Each tag carries a generation that
// Invalidate bumps; a load that straddles an invalidation is returned to its
// callers but never written back.
type Fetcher struct {
	cache  Cache
	ttl    time.Duration
	flight singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64
	keys map[string]map[string]struct{}
}

func NewFetcher(c Cache, ttl time.Duration) *Fetcher {
	return &Fetcher{
		cache: c,
		ttl:   ttl,
		gens:  make(map[string]uint64),
		keys:  make(map[string]map[string]struct{}),
	}
}

func (f *Fetcher) Cache() Cache {
	return f.cache
}

// Invalidate drops every entry carrying one of tags and detaches in-flight
// loads for those entries so later callers start a fresh one.
func (f *Fetcher) Invalidate(ctx context.Context, tags ...string) error {
	f.mu.Lock()
	for _, tag := range tags {
		f.gens[tag]++
		for key := range f.keys[tag] {
			f.flight.Forget(key)
		}
		delete(f.keys, tag)
	}
	f.mu.Unlock()

	return f.cache.InvalidateTags(ctx, tags...)
}

// track registers key under tags and returns their current generations.
func (f *Fetcher) track(key string, tags []string) []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	gens := make([]uint64, len(tags))
	for i, tag := range tags {
		gens[i] = f.gens[tag]
		if f.keys[tag] == nil {
			f.keys[tag] = make(map[string]struct{})
		}
		f.keys[tag][key] = struct{}{}
	}
	return gens
}

// storeIfCurrent writes raw unless one of tags was invalidated since gens
// were read. Holding mu across the write orders it before any later Invalidate.
func (f *Fetcher) storeIfCurrent(ctx context.Context, key string, tags []string, gens []uint64, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, tag := range tags {
		if f.gens[tag] != gens[i] {
			return
		}
	}
	_ = f.cache.Set(ctx, key, tags, raw, f.ttl)
}

// Fetch returns the cached value for key or runs load, caching its result under tags.
// A cache read or write failure degrades to a direct load.
func Fetch[T any](ctx context.Context, f *Fetcher, key string, tags []string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := f.cache.Get(ctx, key); err == nil && ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	res, err, _ := f.flight.Do(key, func() (any, error) {
		gens := f.track(key, tags)

		// Shared by every waiter, so one caller going away must not fail the rest.
		loadCtx := context.WithoutCancel(ctx)
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(v); err == nil {
			f.storeIfCurrent(loadCtx, key, tags, gens, raw)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}

	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("cache: unexpected type %T for %s", res, key)
	}
	return v, nil
}
