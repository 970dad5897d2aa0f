package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Factory constructs the resource for a key that is not yet cached.
type Factory[R any] func() (R, error)

// cache is the unexported implementation of Cache.
type cache[R any] struct {
	mu *sync.Mutex

	// label names the resource type held, used in errors and creation logs.
	label string
	items map[CacheKey]R
	// flights collapses concurrent misses on one key into a single factory call.
	flights singleflight.Group
	// onCreate is invoked once per constructed entry, outside the lock.
	onCreate func(key CacheKey, elapsed time.Duration)
}

// Cache is a keyed store mapping a CacheKey to a lazily constructed resource. The same generic cache is
// instantiated per resource type (shader sources, pipelines, textures, meshes, materials, models, buffers
// and bind groups) and is the backbone of the resource layer.
//
// There is no implicit eviction: entries live until Remove is called.
type Cache[R any] interface {
	// Label returns the resource label this cache was built with.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Get returns the cached resource for key.
	//
	// Parameters:
	//   - key: the resource identity
	//
	// Returns:
	//   - R: the cached resource, or the zero value
	//   - bool: true if the key is present
	Get(key CacheKey) (R, bool)

	// Contains reports whether key is present.
	//
	// Parameters:
	//   - key: the resource identity
	//
	// Returns:
	//   - bool: true if the key is present
	Contains(key CacheKey) bool

	// GetOrCreate returns the cached resource for key, constructing it with factory if absent.
	// The factory is invoked at most once per resident key, including when several goroutines ask for the
	// same key concurrently. If the factory fails the error is returned wrapped and the key stays absent.
	//
	// Parameters:
	//   - key: the resource identity
	//   - factory: builds the resource on a miss
	//
	// Returns:
	//   - R: the cached or freshly built resource
	//   - error: the factory error, if any
	GetOrCreate(key CacheKey, factory Factory[R]) (R, error)

	// Insert stores value under key, overwriting any previous entry.
	//
	// Parameters:
	//   - key: the resource identity
	//   - value: the resource to store
	Insert(key CacheKey, value R)

	// Remove evicts key from the cache.
	//
	// Parameters:
	//   - key: the resource identity
	//
	// Returns:
	//   - R: the evicted resource, or the zero value
	//   - bool: true if an entry was evicted
	Remove(key CacheKey) (R, bool)

	// Len returns the number of resident entries.
	Len() int

	// Keys returns the resident keys sorted by identity.
	Keys() []CacheKey

	// Range calls fn for every resident entry in key order until fn returns false.
	// fn must not call back into the cache.
	Range(fn func(key CacheKey, value R) bool)
}

var _ Cache[int] = &cache[int]{}

// NewCache creates a new empty Cache with the provided options applied.
//
// Parameters:
//   - options: variadic list of CacheBuilderOption functions
//
// Returns:
//   - Cache[R]: the new cache
func NewCache[R any](options ...CacheBuilderOption[R]) Cache[R] {
	c := &cache[R]{
		mu:    &sync.Mutex{},
		label: "resource",
		items: make(map[CacheKey]R),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *cache[R]) Label() string {
	return c.label
}

func (c *cache[R]) Get(key CacheKey) (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *cache[R]) Contains(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *cache[R]) GetOrCreate(key CacheKey, factory Factory[R]) (R, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.flights.Do(key.String(), func() (any, error) {
		// A flight that finished between the Get above and this call already stored the value.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		start := time.Now()
		v, err := factory()
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", c.label, key.String(), err)
		}
		c.Insert(key, v)
		if c.onCreate != nil {
			c.onCreate(key, time.Since(start))
		}
		return v, nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	r, _ := v.(R)
	return r, nil
}

func (c *cache[R]) Insert(key CacheKey, value R) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *cache[R]) Remove(key CacheKey) (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	return v, ok
}

func (c *cache[R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *cache[R]) Keys() []CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedKeys()
}

func (c *cache[R]) Range(fn func(key CacheKey, value R) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.sortedKeys() {
		if !fn(k, c.items[k]) {
			return
		}
	}
}

func (c *cache[R]) sortedKeys() []CacheKey {
	keys := make([]CacheKey, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].id < keys[j].id
	})
	return keys
}
