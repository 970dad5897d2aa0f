package cache

import "time"

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption[R any] func(*cache[R])

// WithLabel sets the resource label used in error messages and creation callbacks.
//
// Parameters:
//   - label: the resource type name, e.g. "pipeline" or "texture"
//
// Returns:
//   - CacheBuilderOption[R]: a function that sets the cache label
func WithLabel[R any](label string) CacheBuilderOption[R] {
	return func(c *cache[R]) {
		c.label = label
	}
}

// WithOnCreate registers a callback invoked after each successful factory run.
// Managers use it to log load timings.
//
// Parameters:
//   - fn: the callback receiving the created key and the factory duration
//
// Returns:
//   - CacheBuilderOption[R]: a function that sets the creation callback
func WithOnCreate[R any](fn func(key CacheKey, elapsed time.Duration)) CacheBuilderOption[R] {
	return func(c *cache[R]) {
		c.onCreate = fn
	}
}
