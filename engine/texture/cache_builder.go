package texture

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// CacheBuilderOption is a functional option for configuring a cache.
type CacheBuilderOption func(c *cache)

// WithCacheLogger sets the logger used by the cache.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - CacheBuilderOption: option function to apply
func WithCacheLogger(logger logr.Logger) CacheBuilderOption {
	return func(c *cache) {
		c.logger = logger.WithName("texture-cache")
	}
}

// WithCacheMetrics sets the collectors updated by the cache.
//
// Parameters:
//   - m: the collectors
//
// Returns:
//   - CacheBuilderOption: option function to apply
func WithCacheMetrics(m *metrics.Metrics) CacheBuilderOption {
	return func(c *cache) {
		c.metrics = m
	}
}

// WithLoadFlags sets the flags passed to the texture pool for every load.
//
// Parameters:
//   - flags: the upload flags
//
// Returns:
//   - CacheBuilderOption: option function to apply
func WithLoadFlags(flags LoadFlags) CacheBuilderOption {
	return func(c *cache) {
		c.flags = flags
	}
}

// WithDefaultTexture pins a texture for the lifetime of the cache. It is never evicted by
// Release.
//
// Parameters:
//   - key: the texture file path
//
// Returns:
//   - CacheBuilderOption: option function to apply
func WithDefaultTexture(key string) CacheBuilderOption {
	return func(c *cache) {
		c.defaultKey = key
	}
}

// WithDecodeWorkers sets how many goroutines AcquireMany decodes on.
//
// Parameters:
//   - n: the worker count, values below 1 are ignored
//
// Returns:
//   - CacheBuilderOption: option function to apply
func WithDecodeWorkers(n int) CacheBuilderOption {
	return func(c *cache) {
		if n > 0 {
			c.decodeWorkers = n
		}
	}
}
