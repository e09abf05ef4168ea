package texture

import (
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// cacheEntry is one resident texture. holders counts logical owners; a pinned entry keeps
// one extra holder that only Close drops.
type cacheEntry struct {
	key     string
	handle  Handle
	holders int
	pinned  bool
}

type decodeResult struct {
	data common.TextureStagingData
	err  error
}

// cache is the implementation of the Cache interface.
type cache struct {
	mu *sync.Mutex

	pool    TexturePool
	entries map[uint64]*cacheEntry

	flags      LoadFlags
	defaultKey string

	decodeWorkers int
	decodePool    worker.DynamicWorkerPool

	logger  logr.Logger
	metrics *metrics.Metrics
}

// Cache is a content-addressed, reference-counted store of GPU textures.
//
// Keys are file paths (or other stable identifiers) and are hashed with FNV-1a, so two
// requests for the same logical resource always resolve to the same handle. Every Acquire
// adds one holder and must be balanced by one Release; the texture is unloaded through the
// TexturePool when the last holder releases it, before the entry leaves the index.
type Cache interface {
	// Acquire returns the texture for key, loading it on first use, and adds one holder.
	//
	// Parameters:
	//   - key: the texture file path
	//
	// Returns:
	//   - Handle: the shared texture handle
	//   - error: error wrapping common.ErrResourceUnavailable if the load fails
	Acquire(key string) (Handle, error)

	// AcquireMany acquires several keys at once. Textures that are not resident yet are decoded
	// concurrently and uploaded one by one on the calling goroutine. Either every key is
	// acquired or none is.
	//
	// Parameters:
	//   - keys: the texture file paths
	//
	// Returns:
	//   - []Handle: the handles in the order of keys
	//   - error: error wrapping common.ErrResourceUnavailable if any decode or upload fails
	AcquireMany(keys ...string) ([]Handle, error)

	// Release drops one holder of key. When no holder remains the texture is unloaded and the
	// entry removed. Unknown keys are a no-op.
	//
	// Parameters:
	//   - key: the texture file path
	//
	// Returns:
	//   - bool: true if the texture was evicted or was never resident, false if holders remain
	Release(key string) bool

	// Get looks up a resident texture without changing its holders.
	//
	// Parameters:
	//   - key: the texture file path
	//
	// Returns:
	//   - Handle: the texture handle
	//   - bool: false if key is not resident
	Get(key string) (Handle, bool)

	// Holders returns the number of holders of key, zero if not resident.
	Holders(key string) int

	// Len returns the number of resident textures.
	Len() int

	// Default returns the pinned default texture, if one was configured.
	//
	// Returns:
	//   - Handle: the default texture
	//   - bool: false if no default texture is configured
	Default() (Handle, bool)

	// Close unloads every resident texture regardless of holders and stops the decode workers.
	//
	// Returns:
	//   - error: joined unload errors, if any
	Close() error
}

var _ Cache = &cache{}

// NewCache creates a texture cache on top of a texture pool. When a default texture is
// configured it is loaded and pinned immediately.
//
// Parameters:
//   - pool: the texture pool that owns GPU memory (must not be nil)
//   - options: functional options to configure the cache
//
// Returns:
//   - Cache: the new cache
//   - error: error if the default texture cannot be loaded
func NewCache(pool TexturePool, options ...CacheBuilderOption) (Cache, error) {
	if pool == nil {
		panic("texture: NewCache requires a non-nil TexturePool")
	}

	c := &cache{
		mu:            &sync.Mutex{},
		pool:          pool,
		entries:       make(map[uint64]*cacheEntry),
		flags:         FlagSRGB,
		decodeWorkers: max(runtime.NumCPU()-1, 1),
		logger:        logr.Discard(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Discard()
	}

	c.decodePool = worker.NewDynamicWorkerPool(c.decodeWorkers, 64, 1*time.Second)

	if c.defaultKey != "" {
		h, err := c.pool.LoadFromFile(c.defaultKey, c.flags)
		if err != nil {
			c.decodePool.Stop()
			return nil, fmt.Errorf("texture cache: load default texture %q: %w", c.defaultKey, asUnavailable(err))
		}
		c.entries[hashKey(c.defaultKey)] = &cacheEntry{key: c.defaultKey, handle: h, holders: 1, pinned: true}
		c.metrics.TexturesResident.Set(float64(len(c.entries)))
		c.logger.Info("pinned default texture", "key", c.defaultKey, "handle", h)
	}
	return c, nil
}

func (c *cache) Acquire(key string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.lookup(key)
	if err != nil {
		return Handle{}, err
	}
	if e != nil {
		e.holders++
		c.metrics.TextureHits.Inc()
		c.logger.V(1).Info("texture hit", "key", key, "holders", e.holders)
		return e.handle, nil
	}

	h, err := c.pool.LoadFromFile(key, c.flags)
	if err != nil {
		return Handle{}, fmt.Errorf("texture cache: load %q: %w", key, asUnavailable(err))
	}
	c.entries[hashKey(key)] = &cacheEntry{key: key, handle: h, holders: 1}
	c.metrics.TextureMisses.Inc()
	c.metrics.TexturesResident.Set(float64(len(c.entries)))
	c.logger.V(1).Info("texture loaded", "key", key, "handle", h)
	return h, nil
}

func (c *cache) AcquireMany(keys ...string) ([]Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var missing []string
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		e, err := c.lookup(key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			continue
		}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			missing = append(missing, key)
		}
	}

	// Decode on the worker pool; uploads stay on this goroutine.
	results := make([]decodeResult, len(missing))
	var wg sync.WaitGroup
	for i, key := range missing {
		wg.Add(1)
		c.decodePool.SubmitTask(worker.Task{
			ID:      i,
			Payload: key,
			Do: func() (any, error) {
				defer wg.Done()
				data, err := c.pool.Decode(key)
				results[i] = decodeResult{data: data, err: err}
				return nil, err
			},
		})
	}
	wg.Wait()

	var decodeErrs []error
	for i, r := range results {
		if r.err != nil {
			decodeErrs = append(decodeErrs, fmt.Errorf("decode %q: %w", missing[i], r.err))
		}
	}
	if len(decodeErrs) > 0 {
		return nil, fmt.Errorf("texture cache: %w", asUnavailable(errors.Join(decodeErrs...)))
	}

	uploaded := make([]Handle, 0, len(missing))
	for i, key := range missing {
		h, err := c.pool.LoadFromStaging(key, results[i].data, c.flags)
		if err != nil {
			for _, done := range uploaded {
				if uerr := c.pool.Unload(done); uerr != nil {
					c.logger.Error(uerr, "failed to roll back texture upload", "handle", done)
				}
			}
			return nil, fmt.Errorf("texture cache: upload %q: %w", key, asUnavailable(err))
		}
		uploaded = append(uploaded, h)
	}
	for i, key := range missing {
		c.entries[hashKey(key)] = &cacheEntry{key: key, handle: uploaded[i]}
		c.metrics.TextureMisses.Inc()
	}

	out := make([]Handle, len(keys))
	for i, key := range keys {
		e := c.entries[hashKey(key)]
		if _, loaded := seen[key]; !loaded || e.holders > 0 {
			c.metrics.TextureHits.Inc()
		}
		e.holders++
		out[i] = e.handle
	}
	c.metrics.TexturesResident.Set(float64(len(c.entries)))
	c.logger.V(1).Info("textures acquired", "count", len(keys), "loaded", len(missing))
	return out, nil
}

func (c *cache) Release(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := hashKey(key)
	e, ok := c.entries[id]
	if !ok || e.key != key {
		return true
	}
	if e.pinned && e.holders <= 1 {
		return false
	}
	e.holders--
	if e.holders > 0 {
		return false
	}

	if err := c.pool.Unload(e.handle); err != nil {
		c.logger.Error(err, "failed to unload texture", "key", key, "handle", e.handle)
	}
	delete(c.entries, id)
	c.metrics.TextureEvictions.Inc()
	c.metrics.TexturesResident.Set(float64(len(c.entries)))
	c.logger.V(1).Info("texture evicted", "key", key)
	return true
}

func (c *cache) Get(key string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hashKey(key)]
	if !ok || e.key != key {
		return Handle{}, false
	}
	return e.handle, true
}

func (c *cache) Holders(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hashKey(key)]
	if !ok || e.key != key {
		return 0
	}
	return e.holders
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache) Default() (Handle, bool) {
	if c.defaultKey == "" {
		return Handle{}, false
	}
	return c.Get(c.defaultKey)
}

func (c *cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for id, e := range c.entries {
		if err := c.pool.Unload(e.handle); err != nil {
			errs = append(errs, fmt.Errorf("unload %q: %w", e.key, err))
		}
		delete(c.entries, id)
	}
	c.decodePool.Stop()
	c.metrics.TexturesResident.Set(0)
	c.logger.Info("texture cache closed")
	return errors.Join(errs...)
}

// lookup returns the entry for key, nil if absent. Caller holds the lock.
func (c *cache) lookup(key string) (*cacheEntry, error) {
	if key == "" {
		return nil, fmt.Errorf("texture cache: empty key: %w", common.ErrResourceUnavailable)
	}
	e, ok := c.entries[hashKey(key)]
	if !ok {
		return nil, nil
	}
	if e.key != key {
		return nil, fmt.Errorf("texture cache: key %q collides with %q: %w", key, e.key, common.ErrResourceUnavailable)
	}
	return e, nil
}

// hashKey is the stable content key of a texture identifier.
func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// asUnavailable makes sure a pool error can be matched with common.ErrResourceUnavailable.
func asUnavailable(err error) error {
	if errors.Is(err, common.ErrResourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrResourceUnavailable, err)
}
