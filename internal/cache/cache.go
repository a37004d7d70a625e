// Package cache implements the time-boxed prediction cache that fronts the
// forecast provider. Entries are keyed by coordinates rounded to four
// decimals and persisted through a store.Store so they survive restarts.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/sunset-forecast/internal/common"
	"github.com/i474232898/sunset-forecast/internal/store"
	"github.com/i474232898/sunset-forecast/internal/weather"
)

// DefaultTTL is how long a prediction list stays valid after it is written.
const DefaultTTL = 30 * time.Minute

const persistTimeout = 5 * time.Second

// blobKey holds the serialized entry map.
var blobKey = store.Key("prediction-cache")

// Entry is one cached prediction list.
type Entry struct {
	Key       string               `json:"key"`
	Data      []weather.Prediction `json:"data"`
	Timestamp time.Time            `json:"timestamp"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// PredictionCache is a concurrency-safe TTL cache persisted to a Store.
type PredictionCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	hits    int
	misses  int

	// persistMu orders blob writes so the last writer stores the newest map.
	persistMu sync.Mutex
	store     store.Store

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a PredictionCache.
type Option func(*PredictionCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *PredictionCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *PredictionCache) {
		c.now = now
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *PredictionCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache. Call Init to load persisted entries. A nil
// store keeps the cache memory-only.
func New(s store.Store, opts ...Option) *PredictionCache {
	c := &PredictionCache{
		entries: make(map[string]Entry),
		store:   s,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cache")
	return c
}

// Init loads persisted entries, discarding expired ones before they become
// visible. A missing or unreadable blob leaves the cache empty; it never
// blocks fresh fetches.
func (c *PredictionCache) Init(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	blob, err := c.store.Get(ctx, blobKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.logger.Warn("failed to read persisted cache; starting empty", zap.Error(err))
		return nil
	}

	entries, err := decodeEntries(blob)
	if err != nil {
		c.logger.Warn("persisted cache is corrupt; starting empty", zap.Error(err))
		entries = make(map[string]Entry)
	}

	now := c.now()
	c.mu.Lock()
	for k, e := range entries {
		if e.expired(now) {
			delete(entries, k)
		}
	}
	c.entries = entries
	c.mu.Unlock()

	c.logger.Info("loaded prediction cache", zap.Int("entries", len(entries)))
	return c.persist(ctx)
}

// Get returns the live predictions for the coordinates, if any.
func (c *PredictionCache) Get(lat, lon float64) ([]weather.Prediction, bool) {
	c.PurgeExpired()

	key := common.CoordKey(lat, lon)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return append([]weather.Prediction(nil), e.Data...), true
}

// Put stores data for the coordinates with a fresh TTL and persists it.
func (c *PredictionCache) Put(lat, lon float64, data []weather.Prediction) {
	key := common.CoordKey(lat, lon)
	now := c.now()

	c.mu.Lock()
	c.entries[key] = Entry{
		Key:       key,
		Data:      append([]weather.Prediction(nil), data...),
		Timestamp: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()

	c.persistQuietly()
}

// PurgeExpired drops dead entries and returns how many were removed.
func (c *PredictionCache) PurgeExpired() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("purged expired predictions", zap.Int("removed", removed))
		c.persistQuietly()
	}
	return removed
}

// Clear drops every entry and the persisted blob.
func (c *PredictionCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return c.store.Delete(ctx, blobKey)
}

// Len returns the number of live entries.
func (c *PredictionCache) Len() int {
	c.PurgeExpired()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since construction.
func (c *PredictionCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *PredictionCache) persistQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.persist(ctx); err != nil {
		c.logger.Warn("failed to persist prediction cache", zap.Error(err))
	}
}

func (c *PredictionCache) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	blob, err := encodeEntries(c.entries)
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	return c.store.Set(ctx, blobKey, blob)
}

var _ weather.PredictionCache = (*PredictionCache)(nil)
