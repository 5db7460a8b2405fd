// Package querycache is the single source of truth for asynchronous, server-derived
// data shared by every wizard phase.
//
// Each resource key holds one entry. Reads never block on the network: a fresh
// entry is returned as is, a stale entry is returned immediately while a
// background refetch runs. At most one load per key is in flight at any time;
// later callers join it. Every write is stamped with a sequence number taken
// when the write starts, and a load that finishes after a newer write (for
// example a SetValue issued mid-fetch) is discarded.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/common/metrics"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

const DefaultFreshness = 24 * time.Hour

var ErrClosed = errors.New("querycache: closed")

// Loader produces the value for a key. It receives the cache's lifetime context.
type Loader func(ctx context.Context) (interface{}, error)

// Entry is a read-only snapshot of a cached resource.
type Entry struct {
	Key         string          `json:"key"`
	Value       interface{}     `json:"value,omitempty"`
	HasValue    bool            `json:"hasValue"`
	Status      Status          `json:"status"`
	Err         error           `json:"-"`
	FetchedAt   time.Time       `json:"fetchedAt,omitempty"`
	Freshness   time.Duration   `json:"freshness"`
	Stale       bool            `json:"stale"`
	Fetching    bool            `json:"fetching"`
	RetryDelays []time.Duration `json:"retryDelays,omitempty"`
	Version     uint64          `json:"version"`
}

// GetOptions controls whether a read may trigger a load.
type GetOptions struct {
	Enabled   bool
	Loader    Loader
	Freshness time.Duration
}

type Config struct {
	Freshness  time.Duration
	Capacity   int
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Freshness:  DefaultFreshness,
		Capacity:   128,
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

type entry struct {
	value         interface{}
	hasValue      bool
	status        Status
	err           error
	fetchedAt     time.Time
	version       uint64
	invalidatedAt uint64
	retryDelays   []time.Duration
}

type call struct {
	done    chan struct{}
	value   interface{}
	err     error
	waiters int // callers that joined after the one that started the load
}

type registration struct {
	loader    Loader
	freshness time.Duration
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSleep replaces the backoff sleeper, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Cache) { c.sleep = sleep }
}

type Cache struct {
	cfg    Config
	logger logger.Logger

	mu       sync.Mutex
	entries  *lru.Cache[string, *entry]
	inflight map[string]*call
	registry map[string]registration
	seq      uint64
	removing bool
	closed   bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, log logger.Logger, opts ...Option) (*Cache, error) {
	def := DefaultConfig()
	if cfg.Freshness <= 0 {
		cfg.Freshness = def.Freshness
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "querycache"}),
		inflight: make(map[string]*call),
		registry: make(map[string]registration),
		now:      time.Now,
		sleep:    sleepCtx,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := lru.NewWithEvict[string, *entry](cfg.Capacity, c.onEvict)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Register binds a loader and freshness window to a key so plain Get calls can refetch it.
func (c *Cache) Register(key string, loader Loader, freshness time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry[key] = registration{loader: loader, freshness: freshness}
}

// Get returns the current entry for key, creating a pending one on first access.
// With opts.Enabled it starts a background load when the entry is missing or stale;
// it never waits for that load.
func (c *Cache) Get(key string, opts GetOptions) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	loader, freshness := c.resolveLocked(key, opts.Loader, opts.Freshness)
	snap := c.snapshotLocked(key, e, freshness)

	resource := resourceOf(key)
	switch {
	case !snap.HasValue:
		metrics.CacheReads.WithLabelValues(resource, "miss").Inc()
	case snap.Stale:
		metrics.CacheReads.WithLabelValues(resource, "stale").Inc()
	default:
		metrics.CacheReads.WithLabelValues(resource, "fresh").Inc()
	}

	if !opts.Enabled || loader == nil || snap.Fetching || c.closed {
		return snap
	}
	needsLoad := (!snap.HasValue && snap.Status != StatusError) || (snap.HasValue && snap.Stale)
	if needsLoad {
		c.startLocked(key, loader)
		snap.Fetching = true
	}
	return snap
}

// Peek returns the entry without creating it or touching LRU order.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok {
		return Entry{}, false
	}
	_, freshness := c.resolveLocked(key, nil, 0)
	return c.snapshotLocked(key, e, freshness), true
}

// Fetch runs loader for key, or joins the load already in flight. A nil loader
// falls back to the registered one. Cancelling ctx stops this caller from waiting
// but does not abort the shared load.
func (c *Cache) Fetch(ctx context.Context, key string, loader Loader) (interface{}, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	loader, _ = c.resolveLocked(key, loader, 0)
	if loader == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("querycache: no loader registered for %q", key)
	}
	c.entryLocked(key)
	cl, joined := c.inflight[key]
	if joined {
		cl.waiters++
	} else {
		cl = c.startLocked(key, loader)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.value, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetValue writes value directly, bypassing any loader. It wins over every load
// that started before it.
func (c *Cache) SetValue(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeqLocked()
	e := c.entryLocked(key)
	e.value = value
	e.hasValue = true
	e.status = StatusSuccess
	e.err = nil
	e.fetchedAt = c.now()
	e.version = seq
	e.retryDelays = nil
}

// Invalidate marks key stale. The value keeps being served until a refetch replaces it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(key); ok {
		e.invalidatedAt = c.nextSeqLocked()
	}
}

// InvalidatePrefix marks every key starting with prefix stale.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.nextSeqLocked()
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			if e, ok := c.entries.Peek(key); ok {
				e.invalidatedAt = seq
			}
		}
	}
}

// Remove deletes key. A load already in flight for it is discarded when it lands.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Bump the sequence so an in-flight load cannot resurrect the entry.
	tombstone := c.nextSeqLocked()
	c.removing = true
	c.entries.Remove(key)
	c.removing = false
	if _, ok := c.inflight[key]; ok {
		c.entries.Add(key, &entry{status: StatusPending, version: tombstone})
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Close cancels background loads and waits for them to finish.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Cache) startLocked(key string, loader Loader) *call {
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	seq := c.nextSeqLocked()

	e := c.entryLocked(key)
	if !e.hasValue {
		e.status = StatusPending
		e.err = nil
	}

	c.wg.Add(1)
	go c.run(key, seq, loader, cl)
	return cl
}

func (c *Cache) run(key string, seq uint64, loader Loader, cl *call) {
	defer c.wg.Done()

	resource := resourceOf(key)
	var (
		value  interface{}
		err    error
		delays []time.Duration
	)
	for attempt := 0; ; attempt++ {
		value, err = invoke(c.ctx, loader)
		if err == nil {
			break
		}
		if attempt >= c.cfg.MaxRetries || !apperrors.IsRetryable(err) || c.ctx.Err() != nil {
			break
		}

		delay := c.backoff(attempt)
		delays = append(delays, delay)
		metrics.CacheRetries.WithLabelValues(resource).Inc()
		c.logger.Warn("cache load failed, retrying", map[string]interface{}{
			"key":         key,
			"attempt":     attempt + 1,
			"maxRetries":  c.cfg.MaxRetries,
			"nextRetryIn": delay.String(),
			"error":       err.Error(),
		})
		if sleepErr := c.sleep(c.ctx, delay); sleepErr != nil {
			break
		}
	}

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		value = c.applyLocked(key, seq, value, delays)
		metrics.CacheFetches.WithLabelValues(resource, string(StatusSuccess)).Inc()
	} else {
		c.failLocked(key, seq, err, delays)
		metrics.CacheFetches.WithLabelValues(resource, string(StatusError)).Inc()
	}
	cl.value, cl.err = value, err
	c.logger.Debug("cache load settled", map[string]interface{}{
		"key":      key,
		"ok":       err == nil,
		"joined":   cl.waiters,
		"attempts": len(delays) + 1,
	})
	c.mu.Unlock()

	close(cl.done)
}

// applyLocked stores a load result unless a newer write already landed, and
// returns the value that is current afterwards.
func (c *Cache) applyLocked(key string, seq uint64, value interface{}, delays []time.Duration) interface{} {
	e := c.entryLocked(key)
	if e.version > seq {
		metrics.CacheDiscardedWrites.WithLabelValues(resourceOf(key)).Inc()
		c.logger.Debug("discarding stale load result", map[string]interface{}{
			"key":           key,
			"loadSeq":       seq,
			"entryVersion":  e.version,
			"entryHasValue": e.hasValue,
		})
		if e.hasValue {
			return e.value
		}
		return value
	}
	e.value = value
	e.hasValue = true
	e.status = StatusSuccess
	e.err = nil
	e.fetchedAt = c.now()
	e.version = seq
	e.retryDelays = delays
	return value
}

func (c *Cache) failLocked(key string, seq uint64, err error, delays []time.Duration) {
	e := c.entryLocked(key)
	if e.version > seq {
		return
	}
	e.status = StatusError
	e.err = err
	e.retryDelays = delays
	c.logger.Error("cache load failed", map[string]interface{}{
		"key":      key,
		"attempts": len(delays) + 1,
		"error":    err.Error(),
	})
}

func (c *Cache) entryLocked(key string) *entry {
	if e, ok := c.entries.Get(key); ok {
		return e
	}
	e := &entry{status: StatusPending}
	c.entries.Add(key, e)
	return e
}

func (c *Cache) resolveLocked(key string, loader Loader, freshness time.Duration) (Loader, time.Duration) {
	reg, ok := c.registry[key]
	if loader == nil && ok {
		loader = reg.loader
	}
	if freshness <= 0 && ok {
		freshness = reg.freshness
	}
	if freshness <= 0 {
		freshness = c.cfg.Freshness
	}
	return loader, freshness
}

func (c *Cache) snapshotLocked(key string, e *entry, freshness time.Duration) Entry {
	_, fetching := c.inflight[key]
	stale := e.invalidatedAt > e.version
	if e.hasValue && c.now().Sub(e.fetchedAt) > freshness {
		stale = true
	}
	var delays []time.Duration
	if len(e.retryDelays) > 0 {
		delays = append(delays, e.retryDelays...)
	}
	return Entry{
		Key:         key,
		Value:       e.value,
		HasValue:    e.hasValue,
		Status:      e.status,
		Err:         e.err,
		FetchedAt:   e.fetchedAt,
		Freshness:   freshness,
		Stale:       stale,
		Fetching:    fetching,
		RetryDelays: delays,
		Version:     e.version,
	}
}

func (c *Cache) nextSeqLocked() uint64 {
	c.seq++
	return c.seq
}

// backoff returns BaseDelay doubled per attempt, capped at MaxDelay.
func (c *Cache) backoff(attempt int) time.Duration {
	delay := c.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	if delay > c.cfg.MaxDelay {
		return c.cfg.MaxDelay
	}
	return delay
}

// onEvict runs inside lru calls made with c.mu held.
func (c *Cache) onEvict(key string, _ *entry) {
	if c.removing {
		return
	}
	metrics.CacheEvictions.Inc()
	c.logger.Info("cache entry evicted", map[string]interface{}{
		"key":      key,
		"capacity": c.cfg.Capacity,
	})
}

func invoke(ctx context.Context, loader Loader) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("querycache: loader panic: %v", r)
		}
	}()
	return loader(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resourceOf turns "generated-image:ab12" into the metric label "generated-image".
func resourceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
