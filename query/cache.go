// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AndyO2/pony-express/lib/clock"
)

// Config configures a Cache.
type Config struct {
	// Clock stamps FetchedAt and drives retention timers. Nil selects
	// the real clock.
	Clock clock.Clock

	// Logger receives fetch lifecycle events. Nil selects slog.Default().
	Logger *slog.Logger

	// Retention is how long an entry survives after its last subscriber
	// leaves. Zero evicts immediately.
	Retention time.Duration

	// Strict makes a ConsistencyViolation panic after it is reported.
	// Enable it in tests and debug builds.
	Strict bool

	// OnFetchError, when set, is called outside the cache lock for
	// every failed fetch and every ConsistencyViolation.
	OnFetchError func(Key, error)

	// Metrics records cache activity. May be nil.
	Metrics *Metrics
}

// Cache deduplicates and tracks the freshness of keyed reads. It is safe
// for concurrent use.
type Cache struct {
	clock        clock.Clock
	logger       *slog.Logger
	retention    time.Duration
	strict       bool
	onFetchError func(Key, error)
	metrics      *Metrics

	baseContext context.Context
	cancel      context.CancelFunc

	mu               sync.Mutex
	entries          map[string]*entry
	gate             func(Key) bool
	nextSubscriberID int
	disposed         bool

	// queue holds pending notifications in mutation order. draining is
	// set while some goroutine is delivering them.
	queue    []func()
	draining bool

	// changed is closed and replaced on every state change so Settled
	// can wait without polling.
	changed chan struct{}
}

type entry struct {
	key        Key
	status     Status
	data       any
	err        error
	fetchedAt  time.Time
	stale      bool
	generation uint64

	// settled is true once the fetch for the current generation has
	// been applied.
	settled bool

	// inflight counts fetch goroutines that have not completed,
	// including superseded ones.
	inflight int

	fetcher     Fetcher
	subscribers map[int]Listener
	evictTimer  *clock.Timer
}

// New creates a Cache.
func New(config Config) *Cache {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	baseContext, cancel := context.WithCancel(context.Background())
	return &Cache{
		clock:        config.Clock,
		logger:       config.Logger,
		retention:    config.Retention,
		strict:       config.Strict,
		onFetchError: config.OnFetchError,
		metrics:      config.Metrics,
		baseContext:  baseContext,
		cancel:       cancel,
		entries:      make(map[string]*entry),
		changed:      make(chan struct{}),
	}
}

// SetGate installs a predicate consulted before every fetch. A nil gate
// allows everything.
func (c *Cache) SetGate(gate func(Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = gate
}

// Subscribe attaches listener to key and returns the entry's current
// state together with a function that detaches it.
//
// A fresh Success entry is returned as is. A Loading entry gains a
// subscriber that will see the pending result. Otherwise (absent, stale,
// Idle or Error) a fetch starts, unless the gate forbids it. fetcher
// replaces any fetcher previously registered for the key and is used
// for later refetches. listener may be nil.
func (c *Cache) Subscribe(key Key, fetcher Fetcher, listener Listener) (Entry, func()) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.logger.Warn("subscribe on disposed cache", "key", key.String())
		return Entry{Key: key.clone(), Status: Idle}, func() {}
	}

	e, ok := c.entries[key.id()]
	if !ok {
		e = &entry{key: key.clone(), subscribers: make(map[int]Listener)}
		c.entries[key.id()] = e
	}
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}

	id := c.nextSubscriberID
	c.nextSubscriberID++
	e.fetcher = fetcher

	switch {
	case e.status == Success && !e.stale:
		c.metrics.hit(e.key)
	case e.status == Loading:
		c.metrics.coalesce(e.key)
	default:
		// Existing subscribers see the transition; the new one gets it
		// from the return value.
		if c.startFetchLocked(e) {
			c.notifyLocked(e)
		}
	}

	e.subscribers[id] = listener
	snapshot := e.snapshot()
	c.mu.Unlock()
	c.drain()

	var once sync.Once
	return snapshot, func() {
		once.Do(func() { c.unsubscribe(e, id) })
	}
}

func (c *Cache) unsubscribe(e *entry, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := e.subscribers[id]; !ok {
		return
	}
	delete(e.subscribers, id)
	if len(e.subscribers) == 0 {
		c.scheduleEvictionLocked(e)
	}
}

// Invalidate marks every entry whose key starts with prefix as stale and
// bumps its generation. Entries with subscribers refetch immediately
// (subject to the gate); entries without are evicted. Returns the number
// of entries matched.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	matched := 0
	for _, e := range c.matchingLocked(prefix) {
		matched++
		e.generation++
		e.settled = false
		e.stale = true

		if len(e.subscribers) == 0 {
			c.evictLocked(e)
			continue
		}
		if !c.startFetchLocked(e) && e.status == Loading {
			// The superseded fetch will be discarded and the gate
			// forbids a new one.
			e.status = Idle
		}
		c.notifyLocked(e)
	}
	if matched > 0 {
		c.logger.Debug("invalidated", "prefix", prefix.String(), "entries", matched)
		c.broadcastLocked()
	}
	c.mu.Unlock()
	c.drain()
	return matched
}

// Reset drops the data of every entry whose key starts with prefix.
// Subscribed entries return to Idle without fetching and any in-flight
// result for them is discarded; unsubscribed entries are evicted.
// Returns the number of entries matched.
func (c *Cache) Reset(prefix Key) int {
	c.mu.Lock()
	matched := 0
	for _, e := range c.matchingLocked(prefix) {
		matched++
		e.generation++
		e.settled = false
		e.status = Idle
		e.data = nil
		e.err = nil
		e.fetchedAt = time.Time{}
		e.stale = false

		if len(e.subscribers) == 0 {
			c.evictLocked(e)
			continue
		}
		c.notifyLocked(e)
	}
	if matched > 0 {
		c.logger.Debug("reset", "prefix", prefix.String(), "entries", matched)
		c.broadcastLocked()
	}
	c.mu.Unlock()
	c.drain()
	return matched
}

// Get returns a snapshot of the entry for key without subscribing.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Settled blocks until no entry under prefix is Loading, or ctx ends.
func (c *Cache) Settled(ctx context.Context, prefix Key) error {
	for {
		c.mu.Lock()
		loading := false
		for _, e := range c.entries {
			if e.status == Loading && e.key.HasPrefix(prefix) {
				loading = true
				break
			}
		}
		changed := c.changed
		c.mu.Unlock()

		if !loading {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Dispose cancels every in-flight fetch, stops retention timers, and
// drops all entries. Later completions are discarded and later
// subscriptions return an Idle entry.
func (c *Cache) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	for _, e := range c.entries {
		if e.evictTimer != nil {
			e.evictTimer.Stop()
		}
	}
	c.entries = make(map[string]*entry)
	c.queue = nil
	c.broadcastLocked()
	c.mu.Unlock()
	c.cancel()
}

// startFetchLocked moves e to Loading and launches its fetcher tagged
// with the current generation. Returns false if the gate forbids the
// fetch or there is no fetcher.
func (c *Cache) startFetchLocked(e *entry) bool {
	if e.fetcher == nil {
		return false
	}
	if c.gate != nil && !c.gate(e.key) {
		c.logger.Debug("fetch gated", "key", e.key.String())
		return false
	}

	// A retry after a settled result needs its own generation.
	if e.settled {
		e.generation++
		e.settled = false
	}
	e.status = Loading
	e.inflight++
	generation := e.generation
	fetcher := e.fetcher
	c.metrics.fetchStarted(e.key)
	c.logger.Debug("fetch started", "key", e.key.String(), "generation", generation)
	c.broadcastLocked()

	go func() {
		data, err := fetcher(c.baseContext)
		c.complete(e, generation, data, err)
	}()
	return true
}

// complete applies the result of a fetch started at generation.
func (c *Cache) complete(e *entry, generation uint64, data any, err error) {
	c.mu.Lock()
	if e.inflight > 0 {
		e.inflight--
	}

	if c.disposed || c.entries[e.key.id()] != e {
		c.metrics.discard(e.key)
		c.logger.Debug("discarding completion for evicted entry", "key", e.key.String(), "generation", generation)
		c.mu.Unlock()
		return
	}

	var violation *ConsistencyViolation
	switch {
	case generation < e.generation:
		c.metrics.discard(e.key)
		c.logger.Debug("discarding superseded completion",
			"key", e.key.String(), "generation", generation, "current", e.generation)
		c.evictIfOrphanedLocked(e)
		c.mu.Unlock()
		return

	case generation > e.generation:
		violation = &ConsistencyViolation{Key: e.key.clone(), Generation: generation, Current: e.generation,
			Reason: "completion from a future generation"}

	case e.settled:
		violation = &ConsistencyViolation{Key: e.key.clone(), Generation: generation, Current: e.generation,
			Reason: "generation already settled"}
	}

	if violation != nil {
		c.logger.Error("query cache consistency violation", "key", e.key.String(), "error", violation)
		c.reportLocked(e.key, violation)
		c.mu.Unlock()
		c.drain()
		if c.strict {
			panic(violation)
		}
		return
	}

	e.settled = true
	e.stale = false
	e.fetchedAt = c.clock.Now()
	if err != nil {
		e.status = Error
		e.err = err
		c.logger.Debug("fetch failed", "key", e.key.String(), "generation", generation, "error", err)
		c.reportLocked(e.key, err)
	} else {
		e.status = Success
		e.data = data
		e.err = nil
	}
	c.notifyLocked(e)
	c.broadcastLocked()
	c.evictIfOrphanedLocked(e)
	c.mu.Unlock()
	c.drain()
}

func (c *Cache) reportLocked(key Key, err error) {
	if c.onFetchError == nil {
		return
	}
	report := c.onFetchError
	key = key.clone()
	c.queue = append(c.queue, func() { report(key, err) })
}

// notifyLocked queues a snapshot of e for each of its subscribers. A
// subscriber that leaves before delivery is skipped.
func (c *Cache) notifyLocked(e *entry) {
	snapshot := e.snapshot()
	ids := make([]int, 0, len(e.subscribers))
	for id := range e.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		listener := e.subscribers[id]
		if listener == nil {
			continue
		}
		c.queue = append(c.queue, func() {
			c.mu.Lock()
			_, subscribed := e.subscribers[id]
			c.mu.Unlock()
			if subscribed {
				listener(snapshot)
			}
		})
	}
}

// drain delivers queued notifications in order. If another goroutine (or
// an outer frame of this one) is already draining, it delivers ours too.
func (c *Cache) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	defer func() {
		if recovered := recover(); recovered != nil {
			c.mu.Lock()
			c.draining = false
			c.mu.Unlock()
			panic(recovered)
		}
	}()
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		next()
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func (c *Cache) scheduleEvictionLocked(e *entry) {
	if e.inflight > 0 {
		// Re-checked when the fetch completes.
		return
	}
	if c.retention <= 0 {
		c.evictLocked(e)
		return
	}
	e.evictTimer = c.clock.AfterFunc(c.retention, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entries[e.key.id()] == e && len(e.subscribers) == 0 && e.inflight == 0 {
			c.evictLocked(e)
		}
	})
}

func (c *Cache) evictIfOrphanedLocked(e *entry) {
	if len(e.subscribers) == 0 && e.evictTimer == nil && c.entries[e.key.id()] == e {
		c.scheduleEvictionLocked(e)
	}
}

func (c *Cache) evictLocked(e *entry) {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	if c.entries[e.key.id()] != e {
		return
	}
	delete(c.entries, e.key.id())
	c.metrics.evict(e.key)
	c.logger.Debug("evicted", "key", e.key.String())
	c.broadcastLocked()
}

func (c *Cache) matchingLocked(prefix Key) []*entry {
	var matches []*entry
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			matches = append(matches, e)
		}
	}
	// Deterministic notification order across keys.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].key.id() < matches[j].key.id()
	})
	return matches
}

func (c *Cache) broadcastLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:         e.key.clone(),
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		FetchedAt:   e.fetchedAt,
		Stale:       e.stale,
		Subscribers: len(e.subscribers),
		Generation:  e.generation,
	}
}

// IsViolation reports whether err is a *ConsistencyViolation.
func IsViolation(err error) bool {
	var violation *ConsistencyViolation
	return errors.As(err, &violation)
}
