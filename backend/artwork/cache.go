package artwork

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("artwork not cached")

type cacheEntry struct {
	art *Artwork
	ttl time.Duration

	// unix millis
	expiresAt    int64
	lastAccessed int64
}

// ImageCache memoises decoded artwork by reference, so that switching back
// and forth between a few books does not refetch their covers.
//
// Eviction:
//  1. with fewer than MinSize entries nothing is evicted
//  2. an insert that would exceed MaxSize evicts one entry immediately,
//     the least recently used expired one if any, else the least recently used
//  3. between MinSize and MaxSize, expired entries are evicted periodically,
//     least recently used first
type ImageCache struct {
	MinSize    int
	MaxSize    int
	DefaultTTL time.Duration

	// Called after every periodic eviction pass.
	OnEvictTaskRan func()

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

func (c *ImageCache) Init(ctx context.Context, evictionInterval time.Duration) {
	c.mu.Lock()
	c.cache = make(map[string]*cacheEntry)
	c.mu.Unlock()
	if evictionInterval > 0 {
		go c.periodicallyEvict(ctx, evictionInterval)
	}
}

func (c *ImageCache) Set(ref string, a *Artwork) {
	c.SetWithTTL(ref, a, c.DefaultTTL)
}

func (c *ImageCache) SetWithTTL(ref string, a *Artwork, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]*cacheEntry)
	}

	now := time.Now()
	if e, ok := c.cache[ref]; ok {
		e.art = a
		e.ttl = ttl
		e.expiresAt = now.Add(ttl).UnixMilli()
		e.lastAccessed = now.UnixMilli()
		return
	}
	if c.MaxSize > 0 && len(c.cache) >= c.MaxSize {
		c.evictOne(now.UnixMilli())
	}
	c.cache[ref] = &cacheEntry{
		art:          a,
		ttl:          ttl,
		expiresAt:    now.Add(ttl).UnixMilli(),
		lastAccessed: now.UnixMilli(),
	}
}

// Get returns the cached artwork and extends its TTL.
func (c *ImageCache) Get(ref string) (*Artwork, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[ref]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now()
	e.lastAccessed = now.UnixMilli()
	e.expiresAt = now.Add(e.ttl).UnixMilli()
	return e.art, nil
}

func (c *ImageCache) Has(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[ref]
	return ok
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cache)
}

// must be called with mu held
func (c *ImageCache) evictOne(now int64) {
	var lruKey, lruExpiredKey string
	lruTime, lruExpiredTime := int64(-1), int64(-1)
	for k, e := range c.cache {
		if e.expiresAt < now && (lruExpiredTime < 0 || e.lastAccessed < lruExpiredTime) {
			lruExpiredTime = e.lastAccessed
			lruExpiredKey = k
		}
		if lruTime < 0 || e.lastAccessed < lruTime {
			lruTime = e.lastAccessed
			lruKey = k
		}
	}
	if lruExpiredTime >= 0 {
		delete(c.cache, lruExpiredKey)
	} else {
		delete(c.cache, lruKey)
	}
}

func (c *ImageCache) periodicallyEvict(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.EvictExpired()
			if c.OnEvictTaskRan != nil {
				c.OnEvictTaskRan()
			}
		}
	}
}

type expiredEntry struct {
	ref          string
	lastAccessed int64
}

type expiredHeap []expiredEntry

func (h expiredHeap) Len() int           { return len(h) }
func (h expiredHeap) Less(i, j int) bool { return h[i].lastAccessed < h[j].lastAccessed }
func (h expiredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expiredHeap) Push(x any) {
	*h = append(*h, x.(expiredEntry))
}

func (h *expiredHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// EvictExpired removes least recently used expired entries until none
// are left or the cache is down to MinSize.
func (c *ImageCache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.cache)
	if count <= c.MinSize {
		return
	}
	now := time.Now().UnixMilli()
	expired := make(expiredHeap, 0, count-c.MinSize)
	for k, e := range c.cache {
		if e.expiresAt < now {
			expired = append(expired, expiredEntry{ref: k, lastAccessed: e.lastAccessed})
		}
	}
	heap.Init(&expired)
	for count > c.MinSize && expired.Len() > 0 {
		delete(c.cache, heap.Pop(&expired).(expiredEntry).ref)
		count--
	}
}
